package domain

import (
	"errors"
	"math"
	"testing"
)

func TestCoordinateValidate(t *testing.T) {
	tests := []struct {
		name    string
		coord   Coordinate
		wantErr bool
	}{
		{"valid coordinate", NewCoordinate(52.5, 9.9), false},
		{"origin", NewCoordinate(0, 0), false},
		{"max bounds", NewCoordinate(90, 180), false},
		{"min bounds", NewCoordinate(-90, -180), false},
		{"latitude too high", NewCoordinate(90.1, 0), true},
		{"latitude too low", NewCoordinate(-91, 0), true},
		{"longitude too high", NewCoordinate(0, 180.5), true},
		{"longitude too low", NewCoordinate(0, -181), true},
		{"NaN latitude", NewCoordinate(math.NaN(), 0), true},
		{"infinite longitude", NewCoordinate(0, math.Inf(1)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.coord.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var ve *ValidationError
				if !errors.As(err, &ve) {
					t.Errorf("expected *ValidationError, got %T", err)
				}
			}
		})
	}
}

func TestBoundingBoxContains(t *testing.T) {
	box := BoundingBox{West: 9, South: 52, East: 11, North: 54}
	wrapped := BoundingBox{West: 170, South: -10, East: -170, North: 10}

	tests := []struct {
		name  string
		box   BoundingBox
		coord Coordinate
		want  bool
	}{
		{"inside", box, NewCoordinate(53, 10), true},
		{"on edge", box, NewCoordinate(52, 9), true},
		{"west of box", box, NewCoordinate(53, 8), false},
		{"north of box", box, NewCoordinate(55, 10), false},
		{"wrapped east side", wrapped, NewCoordinate(0, 175), true},
		{"wrapped west side", wrapped, NewCoordinate(0, -175), true},
		{"wrapped gap", wrapped, NewCoordinate(0, 0), false},
		{"world", WorldBounds, NewCoordinate(-89, 179), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.box.Contains(tt.coord); got != tt.want {
				t.Errorf("Contains(%v) = %v, want %v", tt.coord, got, tt.want)
			}
		})
	}
}

func TestBoundingBoxCenter(t *testing.T) {
	c := BoundingBox{West: 170, South: -10, East: -170, North: 10}.Center()
	if c.Lat != 0 || math.Abs(math.Abs(c.Lon)-180) > 1e-9 {
		t.Errorf("Center() = %v, want (0, ±180)", c)
	}
}

func TestBoundingBoxIsValid(t *testing.T) {
	if !WorldBounds.IsValid() {
		t.Error("world bounds should be valid")
	}
	if (BoundingBox{South: 10, North: -10}).IsValid() {
		t.Error("inverted latitudes should be invalid")
	}
	if (BoundingBox{West: math.NaN()}).IsValid() {
		t.Error("NaN should be invalid")
	}
}

func TestNormalizeLongitude(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{180, 180},
		{-180, -180},
		{190, -170},
		{-190, 170},
		{540, -180},
		{725, 5},
	}

	for _, tt := range tests {
		if got := NormalizeLongitude(tt.in); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("NormalizeLongitude(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
