package domain

import (
	"errors"
	"math"
	"testing"
)

func TestRegionBoundingBox(t *testing.T) {
	tests := []struct {
		name   string
		region Region
		want   BoundingBox
	}{
		{
			name:   "centered",
			region: NewRegion(52, 10, 2, 4),
			want:   BoundingBox{West: 8, South: 51, East: 12, North: 53},
		},
		{
			name:   "clamped at the pole",
			region: NewRegion(85, 0, 20, 10),
			want:   BoundingBox{West: -5, South: 75, East: 5, North: 90},
		},
		{
			name:   "crossing the antimeridian",
			region: NewRegion(0, 175, 10, 20),
			want:   BoundingBox{West: 165, South: -5, East: -175, North: 5},
		},
		{
			name:   "whole world",
			region: NewRegion(0, 30, 180, 360),
			want:   BoundingBox{West: -180, South: -90, East: 180, North: 90},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.region.BoundingBox()
			if !boxAlmostEqual(got, tt.want) {
				t.Errorf("BoundingBox() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRegionZoom(t *testing.T) {
	tests := []struct {
		lonDelta float64
		want     int
	}{
		{360, 0},
		{720, 0},
		{180, 1},
		{45, 3},
		{0.35, 10},
		{0.00001, MaxSupportedZoom},
		{0, MaxSupportedZoom},
	}

	for _, tt := range tests {
		r := NewRegion(0, 0, 1, tt.lonDelta)
		if got := r.Zoom(); got != tt.want {
			t.Errorf("Zoom() with delta %v = %d, want %d", tt.lonDelta, got, tt.want)
		}
	}
}

func TestRegionValidate(t *testing.T) {
	if err := NewRegion(52, 10, 1, 1).Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}

	err := NewRegion(100, 10, 1, 1).Validate()
	if !errors.Is(err, ErrInvalidRegion) {
		t.Errorf("Validate() = %v, want ErrInvalidRegion", err)
	}

	err = NewRegion(0, 0, -1, 1).Validate()
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "latitudeDelta" {
		t.Errorf("Validate() = %v, want latitudeDelta validation error", err)
	}

	if err := NewRegion(0, 0, 1, math.NaN()).Validate(); err == nil {
		t.Error("Validate() should reject NaN delta")
	}
	for _, region := range []Region{
		NewRegion(0, 0, math.Inf(1), 1),
		NewRegion(0, 0, 1, math.Inf(1)),
		NewRegion(0, 0, 1, math.Inf(-1)),
	} {
		var verr *ValidationError
		if err := region.Validate(); !errors.As(err, &verr) {
			t.Errorf("Validate(%+v) = %v, want ValidationError for infinite delta", region, err)
		}
	}
}

func boxAlmostEqual(a, b BoundingBox) bool {
	const eps = 1e-9
	return math.Abs(a.West-b.West) < eps &&
		math.Abs(a.South-b.South) < eps &&
		math.Abs(a.East-b.East) < eps &&
		math.Abs(a.North-b.North) < eps
}
