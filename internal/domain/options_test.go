package domain

import (
	"errors"
	"testing"
)

func TestDefaultClusterOptions(t *testing.T) {
	opts := DefaultClusterOptions()
	if opts.Radius != 40 || opts.MinZoom != 0 || opts.MaxZoom != 16 ||
		opts.MinPoints != 2 || opts.Extent != 512 || opts.NodeSize != 64 {
		t.Errorf("unexpected defaults: %+v", opts)
	}
	if err := opts.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestClusterOptionsValidate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*ClusterOptions)
		wantField string
	}{
		{"valid", func(o *ClusterOptions) {}, ""},
		{"zero values take defaults", func(o *ClusterOptions) { o.Radius, o.MinPoints, o.Extent = 0, 0, 0 }, ""},
		{"negative min zoom", func(o *ClusterOptions) { o.MinZoom = -1 }, "minZoom"},
		{"max zoom too deep", func(o *ClusterOptions) { o.MaxZoom = 30 }, "maxZoom"},
		{"max below min", func(o *ClusterOptions) { o.MinZoom, o.MaxZoom = 10, 5 }, "maxZoom"},
		{"negative radius", func(o *ClusterOptions) { o.Radius = -5 }, "radius"},
		{"single point clusters", func(o *ClusterOptions) { o.MinPoints = 1 }, "minPoints"},
		{"negative extent", func(o *ClusterOptions) { o.Extent = -1 }, "extent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultClusterOptions()
			tt.modify(&opts)
			err := opts.Validate()

			if tt.wantField == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}

			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("Validate() = %v, want *ConfigError", err)
			}
			if ce.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", ce.Field, tt.wantField)
			}
		})
	}
}

func TestParseClusterOptions(t *testing.T) {
	opts, err := ParseClusterOptions(map[string]any{
		"radius":    50,
		"minZoom":   float64(2),
		"max_zoom":  int64(14),
		"minPoints": 3,
	})
	if err != nil {
		t.Fatalf("ParseClusterOptions() error = %v", err)
	}
	if opts.Radius != 50 || opts.MinZoom != 2 || opts.MaxZoom != 14 || opts.MinPoints != 3 {
		t.Errorf("unexpected options: %+v", opts)
	}
	if opts.Extent != DefaultExtent {
		t.Errorf("Extent = %v, want default", opts.Extent)
	}
}

func TestParseClusterOptionsRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
	}{
		{"unknown key", map[string]any{"log": true}},
		{"wrong type", map[string]any{"radius": "forty"}},
		{"invalid result", map[string]any{"minZoom": 8, "maxZoom": 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseClusterOptions(tt.raw)
			if !errors.Is(err, ErrInvalidOptions) {
				t.Errorf("ParseClusterOptions() = %v, want ErrInvalidOptions", err)
			}
		})
	}
}
