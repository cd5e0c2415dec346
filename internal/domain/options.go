package domain

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Cluster option defaults.
const (
	DefaultRadius    = 40
	DefaultMinZoom   = 0
	DefaultMaxZoom   = 16
	DefaultMinPoints = 2
	DefaultExtent    = 512
	DefaultNodeSize  = 64
)

// ClusterOptions configures index construction.
type ClusterOptions struct {
	Radius    float64 `mapstructure:"radius" json:"radius"`        // cluster radius in pixels
	MinZoom   int     `mapstructure:"min_zoom" json:"minZoom"`     // lowest zoom with clusters
	MaxZoom   int     `mapstructure:"max_zoom" json:"maxZoom"`     // highest zoom with clusters
	MinPoints int     `mapstructure:"min_points" json:"minPoints"` // minimum points per cluster
	Extent    float64 `mapstructure:"extent" json:"extent"`        // tile extent in pixels
	NodeSize  int     `mapstructure:"node_size" json:"nodeSize"`   // initial capacity of the neighbour buffers; no effect on results
}

// DefaultClusterOptions returns the default options.
func DefaultClusterOptions() ClusterOptions {
	return ClusterOptions{
		Radius:    DefaultRadius,
		MinZoom:   DefaultMinZoom,
		MaxZoom:   DefaultMaxZoom,
		MinPoints: DefaultMinPoints,
		Extent:    DefaultExtent,
		NodeSize:  DefaultNodeSize,
	}
}

// WithDefaults fills unset size options. Zoom bounds are kept as given.
func (o ClusterOptions) WithDefaults() ClusterOptions {
	if o.Radius == 0 {
		o.Radius = DefaultRadius
	}
	if o.MinPoints == 0 {
		o.MinPoints = DefaultMinPoints
	}
	if o.Extent == 0 {
		o.Extent = DefaultExtent
	}
	if o.NodeSize <= 0 {
		o.NodeSize = DefaultNodeSize
	}
	return o
}

// Validate checks the options after defaults are applied.
func (o ClusterOptions) Validate() error {
	o = o.WithDefaults()
	switch {
	case o.MinZoom < 0:
		return &ConfigError{Field: "minZoom", Message: "must not be negative"}
	case o.MaxZoom > MaxSupportedZoom:
		return &ConfigError{Field: "maxZoom", Message: fmt.Sprintf("must not exceed %d", MaxSupportedZoom)}
	case o.MaxZoom < o.MinZoom:
		return &ConfigError{Field: "maxZoom", Message: "must not be lower than minZoom"}
	case o.Radius <= 0 || math.IsNaN(o.Radius) || math.IsInf(o.Radius, 0):
		return &ConfigError{Field: "radius", Message: "must be a positive number"}
	case o.MinPoints < 2:
		return &ConfigError{Field: "minPoints", Message: "must be at least 2"}
	case o.Extent <= 0 || math.IsNaN(o.Extent) || math.IsInf(o.Extent, 0):
		return &ConfigError{Field: "extent", Message: "must be a positive number"}
	}
	return nil
}

// ParseClusterOptions builds options from a loosely typed map, as found in
// request bodies and config files. Unknown keys are rejected.
func ParseClusterOptions(raw map[string]any) (ClusterOptions, error) {
	opts := DefaultClusterOptions()

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		name := normalizeOptionKey(k)
		if !knownOptions[name] {
			return opts, &ConfigError{Field: k, Message: "unknown cluster option"}
		}
		v, ok := toFloat(raw[k])
		if !ok {
			return opts, &ConfigError{Field: k, Message: fmt.Sprintf("expected a number, got %T", raw[k])}
		}
		switch name {
		case "radius":
			opts.Radius = v
		case "minzoom":
			opts.MinZoom = int(v)
		case "maxzoom":
			opts.MaxZoom = int(v)
		case "minpoints":
			opts.MinPoints = int(v)
		case "extent":
			opts.Extent = v
		case "nodesize":
			opts.NodeSize = int(v)
		}
	}

	return opts, opts.Validate()
}

var knownOptions = map[string]bool{
	"radius": true, "minzoom": true, "maxzoom": true,
	"minpoints": true, "extent": true, "nodesize": true,
}

func normalizeOptionKey(k string) string {
	return strings.ToLower(strings.ReplaceAll(k, "_", ""))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
