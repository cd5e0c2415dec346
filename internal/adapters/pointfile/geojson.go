// Package pointfile decodes point datasets stored as GeoJSON files,
// optionally zstd compressed.
package pointfile

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/jobrunner/clustermap/internal/domain"
	"github.com/jobrunner/clustermap/internal/ports/output"
)

// GeoJSONDecoder reads a FeatureCollection of Point features.
type GeoJSONDecoder struct{}

// Supports implements output.PointDecoder.
func (GeoJSONDecoder) Supports(key string) bool {
	lower := strings.ToLower(key)
	return strings.HasSuffix(lower, ".geojson") || strings.HasSuffix(lower, ".json")
}

// Decode implements output.PointDecoder. Features without a valid point
// geometry are counted as skipped.
func (GeoJSONDecoder) Decode(key string, r io.Reader) (*output.PointBatch, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", key, err)
	}

	batch := &output.PointBatch{Records: make([]domain.PointRecord, 0, len(fc.Features))}
	for i, f := range fc.Features {
		rec, ok := recordFor(key, i, f)
		if !ok {
			batch.Skipped++
			continue
		}
		batch.Records = append(batch.Records, rec)
	}
	return batch, nil
}

func recordFor(key string, index int, f *geojson.Feature) (domain.PointRecord, bool) {
	if f == nil {
		return domain.PointRecord{}, false
	}
	p, ok := f.Geometry.(orb.Point)
	if !ok {
		return domain.PointRecord{}, false
	}
	coord := domain.NewCoordinate(p.Lat(), p.Lon())
	if coord.Validate() != nil {
		return domain.PointRecord{}, false
	}

	id := featureID(f.ID, index)
	props := make(map[string]any, len(f.Properties)+1)
	for k, v := range f.Properties {
		props[k] = v
	}
	props["id"] = id

	return domain.PointRecord{
		Key:         key + "/" + id,
		Coordinate:  coord,
		Properties:  props,
		Fingerprint: Fingerprint(coord, props),
	}, true
}

func featureID(id any, index int) string {
	switch v := id.(type) {
	case nil:
		return strconv.Itoa(index)
	case string:
		if v == "" {
			return strconv.Itoa(index)
		}
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Fingerprint hashes a record's coordinate and properties. Equal content
// gives equal fingerprints regardless of property order.
func Fingerprint(c domain.Coordinate, props map[string]any) string {
	h := xxhash.New()
	_, _ = fmt.Fprintf(h, "%.9f,%.9f;", c.Lat, c.Lon)
	if data, err := json.Marshal(props); err == nil {
		_, _ = h.Write(data)
	}
	return strconv.FormatUint(h.Sum64(), 16)
}
