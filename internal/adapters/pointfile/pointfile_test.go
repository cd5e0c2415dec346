package pointfile

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jobrunner/clustermap/internal/adapters/storage"
	"github.com/jobrunner/clustermap/internal/domain"
)

const cafes = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": "a1", "geometry": {"type": "Point", "coordinates": [13.40, 52.52]}, "properties": {"name": "Kaffee"}},
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [13.41, 52.53]}, "properties": {"name": "Bohne"}},
    {"type": "Feature", "id": 7, "geometry": {"type": "Point", "coordinates": [13.42, 52.54]}, "properties": null},
    {"type": "Feature", "geometry": {"type": "LineString", "coordinates": [[0, 0], [1, 1]]}, "properties": {}},
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [200, 95]}, "properties": {}}
  ]
}`

func TestGeoJSONDecoder(t *testing.T) {
	batch, err := GeoJSONDecoder{}.Decode("cafes.geojson", strings.NewReader(cafes))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if len(batch.Records) != 3 {
		t.Fatalf("len(Records) = %d, want 3", len(batch.Records))
	}
	if batch.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2", batch.Skipped)
	}

	tests := []struct {
		key string
		lat float64
		lon float64
	}{
		{"cafes.geojson/a1", 52.52, 13.40},
		{"cafes.geojson/1", 52.53, 13.41},
		{"cafes.geojson/7", 52.54, 13.42},
	}
	for i, tt := range tests {
		rec := batch.Records[i]
		if rec.Key != tt.key {
			t.Errorf("record %d key = %q, want %q", i, rec.Key, tt.key)
		}
		if rec.Coordinate != domain.NewCoordinate(tt.lat, tt.lon) {
			t.Errorf("record %d coordinate = %v", i, rec.Coordinate)
		}
		if rec.Fingerprint == "" {
			t.Errorf("record %d has no fingerprint", i)
		}
	}

	if batch.Records[0].Properties["name"] != "Kaffee" || batch.Records[0].Properties["id"] != "a1" {
		t.Errorf("properties = %v", batch.Records[0].Properties)
	}
}

func TestGeoJSONDecoderInvalid(t *testing.T) {
	if _, err := (GeoJSONDecoder{}).Decode("bad.geojson", strings.NewReader("{not json")); err == nil {
		t.Error("Decode() should fail for invalid JSON")
	}
}

func TestFingerprint(t *testing.T) {
	c := domain.NewCoordinate(1, 2)
	a := Fingerprint(c, map[string]any{"name": "x", "kind": "cafe"})
	b := Fingerprint(c, map[string]any{"kind": "cafe", "name": "x"})
	if a != b {
		t.Error("fingerprint should not depend on property order")
	}
	if a == Fingerprint(domain.NewCoordinate(1, 2.0001), map[string]any{"name": "x", "kind": "cafe"}) {
		t.Error("moving a point should change its fingerprint")
	}
	if a == Fingerprint(c, map[string]any{"name": "y", "kind": "cafe"}) {
		t.Error("changing a property should change the fingerprint")
	}
}

func TestDecoderSupports(t *testing.T) {
	zstdDec := ZstdDecoder{Inner: GeoJSONDecoder{}}

	tests := []struct {
		key     string
		geojson bool
		zstd    bool
	}{
		{"a.geojson", true, false},
		{"a.JSON", true, false},
		{"a.geojson.zst", false, true},
		{"a.zst", false, false},
		{"a.csv", false, false},
	}
	for _, tt := range tests {
		if got := (GeoJSONDecoder{}).Supports(tt.key); got != tt.geojson {
			t.Errorf("GeoJSONDecoder.Supports(%q) = %v", tt.key, got)
		}
		if got := zstdDec.Supports(tt.key); got != tt.zstd {
			t.Errorf("ZstdDecoder.Supports(%q) = %v", tt.key, got)
		}
	}
}

func TestZstdRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := Compress(&buf, strings.NewReader(cafes)); err != nil {
		t.Fatalf("Compress() error = %v", err)
	}

	batch, err := ZstdDecoder{Inner: GeoJSONDecoder{}}.Decode("cafes.geojson.zst", &buf)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(batch.Records) != 3 || batch.Skipped != 2 {
		t.Errorf("records/skipped = %d/%d, want 3/2", len(batch.Records), batch.Skipped)
	}
	if batch.Records[0].Key != "cafes.geojson.zst/a1" {
		t.Errorf("key = %q", batch.Records[0].Key)
	}
}

func TestSourceReadPoints(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "cafes.geojson"), []byte(cafes), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(filepath.Join(dir, "more.geojson.zst"))
	if err != nil {
		t.Fatal(err)
	}
	if err := Compress(f, strings.NewReader(cafes)); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	source := NewSource(storage.NewLocalStorage(dir))
	ctx := context.Background()

	objects, err := source.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(objects) != 2 {
		t.Fatalf("len(objects) = %d, want 2", len(objects))
	}

	for _, obj := range objects {
		batch, err := source.ReadPoints(ctx, obj.Key)
		if err != nil {
			t.Fatalf("ReadPoints(%s) error = %v", obj.Key, err)
		}
		if len(batch.Records) != 3 {
			t.Errorf("ReadPoints(%s) = %d records, want 3", obj.Key, len(batch.Records))
		}
	}
}

func TestSourceUnsupportedFormat(t *testing.T) {
	source := NewSource(storage.NewLocalStorage(t.TempDir()))

	_, err := source.ReadPoints(context.Background(), "points.csv")
	if !errors.Is(err, domain.ErrUnsupported) {
		t.Errorf("ReadPoints() error = %v, want ErrUnsupported", err)
	}
}

func TestSourceMissingFile(t *testing.T) {
	source := NewSource(storage.NewLocalStorage(t.TempDir()))

	_, err := source.ReadPoints(context.Background(), "missing.geojson")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("ReadPoints() error = %v, want ErrNotExist", err)
	}
}
