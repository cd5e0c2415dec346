package pointfile

import (
	"context"
	"fmt"

	"github.com/jobrunner/clustermap/internal/domain"
	"github.com/jobrunner/clustermap/internal/ports/output"
)

// Source reads point datasets from object storage.
type Source struct {
	storage  output.ObjectStorage
	decoders []output.PointDecoder
}

// NewSource creates a point source over storage. Without decoders it reads
// plain and zstd compressed GeoJSON.
func NewSource(storage output.ObjectStorage, decoders ...output.PointDecoder) *Source {
	if len(decoders) == 0 {
		decoders = DefaultDecoders()
	}
	return &Source{storage: storage, decoders: decoders}
}

// DefaultDecoders returns the decoders for all supported file formats.
func DefaultDecoders() []output.PointDecoder {
	geo := GeoJSONDecoder{}
	return []output.PointDecoder{ZstdDecoder{Inner: geo}, geo}
}

// List implements output.PointSource.
func (s *Source) List(ctx context.Context) ([]output.StorageObject, error) {
	return s.storage.List(ctx)
}

// ReadPoints implements output.PointSource.
func (s *Source) ReadPoints(ctx context.Context, key string) (*output.PointBatch, error) {
	dec := s.decoderFor(key)
	if dec == nil {
		return nil, fmt.Errorf("%s: %w", key, domain.ErrUnsupportedFormat)
	}

	rc, err := s.storage.GetReader(ctx, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	return dec.Decode(key, rc)
}

func (s *Source) decoderFor(key string) output.PointDecoder {
	for _, d := range s.decoders {
		if d.Supports(key) {
			return d
		}
	}
	return nil
}
