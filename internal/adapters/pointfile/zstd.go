package pointfile

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/jobrunner/clustermap/internal/ports/output"
)

const zstdSuffix = ".zst"

// ZstdDecoder decompresses ".zst" files and hands them to an inner decoder.
type ZstdDecoder struct {
	Inner output.PointDecoder
}

// Supports implements output.PointDecoder.
func (d ZstdDecoder) Supports(key string) bool {
	if !strings.HasSuffix(strings.ToLower(key), zstdSuffix) {
		return false
	}
	return d.Inner.Supports(key[:len(key)-len(zstdSuffix)])
}

// Decode implements output.PointDecoder. Record keys keep the full key.
func (d ZstdDecoder) Decode(key string, r io.Reader) (*output.PointBatch, error) {
	dec, err := zstd.NewReader(bufio.NewReader(r))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer dec.Close()

	return d.Inner.Decode(key, dec)
}

// Compress writes src to dst as a zstd stream.
func Compress(dst io.Writer, src io.Reader) error {
	bufWriter := bufio.NewWriterSize(dst, 1024*1024)
	enc, err := zstd.NewWriter(bufWriter, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}

	if _, err := io.Copy(enc, src); err != nil {
		_ = enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return bufWriter.Flush()
}
