package deb

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// Compression identifies the algorithm applied to a tar stream.
// The zero value stores the stream uncompressed.
type Compression uint8

const (
	// CompressionNone stores plain tar members.
	CompressionNone Compression = iota
	// CompressionGzip is the historical default understood by every dpkg.
	CompressionGzip
	// CompressionXz matches what Debian itself ships.
	CompressionXz
	// CompressionZstd requires dpkg 1.21.18 or later on the installing side.
	CompressionZstd
	// CompressionLz4 is only valid for bundles; dpkg cannot read lz4 members.
	CompressionLz4
)

// MaxCompressionLevel is the highest accepted compression level.
const MaxCompressionLevel = 9

// String returns the human-readable name of a compression.
func (c Compression) String() string {
	switch c {
	case CompressionGzip:
		return "gzip"
	case CompressionNone:
		return "none"
	case CompressionXz:
		return "xz"
	case CompressionZstd:
		return "zstd"
	case CompressionLz4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// ParseCompression parses a compression from its string representation.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "gzip", "gz":
		return CompressionGzip, nil
	case "none":
		return CompressionNone, nil
	case "xz":
		return CompressionXz, nil
	case "zstd", "zst":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLz4, nil
	default:
		return 0, fmt.Errorf("unknown compression: %q", name)
	}
}

// Extension returns the file name suffix for a tar stream, including the dot.
// CompressionNone has no suffix.
func (c Compression) Extension() string {
	switch c {
	case CompressionGzip:
		return ".gz"
	case CompressionXz:
		return ".xz"
	case CompressionZstd:
		return ".zst"
	case CompressionLz4:
		return ".lz4"
	default:
		return ""
	}
}

// DebCompatible reports whether dpkg accepts this compression for package members.
func (c Compression) DebCompatible() bool {
	switch c {
	case CompressionGzip, CompressionNone, CompressionXz, CompressionZstd:
		return true
	default:
		return false
	}
}

// compressionFromName guesses the compression of a member from its suffix.
func compressionFromName(name string) (Compression, bool) {
	for _, c := range []Compression{CompressionGzip, CompressionXz, CompressionZstd, CompressionLz4} {
		if strings.HasSuffix(name, c.Extension()) {
			return c, true
		}
	}
	return CompressionNone, false
}

// NewWriter wraps w with the compressor at the given level (0 to 9).
// The returned writer must be closed to flush the compressed stream;
// closing it does not close w.
func (c Compression) NewWriter(w io.Writer, level int) (io.WriteCloser, error) {
	if level < 0 || level > MaxCompressionLevel {
		return nil, fmt.Errorf("compression level %d out of range 0..%d", level, MaxCompressionLevel)
	}
	switch c {
	case CompressionNone:
		return nopWriteCloser{w}, nil
	case CompressionGzip:
		return gzip.NewWriterLevel(w, level)
	case CompressionZstd:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	case CompressionXz:
		// xz -9 uses a 64 MiB dictionary; level 0 still needs a valid one.
		cfg := xz.WriterConfig{DictCap: 1 << (17 + level)}
		return cfg.NewWriter(w)
	case CompressionLz4:
		lw := lz4.NewWriter(w)
		if err := lw.Apply(lz4.CompressionLevelOption(lz4Level(level))); err != nil {
			return nil, fmt.Errorf("configuring lz4: %w", err)
		}
		return lw, nil
	default:
		return nil, fmt.Errorf("unsupported compression: %s", c)
	}
}

// NewReader returns a decompressing reader over r.
func (c Compression) NewReader(r io.Reader) (io.ReadCloser, error) {
	switch c {
	case CompressionNone:
		return io.NopCloser(r), nil
	case CompressionGzip:
		return gzip.NewReader(r)
	case CompressionZstd:
		d, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return d.IOReadCloser(), nil
	case CompressionXz:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(xr), nil
	case CompressionLz4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("unsupported compression: %s", c)
	}
}

func lz4Level(level int) lz4.CompressionLevel {
	levels := []lz4.CompressionLevel{
		lz4.Fast, lz4.Level1, lz4.Level2, lz4.Level3, lz4.Level4,
		lz4.Level5, lz4.Level6, lz4.Level7, lz4.Level8, lz4.Level9,
	}
	return levels[level]
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
