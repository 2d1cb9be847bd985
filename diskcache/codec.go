package diskcache

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // register PNG decoding for re-encode

	"github.com/klauspost/compress/zstd"
)

const defaultJPEGQuality = 70

// Codec transforms blob bytes on their way to and from disk. The name is
// recorded in cache metadata per blob so reads decode correctly even if
// the cache is later reconfigured with a different codec.
type Codec interface {
	// Name identifies the codec in metadata.
	Name() string

	// EncodeForStore transforms raw blob bytes into their on-disk form.
	EncodeForStore(data []byte) ([]byte, error)

	// DecodeFromStore transforms on-disk bytes back into servable form.
	DecodeFromStore(data []byte) ([]byte, error)
}

// codecByName resolves a metadata codec name for the read path.
func codecByName(name string) (Codec, error) {
	switch name {
	case "none", "":
		return NoCodec{}, nil
	case "jpeg":
		return JPEGCodec{}, nil
	case "zstd":
		return NewZstdCodec(zstd.SpeedDefault)
	default:
		return nil, fmt.Errorf("unknown blob codec %q", name)
	}
}

// NoCodec stores blobs verbatim.
type NoCodec struct{}

func (NoCodec) Name() string                               { return "none" }
func (NoCodec) EncodeForStore(data []byte) ([]byte, error) { return data, nil }
func (NoCodec) DecodeFromStore(data []byte) ([]byte, error) {
	return data, nil
}

// JPEGCodec re-encodes image blobs as lossy JPEG at a fixed quality,
// trading fidelity for disk footprint. Decoding is the identity: the
// stored bytes are themselves the servable photo.
type JPEGCodec struct {
	// Quality in [1,100]. Zero means the default (70).
	Quality int
}

func (JPEGCodec) Name() string { return "jpeg" }

func (c JPEGCodec) EncodeForStore(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	quality := c.Quality
	if quality <= 0 {
		quality = defaultJPEGQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func (JPEGCodec) DecodeFromStore(data []byte) ([]byte, error) {
	return data, nil
}

// ZstdCodec compresses blobs with zstd. Suited to payloads that are not
// already compressed image formats.
type ZstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewZstdCodec creates a codec at the given compression level. The
// encoder and decoder are reused across calls and are safe for concurrent
// use via EncodeAll/DecodeAll.
func NewZstdCodec(level zstd.EncoderLevel) (*ZstdCodec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &ZstdCodec{enc: enc, dec: dec}, nil
}

func (*ZstdCodec) Name() string { return "zstd" }

func (c *ZstdCodec) EncodeForStore(data []byte) ([]byte, error) {
	return c.enc.EncodeAll(data, nil), nil
}

func (c *ZstdCodec) DecodeFromStore(data []byte) ([]byte, error) {
	out, err := c.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return out, nil
}
