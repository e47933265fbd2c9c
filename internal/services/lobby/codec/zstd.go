package codec

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/louisbranch/lobby/internal/services/lobby/domain"
)

// zstdMagic prefixes every zstd frame.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

type zstdCodec struct {
	inner   Codec
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// Zstd wraps inner with zstd compression. Blobs without a zstd frame header
// are passed to inner unchanged, so switching compression on keeps existing
// data readable.
func Zstd(inner Codec) (Codec, error) {
	if inner == nil {
		return nil, fmt.Errorf("inner codec is required")
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(64<<20))
	if err != nil {
		_ = encoder.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &zstdCodec{inner: inner, encoder: encoder, decoder: decoder}, nil
}

func (c *zstdCodec) Name() string { return c.inner.Name() + "+" + CompressionZstd }

func (c *zstdCodec) Encode(list domain.SessionList) ([]byte, error) {
	raw, err := c.inner.Encode(list)
	if err != nil {
		return nil, err
	}
	return c.encoder.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
}

func (c *zstdCodec) Decode(data []byte) (domain.SessionList, error) {
	if !bytes.HasPrefix(data, zstdMagic) {
		return c.inner.Decode(data)
	}
	raw, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress sessions: %w", err)
	}
	return c.inner.Decode(raw)
}
