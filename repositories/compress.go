package repositories

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

const compressionThreshold = 1024 // only compress values > 1KB

const (
	flagRaw byte = iota
	flagZstd
)

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	decoder, _ = zstd.NewReader(nil)
)

// pack prefixes payload with a flag byte, compressing it first when that
// is worth it.
func pack(payload []byte) []byte {
	if len(payload) > compressionThreshold {
		compressed := encoder.EncodeAll(payload, make([]byte, 1, len(payload)))
		compressed[0] = flagZstd
		if len(compressed) < len(payload)+1 {
			return compressed
		}
	}
	out := make([]byte, 0, len(payload)+1)
	out = append(out, flagRaw)
	return append(out, payload...)
}

func unpack(value []byte) ([]byte, error) {
	if len(value) == 0 {
		return nil, fmt.Errorf("empty stored value")
	}
	switch value[0] {
	case flagRaw:
		return value[1:], nil
	case flagZstd:
		return decoder.DecodeAll(value[1:], nil)
	default:
		return nil, fmt.Errorf("unknown value flag %d", value[0])
	}
}
