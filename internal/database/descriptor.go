package database

import (
	"encoding/binary"
	"fmt"
	"math"
)

// bytesPerComponent is the size of one little-endian float32 in the descriptor blob.
const bytesPerComponent = 4

// ValidateDescriptor checks that desc has exactly dim components and all of them are finite.
func ValidateDescriptor(desc []float32, dim int) error {
	if len(desc) != dim {
		return fmt.Errorf("%w: got %d components, want %d", ErrInvalidDescriptor, len(desc), dim)
	}
	for i, v := range desc {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: component %d is not finite", ErrInvalidDescriptor, i)
		}
	}
	return nil
}

// EncodeDescriptor serializes a descriptor as consecutive little-endian float32 values.
// The encoding keeps exact bit patterns, so DecodeDescriptor(EncodeDescriptor(d)) == d bit for bit.
func EncodeDescriptor(desc []float32) []byte {
	buf := make([]byte, len(desc)*bytesPerComponent)
	for i, v := range desc {
		binary.LittleEndian.PutUint32(buf[i*bytesPerComponent:], math.Float32bits(v))
	}
	return buf
}

// DecodeDescriptor parses a blob produced by EncodeDescriptor.
func DecodeDescriptor(blob []byte) ([]float32, error) {
	if len(blob)%bytesPerComponent != 0 {
		return nil, fmt.Errorf("%w: blob length %d is not a multiple of %d", ErrInvalidDescriptor, len(blob), bytesPerComponent)
	}
	desc := make([]float32, len(blob)/bytesPerComponent)
	for i := range desc {
		desc[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*bytesPerComponent:]))
	}
	return desc, nil
}
