package vector

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrCorruptData is returned when a stored payload cannot be decoded into a vector
// of the expected dimensionality.
var ErrCorruptData = errors.New("corrupt vector data")

const float32Size = 4

// Encode serializes v as len(v)*4 bytes of little-endian IEEE-754 float32 values,
// in vector order, with no header or length prefix.
func Encode(v []float32) []byte {
	out := make([]byte, len(v)*float32Size)
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*float32Size:], math.Float32bits(f))
	}
	return out
}

// Decode is the inverse of Encode. When dim is positive the payload must be exactly
// dim*4 bytes; otherwise only the multiple-of-4 rule is checked. An empty payload is
// never a valid vector: callers treat it as "no embedding" before decoding.
func Decode(b []byte, dim int) ([]float32, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrCorruptData)
	}
	if len(b)%float32Size != 0 {
		return nil, fmt.Errorf("%w: length %d is not a multiple of %d", ErrCorruptData, len(b), float32Size)
	}
	if dim > 0 && len(b) != dim*float32Size {
		return nil, fmt.Errorf("%w: length %d, expected %d bytes for dimension %d", ErrCorruptData, len(b), dim*float32Size, dim)
	}
	out := make([]float32, len(b)/float32Size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*float32Size:]))
	}
	return out, nil
}
