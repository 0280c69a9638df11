package vector

import (
	"errors"
	"math"
	"testing"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		vec  []float32
	}{
		{"small", []float32{0, 1.5, -2.25, 3.75}},
		{"single", []float32{42}},
		{"extremes", []float32{math.MaxFloat32, -math.MaxFloat32, math.SmallestNonzeroFloat32, float32(math.Copysign(0, -1))}},
		{"fractions", []float32{0.1, 0.2, 0.3, 1.0 / 3.0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Encode(tt.vec)
			if len(b) != 4*len(tt.vec) {
				t.Fatalf("encoded length = %d, want %d", len(b), 4*len(tt.vec))
			}
			got, err := Decode(b, len(tt.vec))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if len(got) != len(tt.vec) {
				t.Fatalf("decoded length = %d, want %d", len(got), len(tt.vec))
			}
			for i := range tt.vec {
				if math.Float32bits(got[i]) != math.Float32bits(tt.vec[i]) {
					t.Errorf("decoded[%d] = %v, want %v (bitwise)", i, got[i], tt.vec[i])
				}
			}
		})
	}
}

func TestEncode_LittleEndianLayout(t *testing.T) {
	// 1.0 is 0x3f800000.
	b := Encode([]float32{1})
	want := []byte{0x00, 0x00, 0x80, 0x3f}
	for i := range want {
		if b[i] != want[i] {
			t.Fatalf("Encode(1.0) = % x, want % x", b, want)
		}
	}
}

func TestDecode_Corrupt(t *testing.T) {
	tests := []struct {
		name string
		b    []byte
		dim  int
	}{
		{"empty", nil, 0},
		{"not multiple of four", []byte{1, 2, 3, 4, 5}, 0},
		{"wrong dimension", Encode([]float32{1, 2, 3}), 2},
		{"short for dimension", Encode([]float32{1}), 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.b, tt.dim)
			if !errors.Is(err, ErrCorruptData) {
				t.Errorf("Decode() error = %v, want ErrCorruptData", err)
			}
		})
	}
}

func TestDecode_UnknownDimension(t *testing.T) {
	got, err := Decode(Encode([]float32{1, 2, 3}), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("len = %d, want 3", len(got))
	}
}
