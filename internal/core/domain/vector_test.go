package domain

import (
	"errors"
	"math"
	"testing"
)

func TestVectorCodec(t *testing.T) {
	in := []float32{0, 1.5, -2.25, 1e-7}

	out, err := DecodeVector(EncodeVector(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("expected %d components, got %d", len(in), len(out))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("component %d: got %v, want %v", i, out[i], in[i])
		}
	}
}

func TestDecodeVector_Corrupt(t *testing.T) {
	if _, err := DecodeVector([]byte{1, 2, 3}); !errors.Is(err, ErrCorruptIndex) {
		t.Errorf("truncated blob: expected ErrCorruptIndex, got %v", err)
	}

	nan := EncodeVector([]float32{float32(math.NaN())})
	if _, err := DecodeVector(nan); !errors.Is(err, ErrCorruptIndex) {
		t.Errorf("NaN component: expected ErrCorruptIndex, got %v", err)
	}
}
