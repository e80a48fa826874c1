package utils

import (
	"math"
	"testing"
)

func TestNormalizeL2(t *testing.T) {
	x := []float32{3, 4}
	if norm := NormalizeL2(x); norm != 5 {
		t.Errorf("norm = %v, want 5", norm)
	}
	if math.Abs(float64(x[0])-0.6) > 1e-6 || math.Abs(float64(x[1])-0.8) > 1e-6 {
		t.Errorf("normalized = %v, want [0.6 0.8]", x)
	}

	zero := []float32{0, 0, 0}
	if norm := NormalizeL2(zero); norm != 0 {
		t.Errorf("zero norm = %v", norm)
	}
	for _, v := range zero {
		if v != 0 {
			t.Fatalf("zero vector changed: %v", zero)
		}
	}
}
