package examples

import (
	"math"
	"testing"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b   []float32
		want   float64
		wantOK bool
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1, true},
		{"scaled", []float32{1, 2, 3}, []float32{2, 4, 6}, 1, true},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0, true},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1, true},
		{"zero a", []float32{0, 0}, []float32{1, 0}, 0, false},
		{"zero b", []float32{1, 0}, []float32{0, 0}, 0, false},
		{"empty", nil, nil, 0, false},
		{"dimension mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := cosine(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 || ok != tt.wantOK {
				t.Errorf("cosine(%v, %v) = %v, %v, want %v, %v", tt.a, tt.b, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestCosine_NaN(t *testing.T) {
	nan := float32(math.NaN())
	if got, ok := cosine([]float32{nan, 1}, []float32{1, 1}); got != 0 || ok {
		t.Errorf("expected 0 for NaN input, got %v", got)
	}
}
