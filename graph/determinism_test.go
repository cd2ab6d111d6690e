package graph

import (
	"math"
	"testing"
)

func TestSeededRandom(t *testing.T) {
	tests := []struct {
		name       string
		seed, salt int64
		want       float64
	}{
		{"zero", 0, 0, 49297.0 / 233280.0},
		{"seed one", 1, 0, 58598.0 / 233280.0},
		{"salt one", 0, 1, 49530.0 / 233280.0},
		{"negative seed", -1, 0, 39996.0 / 233280.0},
		{"seed wraps at modulus", 233280, 0, 49297.0 / 233280.0},
		{"negative salt", 0, -1, 49064.0 / 233280.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SeededRandom(tt.seed, tt.salt); got != tt.want {
				t.Errorf("SeededRandom(%d, %d) = %v, expected %v", tt.seed, tt.salt, got, tt.want)
			}
		})
	}

	t.Run("range", func(t *testing.T) {
		for seed := int64(-500); seed < 500; seed += 7 {
			for salt := int64(0); salt < 2000; salt += 13 {
				v := SeededRandom(seed, salt)
				if v < 0 || v >= 1 {
					t.Fatalf("SeededRandom(%d, %d) = %v, outside [0, 1)", seed, salt, v)
				}
			}
		}
	})

	t.Run("extreme inputs", func(t *testing.T) {
		for _, seed := range []int64{math.MaxInt64, math.MinInt64} {
			v := SeededRandom(seed, math.MaxInt64)
			if v < 0 || v >= 1 {
				t.Errorf("SeededRandom(%d, max) = %v, outside [0, 1)", seed, v)
			}
		}
	})
}

func TestBranchSalt(t *testing.T) {
	// 's' + 'w' + 'A' = 115 + 119 + 65
	if got := BranchSalt("sw", "A", 3); got != 302 {
		t.Errorf("expected salt 302, got %d", got)
	}
	if got := BranchSalt("", "", 7); got != 7 {
		t.Errorf("expected salt 7, got %d", got)
	}
	if BranchSalt("ab", "c", 0) != BranchSalt("a", "bc", 0) {
		t.Error("expected salt to depend only on the concatenated ids")
	}
	if got := BranchSalt("é", "", 0); got != 233 {
		t.Errorf("expected code point sum 233, got %d", got)
	}
}
