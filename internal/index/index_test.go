package index

import (
	"reflect"
	"testing"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		k, n, expect int
	}{
		{k: 5, n: 3, expect: 3},
		{k: 2, n: 3, expect: 2},
		{k: 0, n: 3, expect: 0},
		{k: -1, n: 3, expect: 0},
		{k: 4, n: 0, expect: 0},
	}
	for _, tt := range tests {
		if got := Clamp(tt.k, tt.n); got != tt.expect {
			t.Fatalf("Clamp(%d, %d) = %d, expected %d", tt.k, tt.n, got, tt.expect)
		}
	}
}

func TestTopKStableOnTies(t *testing.T) {
	got := TopK([]float64{0.5, 0.9, 0.5, 0.9, 0.1}, 4)
	expect := []int{1, 3, 0, 2}
	if !reflect.DeepEqual(got, expect) {
		t.Fatalf("expected %v, got %v", expect, got)
	}

	if got := TopK(nil, 3); got != nil {
		t.Fatalf("expected nil for empty scores, got %v", got)
	}
}
