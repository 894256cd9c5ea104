package indexer

import "testing"

func TestAsUint64(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want uint64
	}{
		{"uint64", uint64(7), 7},
		{"float64 from json", float64(42), 42},
		{"int", int(3), 3},
		{"int64", int64(9), 9},
		{"uint32", uint32(5), 5},
		{"decimal string", "1050", 1050},
		{"garbage string", "abc", 0},
		{"nil", nil, 0},
		{"bool", true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := asUint64(tt.in); got != tt.want {
				t.Errorf("asUint64(%v) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestAsString(t *testing.T) {
	if got := asString("x"); got != "x" {
		t.Errorf("asString(x) = %q", got)
	}
	if got := asString(42); got != "" {
		t.Errorf("asString(42) = %q, want empty", got)
	}
}
