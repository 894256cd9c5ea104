package chain

import (
	"errors"
	"math/big"
	"testing"
)

func TestCheckedAdd(t *testing.T) {
	one := big.NewInt(1)

	tests := []struct {
		name    string
		a, b    *big.Int
		want    string
		wantErr bool
	}{
		{"simple", big.NewInt(2), big.NewInt(3), "5", false},
		{"negative", big.NewInt(-10), big.NewInt(4), "-6", false},
		{"at max", new(big.Int).Sub(maxI128, one), one, maxI128.String(), false},
		{"overflow max", maxI128, one, "", true},
		{"underflow min", minI128, big.NewInt(-1), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CheckedAdd(tt.a, tt.b)
			if tt.wantErr {
				if !errors.Is(err, ErrMathOverflow) {
					t.Fatalf("CheckedAdd() error = %v, want ErrMathOverflow", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("CheckedAdd() error = %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("CheckedAdd() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCheckedMulOverflow(t *testing.T) {
	if _, err := CheckedMul(maxI128, big.NewInt(2)); !errors.Is(err, ErrMathOverflow) {
		t.Fatalf("CheckedMul() error = %v, want ErrMathOverflow", err)
	}
	got, err := CheckedMul(big.NewInt(7), big.NewInt(6))
	if err != nil {
		t.Fatalf("CheckedMul() error = %v", err)
	}
	if got.Int64() != 42 {
		t.Errorf("CheckedMul() = %s, want 42", got)
	}
}

func TestFeeForBps(t *testing.T) {
	tests := []struct {
		name   string
		amount int64
		bps    uint32
		want   string
	}{
		{"30 bps", 10000, 30, "30"},
		{"5 percent", 1000, 500, "50"},
		{"truncates", 999, 30, "2"}, // 999*30/10000 = 2.997
		{"zero bps", 1000, 0, "0"},
		{"full amount", 1000, 10000, "1000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FeeForBps(big.NewInt(tt.amount), tt.bps)
			if err != nil {
				t.Fatalf("FeeForBps() error = %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("FeeForBps(%d, %d) = %s, want %s", tt.amount, tt.bps, got, tt.want)
			}
		})
	}
}

func TestApplyRate(t *testing.T) {
	tests := []struct {
		name   string
		amount int64
		rate   int64
		want   string
	}{
		{"1:1", 5000, RateScale, "5000"},
		{"0.9", 5000, 900_000, "4500"},
		{"1.5", 1000, 1_500_000, "1500"},
		{"truncates", 3, 500_000, "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ApplyRate(big.NewInt(tt.amount), big.NewInt(tt.rate))
			if err != nil {
				t.Fatalf("ApplyRate() error = %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("ApplyRate(%d, %d) = %s, want %s", tt.amount, tt.rate, got, tt.want)
			}
		})
	}
}

func TestApplyRateOverflow(t *testing.T) {
	if _, err := ApplyRate(maxI128, big.NewInt(2_000_000)); !errors.Is(err, ErrMathOverflow) {
		t.Fatalf("ApplyRate() error = %v, want ErrMathOverflow", err)
	}
}
