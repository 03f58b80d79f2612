package money

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestMinorUnitsRoundTrip(t *testing.T) {
	cases := map[string]int64{
		"0":      0,
		"1":      100,
		"20.5":   2050,
		"70.00":  7000,
		"0.005":  1,
		"12.344": 1234,
	}
	for in, want := range cases {
		got, err := ToMinor(decimal.RequireFromString(in))
		if err != nil {
			t.Fatalf("ToMinor(%s): %v", in, err)
		}
		if got != want {
			t.Fatalf("ToMinor(%s): expected %d, got %d", in, want, got)
		}
	}

	if !FromMinor(7050).Equal(decimal.RequireFromString("70.5")) {
		t.Fatalf("expected 70.5, got %s", FromMinor(7050))
	}
}

func TestToMinorRejectsOverflow(t *testing.T) {
	for _, in := range []string{"184467440737095515.16", "92233720368547758.08", "-92233720368547758.09"} {
		if _, err := ToMinor(decimal.RequireFromString(in)); !errors.Is(err, ErrOutOfRange) {
			t.Fatalf("ToMinor(%s): expected ErrOutOfRange, got %v", in, err)
		}
	}
	got, err := ToMinor(decimal.RequireFromString("92233720368547758.07"))
	if err != nil || got != math.MaxInt64 {
		t.Fatalf("expected max int64, got %d %v", got, err)
	}
}

func TestHasScale(t *testing.T) {
	if !HasScale(decimal.RequireFromString("10.50")) {
		t.Fatalf("10.50 has two decimals")
	}
	if HasScale(decimal.RequireFromString("10.005")) {
		t.Fatalf("10.005 has three decimals")
	}
}

func TestNumberMarshalsUnquoted(t *testing.T) {
	payload, err := json.Marshal(map[string]any{"balance": Number(decimal.NewFromInt(70))})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(payload) != `{"balance":70.00}` {
		t.Fatalf("unexpected payload %s", payload)
	}
}

func TestFormat(t *testing.T) {
	if got := Format(decimal.RequireFromString("5")); got != "$5.00" {
		t.Fatalf("expected $5.00, got %s", got)
	}
}
