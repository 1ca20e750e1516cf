package money

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"shopledger/backend/internal/apperr"
)

func TestNormalizeForeignCurrency(t *testing.T) {
	c := MustConverter("EGP")

	got, err := c.Normalize(decimal.NewFromInt(100), "usd", decimal.NewFromInt(70))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got != 7000 {
		t.Fatalf("expected 7000, got %d", got)
	}
}

func TestNormalizeRoundsToWholeUnits(t *testing.T) {
	c := MustConverter("EGP")

	cases := []struct {
		value string
		rate  string
		want  Amount
	}{
		{"10.25", "48.5", 497},  // 497.125
		{"1.01", "49.5", 50},    // 49.995
		{"0.5", "1", 1},         // half away from zero
		{"-0.5", "1", -1},
		{"3", "0.3333", 1},
	}
	for _, tc := range cases {
		got, err := c.Normalize(decimal.RequireFromString(tc.value), "USD", decimal.RequireFromString(tc.rate))
		if err != nil {
			t.Fatalf("normalize %s@%s: %v", tc.value, tc.rate, err)
		}
		if got != tc.want {
			t.Fatalf("normalize %s@%s: expected %d, got %d", tc.value, tc.rate, tc.want, got)
		}
	}
}

func TestNormalizeBaseCurrencyIgnoresRate(t *testing.T) {
	c := MustConverter("EGP")

	got, err := c.Normalize(decimal.RequireFromString("250.4"), "", decimal.Zero)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got != 250 {
		t.Fatalf("expected 250, got %d", got)
	}
}

func TestNormalizeForeignWithoutRateFails(t *testing.T) {
	c := MustConverter("EGP")

	for _, rate := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-3)} {
		_, err := c.Normalize(decimal.NewFromInt(100), "USD", rate)
		if !errors.Is(err, apperr.MissingExchangeRate) {
			t.Fatalf("expected missing exchange rate for rate %s, got %v", rate, err)
		}
	}
}

func TestCanonicalRejectsUnknownCurrency(t *testing.T) {
	c := MustConverter("EGP")

	if _, err := c.Canonical("XYZQ"); !errors.Is(err, apperr.Validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	code, err := c.Canonical(" usd ")
	if err != nil || code != "USD" {
		t.Fatalf("expected USD, got %q (%v)", code, err)
	}
}

func TestNewConverterRejectsUnknownBase(t *testing.T) {
	if _, err := NewConverter("nope"); err == nil {
		t.Fatalf("expected unknown base currency to be rejected")
	}
}

func TestNormalizeRejectsAmountsBeyondRange(t *testing.T) {
	c := MustConverter("IDR")

	_, err := c.Normalize(decimal.RequireFromString("9000000000000"), "USD", decimal.RequireFromString("99999999999"))
	if !errors.Is(err, apperr.Validation) {
		t.Fatalf("expected Validation for an amount beyond int64, got %v", err)
	}
	_, err = c.Normalize(decimal.RequireFromString("-1000000000000001"), "IDR", decimal.Zero)
	if !errors.Is(err, apperr.Validation) {
		t.Fatalf("expected Validation for a negative amount beyond range, got %v", err)
	}

	got, err := c.Normalize(decimal.RequireFromString("1000000000000000"), "IDR", decimal.Zero)
	if err != nil || got != MaxAmount {
		t.Fatalf("expected MaxAmount accepted, got %d err=%v", got, err)
	}
}
