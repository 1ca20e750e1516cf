// Package money normalizes amounts into the shop's base currency.
//
// All stored totals and balances are whole base-currency units. Foreign
// amounts are converted once, at the moment they enter the ledger, with the
// rate supplied by the caller.
package money

import (
	"fmt"
	"strings"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"shopledger/backend/internal/apperr"
)

// Amount is a quantity of whole base-currency units.
type Amount int64

func (a Amount) Decimal() decimal.Decimal { return decimal.NewFromInt(int64(a)) }

func (a Amount) Abs() Amount {
	if a < 0 {
		return -a
	}
	return a
}

// MaxAmount bounds a single normalized amount. It leaves headroom for sums
// of amounts and for the minor-unit shift in Format.
const MaxAmount Amount = 1_000_000_000_000_000

var maxAmount = decimal.NewFromInt(int64(MaxAmount))

// Round converts a decimal to whole units, half away from zero. Values whose
// magnitude exceeds MaxAmount are rejected.
func Round(d decimal.Decimal) (Amount, error) {
	r := d.Round(0)
	if r.Abs().GreaterThan(maxAmount) {
		return 0, apperr.Validationf("amount %s exceeds the supported maximum of %d", r, MaxAmount)
	}
	return Amount(r.IntPart()), nil
}

type Converter struct {
	base     string
	currency *gomoney.Currency
}

func NewConverter(base string) (*Converter, error) {
	code := strings.ToUpper(strings.TrimSpace(base))
	cur := gomoney.GetCurrency(code)
	if cur == nil {
		return nil, fmt.Errorf("unknown base currency %q", base)
	}
	return &Converter{base: code, currency: cur}, nil
}

// MustConverter is NewConverter for package-level defaults and tests.
func MustConverter(base string) *Converter {
	c, err := NewConverter(base)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Converter) Base() string { return c.base }

// Canonical returns the upper-cased currency code, defaulting to the base.
func (c *Converter) Canonical(currency string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" {
		return c.base, nil
	}
	if gomoney.GetCurrency(code) == nil {
		return "", apperr.Validationf("unknown currency %q", currency)
	}
	return code, nil
}

func (c *Converter) IsBase(currency string) bool {
	code := strings.ToUpper(strings.TrimSpace(currency))
	return code == "" || code == c.base
}

// Rate returns the effective conversion rate for currency. The base currency
// always converts at 1 and ignores the supplied rate.
func (c *Converter) Rate(currency string, rate decimal.Decimal) (decimal.Decimal, error) {
	code, err := c.Canonical(currency)
	if err != nil {
		return decimal.Zero, err
	}
	if code == c.base {
		return decimal.NewFromInt(1), nil
	}
	if !rate.IsPositive() {
		return decimal.Zero, apperr.New(apperr.MissingExchangeRate, "no positive rate supplied for %s", code).WithID("currency", code)
	}
	return rate, nil
}

// Convert returns value expressed in the base currency, unrounded.
func (c *Converter) Convert(value decimal.Decimal, currency string, rate decimal.Decimal) (decimal.Decimal, error) {
	r, err := c.Rate(currency, rate)
	if err != nil {
		return decimal.Zero, err
	}
	return value.Mul(r), nil
}

// Normalize converts value to whole base-currency units.
func (c *Converter) Normalize(value decimal.Decimal, currency string, rate decimal.Decimal) (Amount, error) {
	converted, err := c.Convert(value, currency, rate)
	if err != nil {
		return 0, err
	}
	return Round(converted)
}

// Format renders an amount with the base currency's symbol and separators.
func (c *Converter) Format(a Amount) string {
	minor := a.Decimal().Shift(int32(c.currency.Fraction)).IntPart()
	return gomoney.New(minor, c.base).Display()
}
