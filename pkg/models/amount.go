package models

import (
	"errors"
	"math/big"
	"strings"
)

// AmountDecimals is the number of minor units per major unit, as a power of
// ten. Matches the ledger's native currency (18, wei per ether).
const AmountDecimals = 18

var (
	ErrMalformedAmount = errors.New("malformed amount")
	ErrNegativeAmount  = errors.New("amount must not be negative")
	ErrTooManyDecimals = errors.New("amount has more fractional digits than the minor unit can represent")

	minorPerMajor = new(big.Int).Exp(big.NewInt(10), big.NewInt(AmountDecimals), nil)
)

// FormatMinor renders a minor-unit integer as a decimal major-unit string.
// The rendering is exact: ParseMajor(FormatMinor(v)) == v for every v >= 0.
// Trailing fractional zeros are trimmed.
func FormatMinor(minor *big.Int) string {
	if minor == nil || minor.Sign() == 0 {
		return "0"
	}
	q, r := new(big.Int).QuoRem(minor, minorPerMajor, new(big.Int))
	if r.Sign() == 0 {
		return q.String()
	}
	frac := r.String()
	for len(frac) < AmountDecimals {
		frac = "0" + frac
	}
	frac = strings.TrimRight(frac, "0")
	return q.String() + "." + frac
}

// ParseMajor converts a decimal major-unit string to the exact minor-unit
// integer. Strictly integer arithmetic; inputs with more than AmountDecimals
// fractional digits are rejected rather than rounded.
func ParseMajor(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrMalformedAmount
	}
	if strings.HasPrefix(s, "-") {
		return nil, ErrNegativeAmount
	}
	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return nil, ErrMalformedAmount
	}
	if whole == "" {
		whole = "0"
	}
	if hasFrac && frac == "" {
		return nil, ErrMalformedAmount
	}
	if len(frac) > AmountDecimals {
		return nil, ErrTooManyDecimals
	}
	if !digitsOnly(whole) || !digitsOnly(frac) {
		return nil, ErrMalformedAmount
	}

	out, ok := new(big.Int).SetString(whole, 10)
	if !ok {
		return nil, ErrMalformedAmount
	}
	out.Mul(out, minorPerMajor)
	if frac != "" {
		// Scale the fraction up to a whole number of minor units.
		padded := frac + strings.Repeat("0", AmountDecimals-len(frac))
		f, ok := new(big.Int).SetString(padded, 10)
		if !ok {
			return nil, ErrMalformedAmount
		}
		out.Add(out, f)
	}
	return out, nil
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
