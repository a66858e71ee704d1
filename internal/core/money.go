// Package core provides amount parsing and display utilities.
//
// Amounts are whole units typed into a number input. Parsing follows the
// leading-integer rule browsers apply to such inputs: surrounding junk after the
// digits is ignored and a value of zero counts as missing.
package core

import (
	"math"
	"math/big"
	"strings"

	"github.com/dustin/go-humanize"
)

// ParseAmount converts user input to an integer amount.
//
// Leading whitespace is skipped, an optional sign is honoured, a "0x"/"0X"
// prefix switches to hexadecimal, and digits are consumed up to the first
// character that is not a digit. Input without any digit, a result of zero,
// or a value that does not fit in an int64 returns ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("5")     -> 5, nil
//	ParseAmount(" 12kg") -> 12, nil
//	ParseAmount("-3")    -> -3, nil
//	ParseAmount("0x1A")  -> 26, nil
//	ParseAmount("0")     -> 0, ErrInvalidAmount
//	ParseAmount("abc")   -> 0, ErrInvalidAmount
func ParseAmount(s string) (int64, error) {
	s = strings.TrimLeft(s, " \t\n\r\v\f\u00a0\ufeff")

	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}

	base := uint64(10)
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		base = 16
		s = s[2:]
	}

	var (
		v      uint64
		digits int
	)
	for i := 0; i < len(s); i++ {
		d, ok := digitValue(s[i], base)
		if !ok {
			break
		}
		if v > (math.MaxInt64-d)/base {
			return 0, ErrInvalidAmount
		}
		v = v*base + d
		digits++
	}
	if digits == 0 || v == 0 {
		return 0, ErrInvalidAmount
	}

	n := int64(v)
	if neg {
		n = -n
	}
	return n, nil
}

func digitValue(c byte, base uint64) (uint64, bool) {
	var d uint64
	switch {
	case c >= '0' && c <= '9':
		d = uint64(c - '0')
	case c >= 'a' && c <= 'f':
		d = uint64(c-'a') + 10
	case c >= 'A' && c <= 'F':
		d = uint64(c-'A') + 10
	default:
		return 0, false
	}
	if d >= base {
		return 0, false
	}
	return d, true
}

// FormatAmount renders an amount for display, e.g. "$1,234" or "-$5".
func FormatAmount(amount int64) string {
	if amount < 0 {
		// Negating MinInt64 overflows; big.Int does not.
		return "-$" + humanize.BigComma(new(big.Int).Neg(big.NewInt(amount)))
	}
	return "$" + humanize.Comma(amount)
}
