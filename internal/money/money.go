// Package money formats integer-cent EUR amounts the way the storefront
// displays them (fr-FR).
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	Currency = "eur"

	thousandsSep = " " // narrow no-break space
	symbolSep    = " "

	// originalMarkupPct is applied to the selling price to get the
	// struck-through "original" price.
	originalMarkupPct = 400
)

// FormatEUR renders cents as e.g. "1 234,50 €".
func FormatEUR(cents int64) string {
	s := decimal.New(cents, -2).StringFixed(2)

	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteString(thousandsSep)
		}
		b.WriteRune(r)
	}
	b.WriteByte(',')
	b.WriteString(frac)
	b.WriteString(symbolSep)
	b.WriteString("€")
	return b.String()
}

func OriginalPrice(cents int64) int64 {
	return decimal.NewFromInt(cents).
		Mul(decimal.NewFromInt(originalMarkupPct)).
		Div(decimal.NewFromInt(100)).
		IntPart()
}

type Display struct {
	Current  string `json:"current"`
	Original string `json:"original"`
}

// DisplayRange formats a single price when min == max, otherwise "min - max".
func DisplayRange(min, max int64) Display {
	if min == max {
		return Display{Current: FormatEUR(min), Original: FormatEUR(OriginalPrice(min))}
	}
	return Display{
		Current:  FormatEUR(min) + " - " + FormatEUR(max),
		Original: FormatEUR(OriginalPrice(min)) + " - " + FormatEUR(OriginalPrice(max)),
	}
}
