package catalog

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var usd = message.NewPrinter(language.AmericanEnglish)

// FormatCurrency renders an amount as US dollars, e.g. $1,234.50. The value
// is rounded to cents in decimal, so large totals keep every digit.
func FormatCurrency(d decimal.Decimal) string {
	fixed := d.Abs().StringFixed(2)
	whole, cents, _ := strings.Cut(fixed, ".")

	sign := ""
	if fixed != "0.00" && d.IsNegative() {
		sign = "-"
	}
	return sign + "$" + groupThousands(whole) + "." + cents
}

// groupThousands inserts locale separators into a non-negative digit
// string. Values past int64 are grouped by hand in threes.
func groupThousands(digits string) string {
	if n, err := strconv.ParseInt(digits, 10, 64); err == nil {
		return usd.Sprintf("%d", n)
	}

	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}
