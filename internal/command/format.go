package command

import (
	"strings"

	"cardshop-bot/internal/catalog"
	"cardshop-bot/internal/model"

	"github.com/shopspring/decimal"
)

// FormatBRL renders a value in Brazilian currency style: "R$ 1.234,56".
func FormatBRL(v decimal.Decimal) string {
	s := v.StringFixed(2)

	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	intPart, fracPart, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}

	out := "R$ " + b.String() + "," + fracPart
	if neg {
		out = "R$ -" + b.String() + "," + fracPart
	}
	return out
}

// maskedRaw returns an item's raw block with its code partially hidden.
func maskedRaw(it model.Item) string {
	return catalog.MaskCodeInRaw(it.Raw, it.Code)
}
