package catalog

import (
	"regexp"
	"strings"

	"cardshop-bot/internal/model"

	"github.com/shopspring/decimal"
)

// Block separator in the catalog source file.
const blockSeparator = "---"

// Field patterns, matched case-insensitively anywhere in a block.
// The type field accepts two spellings ("tipo" and "raça").
var (
	reCode    = regexp.MustCompile(`(?im)^\s*codigo\s*>\s*([0-9A-Za-z]+)`)
	reType    = regexp.MustCompile(`(?im)^\s*(?:tipo|ra[cç]a)\s*:\s*(.+)$`)
	reSubtype = regexp.MustCompile(`(?im)^\s*subtipo\s*:\s*(.+)$`)
	reAvail   = regexp.MustCompile(`(?im)^\s*dispon[ií]vel\s*:\s*(.+)$`)
	rePrice   = regexp.MustCompile(`(?im)^\s*pre[cç]o\s*:\s*([0-9]+(?:[.,][0-9]+)?)`)
)

// truthy tokens accepted for the availability field.
var truthyTokens = map[string]bool{
	"sim": true, "true": true, "1": true, "yes": true, "y": true, "ok": true,
}

// parseBool reports whether a free-text availability value is truthy.
func parseBool(s string) bool {
	return truthyTokens[strings.ToLower(strings.TrimSpace(s))]
}

// parsePrice normalizes a price string (comma or dot separator) to a decimal.
// Unparsable or empty values become zero.
func parsePrice(s string) decimal.Decimal {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseItems segments raw catalog text into blocks and extracts one item per
// block. Blocks missing the code, type or subtype field are skipped silently.
// The original block text is preserved verbatim on each item.
func ParseItems(raw string) []model.Item {
	blocks := strings.Split(raw, blockSeparator)

	var items []model.Item
	for _, blk := range blocks {
		blk = strings.TrimSpace(blk)
		if blk == "" {
			continue
		}

		mCode := reCode.FindStringSubmatch(blk)
		mType := reType.FindStringSubmatch(blk)
		mSub := reSubtype.FindStringSubmatch(blk)
		if mCode == nil || mType == nil || mSub == nil {
			continue
		}

		available := true
		if mAvail := reAvail.FindStringSubmatch(blk); mAvail != nil {
			available = parseBool(mAvail[1])
		}

		price := decimal.Zero
		if mPrice := rePrice.FindStringSubmatch(blk); mPrice != nil {
			price = parsePrice(mPrice[1])
		}

		items = append(items, model.Item{
			Type:      strings.TrimSpace(mType[1]),
			Subtype:   strings.TrimSpace(mSub[1]),
			Code:      strings.TrimSpace(mCode[1]),
			Available: available,
			Price:     price,
			Raw:       blk,
		})
	}
	return items
}
