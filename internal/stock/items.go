// Package stock turns raw CSV rows into typed work items ready for the
// verification scheduler.
package stock

import (
	"strconv"
	"strings"

	"github.com/desguapro/stock-cli/internal/csvio"
	"github.com/desguapro/stock-cli/internal/mapping"
)

// Item is one verifiable stock entry derived from a single CSV row.
type Item struct {
	RefID    string  `json:"ref_id"`
	RefOEM   string  `json:"ref_oem"`
	RefOE    string  `json:"ref_oe,omitempty"`
	PartType string  `json:"part_type"`
	Price    float64 `json:"price"`
}

// ParsePrice converts a raw price cell to a float: the first comma becomes
// a decimal point (European comma-decimal convention), every character
// outside [0-9.-] is stripped, and the longest valid numeric prefix is
// parsed. Inputs mixing thousands-separator dots with a decimal comma
// therefore truncate at the second dot: "1.234,56" parses as 1.234. This
// mirrors the behavior the rest of the product was built against; it is
// not a locale-correct financial parser. Failed or empty parses yield 0.
func ParsePrice(raw string) float64 {
	s := strings.Replace(raw, ",", ".", 1)

	var cleaned strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			cleaned.WriteRune(r)
		}
	}

	return parseFloatPrefix(cleaned.String())
}

// parseFloatPrefix parses the longest prefix of s that forms a valid
// decimal number, like C's strtod or JavaScript's parseFloat.
func parseFloatPrefix(s string) float64 {
	end := 0
	seenDot := false
	seenDigit := false
	for i, r := range s {
		switch {
		case r == '-':
			if i != 0 {
				goto done
			}
		case r == '.':
			if seenDot {
				goto done
			}
			seenDot = true
		case r >= '0' && r <= '9':
			seenDigit = true
		default:
			goto done
		}
		end = i + 1
	}
done:
	if !seenDigit {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(s[:end], "."), 64)
	if err != nil {
		return 0
	}
	return v
}

// BuildItems converts every row of table into an Item using the given
// mapping and drops those failing admission: empty OEM, non-positive
// price, an excluded part type, or (when the exclusion ID list is
// non-empty) an excluded ref ID. The second return value counts dropped
// rows for user-facing reporting; dropping is informational, never an
// error. The function is pure.
func BuildItems(table *csvio.RawTable, m mapping.Mapping, excl Exclusions) ([]Item, int) {
	idx := func(header string) int {
		if header == "" {
			return -1
		}
		for i, h := range table.Headers {
			if h == header {
				return i
			}
		}
		return -1
	}

	idIdx := idx(m.ID)
	oemIdx := idx(m.OEM)
	oeIdx := idx(m.OE)
	typeIdx := idx(m.PartType)
	priceIdx := idx(m.Price)

	var items []Item
	excluded := 0
	for _, row := range table.Rows {
		item := Item{
			RefID:    csvio.Cell(row, idIdx),
			RefOEM:   csvio.Cell(row, oemIdx),
			RefOE:    csvio.Cell(row, oeIdx),
			PartType: strings.ToUpper(strings.TrimSpace(csvio.Cell(row, typeIdx))),
			Price:    ParsePrice(csvio.Cell(row, priceIdx)),
		}

		if !admit(item, excl) {
			excluded++
			continue
		}
		items = append(items, item)
	}

	return items, excluded
}

func admit(item Item, excl Exclusions) bool {
	if item.RefOEM == "" || item.Price <= 0 {
		return false
	}
	if excl.HasPartType(item.PartType) {
		return false
	}
	if len(excl.IDs) > 0 && excl.HasID(item.RefID) {
		return false
	}
	return true
}
