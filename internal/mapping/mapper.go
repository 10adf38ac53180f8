// Package mapping proposes a best-effort assignment of arbitrary stock
// CSV columns to the five semantic fields the verification pipeline needs.
package mapping

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Field identifies one of the semantic columns.
type Field string

const (
	FieldID       Field = "id"
	FieldOEM      Field = "oem"
	FieldOE       Field = "oe"
	FieldPartType Field = "part_type"
	FieldPrice    Field = "price"
)

// Fields lists every semantic field in display order.
var Fields = []Field{FieldID, FieldOEM, FieldOE, FieldPartType, FieldPrice}

// Mapping assigns each semantic field a header name from the source
// table, or "" when unmapped. Duplicate assignments across fields are
// allowed and never flagged.
type Mapping struct {
	ID       string `json:"id"`
	OEM      string `json:"oem"`
	OE       string `json:"oe"`
	PartType string `json:"part_type"`
	Price    string `json:"price"`
}

// patterns are tried in priority order per field; the first header whose
// normalized form contains the pattern (at token boundaries) wins. The
// vocabulary covers the Spanish exports DesguaPro customers upload and
// the English ones some ERPs produce.
var patterns = map[Field][]string{
	FieldID:       {"ref_id", "id", "codigo", "code"},
	FieldOEM:      {"ref_oem", "referencia_oem", "oem", "referencia"},
	FieldOE:       {"ref_oe", "referencia_oe", "oe", "iam"},
	FieldPartType: {"tipo_pieza", "tipo", "articulo", "article", "pieza", "familia_pieza", "part"},
	FieldPrice:    {"precio", "price", "pvp", "importe"},
}

var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeHeader lower-cases a header, folds diacritics ("Código" and
// "codigo" must match the same pattern), and collapses '.' and whitespace
// runs to a single '_'.
func normalizeHeader(h string) string {
	if folded, _, err := transform.String(deaccent, h); err == nil {
		h = folded
	}
	h = strings.ToLower(h)

	var b strings.Builder
	lastUnderscore := false
	for _, r := range h {
		if r == '.' || unicode.IsSpace(r) || r == '_' {
			if !lastUnderscore {
				b.WriteByte('_')
			}
			lastUnderscore = true
			continue
		}
		b.WriteRune(r)
		lastUnderscore = false
	}
	return strings.Trim(b.String(), "_")
}

// containsToken reports whether pattern occurs in the normalized header
// aligned to '_' token boundaries. Plain substring matching would let the
// "oe" patterns claim an OEM column, so boundaries are enforced.
func containsToken(header, pattern string) bool {
	return strings.Contains("_"+header+"_", "_"+pattern+"_")
}

// AutoMap proposes a mapping for the given headers. For each field the
// pattern list is walked in priority order and the first matching header
// is taken; unmatched fields stay empty and must be filled manually.
// There is no mutual exclusion: a header claimed by one field may also be
// claimed by another.
func AutoMap(headers []string) Mapping {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = normalizeHeader(h)
	}

	var m Mapping
	for _, field := range Fields {
		for _, pattern := range patterns[field] {
			found := ""
			for i, n := range normalized {
				if containsToken(n, pattern) {
					found = headers[i]
					break
				}
			}
			if found != "" {
				m.Set(field, found)
				break
			}
		}
	}
	return m
}

// Get returns the header currently assigned to field.
func (m Mapping) Get(field Field) string {
	switch field {
	case FieldID:
		return m.ID
	case FieldOEM:
		return m.OEM
	case FieldOE:
		return m.OE
	case FieldPartType:
		return m.PartType
	case FieldPrice:
		return m.Price
	}
	return ""
}

// Set assigns header to field. Pure assignment: no validation against
// other fields' assignments.
func (m *Mapping) Set(field Field, header string) {
	switch field {
	case FieldID:
		m.ID = header
	case FieldOEM:
		m.OEM = header
	case FieldOE:
		m.OE = header
	case FieldPartType:
		m.PartType = header
	case FieldPrice:
		m.Price = header
	}
}

// Valid reports whether the mapping is complete enough to start a run:
// id, oem, part_type, and price must all be assigned. oe is optional.
func (m Mapping) Valid() bool {
	return m.ID != "" && m.OEM != "" && m.PartType != "" && m.Price != ""
}
