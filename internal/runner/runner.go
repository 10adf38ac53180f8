// Package runner wires the ingestion stages together: sniff the
// delimiter, parse, auto-map columns, apply manual overrides, build the
// admitted work-item queue. Both the CLI commands and the serve mode go
// through Prepare so a run starts from identical state either way.
package runner

import (
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/desguapro/stock-cli/internal/csvio"
	"github.com/desguapro/stock-cli/internal/mapping"
	"github.com/desguapro/stock-cli/internal/stock"
)

// Options configures one preparation pass.
type Options struct {
	// MapOverrides replaces auto-mapped headers per field ("field=Header").
	MapOverrides map[mapping.Field]string
	// ExcludePartTypes is the part-type blocklist.
	ExcludePartTypes []string
	// ExcludeIDs drops specific ref IDs (from the reorder-history CSV).
	ExcludeIDs []string
	// Limit caps the number of admitted items (0 = all).
	Limit int
}

// Prepared is everything needed to start a scheduler run, plus the
// intermediate state the inspect command reports.
type Prepared struct {
	Table     *csvio.RawTable
	Delimiter rune
	Mapping   mapping.Mapping
	Items     []stock.Item
	Excluded  int
}

// ErrIncompleteMapping blocks a run until the user maps the required
// fields manually.
var ErrIncompleteMapping = eris.New("runner: mapping incomplete, required fields: id, oem, part_type, price")

// Preview parses and maps without enforcing mapping validity or building
// items; the inspect command uses it to show what a run would start from.
func Preview(text string, overrides map[mapping.Field]string) (*Prepared, error) {
	table, delim, err := csvio.Sniff(text)
	if err != nil {
		return nil, eris.Wrap(err, "runner: parse stock csv")
	}

	m := mapping.AutoMap(table.Headers)
	for field, header := range overrides {
		m.Set(field, header)
	}

	prep := &Prepared{Table: table, Delimiter: delim, Mapping: m}
	if m.Valid() {
		prep.Items, prep.Excluded = stock.BuildItems(table, m, stock.NewExclusions(nil, nil))
	}
	return prep, nil
}

// Prepare parses raw CSV text and builds the admitted item queue.
func Prepare(text string, opts Options) (*Prepared, error) {
	table, delim, err := csvio.Sniff(text)
	if err != nil {
		return nil, eris.Wrap(err, "runner: parse stock csv")
	}

	m := mapping.AutoMap(table.Headers)
	for field, header := range opts.MapOverrides {
		m.Set(field, header)
	}
	if !m.Valid() {
		return nil, ErrIncompleteMapping
	}

	excl := stock.NewExclusions(opts.ExcludePartTypes, opts.ExcludeIDs)
	items, excluded := stock.BuildItems(table, m, excl)
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}

	zap.L().Info("stock csv prepared",
		zap.String("delimiter", string(delim)),
		zap.Int("rows", len(table.Rows)),
		zap.Int("items", len(items)),
		zap.Int("excluded", excluded),
	)

	return &Prepared{
		Table:     table,
		Delimiter: delim,
		Mapping:   m,
		Items:     items,
		Excluded:  excluded,
	}, nil
}

// ParseMapOverrides parses repeated "field=Header" flag values.
func ParseMapOverrides(pairs []string) (map[mapping.Field]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	overrides := make(map[mapping.Field]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			return nil, eris.Errorf("runner: invalid map override %q, want field=Header", pair)
		}
		field := mapping.Field(strings.TrimSpace(key))
		switch field {
		case mapping.FieldID, mapping.FieldOEM, mapping.FieldOE, mapping.FieldPartType, mapping.FieldPrice:
			overrides[field] = strings.TrimSpace(value)
		default:
			return nil, eris.Errorf("runner: unknown field %q in map override", key)
		}
	}
	return overrides, nil
}

// ExcludedIDsFromCSV parses a secondary CSV and extracts the chosen ID
// column. When column is empty the first header is used.
func ExcludedIDsFromCSV(text, column string) ([]string, error) {
	table, _, err := csvio.Sniff(text)
	if err != nil {
		return nil, eris.Wrap(err, "runner: parse exclusion csv")
	}
	if column == "" {
		column = table.Headers[0]
	}
	return stock.ExcludedIDsFromTable(table, column)
}
