package stock

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desguapro/stock-cli/internal/csvio"
	"github.com/desguapro/stock-cli/internal/mapping"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want float64
	}{
		{"comma_decimal", "45,90", 45.9},
		{"dot_decimal", "45.90", 45.9},
		{"integer", "120", 120},
		{"currency_suffix", "12,50 €", 12.5},
		// Thousands-separator dots are not stripped before the comma
		// replace, so the parse truncates at the second dot.
		{"thousands_plus_comma", "1.234,56", 1.234},
		{"negative", "-3,5", -3.5},
		{"empty", "", 0},
		{"garbage", "n/a", 0},
		{"lone_minus", "-", 0},
		{"trailing_dot", "12,", 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ParsePrice(tt.raw), 1e-9)
		})
	}
}

func stdMapping() mapping.Mapping {
	return mapping.Mapping{ID: "id", OEM: "oem", OE: "oe", PartType: "tipo", Price: "precio"}
}

func stdTable(rows ...[]string) *csvio.RawTable {
	return &csvio.RawTable{
		Headers: []string{"id", "oem", "oe", "tipo", "precio"},
		Rows:    rows,
	}
}

func TestBuildItemsAdmission(t *testing.T) {
	table := stdTable(
		[]string{"1", "", "", "motor", "5"},
		[]string{"2", "X1", "", "motor", "0"},
		[]string{"3", "X2", "OE9", "motor", "10"},
	)

	items, excluded := BuildItems(table, stdMapping(), NewExclusions(nil, nil))

	require.Len(t, items, 1)
	assert.Equal(t, 2, excluded)
	assert.Equal(t, Item{RefID: "3", RefOEM: "X2", RefOE: "OE9", PartType: "MOTOR", Price: 10}, items[0])
}

func TestBuildItemsPartTypeNormalized(t *testing.T) {
	table := stdTable([]string{"1", "A", "", "  faro derecho ", "9,99"})

	items, _ := BuildItems(table, stdMapping(), NewExclusions(nil, nil))

	require.Len(t, items, 1)
	assert.Equal(t, "FARO DERECHO", items[0].PartType)
	assert.InDelta(t, 9.99, items[0].Price, 1e-9)
}

func TestBuildItemsExcludedPartTypes(t *testing.T) {
	table := stdTable(
		[]string{"1", "A", "", "motor", "5"},
		[]string{"2", "B", "", "faro", "5"},
	)

	items, excluded := BuildItems(table, stdMapping(), NewExclusions([]string{"motor"}, nil))

	require.Len(t, items, 1)
	assert.Equal(t, "2", items[0].RefID)
	assert.Equal(t, 1, excluded)
}

func TestBuildItemsExcludedIDs(t *testing.T) {
	table := stdTable(
		[]string{"1", "A", "", "motor", "5"},
		[]string{"2", "B", "", "faro", "5"},
	)

	items, excluded := BuildItems(table, stdMapping(), NewExclusions(nil, []string{"2"}))

	require.Len(t, items, 1)
	assert.Equal(t, "1", items[0].RefID)
	assert.Equal(t, 1, excluded)
}

func TestBuildItemsShortRowsAndMissingColumns(t *testing.T) {
	table := &csvio.RawTable{
		Headers: []string{"oem", "precio"},
		Rows:    [][]string{{"A1", "7,5"}, {"B2"}},
	}
	m := mapping.Mapping{ID: "no_such", OEM: "oem", PartType: "no_such_either", Price: "precio"}

	items, excluded := BuildItems(table, m, NewExclusions(nil, nil))

	require.Len(t, items, 1)
	assert.Equal(t, "", items[0].RefID)
	assert.InDelta(t, 7.5, items[0].Price, 1e-9)
	assert.Equal(t, 1, excluded) // short row has no price cell
}

func TestBuildItemsIdempotent(t *testing.T) {
	table := stdTable(
		[]string{"1", "A", "", "motor", "5"},
		[]string{"2", "", "", "faro", "5"},
	)
	excl := NewExclusions([]string{"puerta"}, []string{"99"})

	first, firstExcl := BuildItems(table, stdMapping(), excl)
	second, secondExcl := BuildItems(table, stdMapping(), excl)

	assert.Equal(t, first, second)
	assert.Equal(t, firstExcl, secondExcl)
}

func TestLoadPartTypeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocklist.yaml")
	require.NoError(t, os.WriteFile(path, []byte("excluded_part_types:\n  - motor\n  - faro\n"), 0o644))

	types, err := LoadPartTypeFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"motor", "faro"}, types)

	_, err = LoadPartTypeFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestExcludedIDsFromTable(t *testing.T) {
	table := &csvio.RawTable{
		Headers: []string{"Ref", "Fecha"},
		Rows:    [][]string{{"A1", "2026-01-01"}, {"", "2026-01-02"}, {"B2", ""}},
	}

	ids, err := ExcludedIDsFromTable(table, "Ref")
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "B2"}, ids)

	_, err = ExcludedIDsFromTable(table, "NoExiste")
	assert.Error(t, err)
}
