package stock

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/desguapro/stock-cli/internal/csvio"
)

// Exclusions holds the filter predicates applied before items enter the
// verification queue. Part types are stored normalized (upper-case,
// trimmed) so comparison matches Item.PartType.
type Exclusions struct {
	PartTypes map[string]struct{}
	IDs       map[string]struct{}
}

// NewExclusions builds an Exclusions from raw part-type tags and ref IDs.
func NewExclusions(partTypes, ids []string) Exclusions {
	excl := Exclusions{
		PartTypes: make(map[string]struct{}, len(partTypes)),
		IDs:       make(map[string]struct{}, len(ids)),
	}
	for _, t := range partTypes {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t != "" {
			excl.PartTypes[t] = struct{}{}
		}
	}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" {
			excl.IDs[id] = struct{}{}
		}
	}
	return excl
}

// HasPartType reports whether the normalized part type is blocked.
func (e Exclusions) HasPartType(partType string) bool {
	_, ok := e.PartTypes[partType]
	return ok
}

// HasID reports whether the ref ID is on the exclusion list.
func (e Exclusions) HasID(id string) bool {
	_, ok := e.IDs[id]
	return ok
}

// blocklistFile is the YAML shape of --exclude-types-file.
type blocklistFile struct {
	ExcludedPartTypes []string `yaml:"excluded_part_types"`
}

// LoadPartTypeFile reads a YAML blocklist of part types.
func LoadPartTypeFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "stock: read blocklist %s", path)
	}

	var file blocklistFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, eris.Wrapf(err, "stock: parse blocklist %s", path)
	}
	return file.ExcludedPartTypes, nil
}

// ExcludedIDsFromTable extracts the values of the named column from a
// secondary CSV (the "already reordered" list). Empty cells are skipped.
func ExcludedIDsFromTable(table *csvio.RawTable, column string) ([]string, error) {
	idx := -1
	for i, h := range table.Headers {
		if h == column {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, eris.Errorf("stock: column %q not found in exclusion csv", column)
	}

	var ids []string
	for _, row := range table.Rows {
		if id := strings.TrimSpace(csvio.Cell(row, idx)); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
