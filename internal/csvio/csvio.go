// Package csvio sniffs delimiters and parses stock CSV exports.
//
// Junkyard management systems export stock lists with wildly inconsistent
// conventions (semicolon vs comma vs tab, CRLF, UTF-8 BOM, quoted fields
// containing the delimiter), so parsing is deliberately permissive: it
// operates line-by-line, toggles quote state on every '"', and never
// re-pads short rows. Escaped quotes ("" inside a quoted field) are not
// unescaped.
package csvio

import (
	"strings"

	"github.com/rotisserie/eris"
)

// ErrTooFewLines is returned when the input has no data rows after the
// header line.
var ErrTooFewLines = eris.New("csvio: file needs a header line and at least one data row")

// RawTable is an immutable parse of one uploaded file. Rows shorter than
// Headers are kept as-is; callers must treat missing positions as empty
// strings.
type RawTable struct {
	Headers []string
	Rows    [][]string
}

// Cell returns the value of row at column idx, or "" when the row is
// shorter than idx+1 or idx is negative.
func Cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// DetectDelimiter inspects only the first line of text and picks between
// ';', tab, and ','. Semicolon wins when it strictly outnumbers both
// comma and tab; tab wins when it strictly outnumbers comma; comma is the
// fallback. Pathological first lines (a lone quoted field full of commas)
// can mis-detect; callers may override.
func DetectDelimiter(text string) rune {
	firstLine := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		firstLine = text[:i]
	}

	semis := strings.Count(firstLine, ";")
	commas := strings.Count(firstLine, ",")
	tabs := strings.Count(firstLine, "\t")

	switch {
	case semis > commas && semis > tabs:
		return ';'
	case tabs > commas:
		return '\t'
	default:
		return ','
	}
}

// Parse splits text into lines and scans each one into fields on delim,
// honoring double-quoted fields. A leading UTF-8 BOM is stripped, trailing
// '\r' is removed per line, blank lines are skipped, and every field is
// trimmed of surrounding whitespace. The first parsed line becomes the
// header row.
func Parse(text string, delim rune) (*RawTable, error) {
	text = strings.TrimPrefix(text, "\uFEFF")

	var table RawTable
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := splitLine(line, delim)
		if table.Headers == nil {
			table.Headers = fields
			continue
		}
		table.Rows = append(table.Rows, fields)
	}

	if table.Headers == nil || len(table.Rows) == 0 {
		return nil, ErrTooFewLines
	}
	return &table, nil
}

// Sniff detects the delimiter and parses in one step. This is the entry
// point used by the CLI and the serve mode.
func Sniff(text string) (*RawTable, rune, error) {
	delim := DetectDelimiter(text)
	table, err := Parse(text, delim)
	if err != nil {
		return nil, delim, err
	}
	return table, delim, nil
}

// splitLine scans one line character-by-character. Inside quotes the
// delimiter is literal text; the quote characters themselves are dropped.
func splitLine(line string, delim rune) []string {
	var (
		fields  []string
		current strings.Builder
		inQuote bool
	)

	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
		case r == delim && !inQuote:
			fields = append(fields, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	fields = append(fields, strings.TrimSpace(current.String()))

	return fields
}
