package csvio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectDelimiter(t *testing.T) {
	tests := []struct {
		name string
		text string
		want rune
	}{
		{"semicolons_win", "id;oem;tipo;precio,extra\nrow", ';'},
		{"comma_wins_tie", "a;b,c;d,e\n", ','},
		{"tab_beats_comma", "a\tb\tc\nrow", '\t'},
		{"default_comma", "a|b|c\n", ','},
		{"only_first_line_counts", "a,b\nx;y;z;w;v\n", ','},
		{"no_newline", "uno;dos;tres", ';'},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectDelimiter(tt.text))
		})
	}
}

func TestParseQuotedFields(t *testing.T) {
	table, err := Parse("h1;h2;h3\na;\"b;c\";d\n", ';')
	require.NoError(t, err)

	require.Len(t, table.Rows, 1)
	assert.Equal(t, []string{"a", "b;c", "d"}, table.Rows[0])
}

func TestParseStripsBOM(t *testing.T) {
	plain, err := Parse("id;precio\n1;2\n", ';')
	require.NoError(t, err)

	withBOM, err := Parse("\uFEFFid;precio\n1;2\n", ';')
	require.NoError(t, err)

	assert.Equal(t, plain, withBOM)
}

func TestParseCRLF(t *testing.T) {
	table, err := Parse("id;oem\r\n10;A123\r\n11;B456\r\n", ';')
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "oem"}, table.Headers)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"10", "A123"}, table.Rows[0])
	assert.Equal(t, []string{"11", "B456"}, table.Rows[1])
}

func TestParseShortRowsNotPadded(t *testing.T) {
	table, err := Parse("id;oem;precio\n1;A\n", ';')
	require.NoError(t, err)

	require.Len(t, table.Rows, 1)
	assert.Len(t, table.Rows[0], 2)
	assert.Equal(t, "", Cell(table.Rows[0], 2))
	assert.Equal(t, "A", Cell(table.Rows[0], 1))
	assert.Equal(t, "", Cell(table.Rows[0], -1))
}

func TestParseTrimsFields(t *testing.T) {
	table, err := Parse("id ; oem \n 1 ;  A123  \n", ';')
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "oem"}, table.Headers)
	assert.Equal(t, []string{"1", "A123"}, table.Rows[0])
}

func TestParseTooFewLines(t *testing.T) {
	_, err := Parse("id;oem\n", ';')
	assert.ErrorIs(t, err, ErrTooFewLines)

	_, err = Parse("", ';')
	assert.ErrorIs(t, err, ErrTooFewLines)

	_, err = Parse("id;oem\n\n\n", ';')
	assert.ErrorIs(t, err, ErrTooFewLines)
}

func TestSniff(t *testing.T) {
	table, delim, err := Sniff("ref;precio\nA1;10,5\n")
	require.NoError(t, err)

	assert.Equal(t, ';', delim)
	assert.Equal(t, []string{"ref", "precio"}, table.Headers)
}
