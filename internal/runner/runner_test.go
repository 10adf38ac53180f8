package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desguapro/stock-cli/internal/mapping"
)

const sampleCSV = "Ref.ID;Ref.OEM;Articulo;Precio\n" +
	"1;OEM-1;Motor;120,50\n" +
	"2;OEM-2;Faro;30\n" +
	"3;;Puerta;45\n"

func TestPrepare(t *testing.T) {
	prep, err := Prepare(sampleCSV, Options{})
	require.NoError(t, err)

	assert.Equal(t, ';', prep.Delimiter)
	assert.Equal(t, "Ref.ID", prep.Mapping.ID)
	require.Len(t, prep.Items, 2)
	assert.Equal(t, 1, prep.Excluded) // row 3 has no OEM
	assert.Equal(t, "MOTOR", prep.Items[0].PartType)
	assert.InDelta(t, 120.5, prep.Items[0].Price, 1e-9)
}

func TestPrepareLimit(t *testing.T) {
	prep, err := Prepare(sampleCSV, Options{Limit: 1})
	require.NoError(t, err)
	require.Len(t, prep.Items, 1)
	assert.Equal(t, "1", prep.Items[0].RefID)
}

func TestPrepareMapOverride(t *testing.T) {
	csv := "Columna1;Ref.OEM;Articulo;Precio\nX9;OEM-1;Motor;10\n"

	_, err := Prepare(csv, Options{})
	assert.ErrorIs(t, err, ErrIncompleteMapping)

	prep, err := Prepare(csv, Options{
		MapOverrides: map[mapping.Field]string{mapping.FieldID: "Columna1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "X9", prep.Items[0].RefID)
}

func TestPrepareExclusions(t *testing.T) {
	prep, err := Prepare(sampleCSV, Options{
		ExcludePartTypes: []string{"motor"},
		ExcludeIDs:       []string{"2"},
	})
	require.NoError(t, err)

	assert.Empty(t, prep.Items)
	assert.Equal(t, 3, prep.Excluded)
}

func TestPrepareRejectsHeaderOnlyFile(t *testing.T) {
	_, err := Prepare("Ref.ID;Ref.OEM;Articulo;Precio\n", Options{})
	assert.Error(t, err)
}

func TestParseMapOverrides(t *testing.T) {
	overrides, err := ParseMapOverrides([]string{"id=Columna1", "price = Precio PVP"})
	require.NoError(t, err)
	assert.Equal(t, "Columna1", overrides[mapping.FieldID])
	assert.Equal(t, "Precio PVP", overrides[mapping.FieldPrice])

	_, err = ParseMapOverrides([]string{"noexiste=X"})
	assert.Error(t, err)

	_, err = ParseMapOverrides([]string{"sinigual"})
	assert.Error(t, err)

	none, err := ParseMapOverrides(nil)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestExcludedIDsFromCSV(t *testing.T) {
	csv := "Ref;Fecha\nA1;2026-01-01\nB2;2026-02-01\n"

	ids, err := ExcludedIDsFromCSV(csv, "Ref")
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "B2"}, ids)

	// Defaults to the first column.
	ids, err = ExcludedIDsFromCSV(csv, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "B2"}, ids)

	_, err = ExcludedIDsFromCSV(csv, "NoExiste")
	assert.Error(t, err)
}
