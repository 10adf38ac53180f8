package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAutoMap(t *testing.T) {
	m := AutoMap([]string{"Ref.ID", "Ref.OEM", "Articulo", "Precio"})

	assert.Equal(t, "Ref.ID", m.ID)
	assert.Equal(t, "Ref.OEM", m.OEM)
	assert.Equal(t, "", m.OE)
	assert.Equal(t, "Articulo", m.PartType)
	assert.Equal(t, "Precio", m.Price)
}

func TestAutoMapSpanishAccents(t *testing.T) {
	m := AutoMap([]string{"Código", "Referencia OEM", "Tipo Pieza", "Precio Venta"})

	assert.Equal(t, "Código", m.ID)
	assert.Equal(t, "Referencia OEM", m.OEM)
	assert.Equal(t, "Tipo Pieza", m.PartType)
	assert.Equal(t, "Precio Venta", m.Price)
}

func TestAutoMapOENotClaimingOEM(t *testing.T) {
	// An OEM column must never satisfy the shorter OE patterns.
	m := AutoMap([]string{"Ref.OEM", "Ref.OE", "Precio"})

	assert.Equal(t, "Ref.OEM", m.OEM)
	assert.Equal(t, "Ref.OE", m.OE)
}

func TestAutoMapPatternPriority(t *testing.T) {
	// "ref_id" outranks the bare "id" pattern even when an id-ish column
	// comes first in the file.
	m := AutoMap([]string{"Codigo", "Ref.ID"})
	assert.Equal(t, "Ref.ID", m.ID)
}

func TestAutoMapUnmatchedFieldsStayEmpty(t *testing.T) {
	m := AutoMap([]string{"columna_a", "columna_b"})

	assert.Equal(t, Mapping{}, m)
	assert.False(t, m.Valid())
}

func TestAutoMapDeterministic(t *testing.T) {
	headers := []string{"Ref.ID", "Ref.OEM", "Articulo", "Precio"}
	assert.Equal(t, AutoMap(headers), AutoMap(headers))
}

func TestSetAllowsDuplicates(t *testing.T) {
	var m Mapping
	m.Set(FieldID, "Ref")
	m.Set(FieldOEM, "Ref")

	assert.Equal(t, "Ref", m.Get(FieldID))
	assert.Equal(t, "Ref", m.Get(FieldOEM))
}

func TestValid(t *testing.T) {
	tests := []struct {
		name string
		m    Mapping
		want bool
	}{
		{"complete", Mapping{ID: "a", OEM: "b", PartType: "c", Price: "d"}, true},
		{"oe_optional", Mapping{ID: "a", OEM: "b", OE: "", PartType: "c", Price: "d"}, true},
		{"missing_price", Mapping{ID: "a", OEM: "b", PartType: "c"}, false},
		{"missing_oem", Mapping{ID: "a", PartType: "c", Price: "d"}, false},
		{"empty", Mapping{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.m.Valid())
		})
	}
}
