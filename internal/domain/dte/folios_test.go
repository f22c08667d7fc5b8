package dte_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tu-usuario/facturacion-sii/internal/domain/dte"
	"github.com/tu-usuario/facturacion-sii/internal/domain/entity"
)

// TestComprimirFolios_Tramos verifica la compresión de folios dispersos en
// tramos contiguos mínimos, incluidos tramos de un solo folio.
func TestComprimirFolios_Tramos(t *testing.T) {
	casos := []struct {
		nombre   string
		folios   []int64
		esperado []entity.RangoFolios
	}{
		{"vacío", nil, nil},
		{"uno solo", []int64{7}, []entity.RangoFolios{{Inicial: 7, Final: 7}}},
		{"contiguos", []int64{5, 6, 7}, []entity.RangoFolios{{Inicial: 5, Final: 7}}},
		{
			"con hueco",
			[]int64{5, 6, 7, 9},
			[]entity.RangoFolios{{Inicial: 5, Final: 7}, {Inicial: 9, Final: 9}},
		},
		{
			"desordenados y duplicados",
			[]int64{9, 5, 7, 6, 5, 12},
			[]entity.RangoFolios{{Inicial: 5, Final: 7}, {Inicial: 9, Final: 9}, {Inicial: 12, Final: 12}},
		},
	}

	for _, c := range casos {
		t.Run(c.nombre, func(t *testing.T) {
			assert.Equal(t, c.esperado, dte.ComprimirFolios(c.folios))
		})
	}
}

// TestExpandirRangos_EsInversa expandir la compresión reproduce exactamente
// el conjunto original (ordenado, sin duplicados).
func TestExpandirRangos_EsInversa(t *testing.T) {
	original := []int64{1, 2, 3, 10, 15, 16, 40}
	rangos := dte.ComprimirFolios(original)
	assert.Equal(t, original, dte.ExpandirRangos(rangos))
}

// TestFoliosSinUsar_Huecos calcula los folios nunca tocados entre el mínimo
// y el máximo usados.
func TestFoliosSinUsar_Huecos(t *testing.T) {
	casos := []struct {
		nombre   string
		usados   []int64
		esperado []int64
	}{
		{"vacío", nil, nil},
		{"uno solo", []int64{5}, nil},
		{"sin huecos", []int64{5, 6, 7, 8, 9}, nil},
		{"un hueco", []int64{5, 6, 7, 9}, []int64{8}},
		{"varios huecos", []int64{1, 4, 8}, []int64{2, 3, 5, 6, 7}},
	}

	for _, c := range casos {
		t.Run(c.nombre, func(t *testing.T) {
			assert.Equal(t, c.esperado, dte.FoliosSinUsar(c.usados))
		})
	}
}

// TestEscenarioConsumoFolios reproduce el caso de un período con folios
// emitidos {5,6,7,9} y anulado {8}: emitidos [(5,7),(9,9)], anulados [(8,8)],
// utilizados [(5,9)], sin usar [].
func TestEscenarioConsumoFolios(t *testing.T) {
	emitidos := []int64{5, 6, 7, 9}
	anulados := []int64{8}
	usados := append(append([]int64(nil), emitidos...), anulados...)

	assert.Equal(t,
		[]entity.RangoFolios{{Inicial: 5, Final: 7}, {Inicial: 9, Final: 9}},
		dte.ComprimirFolios(emitidos))
	assert.Equal(t,
		[]entity.RangoFolios{{Inicial: 8, Final: 8}},
		dte.ComprimirFolios(anulados))
	assert.Equal(t,
		[]entity.RangoFolios{{Inicial: 5, Final: 9}},
		dte.ComprimirFolios(usados))
	assert.Empty(t, dte.FoliosSinUsar(usados))
}
