package dte

import (
	"sort"

	"github.com/tu-usuario/facturacion-sii/internal/domain/entity"
)

// ComprimirFolios reduce un conjunto de folios a los tramos contiguos
// mínimos [Inicial, Final], ordenados ascendente. Un tramo nuevo comienza
// cada vez que el siguiente folio no es exactamente el anterior + 1.
// Los folios repetidos se colapsan.
func ComprimirFolios(folios []int64) []entity.RangoFolios {
	if len(folios) == 0 {
		return nil
	}
	ordenados := append([]int64(nil), folios...)
	sort.Slice(ordenados, func(i, j int) bool { return ordenados[i] < ordenados[j] })

	var rangos []entity.RangoFolios
	actual := entity.RangoFolios{Inicial: ordenados[0], Final: ordenados[0]}
	for _, f := range ordenados[1:] {
		switch {
		case f == actual.Final: // duplicado
		case f == actual.Final+1:
			actual.Final = f
		default:
			rangos = append(rangos, actual)
			actual = entity.RangoFolios{Inicial: f, Final: f}
		}
	}
	return append(rangos, actual)
}

// ExpandirRangos es la inversa de ComprimirFolios: reconstruye el listado
// de folios individuales a partir de los tramos.
func ExpandirRangos(rangos []entity.RangoFolios) []int64 {
	var folios []int64
	for _, r := range rangos {
		for f := r.Inicial; f <= r.Final; f++ {
			folios = append(folios, f)
		}
	}
	return folios
}

// FoliosSinUsar calcula los folios nunca tocados dentro del tramo
// [min(usados), max(usados)]. Con menos de dos folios usados no hay huecos
// posibles y retorna vacío.
func FoliosSinUsar(usados []int64) []int64 {
	if len(usados) < 2 {
		return nil
	}
	ordenados := append([]int64(nil), usados...)
	sort.Slice(ordenados, func(i, j int) bool { return ordenados[i] < ordenados[j] })

	var huecos []int64
	for i := 1; i < len(ordenados); i++ {
		for f := ordenados[i-1] + 1; f < ordenados[i]; f++ {
			huecos = append(huecos, f)
		}
	}
	return huecos
}
