// Package dte contiene las reglas de cálculo puras de los documentos
// tributarios: totales con conciliación de redondeo y compresión de rangos
// de folios. Sin dependencias de infraestructura.
package dte

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tu-usuario/facturacion-sii/internal/domain"
	"github.com/tu-usuario/facturacion-sii/internal/domain/entity"
	"github.com/tu-usuario/facturacion-sii/pkg/sii"
)

var (
	cien    = decimal.NewFromInt(100)
	tasaIVA = decimal.NewFromInt(sii.TasaIVA).Div(cien) // 0.19
	unoMasTasa = decimal.NewFromInt(1).Add(tasaIVA)     // 1.19
)

// CalcularTotales deriva los montos del documento a partir de las líneas.
// Muta las líneas recibidas: asigna NroLinea y el MontoItem derivado
// (redondeo a peso entero). El IVA se calcula línea a línea y la diferencia
// de redondeo resultante se imputa íntegra a la última línea afecta, de modo
// que Neto + IVA + Exento == Total se cumple exacto siempre: el validador
// del SII rechaza el documento si la identidad no calza al peso.
func CalcularTotales(tipoDTE int, lineas []entity.LineItem, receptor entity.Party, umbralNominativa int64) (entity.Totales, error) {
	var t entity.Totales

	var neto, iva, exento, total int64
	ultimaAfecta := -1

	for i := range lineas {
		l := &lineas[i]
		l.NroLinea = i + 1

		bruto := l.Cantidad.Mul(l.Precio).Round(0).IntPart()
		l.MontoItem = bruto - l.Descuento + l.Recargo

		t.Descuento += l.Descuento
		t.Recargo += l.Recargo
		total += l.MontoItem

		if l.Exento || sii.IsExemptType(tipoDTE) {
			exento += l.MontoItem
			continue
		}
		// Desglose provisional por línea: neto = round(monto/1.19), iva = round(neto*0.19)
		netoLinea := decimal.NewFromInt(l.MontoItem).Div(unoMasTasa).Round(0).IntPart()
		ivaLinea := decimal.NewFromInt(netoLinea).Mul(tasaIVA).Round(0).IntPart()
		neto += netoLinea
		iva += ivaLinea
		ultimaAfecta = i
	}

	// Conciliación de redondeo: las líneas se redondean de forma
	// independiente, así que neto+iva puede diferir de total-exento en ±1.
	// La diferencia completa va al neto, imputada a la última línea afecta.
	if ultimaAfecta >= 0 {
		if delta := (total - exento) - (neto + iva); delta != 0 {
			neto += delta
		}
	}

	t.Total = total

	switch {
	case sii.IsExemptType(tipoDTE):
		// Documento íntegramente exento: solo MntExe, igual al total.
		t.Exento = total
	case sii.RequiresTaxBreakdown(tipoDTE):
		t.Neto = neto
		t.IVA = iva
		t.TasaIVA = sii.TasaIVA
		t.Exento = exento
	default:
		// Guías de despacho y similares: solo monto total.
	}

	// Boletas de alto monto exigen receptor plenamente identificado
	// (aproximación del tope legal expresado en UF).
	if sii.IsBoleta(tipoDTE) && umbralNominativa > 0 && total > umbralNominativa {
		if !receptorIdentificado(receptor) {
			return entity.Totales{}, domain.ErrBoletaNominativaRequerida
		}
	}

	return t, nil
}

// receptorIdentificado exige RUT real (no el genérico de consumidor final)
// y un correo de contacto.
func receptorIdentificado(r entity.Party) bool {
	rut := strings.TrimSpace(r.RUT)
	if rut == "" || sii.NormalizeRUT(rut) == sii.RUTReceptorGenerico {
		return false
	}
	return strings.TrimSpace(r.Correo) != ""
}
