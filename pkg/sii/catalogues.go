// Package sii contiene catálogos y validaciones alineados al formato de
// Documentos Tributarios Electrónicos del SII (Chile).
package sii

// =============================================================================
// Tipos de DTE (Res. Ex. SII — tabla de tipos de documento)
// =============================================================================

const (
	DTEFactura       = 33 // Factura electrónica afecta
	DTEFacturaExenta = 34 // Factura electrónica exenta
	DTEBoleta        = 39 // Boleta electrónica afecta
	DTEBoletaExenta  = 41 // Boleta electrónica exenta
	DTEGuiaDespacho  = 52 // Guía de despacho electrónica
	DTENotaDebito    = 56 // Nota de débito electrónica
	DTENotaCredito   = 61 // Nota de crédito electrónica
)

// ValidDTETypes tipos de documento que este emisor sabe construir.
var ValidDTETypes = map[int]bool{
	DTEFactura: true, DTEFacturaExenta: true,
	DTEBoleta: true, DTEBoletaExenta: true,
	DTEGuiaDespacho: true, DTENotaDebito: true, DTENotaCredito: true,
}

// IsExemptType indica si el tipo de documento es íntegramente exento de IVA:
// sus totales solo llevan MntExe y MntTotal.
func IsExemptType(tipoDTE int) bool {
	return tipoDTE == DTEFacturaExenta || tipoDTE == DTEBoletaExenta
}

// RequiresTaxBreakdown indica si el tipo exige desglose MntNeto/IVA en los totales.
// La guía de despacho (52) solo informa MntTotal.
func RequiresTaxBreakdown(tipoDTE int) bool {
	switch tipoDTE {
	case DTEFactura, DTEBoleta, DTENotaDebito, DTENotaCredito:
		return true
	}
	return false
}

// IsBoleta indica si el tipo corresponde a una boleta de consumidor final.
func IsBoleta(tipoDTE int) bool {
	return tipoDTE == DTEBoleta || tipoDTE == DTEBoletaExenta
}

// IsNotaCredito indica si el tipo es nota de crédito (resta en los libros).
func IsNotaCredito(tipoDTE int) bool {
	return tipoDTE == DTENotaCredito
}

// =============================================================================
// IVA
// =============================================================================

// TasaIVA tasa vigente del Impuesto al Valor Agregado, en puntos porcentuales.
const TasaIVA = 19

// =============================================================================
// Formas de pago (tag <FmaPago> del IdDoc)
// =============================================================================

const (
	PagoContado = 1 // Contado
	PagoCredito = 2 // Crédito
	PagoGratis  = 3 // Sin costo (entrega gratuita)
)

// =============================================================================
// Tipos de traslado para guías de despacho (tag <IndTraslado>)
// =============================================================================

const (
	TrasladoVenta          = 1 // Operación constituye venta
	TrasladoInterno        = 5 // Traslado interno
	TrasladoOtrosNoVenta   = 6 // Otros traslados no venta
	TrasladoDevolucion     = 7 // Guía de devolución
)

// =============================================================================
// Códigos de referencia (tag <CodRef> de notas de crédito/débito)
// =============================================================================

const (
	RefAnula           = 1 // Anula documento de referencia
	RefCorrigeTexto    = 2 // Corrige texto del documento de referencia
	RefCorrigeMonto    = 3 // Corrige montos
)

// RUTReceptorGenerico receptor para boletas sin identificación del comprador.
const RUTReceptorGenerico = "66666666-6"
