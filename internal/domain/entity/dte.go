package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de un DTE dentro del emisor.
const (
	DTEStatusEmitido = "EMITIDO" // Firmado y persistido, pendiente de envío
	DTEStatusEnviado = "ENVIADO" // Aceptado por el colaborador de transporte (con TrackID)
	DTEStatusAnulado = "ANULADO" // Anulado vía nota de crédito u operación manual
)

// Party identifica a un participante del documento (emisor o receptor).
type Party struct {
	RUT         string // Formato "cuerpo-DV"
	RazonSocial string
	Giro        string
	Direccion   string
	Comuna      string
	Correo      string // Contacto; obligatorio en boletas nominativas
}

// LineItem es una línea de detalle. Cantidad y precio son entrada del
// llamador; MontoItem es derivado por el calculador de totales y siempre
// en pesos enteros (sin centavos).
type LineItem struct {
	NroLinea  int
	Nombre    string
	Cantidad  decimal.Decimal
	Precio    decimal.Decimal // Precio unitario, CLP
	Descuento int64           // Monto de descuento de la línea, CLP
	Recargo   int64           // Monto de recargo de la línea, CLP
	Exento    bool
	MontoItem int64 // Derivado: round(Cantidad*Precio) - Descuento + Recargo
}

// Totales montos del documento, derivados por completo de las líneas.
// Invariante para tipos con desglose: Neto + IVA + Exento == Total, exacto.
type Totales struct {
	Neto      int64
	IVA       int64
	TasaIVA   int64 // Puntos porcentuales (19); 0 si el tipo no desglosa
	Exento    int64
	Descuento int64
	Recargo   int64
	Total     int64
}

// Referencia cita a un documento original (notas de crédito/débito, guías).
type Referencia struct {
	NroLinea   int
	TipoDocRef int
	FolioRef   int64
	FechaRef   time.Time
	CodigoRef  int // Código de referencia (1=anula, 2=corrige texto, 3=corrige monto)
	RazonRef   string
}

// Transporte datos de traslado para guías de despacho (tipo 52).
type Transporte struct {
	Patente      string
	RUTChofer    string
	NombreChofer string
	DirDestino   string
	CmnaDestino  string
	IndTraslado  int
}

// DTE es el documento tributario electrónico. Lo crea el ensamblador;
// Timbre y XMLFirmado los llenan etapas posteriores y son de solo-agregado:
// una vez firmado, el documento es inmutable (cualquier cambio exige
// regenerar timbre y firma, nunca parcharlos).
type DTE struct {
	ID           string // UUID interno del almacén
	TipoDTE      int
	Folio        int64
	FechaEmision time.Time
	Emisor       Party
	Receptor     Party
	Detalle      []LineItem
	Totales      Totales
	Referencias  []Referencia
	Transporte   *Transporte // Solo guías de despacho

	// Condiciones de pago (facturas)
	FormaPago        int // 1=contado, 2=crédito; 0 = omitir
	FechaVencimiento *time.Time

	Timbre     []byte // Nodo <TED> completo, generado por el timbrador
	XMLFirmado []byte // Documento final firmado, ISO-8859-1

	Status    string
	Anulado   bool   // Marcado para el consumo de folios / libro
	TrackID   string // Identificador devuelto por el colaborador de transporte
	CreatedAt time.Time
	UpdatedAt time.Time
}
