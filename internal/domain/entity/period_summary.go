package entity

// RangoFolios es un tramo contiguo [Inicial, Final] de folios, la forma
// comprimida que exigen los reportes periódicos del SII.
type RangoFolios struct {
	Inicial int64
	Final   int64
}

// PeriodSummary resumen de actividad de un tipo de documento en un período.
// Lo derivan los constructores de reportes barriendo el almacén de documentos;
// un período sin movimiento igual produce un resumen en cero (el esquema del
// SII lo exige, no es un caso vacío opcional).
type PeriodSummary struct {
	TipoDTE int

	FoliosEmitidos  []int64
	FoliosAnulados  []int64
	FoliosSinUsar   []int64

	RangosEmitidos  []RangoFolios
	RangosAnulados  []RangoFolios
	RangosUtilizados []RangoFolios
	RangosSinUsar   []RangoFolios

	Neto   int64
	Exento int64
	IVA    int64
	Total  int64
}

// CantidadEmitidos folios emitidos (no anulados) del período.
func (s PeriodSummary) CantidadEmitidos() int { return len(s.FoliosEmitidos) }

// CantidadAnulados folios anulados del período.
func (s PeriodSummary) CantidadAnulados() int { return len(s.FoliosAnulados) }

// CantidadUtilizados total de folios tocados (emitidos + anulados).
func (s PeriodSummary) CantidadUtilizados() int {
	return len(s.FoliosEmitidos) + len(s.FoliosAnulados)
}
