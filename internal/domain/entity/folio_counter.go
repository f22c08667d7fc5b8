package entity

import "time"

// FolioCounter es la marca de agua de folios emitidos por tipo de documento.
// Persistente, uno por tipo; se crea perezosamente en la primera asignación
// (sembrado en Desde-1), solo lo muta el asignador y nunca se borra
// (es pista de auditoría). Invariantes: monotónicamente no decreciente y
// nunca mayor que el último folio del rango autorizado.
type FolioCounter struct {
	TipoDTE      int
	UltimoEmitido int64
	UpdatedAt    time.Time
}
