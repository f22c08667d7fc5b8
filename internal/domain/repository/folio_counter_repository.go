package repository

import (
	"context"

	"github.com/tu-usuario/facturacion-sii/internal/domain/entity"
)

// FolioCounterStore persiste la marca de agua de folios por tipo de documento.
// El asignador es el único escritor; el store solo debe garantizar que el
// avance del contador sea atómico (compare-and-set) para que dos asignaciones
// concurrentes jamás observen el mismo folio.
type FolioCounterStore interface {
	// Get retorna el contador del tipo, o nil, nil si aún no existe.
	Get(ctx context.Context, tipoDTE int) (*entity.FolioCounter, error)

	// CompareAndSet avanza el contador a next solo si su valor actual es
	// expected; si el contador no existe, lo crea con next (creación
	// perezosa desde la semilla Desde-1, que calcula el asignador). Retorna
	// false sin mutar nada cuando otro escritor ganó la carrera.
	CompareAndSet(ctx context.Context, tipoDTE int, expected, next int64) (bool, error)
}
