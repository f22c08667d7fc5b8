package repository

import (
	"context"
	"time"

	"github.com/tu-usuario/facturacion-sii/internal/domain/entity"
)

// DTERepository es el almacén de documentos emitidos, indexado por
// (tipo, folio). Solo-agregado: un DTE firmado nunca se reescribe, solo se
// le anotan estado de envío o marca de anulación.
type DTERepository interface {
	// Save persiste un documento recién firmado.
	Save(ctx context.Context, dte *entity.DTE) error

	// GetByTipoYFolio retorna el documento, o nil, nil si no existe.
	GetByTipoYFolio(ctx context.Context, tipoDTE int, folio int64) (*entity.DTE, error)

	// ListByPeriodo retorna los documentos cuya fecha de emisión cae en
	// [desde, hasta], de todos los tipos, ordenados por tipo y folio.
	ListByPeriodo(ctx context.Context, desde, hasta time.Time) ([]*entity.DTE, error)

	// MarcarAnulado marca el folio como anulado para los reportes periódicos.
	MarcarAnulado(ctx context.Context, tipoDTE int, folio int64) error

	// SetTrackID anota el identificador devuelto por el transporte.
	SetTrackID(ctx context.Context, tipoDTE int, folio int64, trackID string) error
}
