package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tu-usuario/facturacion-sii/internal/domain/entity"
	"github.com/tu-usuario/facturacion-sii/internal/domain/repository"
)

var _ repository.FolioCounterStore = (*FolioCounterRepo)(nil)

// FolioCounterRepo implementa FolioCounterStore sobre PostgreSQL.
//
// Esquema:
//
//	CREATE TABLE folio_counters (
//	    tipo_dte       INT PRIMARY KEY,
//	    ultimo_emitido BIGINT NOT NULL,
//	    updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type FolioCounterRepo struct {
	pool *pgxpool.Pool
}

// NewFolioCounterRepository construye el repositorio.
func NewFolioCounterRepository(pool *pgxpool.Pool) *FolioCounterRepo {
	return &FolioCounterRepo{pool: pool}
}

func (r *FolioCounterRepo) Get(ctx context.Context, tipoDTE int) (*entity.FolioCounter, error) {
	const q = `
		SELECT tipo_dte, ultimo_emitido, updated_at
		FROM folio_counters WHERE tipo_dte = $1`
	var c entity.FolioCounter
	err := r.pool.QueryRow(ctx, q, tipoDTE).Scan(&c.TipoDTE, &c.UltimoEmitido, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get folio_counter: %w", err)
	}
	return &c, nil
}

// CompareAndSet avanza el contador en una sola sentencia: el INSERT cubre la
// creación perezosa y el ON CONFLICT condicionado hace de compare-and-set.
// Si otro escritor avanzó primero, la cláusula WHERE no calza y no se afecta
// ninguna fila.
func (r *FolioCounterRepo) CompareAndSet(ctx context.Context, tipoDTE int, expected, next int64) (bool, error) {
	const q = `
		INSERT INTO folio_counters (tipo_dte, ultimo_emitido, updated_at)
		VALUES ($1, $3, now())
		ON CONFLICT (tipo_dte) DO UPDATE
		SET ultimo_emitido = EXCLUDED.ultimo_emitido, updated_at = now()
		WHERE folio_counters.ultimo_emitido = $2`
	tag, err := r.pool.Exec(ctx, q, tipoDTE, expected, next)
	if err != nil {
		return false, fmt.Errorf("compare-and-set folio_counter: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
