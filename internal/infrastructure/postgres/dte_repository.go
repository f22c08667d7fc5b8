package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tu-usuario/facturacion-sii/internal/domain"
	"github.com/tu-usuario/facturacion-sii/internal/domain/entity"
	"github.com/tu-usuario/facturacion-sii/internal/domain/repository"
)

var _ repository.DTERepository = (*DTERepo)(nil)

// DTERepo implementa DTERepository sobre PostgreSQL. Las partes estructuradas
// del documento (emisor, receptor, detalle, totales, referencias, transporte)
// se guardan como JSONB: el documento legal es el XML firmado en bytea, las
// columnas JSONB existen para los reportes periódicos y la consulta.
//
// Esquema:
//
//	CREATE TABLE dtes (
//	    id                UUID PRIMARY KEY,
//	    tipo_dte          INT NOT NULL,
//	    folio             BIGINT NOT NULL,
//	    fecha_emision     DATE NOT NULL,
//	    emisor            JSONB NOT NULL,
//	    receptor          JSONB NOT NULL,
//	    detalle           JSONB NOT NULL,
//	    totales           JSONB NOT NULL,
//	    referencias       JSONB,
//	    transporte        JSONB,
//	    forma_pago        INT NOT NULL DEFAULT 0,
//	    fecha_vencimiento DATE,
//	    timbre            BYTEA,
//	    xml_firmado       BYTEA,
//	    status            TEXT NOT NULL,
//	    anulado           BOOLEAN NOT NULL DEFAULT false,
//	    track_id          TEXT NOT NULL DEFAULT '',
//	    created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    UNIQUE (tipo_dte, folio)
//	);
type DTERepo struct {
	pool *pgxpool.Pool
}

// NewDTERepository construye el repositorio.
func NewDTERepository(pool *pgxpool.Pool) *DTERepo {
	return &DTERepo{pool: pool}
}

func (r *DTERepo) Save(ctx context.Context, dte *entity.DTE) error {
	if dte.ID == "" {
		dte.ID = uuid.NewString()
	}

	emisor, receptor, detalle, totales, referencias, transporte, err := marshalDTE(dte)
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO dtes
			(id, tipo_dte, folio, fecha_emision, emisor, receptor, detalle, totales,
			 referencias, transporte, forma_pago, fecha_vencimiento, timbre, xml_firmado,
			 status, anulado, track_id, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, now(), now())`
	_, err = r.pool.Exec(ctx, q,
		dte.ID, dte.TipoDTE, dte.Folio, dte.FechaEmision,
		emisor, receptor, detalle, totales, referencias, transporte,
		dte.FormaPago, dte.FechaVencimiento, dte.Timbre, dte.XMLFirmado,
		dte.Status, dte.Anulado, dte.TrackID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			// Un folio nunca se reutiliza: si ya existe, algo saltó la marca de agua
			return fmt.Errorf("%w: folio %d del tipo %d ya persistido", domain.ErrEnsamblaje, dte.Folio, dte.TipoDTE)
		}
		return fmt.Errorf("insert dte: %w", err)
	}
	return nil
}

func (r *DTERepo) GetByTipoYFolio(ctx context.Context, tipoDTE int, folio int64) (*entity.DTE, error) {
	const q = selectDTE + ` WHERE tipo_dte = $1 AND folio = $2`
	dte, err := scanDTE(r.pool.QueryRow(ctx, q, tipoDTE, folio))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get dte by tipo y folio: %w", err)
	}
	return dte, nil
}

func (r *DTERepo) ListByPeriodo(ctx context.Context, desde, hasta time.Time) ([]*entity.DTE, error) {
	const q = selectDTE + `
		WHERE fecha_emision BETWEEN $1 AND $2
		ORDER BY tipo_dte, folio`
	rows, err := r.pool.Query(ctx, q, desde, hasta)
	if err != nil {
		return nil, fmt.Errorf("list dtes por periodo: %w", err)
	}
	defer rows.Close()
	var list []*entity.DTE
	for rows.Next() {
		dte, err := scanDTE(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dte: %w", err)
		}
		list = append(list, dte)
	}
	return list, rows.Err()
}

func (r *DTERepo) MarcarAnulado(ctx context.Context, tipoDTE int, folio int64) error {
	const q = `
		UPDATE dtes SET anulado = true, status = $3, updated_at = now()
		WHERE tipo_dte = $1 AND folio = $2`
	tag, err := r.pool.Exec(ctx, q, tipoDTE, folio, entity.DTEStatusAnulado)
	if err != nil {
		return fmt.Errorf("marcar dte anulado: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("marcar dte anulado: no existe folio %d del tipo %d", folio, tipoDTE)
	}
	return nil
}

func (r *DTERepo) SetTrackID(ctx context.Context, tipoDTE int, folio int64, trackID string) error {
	const q = `
		UPDATE dtes SET track_id = $3, status = $4, updated_at = now()
		WHERE tipo_dte = $1 AND folio = $2`
	tag, err := r.pool.Exec(ctx, q, tipoDTE, folio, trackID, entity.DTEStatusEnviado)
	if err != nil {
		return fmt.Errorf("set track_id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set track_id: no existe folio %d del tipo %d", folio, tipoDTE)
	}
	return nil
}

// ── helpers ───────────────────────────────────────────────────────────────────

const selectDTE = `
	SELECT id, tipo_dte, folio, fecha_emision, emisor, receptor, detalle, totales,
	       referencias, transporte, forma_pago, fecha_vencimiento, timbre, xml_firmado,
	       status, anulado, track_id, created_at, updated_at
	FROM dtes`

// pgxScanner abstrae pgx.Row y pgx.Rows para reutilizar scanDTE.
type pgxScanner interface {
	Scan(dest ...any) error
}

func marshalDTE(dte *entity.DTE) (emisor, receptor, detalle, totales, referencias, transporte []byte, err error) {
	if emisor, err = json.Marshal(dte.Emisor); err != nil {
		return nil, nil, nil, nil, nil, nil, fmt.Errorf("marshal emisor: %w", err)
	}
	if receptor, err = json.Marshal(dte.Receptor); err != nil {
		return nil, nil, nil, nil, nil, nil, fmt.Errorf("marshal receptor: %w", err)
	}
	if detalle, err = json.Marshal(dte.Detalle); err != nil {
		return nil, nil, nil, nil, nil, nil, fmt.Errorf("marshal detalle: %w", err)
	}
	if totales, err = json.Marshal(dte.Totales); err != nil {
		return nil, nil, nil, nil, nil, nil, fmt.Errorf("marshal totales: %w", err)
	}
	if len(dte.Referencias) > 0 {
		if referencias, err = json.Marshal(dte.Referencias); err != nil {
			return nil, nil, nil, nil, nil, nil, fmt.Errorf("marshal referencias: %w", err)
		}
	}
	if dte.Transporte != nil {
		if transporte, err = json.Marshal(dte.Transporte); err != nil {
			return nil, nil, nil, nil, nil, nil, fmt.Errorf("marshal transporte: %w", err)
		}
	}
	return emisor, receptor, detalle, totales, referencias, transporte, nil
}

func scanDTE(row pgxScanner) (*entity.DTE, error) {
	var (
		dte         entity.DTE
		emisor      []byte
		receptor    []byte
		detalle     []byte
		totales     []byte
		referencias []byte
		transporte  []byte
	)
	err := row.Scan(
		&dte.ID, &dte.TipoDTE, &dte.Folio, &dte.FechaEmision,
		&emisor, &receptor, &detalle, &totales, &referencias, &transporte,
		&dte.FormaPago, &dte.FechaVencimiento, &dte.Timbre, &dte.XMLFirmado,
		&dte.Status, &dte.Anulado, &dte.TrackID, &dte.CreatedAt, &dte.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(emisor, &dte.Emisor); err != nil {
		return nil, fmt.Errorf("unmarshal emisor: %w", err)
	}
	if err := json.Unmarshal(receptor, &dte.Receptor); err != nil {
		return nil, fmt.Errorf("unmarshal receptor: %w", err)
	}
	if err := json.Unmarshal(detalle, &dte.Detalle); err != nil {
		return nil, fmt.Errorf("unmarshal detalle: %w", err)
	}
	if err := json.Unmarshal(totales, &dte.Totales); err != nil {
		return nil, fmt.Errorf("unmarshal totales: %w", err)
	}
	if len(referencias) > 0 {
		if err := json.Unmarshal(referencias, &dte.Referencias); err != nil {
			return nil, fmt.Errorf("unmarshal referencias: %w", err)
		}
	}
	if len(transporte) > 0 {
		dte.Transporte = &entity.Transporte{}
		if err := json.Unmarshal(transporte, dte.Transporte); err != nil {
			return nil, fmt.Errorf("unmarshal transporte: %w", err)
		}
	}
	return &dte, nil
}
