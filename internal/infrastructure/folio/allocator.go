// Package folio implementa la asignación secuencial de folios contra el
// rango autorizado por el CAF de cada tipo de documento.
package folio

import (
	"context"
	"fmt"
	"sync"

	"github.com/tu-usuario/facturacion-sii/internal/domain"
	"github.com/tu-usuario/facturacion-sii/internal/domain/entity"
	"github.com/tu-usuario/facturacion-sii/internal/domain/repository"
	"github.com/tu-usuario/facturacion-sii/pkg/logger"
)

// RangeSource provee el rango autorizado vigente por tipo de documento.
type RangeSource interface {
	Range(tipoDTE int) (*entity.FolioRange, error)
}

// Allocator entrega el siguiente folio sin usar por tipo de documento.
// Sección crítica por tipo: dos asignaciones concurrentes del mismo tipo se
// serializan y jamás reciben el mismo folio. El contador se persiste antes
// de retornar; una falla posterior (ensamblaje, firma) no lo revierte — el
// folio queda quemado, igual que en el modelo de la autoridad: los folios
// son autorizaciones, no reservas.
type Allocator struct {
	ranges RangeSource
	store  repository.FolioCounterStore
	log    *logger.Logger

	mu    sync.Mutex
	locks map[int]*sync.Mutex
}

// NewAllocator construye el asignador.
func NewAllocator(ranges RangeSource, store repository.FolioCounterStore, log *logger.Logger) *Allocator {
	return &Allocator{
		ranges: ranges,
		store:  store,
		log:    log,
		locks:  make(map[int]*sync.Mutex),
	}
}

const maxCASAttempts = 5

// Allocate reserva y retorna el siguiente folio del tipo. Retorna
// ErrCafFaltante si no hay CAF, ErrFoliosAgotados si el rango se consumió
// (sin mutar nada).
func (a *Allocator) Allocate(ctx context.Context, tipoDTE int) (int64, error) {
	lock := a.typeLock(tipoDTE)
	lock.Lock()
	defer lock.Unlock()

	rango, err := a.ranges.Range(tipoDTE)
	if err != nil {
		return 0, err
	}

	// El lock por tipo serializa a los llamadores de este proceso; el CAS
	// contra el store cubre a otros procesos escribiendo el mismo contador.
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		ultimo, err := a.lastIssued(ctx, tipoDTE, rango)
		if err != nil {
			return 0, err
		}
		next := ultimo + 1
		if next > rango.Hasta {
			return 0, fmt.Errorf("%w: tipo %d, rango %d-%d", domain.ErrFoliosAgotados, tipoDTE, rango.Desde, rango.Hasta)
		}
		ok, err := a.store.CompareAndSet(ctx, tipoDTE, ultimo, next)
		if err != nil {
			return 0, fmt.Errorf("persistir contador de folios: %w", err)
		}
		if ok {
			a.log.Debug().Int("tipo_dte", tipoDTE).Int64("folio", next).Msg("folio asignado")
			return next, nil
		}
	}
	return 0, fmt.Errorf("persistir contador de folios tipo %d: contención persistente", tipoDTE)
}

// Peek retorna el folio que entregaría la próxima asignación, sin consumirlo.
func (a *Allocator) Peek(ctx context.Context, tipoDTE int) (int64, error) {
	rango, err := a.ranges.Range(tipoDTE)
	if err != nil {
		return 0, err
	}
	ultimo, err := a.lastIssued(ctx, tipoDTE, rango)
	if err != nil {
		return 0, err
	}
	next := ultimo + 1
	if next > rango.Hasta {
		return 0, fmt.Errorf("%w: tipo %d, rango %d-%d", domain.ErrFoliosAgotados, tipoDTE, rango.Desde, rango.Hasta)
	}
	return next, nil
}

// Consume registra un folio asignado fuera de banda (conciliación manual).
// Solo acepta exactamente el siguiente folio del rango; cualquier otro valor
// es un no-op que retorna false, para impedir correcciones fuera de orden.
func (a *Allocator) Consume(ctx context.Context, tipoDTE int, folio int64) (bool, error) {
	lock := a.typeLock(tipoDTE)
	lock.Lock()
	defer lock.Unlock()

	rango, err := a.ranges.Range(tipoDTE)
	if err != nil {
		return false, err
	}
	if !rango.Contains(folio) {
		return false, nil
	}
	ultimo, err := a.lastIssued(ctx, tipoDTE, rango)
	if err != nil {
		return false, err
	}
	if folio != ultimo+1 {
		return false, nil
	}
	ok, err := a.store.CompareAndSet(ctx, tipoDTE, ultimo, folio)
	if err != nil {
		return false, fmt.Errorf("persistir contador de folios: %w", err)
	}
	return ok, nil
}

// lastIssued lee la marca de agua persistida; si el contador aún no existe,
// la semilla es Desde-1 (se materializa recién en el primer CAS).
func (a *Allocator) lastIssued(ctx context.Context, tipoDTE int, rango *entity.FolioRange) (int64, error) {
	counter, err := a.store.Get(ctx, tipoDTE)
	if err != nil {
		return 0, fmt.Errorf("leer contador de folios: %w", err)
	}
	if counter == nil {
		return rango.Desde - 1, nil
	}
	return counter.UltimoEmitido, nil
}

func (a *Allocator) typeLock(tipoDTE int) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	lock, ok := a.locks[tipoDTE]
	if !ok {
		lock = &sync.Mutex{}
		a.locks[tipoDTE] = lock
	}
	return lock
}
