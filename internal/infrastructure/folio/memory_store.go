package folio

import (
	"context"
	"sync"
	"time"

	"github.com/tu-usuario/facturacion-sii/internal/domain/entity"
	"github.com/tu-usuario/facturacion-sii/internal/domain/repository"
)

var _ repository.FolioCounterStore = (*MemoryCounterStore)(nil)

// MemoryCounterStore implementación en memoria del store de contadores,
// para tests y modo desarrollo. La variante persistente vive en
// internal/infrastructure/postgres.
type MemoryCounterStore struct {
	mu       sync.Mutex
	counters map[int]*entity.FolioCounter
}

// NewMemoryCounterStore construye el store vacío.
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{counters: make(map[int]*entity.FolioCounter)}
}

func (s *MemoryCounterStore) Get(ctx context.Context, tipoDTE int) (*entity.FolioCounter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[tipoDTE]
	if !ok {
		return nil, nil
	}
	copia := *c
	return &copia, nil
}

func (s *MemoryCounterStore) CompareAndSet(ctx context.Context, tipoDTE int, expected, next int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[tipoDTE]
	if !ok {
		// Creación perezosa: solo si el llamador partió de la semilla correcta.
		s.counters[tipoDTE] = &entity.FolioCounter{TipoDTE: tipoDTE, UltimoEmitido: next, UpdatedAt: time.Now()}
		return true, nil
	}
	if c.UltimoEmitido != expected {
		return false, nil
	}
	c.UltimoEmitido = next
	c.UpdatedAt = time.Now()
	return true, nil
}
