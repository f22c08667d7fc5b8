package caf

import (
	"sync"

	"github.com/tu-usuario/facturacion-sii/internal/domain/entity"
	"github.com/tu-usuario/facturacion-sii/pkg/config"
)

// DirSource resuelve el CAF de cada tipo de documento desde el directorio
// configurado (caf_<tipo>.xml). Cachea el parseo: el rango es inmutable
// mientras no se reemplace el archivo por uno nuevo.
type DirSource struct {
	cfg config.SIIConfig

	mu    sync.Mutex
	cache map[int]*entity.FolioRange
}

// NewDirSource construye la fuente de rangos sobre el directorio de CAF.
func NewDirSource(cfg config.SIIConfig) *DirSource {
	return &DirSource{cfg: cfg, cache: make(map[int]*entity.FolioRange)}
}

// Range retorna el rango autorizado para el tipo, parseando el archivo la
// primera vez. Propaga ErrCafFaltante si el archivo no existe o es inválido.
func (s *DirSource) Range(tipoDTE int) (*entity.FolioRange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.cache[tipoDTE]; ok {
		return r, nil
	}
	r, err := ReadFile(s.cfg.CafPath(tipoDTE))
	if err != nil {
		return nil, err
	}
	s.cache[tipoDTE] = r
	return r, nil
}

// Invalidate descarta el rango cacheado de un tipo (tras cargar un CAF nuevo).
func (s *DirSource) Invalidate(tipoDTE int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, tipoDTE)
}
