package folio_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tu-usuario/facturacion-sii/internal/domain"
	"github.com/tu-usuario/facturacion-sii/internal/domain/entity"
	"github.com/tu-usuario/facturacion-sii/internal/infrastructure/folio"
	"github.com/tu-usuario/facturacion-sii/pkg/logger"
)

// rangosFijos implementa folio.RangeSource con rangos en memoria.
type rangosFijos map[int]*entity.FolioRange

func (r rangosFijos) Range(tipoDTE int) (*entity.FolioRange, error) {
	rango, ok := r[tipoDTE]
	if !ok {
		return nil, domain.ErrCafFaltante
	}
	return rango, nil
}

func nuevoAsignador(rangos rangosFijos) (*folio.Allocator, *folio.MemoryCounterStore) {
	store := folio.NewMemoryCounterStore()
	return folio.NewAllocator(rangos, store, logger.Nop()), store
}

// TestAllocate_SecuenciaYAgotamiento un CAF [100,102] para tipo 39 entrega
// 100, 101, 102 en llamadas consecutivas y la cuarta agota el rango.
func TestAllocate_SecuenciaYAgotamiento(t *testing.T) {
	a, _ := nuevoAsignador(rangosFijos{39: {TipoDTE: 39, Desde: 100, Hasta: 102}})
	ctx := context.Background()

	for _, esperado := range []int64{100, 101, 102} {
		f, err := a.Allocate(ctx, 39)
		require.NoError(t, err)
		assert.Equal(t, esperado, f)
	}

	_, err := a.Allocate(ctx, 39)
	assert.ErrorIs(t, err, domain.ErrFoliosAgotados)

	// El agotamiento no muta estado: reintentar da el mismo error.
	_, err = a.Allocate(ctx, 39)
	assert.ErrorIs(t, err, domain.ErrFoliosAgotados)
}

// TestAllocate_SinCaf sin CAF configurado no se crea contador alguno.
func TestAllocate_SinCaf(t *testing.T) {
	a, store := nuevoAsignador(rangosFijos{})
	ctx := context.Background()

	_, err := a.Allocate(ctx, 33)
	assert.ErrorIs(t, err, domain.ErrCafFaltante)

	c, err := store.Get(ctx, 33)
	require.NoError(t, err)
	assert.Nil(t, c, "el fallo por CAF faltante no debe sembrar el contador")
}

// TestPeek_NoConsume peek repetido no avanza el contador y anticipa
// exactamente el folio de la siguiente asignación.
func TestPeek_NoConsume(t *testing.T) {
	a, _ := nuevoAsignador(rangosFijos{39: {TipoDTE: 39, Desde: 10, Hasta: 20}})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		f, err := a.Peek(ctx, 39)
		require.NoError(t, err)
		assert.Equal(t, int64(10), f)
	}

	f, err := a.Allocate(ctx, 39)
	require.NoError(t, err)
	assert.Equal(t, int64(10), f)

	f, err = a.Peek(ctx, 39)
	require.NoError(t, err)
	assert.Equal(t, int64(11), f)
}

// TestConsume_SoloElSiguiente consume acepta únicamente lastIssued+1 dentro
// del rango; todo lo demás es no-op con false.
func TestConsume_SoloElSiguiente(t *testing.T) {
	a, _ := nuevoAsignador(rangosFijos{39: {TipoDTE: 39, Desde: 10, Hasta: 12}})
	ctx := context.Background()

	ok, err := a.Consume(ctx, 39, 11) // fuera de orden
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = a.Consume(ctx, 39, 9) // fuera del rango
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = a.Consume(ctx, 39, 10)
	require.NoError(t, err)
	assert.True(t, ok)

	// El consumo avanzó la marca: la siguiente asignación entrega 11.
	f, err := a.Allocate(ctx, 39)
	require.NoError(t, err)
	assert.Equal(t, int64(11), f)
}

// TestAllocate_Concurrente n goroutines compitiendo por el mismo tipo deben
// recibir folios únicos y contiguos.
func TestAllocate_Concurrente(t *testing.T) {
	const n = 50
	a, _ := nuevoAsignador(rangosFijos{39: {TipoDTE: 39, Desde: 1, Hasta: n}})
	ctx := context.Background()

	var wg sync.WaitGroup
	resultados := make(chan int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f, err := a.Allocate(ctx, 39)
			assert.NoError(t, err)
			resultados <- f
		}()
	}
	wg.Wait()
	close(resultados)

	vistos := make(map[int64]bool)
	for f := range resultados {
		assert.False(t, vistos[f], "folio %d repetido", f)
		vistos[f] = true
	}
	assert.Len(t, vistos, n)
	for f := int64(1); f <= n; f++ {
		assert.True(t, vistos[f], "falta el folio %d", f)
	}
}

// TestAllocate_TiposIndependientes contadores de tipos distintos no se cruzan.
func TestAllocate_TiposIndependientes(t *testing.T) {
	a, _ := nuevoAsignador(rangosFijos{
		33: {TipoDTE: 33, Desde: 500, Hasta: 510},
		39: {TipoDTE: 39, Desde: 1, Hasta: 10},
	})
	ctx := context.Background()

	f33, err := a.Allocate(ctx, 33)
	require.NoError(t, err)
	f39, err := a.Allocate(ctx, 39)
	require.NoError(t, err)

	assert.Equal(t, int64(500), f33)
	assert.Equal(t, int64(1), f39)
}
