package emission_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tu-usuario/facturacion-sii/internal/application/emission"
	"github.com/tu-usuario/facturacion-sii/internal/domain"
	"github.com/tu-usuario/facturacion-sii/internal/domain/entity"
	"github.com/tu-usuario/facturacion-sii/internal/infrastructure/folio"
	infrasii "github.com/tu-usuario/facturacion-sii/internal/infrastructure/sii"
	"github.com/tu-usuario/facturacion-sii/pkg/config"
	"github.com/tu-usuario/facturacion-sii/pkg/logger"
	"github.com/tu-usuario/facturacion-sii/pkg/sii"
)

const bloqueCaf = `<CAF version="1.0"><DA><RE>76543210-K</RE><TD>39</TD><RNG><D>100</D><H>199</H></RNG><FA>2026-01-15</FA><IDK>300</IDK></DA><FRMA algoritmo="SHA1withRSA">ZmlybWEtY2FmLXBydWViYQ==</FRMA></CAF>`

// rangosFijos implementa folio.RangeSource sobre un mapa estático.
type rangosFijos map[int]*entity.FolioRange

func (r rangosFijos) Range(tipoDTE int) (*entity.FolioRange, error) {
	rango, ok := r[tipoDTE]
	if !ok {
		return nil, fmt.Errorf("%w: tipo %d", domain.ErrCafFaltante, tipoDTE)
	}
	return rango, nil
}

// repoMemoria implementa repository.DTERepository en memoria.
type repoMemoria struct {
	mu   sync.Mutex
	docs map[string]*entity.DTE
}

func nuevoRepoMemoria() *repoMemoria {
	return &repoMemoria{docs: make(map[string]*entity.DTE)}
}

func claveDoc(tipoDTE int, folioNum int64) string {
	return fmt.Sprintf("%d/%d", tipoDTE, folioNum)
}

func (r *repoMemoria) Save(_ context.Context, d *entity.DTE) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[claveDoc(d.TipoDTE, d.Folio)] = d
	return nil
}

func (r *repoMemoria) GetByTipoYFolio(_ context.Context, tipoDTE int, folioNum int64) (*entity.DTE, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.docs[claveDoc(tipoDTE, folioNum)], nil
}

func (r *repoMemoria) ListByPeriodo(_ context.Context, desde, hasta time.Time) ([]*entity.DTE, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var list []*entity.DTE
	for _, d := range r.docs {
		if !d.FechaEmision.Before(desde) && !d.FechaEmision.After(hasta) {
			list = append(list, d)
		}
	}
	return list, nil
}

func (r *repoMemoria) MarcarAnulado(_ context.Context, tipoDTE int, folioNum int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[claveDoc(tipoDTE, folioNum)]
	if !ok {
		return fmt.Errorf("no existe folio %d del tipo %d", folioNum, tipoDTE)
	}
	d.Anulado = true
	d.Status = entity.DTEStatusAnulado
	return nil
}

func (r *repoMemoria) SetTrackID(_ context.Context, tipoDTE int, folioNum int64, trackID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[claveDoc(tipoDTE, folioNum)]
	if !ok {
		return fmt.Errorf("no existe folio %d del tipo %d", folioNum, tipoDTE)
	}
	d.TrackID = trackID
	d.Status = entity.DTEStatusEnviado
	return nil
}

// enviadorStub devuelve siempre el mismo track.
type enviadorStub struct{ trackID string }

func (e *enviadorStub) Enviar(context.Context, *entity.DTE) (string, error) {
	return e.trackID, nil
}

func certPrueba(t *testing.T) tls.Certificate {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "Firmante de Prueba"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
}

func cfgPrueba() config.SIIConfig {
	return config.SIIConfig{
		RutEmisor:        "76543210-3",
		RazonSocial:      "Comercial Ejemplo Ltda",
		Giro:             "Venta al por menor",
		Direccion:        "Av. Siempre Viva 742",
		Comuna:           "Santiago",
		UmbralNominativa: 5_000_000,
	}
}

func armarEmitter(t *testing.T, repo *repoMemoria, enviador emission.Enviador) *emission.Emitter {
	t.Helper()
	rangos := rangosFijos{
		sii.DTEBoleta: {TipoDTE: sii.DTEBoleta, Desde: 100, Hasta: 199, BloqueCAF: []byte(bloqueCaf)},
	}
	alloc := folio.NewAllocator(rangos, folio.NewMemoryCounterStore(), logger.Nop())
	return emission.NewEmitter(
		alloc, rangos, repo,
		infrasii.NewXMLBuilderService(),
		infrasii.NewTimbreService(),
		infrasii.NewFirmaService(),
		enviador,
		certPrueba(t),
		cfgPrueba(),
		logger.Nop(),
	)
}

func boletaInput() emission.EmitInput {
	return emission.EmitInput{
		TipoDTE: sii.DTEBoleta,
		Detalle: []entity.LineItem{
			{Nombre: "Producto A", Cantidad: decimal.NewFromInt(3), Precio: decimal.NewFromInt(1000)},
		},
	}
}

func TestEmit_CicloCompleto(t *testing.T) {
	repo := nuevoRepoMemoria()
	emitter := armarEmitter(t, repo, nil)

	d, err := emitter.Emit(context.Background(), boletaInput())
	require.NoError(t, err)

	assert.Equal(t, int64(100), d.Folio)
	assert.Equal(t, entity.DTEStatusEmitido, d.Status)
	assert.Equal(t, int64(2521), d.Totales.Neto)
	assert.Equal(t, int64(479), d.Totales.IVA)
	assert.Equal(t, int64(3000), d.Totales.Total)
	// Identidad exacta
	assert.Equal(t, d.Totales.Total, d.Totales.Neto+d.Totales.IVA+d.Totales.Exento)

	require.NotEmpty(t, d.Timbre)
	require.NotEmpty(t, d.XMLFirmado)
	assert.True(t, strings.HasPrefix(string(d.XMLFirmado), `<?xml version="1.0" encoding="ISO-8859-1"?>`))
	assert.Contains(t, string(d.XMLFirmado), "<TED")
	assert.Contains(t, string(d.XMLFirmado), "<Signature")

	guardado, err := repo.GetByTipoYFolio(context.Background(), sii.DTEBoleta, 100)
	require.NoError(t, err)
	require.NotNil(t, guardado)
}

func TestEmit_FoliosSecuenciales(t *testing.T) {
	repo := nuevoRepoMemoria()
	emitter := armarEmitter(t, repo, nil)

	for i := int64(100); i <= 102; i++ {
		d, err := emitter.Emit(context.Background(), boletaInput())
		require.NoError(t, err)
		assert.Equal(t, i, d.Folio)
	}
}

func TestEmit_FolioQuemadoEnFallaPosterior(t *testing.T) {
	repo := nuevoRepoMemoria()
	emitter := armarEmitter(t, repo, nil)

	// Primera emisión exitosa: folio 100
	d, err := emitter.Emit(context.Background(), boletaInput())
	require.NoError(t, err)
	require.Equal(t, int64(100), d.Folio)

	// Boleta sobre el umbral sin receptor identificado: falla después de
	// asignar el folio
	grande := boletaInput()
	grande.Detalle[0].Precio = decimal.NewFromInt(6_000_000)
	_, err = emitter.Emit(context.Background(), grande)
	require.ErrorIs(t, err, domain.ErrBoletaNominativaRequerida)

	// El folio 101 quedó quemado: la siguiente emisión recibe 102
	d, err = emitter.Emit(context.Background(), boletaInput())
	require.NoError(t, err)
	assert.Equal(t, int64(102), d.Folio)
}

func TestEmit_ValidacionNoQuemaFolio(t *testing.T) {
	repo := nuevoRepoMemoria()
	emitter := armarEmitter(t, repo, nil)

	// Tipo no soportado: rechazado antes de tocar el asignador
	malo := boletaInput()
	malo.TipoDTE = 99
	_, err := emitter.Emit(context.Background(), malo)
	require.ErrorIs(t, err, domain.ErrEnsamblaje)

	d, err := emitter.Emit(context.Background(), boletaInput())
	require.NoError(t, err)
	assert.Equal(t, int64(100), d.Folio)
}

func TestEmit_RUTReceptorInvalido(t *testing.T) {
	repo := nuevoRepoMemoria()
	emitter := armarEmitter(t, repo, nil)

	malo := boletaInput()
	malo.Receptor = entity.Party{RUT: "12345678-0", RazonSocial: "Cliente"}
	_, err := emitter.Emit(context.Background(), malo)
	require.ErrorIs(t, err, domain.ErrEnsamblaje)
}

func TestEnviar_AnotaTrackID(t *testing.T) {
	repo := nuevoRepoMemoria()
	emitter := armarEmitter(t, repo, &enviadorStub{trackID: "TRK-77"})

	d, err := emitter.Emit(context.Background(), boletaInput())
	require.NoError(t, err)

	trackID, err := emitter.Enviar(context.Background(), d.TipoDTE, d.Folio)
	require.NoError(t, err)
	assert.Equal(t, "TRK-77", trackID)

	guardado, _ := repo.GetByTipoYFolio(context.Background(), d.TipoDTE, d.Folio)
	assert.Equal(t, "TRK-77", guardado.TrackID)
	assert.Equal(t, entity.DTEStatusEnviado, guardado.Status)
}

func TestAnular_MarcaElDocumento(t *testing.T) {
	repo := nuevoRepoMemoria()
	emitter := armarEmitter(t, repo, nil)

	d, err := emitter.Emit(context.Background(), boletaInput())
	require.NoError(t, err)

	require.NoError(t, emitter.Anular(context.Background(), d.TipoDTE, d.Folio))
	guardado, _ := repo.GetByTipoYFolio(context.Background(), d.TipoDTE, d.Folio)
	assert.True(t, guardado.Anulado)
	assert.Equal(t, entity.DTEStatusAnulado, guardado.Status)
}
