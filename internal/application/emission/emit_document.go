package emission

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/tu-usuario/facturacion-sii/internal/domain"
	"github.com/tu-usuario/facturacion-sii/internal/domain/dte"
	"github.com/tu-usuario/facturacion-sii/internal/domain/entity"
	"github.com/tu-usuario/facturacion-sii/internal/domain/repository"
	"github.com/tu-usuario/facturacion-sii/internal/infrastructure/folio"
	infrasii "github.com/tu-usuario/facturacion-sii/internal/infrastructure/sii"
	"github.com/tu-usuario/facturacion-sii/pkg/config"
	"github.com/tu-usuario/facturacion-sii/pkg/logger"
	"github.com/tu-usuario/facturacion-sii/pkg/sii"
)

// EmitInput es la solicitud de emisión de un documento. El folio, los montos
// derivados, el timbre y la firma los pone el emisor; el llamador solo
// describe la operación comercial.
type EmitInput struct {
	TipoDTE      int
	FechaEmision time.Time // Cero = hoy
	Receptor     entity.Party
	Detalle      []entity.LineItem
	Referencias  []entity.Referencia
	Transporte   *entity.Transporte

	FormaPago        int
	FechaVencimiento *time.Time
}

// Emitter orquesta el ciclo completo de emisión:
//
//	validar → asignar folio → totales → XML → timbre → firma → ISO-8859-1 → persistir
//
// El folio se consume apenas se asigna: si una etapa posterior falla, queda
// quemado y aparecerá como anulado/sin usar en los reportes del período,
// nunca se reutiliza.
type Emitter struct {
	allocator FolioAllocator
	ranges    folio.RangeSource
	repo      repository.DTERepository
	builder   *infrasii.XMLBuilderService
	timbre    *infrasii.TimbreService
	firma     *infrasii.FirmaService
	enviador  Enviador // puede ser nil: emitir sin enviar
	cert      tls.Certificate
	cfg       config.SIIConfig
	log       *logger.Logger
	now       func() time.Time
}

// NewEmitter construye el emisor. enviador puede ser nil si el despliegue
// solo emite y el envío corre por otro canal.
func NewEmitter(
	allocator FolioAllocator,
	ranges folio.RangeSource,
	repo repository.DTERepository,
	builder *infrasii.XMLBuilderService,
	timbre *infrasii.TimbreService,
	firma *infrasii.FirmaService,
	enviador Enviador,
	cert tls.Certificate,
	cfg config.SIIConfig,
	log *logger.Logger,
) *Emitter {
	return &Emitter{
		allocator: allocator,
		ranges:    ranges,
		repo:      repo,
		builder:   builder,
		timbre:    timbre,
		firma:     firma,
		enviador:  enviador,
		cert:      cert,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// Emit valida la solicitud, emite el documento y lo persiste firmado.
func (e *Emitter) Emit(ctx context.Context, in EmitInput) (*entity.DTE, error) {
	if err := e.validate(in); err != nil {
		return nil, err
	}

	// Desde aquí el folio está quemado: cualquier falla posterior no lo
	// devuelve al rango.
	folioNum, err := e.allocator.Allocate(ctx, in.TipoDTE)
	if err != nil {
		return nil, err
	}

	fecha := in.FechaEmision
	if fecha.IsZero() {
		fecha = e.now()
	}

	d := &entity.DTE{
		TipoDTE:      in.TipoDTE,
		Folio:        folioNum,
		FechaEmision: fecha,
		Emisor: entity.Party{
			RUT:         e.cfg.RutEmisor,
			RazonSocial: e.cfg.RazonSocial,
			Giro:        e.cfg.Giro,
			Direccion:   e.cfg.Direccion,
			Comuna:      e.cfg.Comuna,
		},
		Receptor:         in.Receptor,
		Detalle:          append([]entity.LineItem(nil), in.Detalle...),
		Referencias:      in.Referencias,
		Transporte:       in.Transporte,
		FormaPago:        in.FormaPago,
		FechaVencimiento: in.FechaVencimiento,
		Status:           entity.DTEStatusEmitido,
	}

	totales, err := dte.CalcularTotales(d.TipoDTE, d.Detalle, d.Receptor, e.cfg.UmbralNominativa)
	if err != nil {
		e.logFolioQuemado(d, "totales", err)
		return nil, err
	}
	d.Totales = totales

	xmlDoc, err := e.builder.Build(d)
	if err != nil {
		e.logFolioQuemado(d, "ensamblaje", err)
		return nil, err
	}

	rango, err := e.ranges.Range(d.TipoDTE)
	if err != nil {
		e.logFolioQuemado(d, "caf", err)
		return nil, err
	}
	ahora := e.now()
	ted, err := e.timbre.Generate(d, rango, e.cert, ahora)
	if err != nil {
		e.logFolioQuemado(d, "timbre", err)
		return nil, err
	}
	d.Timbre = ted

	conTimbre, err := e.timbre.Inject(xmlDoc, ted, ahora)
	if err != nil {
		e.logFolioQuemado(d, "timbre", err)
		return nil, err
	}

	firmado, err := e.firma.Sign(conTimbre, infrasii.DocumentoID(d), e.cert, false)
	if err != nil {
		e.logFolioQuemado(d, "firma", err)
		return nil, err
	}

	final, err := infrasii.EncodeLatin1(firmado)
	if err != nil {
		e.logFolioQuemado(d, "codificacion", err)
		return nil, err
	}
	d.XMLFirmado = final

	if err := e.repo.Save(ctx, d); err != nil {
		e.logFolioQuemado(d, "persistencia", err)
		return nil, err
	}

	e.log.Info().
		Int("tipo_dte", d.TipoDTE).
		Int64("folio", d.Folio).
		Int64("total", d.Totales.Total).
		Msg("documento emitido")
	return d, nil
}

// Enviar despacha un documento ya emitido a través del colaborador de
// transporte y anota el TrackID devuelto.
func (e *Emitter) Enviar(ctx context.Context, tipoDTE int, folioNum int64) (string, error) {
	if e.enviador == nil {
		return "", fmt.Errorf("no hay colaborador de transporte configurado")
	}
	d, err := e.repo.GetByTipoYFolio(ctx, tipoDTE, folioNum)
	if err != nil {
		return "", err
	}
	if d == nil {
		return "", fmt.Errorf("no existe folio %d del tipo %d", folioNum, tipoDTE)
	}
	trackID, err := e.enviador.Enviar(ctx, d)
	if err != nil {
		return "", fmt.Errorf("enviar DTE: %w", err)
	}
	if err := e.repo.SetTrackID(ctx, tipoDTE, folioNum, trackID); err != nil {
		return "", err
	}
	e.log.Info().
		Int("tipo_dte", tipoDTE).
		Int64("folio", folioNum).
		Str("track_id", trackID).
		Msg("documento enviado")
	return trackID, nil
}

// Anular marca un documento emitido como anulado. El documento firmado no se
// toca; la marca solo alimenta los reportes del período.
func (e *Emitter) Anular(ctx context.Context, tipoDTE int, folioNum int64) error {
	if err := e.repo.MarcarAnulado(ctx, tipoDTE, folioNum); err != nil {
		return err
	}
	e.log.Info().Int("tipo_dte", tipoDTE).Int64("folio", folioNum).Msg("documento anulado")
	return nil
}

func (e *Emitter) validate(in EmitInput) error {
	if !sii.ValidDTETypes[in.TipoDTE] {
		return fmt.Errorf("%w: tipo de documento %d no soportado", domain.ErrEnsamblaje, in.TipoDTE)
	}
	if len(in.Detalle) == 0 {
		return fmt.Errorf("%w: el documento no tiene líneas de detalle", domain.ErrEnsamblaje)
	}
	if err := sii.ValidateRUT(e.cfg.RutEmisor); err != nil {
		return fmt.Errorf("%w: RUT emisor: %v", domain.ErrEnsamblaje, err)
	}
	if in.Receptor.RUT != "" {
		if err := sii.ValidateRUT(in.Receptor.RUT); err != nil {
			return fmt.Errorf("%w: RUT receptor: %v", domain.ErrEnsamblaje, err)
		}
	}
	return nil
}

func (e *Emitter) logFolioQuemado(d *entity.DTE, etapa string, err error) {
	e.log.Warn().
		Int("tipo_dte", d.TipoDTE).
		Int64("folio", d.Folio).
		Str("etapa", etapa).
		Err(err).
		Msg("emisión fallida, folio quemado")
}
