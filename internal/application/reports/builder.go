// Package reports construye los reportes periódicos que la autoridad exige
// sobre los documentos emitidos: resumen de ventas diarias, consumo de folios
// y libro de boletas. Todos parten del mismo barrido del almacén de
// documentos, resumido por tipo en PeriodSummary.
package reports

import (
	"context"
	"crypto/tls"
	"sort"
	"time"

	"github.com/tu-usuario/facturacion-sii/internal/domain/dte"
	"github.com/tu-usuario/facturacion-sii/internal/domain/entity"
	"github.com/tu-usuario/facturacion-sii/internal/domain/repository"
	infrasii "github.com/tu-usuario/facturacion-sii/internal/infrastructure/sii"
	"github.com/tu-usuario/facturacion-sii/pkg/config"
	"github.com/tu-usuario/facturacion-sii/pkg/logger"
	"github.com/tu-usuario/facturacion-sii/pkg/sii"
)

// ReportBuilder arma y firma los reportes periódicos. Los sobres van firmados
// con el certificado embebido y codificados en ISO-8859-1, igual que los DTE.
type ReportBuilder struct {
	repo  repository.DTERepository
	firma *infrasii.FirmaService
	cert  tls.Certificate
	cfg   config.SIIConfig
	log   *logger.Logger
	now   func() time.Time
}

// NewReportBuilder construye el generador de reportes.
func NewReportBuilder(
	repo repository.DTERepository,
	firma *infrasii.FirmaService,
	cert tls.Certificate,
	cfg config.SIIConfig,
	log *logger.Logger,
) *ReportBuilder {
	return &ReportBuilder{
		repo:  repo,
		firma: firma,
		cert:  cert,
		cfg:   cfg,
		log:   log,
		now:   time.Now,
	}
}

// Resumir barre los documentos del período y produce un resumen por cada
// tipo pedido. Un tipo sin movimiento igual produce su resumen en cero:
// los esquemas de la autoridad exigen declarar períodos sin actividad.
// Los montos suman solo documentos no anulados; los folios anulados cuentan
// aparte y vuelven a aparecer en los tramos utilizados.
func (b *ReportBuilder) Resumir(ctx context.Context, desde, hasta time.Time, tipos []int) ([]entity.PeriodSummary, error) {
	docs, err := b.repo.ListByPeriodo(ctx, desde, hasta)
	if err != nil {
		return nil, err
	}

	porTipo := make(map[int]*entity.PeriodSummary, len(tipos))
	for _, tipo := range tipos {
		porTipo[tipo] = &entity.PeriodSummary{TipoDTE: tipo}
	}

	for _, d := range docs {
		s, ok := porTipo[d.TipoDTE]
		if !ok {
			continue
		}
		if d.Anulado {
			s.FoliosAnulados = append(s.FoliosAnulados, d.Folio)
			continue
		}
		s.FoliosEmitidos = append(s.FoliosEmitidos, d.Folio)

		// Las notas de crédito restan: el agregado del período refleja el
		// efecto neto de las ventas.
		signo := int64(1)
		if sii.IsNotaCredito(d.TipoDTE) {
			signo = -1
		}
		s.Neto += signo * d.Totales.Neto
		s.Exento += signo * d.Totales.Exento
		s.IVA += signo * d.Totales.IVA
		s.Total += signo * d.Totales.Total
	}

	resumenes := make([]entity.PeriodSummary, 0, len(tipos))
	for _, tipo := range tipos {
		s := porTipo[tipo]

		usados := append(append([]int64(nil), s.FoliosEmitidos...), s.FoliosAnulados...)
		s.FoliosSinUsar = dte.FoliosSinUsar(usados)

		s.RangosEmitidos = dte.ComprimirFolios(s.FoliosEmitidos)
		s.RangosAnulados = dte.ComprimirFolios(s.FoliosAnulados)
		s.RangosUtilizados = dte.ComprimirFolios(usados)
		s.RangosSinUsar = dte.ComprimirFolios(s.FoliosSinUsar)

		resumenes = append(resumenes, *s)
	}

	sort.Slice(resumenes, func(i, j int) bool { return resumenes[i].TipoDTE < resumenes[j].TipoDTE })
	return resumenes, nil
}

// sellar firma el sobre con certificado embebido y lo codifica a ISO-8859-1.
func (b *ReportBuilder) sellar(xmlDoc []byte, refID string) ([]byte, error) {
	firmado, err := b.firma.Sign(xmlDoc, refID, b.cert, true)
	if err != nil {
		return nil, err
	}
	return infrasii.EncodeLatin1(firmado)
}
