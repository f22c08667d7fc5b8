package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/beevik/etree"
	"github.com/tu-usuario/facturacion-sii/internal/domain/entity"
	infrasii "github.com/tu-usuario/facturacion-sii/internal/infrastructure/sii"
	"github.com/tu-usuario/facturacion-sii/pkg/sii"
)

// LibroBoletas arma el libro mensual de boletas del período (mes de la fecha
// dada): detalle folio a folio de las boletas emitidas, las anuladas en su
// propia sección, y los totales del mes. Firmado con certificado embebido.
func (b *ReportBuilder) LibroBoletas(ctx context.Context, periodo time.Time) ([]byte, error) {
	desde := time.Date(periodo.Year(), periodo.Month(), 1, 0, 0, 0, 0, periodo.Location())
	hasta := desde.AddDate(0, 1, 0).Add(-time.Second)

	docs, err := b.repo.ListByPeriodo(ctx, desde, hasta)
	if err != nil {
		return nil, err
	}
	resumenes, err := b.Resumir(ctx, desde, hasta, tiposConsumo)
	if err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	root := doc.CreateElement("LibroBoleta")
	root.CreateAttr("xmlns", infrasii.NsSiiDte)
	root.CreateAttr("version", "1.0")

	envio := root.CreateElement("EnvioLibro")
	envio.CreateAttr("ID", "LIBRO")

	caratula := b.caratula(envio)
	caratula.CreateElement("PeriodoTributario").SetText(desde.Format("2006-01"))
	caratula.CreateElement("TipoLibro").SetText("MENSUAL")
	caratula.CreateElement("TipoEnvio").SetText("TOTAL")

	// Totales del mes por tipo
	for _, s := range resumenes {
		r := envio.CreateElement("ResumenPeriodo")
		r.CreateElement("TpoDoc").SetText(fmt.Sprintf("%d", s.TipoDTE))
		r.CreateElement("TotDoc").SetText(fmt.Sprintf("%d", s.CantidadEmitidos()))
		r.CreateElement("TotAnulado").SetText(fmt.Sprintf("%d", s.CantidadAnulados()))
		r.CreateElement("TotMntNeto").SetText(fmt.Sprintf("%d", s.Neto))
		r.CreateElement("TotMntIVA").SetText(fmt.Sprintf("%d", s.IVA))
		r.CreateElement("TotMntExe").SetText(fmt.Sprintf("%d", s.Exento))
		r.CreateElement("TotMntTotal").SetText(fmt.Sprintf("%d", s.Total))
	}

	// Detalle folio a folio; las anuladas van en su propia sección
	var anuladas []*entity.DTE
	for _, d := range docs {
		if !sii.IsBoleta(d.TipoDTE) {
			continue
		}
		if d.Anulado {
			anuladas = append(anuladas, d)
			continue
		}
		writeDetalleLibro(envio, d, false)
	}
	for _, d := range anuladas {
		writeDetalleLibro(envio, d, true)
	}

	envio.CreateElement("TmstFirma").SetText(b.now().Format("2006-01-02T15:04:05"))

	xmlDoc, err := doc.WriteToBytes()
	if err != nil {
		return nil, err
	}
	sellado, err := b.sellar(xmlDoc, "LIBRO")
	if err != nil {
		return nil, err
	}
	b.log.Info().Str("periodo", desde.Format("2006-01")).Int("boletas", len(docs)).Msg("libro de boletas generado")
	return sellado, nil
}

func writeDetalleLibro(parent *etree.Element, d *entity.DTE, anulada bool) {
	det := parent.CreateElement("Detalle")
	det.CreateElement("TpoDoc").SetText(fmt.Sprintf("%d", d.TipoDTE))
	det.CreateElement("FolioDoc").SetText(fmt.Sprintf("%d", d.Folio))
	if anulada {
		det.CreateElement("Anulado").SetText("A")
	}
	det.CreateElement("FchEmiDoc").SetText(d.FechaEmision.Format("2006-01-02"))
	det.CreateElement("MntNeto").SetText(fmt.Sprintf("%d", d.Totales.Neto))
	det.CreateElement("MntIVA").SetText(fmt.Sprintf("%d", d.Totales.IVA))
	det.CreateElement("MntExe").SetText(fmt.Sprintf("%d", d.Totales.Exento))
	det.CreateElement("MntTotal").SetText(fmt.Sprintf("%d", d.Totales.Total))
}
