package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/beevik/etree"
	infrasii "github.com/tu-usuario/facturacion-sii/internal/infrastructure/sii"
	"github.com/tu-usuario/facturacion-sii/pkg/sii"
)

// Tipos sujetos a consumo de folios: las boletas.
var tiposConsumo = []int{sii.DTEBoleta, sii.DTEBoletaExenta}

// ConsumoFolios arma el reporte de consumo de folios del período: por cada
// tipo de boleta, la conciliación completa de folios emitidos, anulados y
// sin usar, en tramos contiguos comprimidos. Es el reporte que permite a la
// autoridad cruzar la numeración autorizada contra la efectivamente usada.
func (b *ReportBuilder) ConsumoFolios(ctx context.Context, desde, hasta time.Time) ([]byte, error) {
	resumenes, err := b.Resumir(ctx, desde, hasta, tiposConsumo)
	if err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	root := doc.CreateElement("ConsumoFolios")
	root.CreateAttr("xmlns", infrasii.NsSiiDte)
	root.CreateAttr("version", "1.0")

	envio := root.CreateElement("DocumentoConsumoFolios")
	envio.CreateAttr("ID", "CF")

	caratula := b.caratula(envio)
	caratula.CreateElement("FchInicio").SetText(desde.Format("2006-01-02"))
	caratula.CreateElement("FchFinal").SetText(hasta.Format("2006-01-02"))
	caratula.CreateElement("SecEnvio").SetText("1")

	for _, s := range resumenes {
		r := envio.CreateElement("Resumen")
		r.CreateElement("TipoDocumento").SetText(fmt.Sprintf("%d", s.TipoDTE))
		r.CreateElement("MntTotal").SetText(fmt.Sprintf("%d", s.Total))
		r.CreateElement("FoliosEmitidos").SetText(fmt.Sprintf("%d", s.CantidadEmitidos()))
		r.CreateElement("FoliosAnulados").SetText(fmt.Sprintf("%d", s.CantidadAnulados()))
		r.CreateElement("FoliosUtilizados").SetText(fmt.Sprintf("%d", s.CantidadUtilizados()))
		writeRangos(r, "RangoUtilizados", s.RangosUtilizados)
		writeRangos(r, "RangoAnulados", s.RangosAnulados)
		writeRangos(r, "RangoSinUsar", s.RangosSinUsar)
	}
	envio.CreateElement("TmstFirmaEnv").SetText(b.now().Format("2006-01-02T15:04:05"))

	xmlDoc, err := doc.WriteToBytes()
	if err != nil {
		return nil, err
	}
	sellado, err := b.sellar(xmlDoc, "CF")
	if err != nil {
		return nil, err
	}
	b.log.Info().
		Str("desde", desde.Format("2006-01-02")).
		Str("hasta", hasta.Format("2006-01-02")).
		Msg("consumo de folios generado")
	return sellado, nil
}
