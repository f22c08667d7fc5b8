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

// Tipos que entran al resumen de ventas diarias: boletas y las notas de
// crédito que las corrigen.
var tiposRVD = []int{sii.DTEBoleta, sii.DTEBoletaExenta, sii.DTENotaCredito}

// VentasDiarias arma el resumen de ventas diarias (RVD) de un día: un bloque
// Resumen por tipo con montos netos del día y conteos de folios, firmado y
// listo para subir. Un día sin ventas produce igual el reporte con resúmenes
// en cero.
func (b *ReportBuilder) VentasDiarias(ctx context.Context, dia time.Time) ([]byte, error) {
	desde := time.Date(dia.Year(), dia.Month(), dia.Day(), 0, 0, 0, 0, dia.Location())
	hasta := desde.AddDate(0, 0, 1).Add(-time.Second)

	resumenes, err := b.Resumir(ctx, desde, hasta, tiposRVD)
	if err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	root := doc.CreateElement("RVD")
	root.CreateAttr("xmlns", infrasii.NsSiiDte)
	root.CreateAttr("version", "1.0")

	envio := root.CreateElement("DocumentoRVD")
	envio.CreateAttr("ID", "RVD")

	caratula := b.caratula(envio)
	caratula.CreateElement("FchInicio").SetText(desde.Format("2006-01-02"))
	caratula.CreateElement("FchFinal").SetText(desde.Format("2006-01-02"))
	caratula.CreateElement("SecEnvio").SetText("1")

	for _, s := range resumenes {
		r := envio.CreateElement("Resumen")
		r.CreateElement("TipoDocumento").SetText(fmt.Sprintf("%d", s.TipoDTE))
		r.CreateElement("MntNeto").SetText(fmt.Sprintf("%d", s.Neto))
		r.CreateElement("MntIva").SetText(fmt.Sprintf("%d", s.IVA))
		r.CreateElement("MntExento").SetText(fmt.Sprintf("%d", s.Exento))
		r.CreateElement("MntTotal").SetText(fmt.Sprintf("%d", s.Total))
		r.CreateElement("FoliosEmitidos").SetText(fmt.Sprintf("%d", s.CantidadEmitidos()))
		r.CreateElement("FoliosAnulados").SetText(fmt.Sprintf("%d", s.CantidadAnulados()))
		r.CreateElement("FoliosUtilizados").SetText(fmt.Sprintf("%d", s.CantidadUtilizados()))
	}
	envio.CreateElement("TmstFirmaEnv").SetText(b.now().Format("2006-01-02T15:04:05"))

	xmlDoc, err := doc.WriteToBytes()
	if err != nil {
		return nil, err
	}
	sellado, err := b.sellar(xmlDoc, "RVD")
	if err != nil {
		return nil, err
	}
	b.log.Info().Str("dia", desde.Format("2006-01-02")).Msg("resumen de ventas diarias generado")
	return sellado, nil
}

// caratula escribe la identificación del emisor y su resolución.
func (b *ReportBuilder) caratula(parent *etree.Element) *etree.Element {
	c := parent.CreateElement("Caratula")
	c.CreateAttr("version", "1.0")
	c.CreateElement("RutEmisor").SetText(b.cfg.RutEmisor)
	c.CreateElement("RutEnvia").SetText(b.cfg.RutEmisor)
	c.CreateElement("FchResol").SetText(b.cfg.FchResolucion)
	c.CreateElement("NroResol").SetText(fmt.Sprintf("%d", b.cfg.NumResolucion))
	return c
}

// writeRangos escribe los tramos contiguos [Inicial, Final] bajo el tag dado.
func writeRangos(parent *etree.Element, tag string, rangos []entity.RangoFolios) {
	for _, rg := range rangos {
		el := parent.CreateElement(tag)
		el.CreateElement("Inicial").SetText(fmt.Sprintf("%d", rg.Inicial))
		el.CreateElement("Final").SetText(fmt.Sprintf("%d", rg.Final))
	}
}
