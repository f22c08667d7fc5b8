package sii

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"

	"github.com/tu-usuario/facturacion-sii/internal/domain"
	"github.com/tu-usuario/facturacion-sii/internal/domain/entity"
	"github.com/tu-usuario/facturacion-sii/pkg/sii"
)

// NsSiiDte namespace de los documentos tributarios electrónicos.
const NsSiiDte = "http://www.sii.cl/SiiDte"

// XMLBuilderService construye el XML del DTE (sin TED ni firma).
type XMLBuilderService struct{}

// NewXMLBuilderService crea el servicio.
func NewXMLBuilderService() *XMLBuilderService {
	return &XMLBuilderService{}
}

// DocumentoID identificador estable del nodo Documento, referenciado por la
// firma ("F{folio}T{tipo}", la convención de la autoridad).
func DocumentoID(d *entity.DTE) string {
	return fmt.Sprintf("F%dT%d", d.Folio, d.TipoDTE)
}

// Build genera los bytes del documento según el esquema DTE. El nodo TED y
// la firma los inyectan etapas posteriores. Falla con ErrEnsamblaje si
// faltan campos obligatorios del emisor o receptor para el tipo.
func (s *XMLBuilderService) Build(d *entity.DTE) ([]byte, error) {
	if d == nil || len(d.Detalle) == 0 {
		return nil, fmt.Errorf("%w: documento sin líneas de detalle", domain.ErrEnsamblaje)
	}
	if !sii.ValidDTETypes[d.TipoDTE] {
		return nil, fmt.Errorf("%w: tipo de documento %d no soportado", domain.ErrEnsamblaje, d.TipoDTE)
	}
	if err := s.validateParties(d); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	root := xml.StartElement{
		Name: xml.Name{Local: "DTE"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "version"}, Value: "1.0"},
			{Name: xml.Name{Local: "xmlns"}, Value: NsSiiDte},
		},
	}
	if err := enc.EncodeToken(root); err != nil {
		return nil, err
	}

	documento := xml.StartElement{
		Name: xml.Name{Local: "Documento"},
		Attr: []xml.Attr{{Name: xml.Name{Local: "ID"}, Value: DocumentoID(d)}},
	}
	_ = enc.EncodeToken(documento)

	if err := s.writeEncabezado(enc, d); err != nil {
		return nil, err
	}
	for _, linea := range d.Detalle {
		s.writeDetalle(enc, linea)
	}
	for _, ref := range d.Referencias {
		s.writeReferencia(enc, ref)
	}

	_ = enc.EncodeToken(documento.End())
	if err := enc.EncodeToken(root.End()); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// validateParties exige emisor completo siempre; el receptor identificado es
// obligatorio en todo tipo salvo boletas, donde se admite el consumidor
// final genérico.
func (s *XMLBuilderService) validateParties(d *entity.DTE) error {
	e := d.Emisor
	if e.RUT == "" || e.RazonSocial == "" || e.Giro == "" || e.Direccion == "" {
		return fmt.Errorf("%w: emisor incompleto (RUT, razón social, giro y dirección son obligatorios)", domain.ErrEnsamblaje)
	}
	if sii.IsBoleta(d.TipoDTE) {
		return nil
	}
	r := d.Receptor
	if r.RUT == "" || r.RazonSocial == "" {
		return fmt.Errorf("%w: receptor incompleto para el tipo %d", domain.ErrEnsamblaje, d.TipoDTE)
	}
	return nil
}

func (s *XMLBuilderService) writeEncabezado(enc *xml.Encoder, d *entity.DTE) error {
	open(enc, "Encabezado")

	// ---- IdDoc
	open(enc, "IdDoc")
	writeInt(enc, "TipoDTE", int64(d.TipoDTE))
	writeInt(enc, "Folio", d.Folio)
	writeEl(enc, "FchEmis", d.FechaEmision.Format("2006-01-02"))
	if d.Transporte != nil && d.Transporte.IndTraslado > 0 {
		writeInt(enc, "IndTraslado", int64(d.Transporte.IndTraslado))
	}
	// Condiciones de pago: solo facturas y notas, y solo si vienen datos.
	if d.FormaPago > 0 && !sii.IsBoleta(d.TipoDTE) && d.TipoDTE != sii.DTEGuiaDespacho {
		writeInt(enc, "FmaPago", int64(d.FormaPago))
		if d.FechaVencimiento != nil {
			writeEl(enc, "FchVenc", d.FechaVencimiento.Format("2006-01-02"))
		}
	}
	closeEl(enc, "IdDoc")

	// ---- Emisor
	open(enc, "Emisor")
	writeEl(enc, "RUTEmisor", sii.NormalizeRUT(d.Emisor.RUT))
	writeEl(enc, "RznSoc", d.Emisor.RazonSocial)
	writeEl(enc, "GiroEmis", d.Emisor.Giro)
	writeEl(enc, "DirOrigen", d.Emisor.Direccion)
	if d.Emisor.Comuna != "" {
		writeEl(enc, "CmnaOrigen", d.Emisor.Comuna)
	}
	closeEl(enc, "Emisor")

	// ---- Receptor (boletas sin comprador usan el RUT genérico)
	open(enc, "Receptor")
	rut := d.Receptor.RUT
	razon := d.Receptor.RazonSocial
	if sii.IsBoleta(d.TipoDTE) && rut == "" {
		rut = sii.RUTReceptorGenerico
		razon = "Consumidor final"
	}
	writeEl(enc, "RUTRecep", sii.NormalizeRUT(rut))
	writeEl(enc, "RznSocRecep", razon)
	if d.Receptor.Giro != "" {
		writeEl(enc, "GiroRecep", d.Receptor.Giro)
	}
	if d.Receptor.Direccion != "" {
		writeEl(enc, "DirRecep", d.Receptor.Direccion)
	}
	if d.Receptor.Comuna != "" {
		writeEl(enc, "CmnaRecep", d.Receptor.Comuna)
	}
	if d.Receptor.Correo != "" {
		writeEl(enc, "CorreoRecep", d.Receptor.Correo)
	}
	closeEl(enc, "Receptor")

	// ---- Transporte (solo guías de despacho con datos)
	if d.TipoDTE == sii.DTEGuiaDespacho && d.Transporte != nil {
		s.writeTransporte(enc, d.Transporte)
	}

	s.writeTotales(enc, d)

	closeEl(enc, "Encabezado")
	return nil
}

func (s *XMLBuilderService) writeTransporte(enc *xml.Encoder, t *entity.Transporte) {
	open(enc, "Transporte")
	if t.Patente != "" {
		writeEl(enc, "Patente", t.Patente)
	}
	if t.RUTChofer != "" {
		open(enc, "Chofer")
		writeEl(enc, "RUTChofer", sii.NormalizeRUT(t.RUTChofer))
		writeEl(enc, "NombreChofer", t.NombreChofer)
		closeEl(enc, "Chofer")
	}
	if t.DirDestino != "" {
		writeEl(enc, "DirDest", t.DirDestino)
	}
	if t.CmnaDestino != "" {
		writeEl(enc, "CmnaDest", t.CmnaDestino)
	}
	closeEl(enc, "Transporte")
}

// writeTotales emite la forma de totales del tipo: desglose MntNeto/IVA,
// solo exento, o solo monto total.
func (s *XMLBuilderService) writeTotales(enc *xml.Encoder, d *entity.DTE) {
	t := d.Totales
	open(enc, "Totales")
	switch {
	case sii.IsExemptType(d.TipoDTE):
		writeInt(enc, "MntExe", t.Exento)
	case sii.RequiresTaxBreakdown(d.TipoDTE):
		writeInt(enc, "MntNeto", t.Neto)
		if t.Exento > 0 {
			writeInt(enc, "MntExe", t.Exento)
		}
		writeInt(enc, "TasaIVA", t.TasaIVA)
		writeInt(enc, "IVA", t.IVA)
	}
	writeInt(enc, "MntTotal", t.Total)
	closeEl(enc, "Totales")
}

func (s *XMLBuilderService) writeDetalle(enc *xml.Encoder, l entity.LineItem) {
	open(enc, "Detalle")
	writeInt(enc, "NroLinDet", int64(l.NroLinea))
	writeEl(enc, "NmbItem", l.Nombre)
	if l.Exento {
		writeInt(enc, "IndExe", 1)
	}
	writeEl(enc, "QtyItem", l.Cantidad.String())
	writeEl(enc, "PrcItem", l.Precio.String())
	if l.Descuento > 0 {
		writeInt(enc, "DescuentoMonto", l.Descuento)
	}
	if l.Recargo > 0 {
		writeInt(enc, "RecargoMonto", l.Recargo)
	}
	writeInt(enc, "MontoItem", l.MontoItem)
	closeEl(enc, "Detalle")
}

func (s *XMLBuilderService) writeReferencia(enc *xml.Encoder, r entity.Referencia) {
	open(enc, "Referencia")
	writeInt(enc, "NroLinRef", int64(r.NroLinea))
	writeInt(enc, "TpoDocRef", int64(r.TipoDocRef))
	writeInt(enc, "FolioRef", r.FolioRef)
	writeEl(enc, "FchRef", r.FechaRef.Format("2006-01-02"))
	if r.CodigoRef > 0 {
		writeInt(enc, "CodRef", int64(r.CodigoRef))
	}
	if r.RazonRef != "" {
		writeEl(enc, "RazonRef", r.RazonRef)
	}
	closeEl(enc, "Referencia")
}

// ── helpers de emisión de tokens ─────────────────────────────────────────────

func open(enc *xml.Encoder, local string) {
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: local}})
}

func closeEl(enc *xml.Encoder, local string) {
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: local}})
}

func writeEl(enc *xml.Encoder, local, value string) {
	open(enc, local)
	_ = enc.EncodeToken(xml.CharData(value))
	closeEl(enc, local)
}

func writeInt(enc *xml.Encoder, local string, value int64) {
	writeEl(enc, local, strconv.FormatInt(value, 10))
}
