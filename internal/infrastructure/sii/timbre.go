package sii

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/tls"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/tu-usuario/facturacion-sii/internal/domain"
	"github.com/tu-usuario/facturacion-sii/internal/domain/entity"
	"github.com/tu-usuario/facturacion-sii/pkg/sii"
	"github.com/ucarion/c14n"
)

// TimbreService genera el timbre electrónico (TED) de cada documento:
// un resumen de campos fijos más el bloque CAF verbatim, canonicalizado y
// firmado con SHA-1/RSA. Cualquier cambio al documento después de timbrar
// lo invalida; se regenera completo, nunca se parcha.
type TimbreService struct{}

// NewTimbreService crea el servicio.
func NewTimbreService() *TimbreService {
	return &TimbreService{}
}

// Generate construye el nodo <TED> para el documento. El bloque <CAF> del
// rango autorizado se copia byte a byte; reinterpretarlo rompería la firma
// de la autoridad que viene adentro.
func (s *TimbreService) Generate(d *entity.DTE, rango *entity.FolioRange, cert tls.Certificate, ahora time.Time) ([]byte, error) {
	if len(rango.BloqueCAF) == 0 {
		return nil, fmt.Errorf("%w: el rango no trae bloque CAF", domain.ErrCafFaltante)
	}
	priv, err := rsaKey(cert)
	if err != nil {
		return nil, err
	}

	dd := s.buildDD(d, rango, ahora)

	canonico, err := canonicalize([]byte(dd))
	if err != nil {
		return nil, fmt.Errorf("%w: canonicalizar DD: %v", domain.ErrFirma, err)
	}
	digest := sha1.Sum(canonico)
	firma, err := rsa.SignPKCS1v15(nil, priv, crypto.SHA1, digest[:])
	if err != nil {
		return nil, fmt.Errorf("%w: firmar DD: %v", domain.ErrFirma, err)
	}

	var sb strings.Builder
	sb.WriteString(`<TED version="1.0">`)
	sb.WriteString(dd)
	sb.WriteString(`<FRMT algoritmo="SHA1withRSA">`)
	sb.WriteString(base64.StdEncoding.EncodeToString(firma))
	sb.WriteString(`</FRMT></TED>`)
	return []byte(sb.String()), nil
}

// buildDD arma el bloque DD con el resumen de campos fijos en el orden que
// exige la autoridad, seguido del CAF y el timestamp de timbraje.
func (s *TimbreService) buildDD(d *entity.DTE, rango *entity.FolioRange, ahora time.Time) string {
	rutRecep := d.Receptor.RUT
	razonRecep := d.Receptor.RazonSocial
	if rutRecep == "" {
		rutRecep = sii.RUTReceptorGenerico
		razonRecep = "Consumidor final"
	}

	var nombres []string
	for _, l := range d.Detalle {
		nombres = append(nombres, l.Nombre)
	}

	var sb strings.Builder
	sb.WriteString(`<DD>`)
	sb.WriteString(`<RE>` + escapeXML(sii.NormalizeRUT(d.Emisor.RUT)) + `</RE>`)
	sb.WriteString(`<TD>` + fmt.Sprintf("%d", d.TipoDTE) + `</TD>`)
	sb.WriteString(`<F>` + fmt.Sprintf("%d", d.Folio) + `</F>`)
	sb.WriteString(`<FE>` + d.FechaEmision.Format("2006-01-02") + `</FE>`)
	sb.WriteString(`<RR>` + escapeXML(sii.NormalizeRUT(rutRecep)) + `</RR>`)
	sb.WriteString(`<RSR>` + escapeXML(truncateUpper(razonRecep, 40)) + `</RSR>`)
	sb.WriteString(`<MNT>` + fmt.Sprintf("%d", d.Totales.Total) + `</MNT>`)
	sb.WriteString(`<IT1>` + escapeXML(truncateUpper(strings.Join(nombres, ","), 40)) + `</IT1>`)
	sb.Write(rango.BloqueCAF)
	sb.WriteString(`<TSTED>` + ahora.Format("2006-01-02T15:04:05") + `</TSTED>`)
	sb.WriteString(`</DD>`)
	return sb.String()
}

// Inject inserta el TED y el timestamp de firma dentro del nodo Documento,
// como hermanos del Encabezado (después del detalle y las referencias).
func (s *TimbreService) Inject(xmlBytes, ted []byte, ahora time.Time) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, fmt.Errorf("%w: parsear documento: %v", domain.ErrEnsamblaje, err)
	}
	documento := findByTag(doc.Root(), "Documento")
	if documento == nil {
		return nil, fmt.Errorf("%w: no se encontró el nodo Documento", domain.ErrEnsamblaje)
	}

	tedDoc := etree.NewDocument()
	if err := tedDoc.ReadFromBytes(ted); err != nil {
		return nil, fmt.Errorf("%w: parsear TED: %v", domain.ErrEnsamblaje, err)
	}
	if tedRoot := tedDoc.Root(); tedRoot != nil {
		documento.AddChild(tedRoot)
	}
	documento.CreateElement("TmstFirma").SetText(ahora.Format("2006-01-02T15:04:05"))

	var out bytes.Buffer
	if _, err := doc.WriteTo(&out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// ── helpers ───────────────────────────────────────────────────────────────────

// canonicalize aplica canonicalización XML sobre los bytes dados.
func canonicalize(data []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	return c14n.Canonicalize(dec)
}

// findByTag busca en profundidad por local-name, empezando por el propio nodo.
func findByTag(el *etree.Element, tag string) *etree.Element {
	if el == nil {
		return nil
	}
	if el.Tag == tag {
		return el
	}
	for _, child := range el.ChildElements() {
		if found := findByTag(child, tag); found != nil {
			return found
		}
	}
	return nil
}

// truncateUpper deja el texto en mayúsculas y lo corta a max runas
// (los campos de resumen del timbre admiten 40 caracteres).
func truncateUpper(s string, max int) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
