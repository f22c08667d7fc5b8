package sii

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/tu-usuario/facturacion-sii/internal/domain"
)

// FirmaService aplica la firma XML envolvente sobre el documento final o
// sobre un sobre de reporte periódico: referencia por ID al nodo firmado,
// digest y firma SHA-1/RSA, y el nodo ds:Signature como último hijo de la raíz.
type FirmaService struct{}

// NewFirmaService crea el servicio.
func NewFirmaService() *FirmaService {
	return &FirmaService{}
}

// Sign firma el nodo cuyo atributo ID sea refID. Con refID vacío se firma la
// raíz, asignándole un ID estable si no lo tiene. embedCert controla si el
// KeyInfo lleva el certificado del firmante además de la llave pública
// (los sobres de reportes lo exigen; los DTE individuales pueden omitirlo).
func (s *FirmaService) Sign(xmlBytes []byte, refID string, cert tls.Certificate, embedCert bool) ([]byte, error) {
	priv, err := rsaKey(cert)
	if err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, fmt.Errorf("%w: parsear XML: %v", domain.ErrFirma, err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("%w: documento sin raíz", domain.ErrFirma)
	}

	target := root
	if refID != "" {
		if target = findByID(root, refID); target == nil {
			return nil, fmt.Errorf("%w: no existe un nodo con ID %q", domain.ErrFirma, refID)
		}
	} else {
		if refID = target.SelectAttrValue("ID", ""); refID == "" {
			refID = "DOC1"
			target.CreateAttr("ID", refID)
		}
	}

	// 1) Digest del nodo referenciado, canonicalizado
	targetDoc := etree.NewDocument()
	targetDoc.SetRoot(target.Copy())
	targetBytes, err := targetDoc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("%w: serializar nodo firmado: %v", domain.ErrFirma, err)
	}
	canonicalTarget, err := canonicalize(targetBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: canonicalizar nodo firmado: %v", domain.ErrFirma, err)
	}
	digest := sha1.Sum(canonicalTarget)

	// 2) SignedInfo canonicalizado y firmado con RSA/SHA-1
	signedInfo := s.buildSignedInfo(refID, base64.StdEncoding.EncodeToString(digest[:]))
	canonicalSignedInfo, err := canonicalize([]byte(signedInfo))
	if err != nil {
		return nil, fmt.Errorf("%w: canonicalizar SignedInfo: %v", domain.ErrFirma, err)
	}
	siDigest := sha1.Sum(canonicalSignedInfo)
	firma, err := rsa.SignPKCS1v15(nil, priv, crypto.SHA1, siDigest[:])
	if err != nil {
		return nil, fmt.Errorf("%w: firmar SignedInfo: %v", domain.ErrFirma, err)
	}

	keyInfo, err := s.buildKeyInfo(priv, cert, embedCert)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString(`<Signature xmlns="` + NamespaceDS + `">`)
	sb.WriteString(signedInfo)
	sb.WriteString(`<SignatureValue>` + base64.StdEncoding.EncodeToString(firma) + `</SignatureValue>`)
	sb.WriteString(keyInfo)
	sb.WriteString(`</Signature>`)

	// 3) ds:Signature como último hijo de la raíz
	sigDoc := etree.NewDocument()
	if err := sigDoc.ReadFromString(sb.String()); err != nil {
		return nil, fmt.Errorf("%w: parsear nodo Signature: %v", domain.ErrFirma, err)
	}
	if sigRoot := sigDoc.Root(); sigRoot != nil {
		root.AddChild(sigRoot)
	}

	var out bytes.Buffer
	if _, err := doc.WriteTo(&out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func (s *FirmaService) buildSignedInfo(refID, digestB64 string) string {
	var sb strings.Builder
	sb.WriteString(`<SignedInfo xmlns="` + NamespaceDS + `">`)
	sb.WriteString(`<CanonicalizationMethod Algorithm="` + AlgC14N + `"/>`)
	sb.WriteString(`<SignatureMethod Algorithm="` + AlgRSASHA1 + `"/>`)
	sb.WriteString(`<Reference URI="#` + refID + `">`)
	sb.WriteString(`<Transforms><Transform Algorithm="` + TransformEnveloped + `"/></Transforms>`)
	sb.WriteString(`<DigestMethod Algorithm="` + AlgSHA1 + `"/>`)
	sb.WriteString(`<DigestValue>` + digestB64 + `</DigestValue>`)
	sb.WriteString(`</Reference>`)
	sb.WriteString(`</SignedInfo>`)
	return sb.String()
}

// buildKeyInfo siempre publica la llave RSA; el certificado X.509 solo en
// sobres (reportes periódicos).
func (s *FirmaService) buildKeyInfo(priv *rsa.PrivateKey, cert tls.Certificate, embedCert bool) (string, error) {
	modulus := base64.StdEncoding.EncodeToString(priv.PublicKey.N.Bytes())
	exponent := base64.StdEncoding.EncodeToString(bigEndianInt(priv.PublicKey.E))

	var sb strings.Builder
	sb.WriteString(`<KeyInfo>`)
	sb.WriteString(`<KeyValue><RSAKeyValue>`)
	sb.WriteString(`<Modulus>` + modulus + `</Modulus>`)
	sb.WriteString(`<Exponent>` + exponent + `</Exponent>`)
	sb.WriteString(`</RSAKeyValue></KeyValue>`)
	if embedCert {
		if len(cert.Certificate) == 0 {
			return "", fmt.Errorf("%w: el sobre exige certificado embebido y no hay ninguno cargado", domain.ErrCertificadoFaltante)
		}
		x509Cert, err := x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			return "", fmt.Errorf("%w: parsear certificado: %v", domain.ErrFirma, err)
		}
		sb.WriteString(`<X509Data><X509Certificate>`)
		sb.WriteString(base64.StdEncoding.EncodeToString(x509Cert.Raw))
		sb.WriteString(`</X509Certificate></X509Data>`)
	}
	sb.WriteString(`</KeyInfo>`)
	return sb.String(), nil
}

// findByID busca en profundidad el elemento con el atributo ID dado.
func findByID(el *etree.Element, id string) *etree.Element {
	if el.SelectAttrValue("ID", "") == id {
		return el
	}
	for _, child := range el.ChildElements() {
		if found := findByID(child, id); found != nil {
			return found
		}
	}
	return nil
}

// bigEndianInt serializa un entero positivo a bytes big-endian sin ceros a la izquierda.
func bigEndianInt(n int) []byte {
	if n == 0 {
		return []byte{0}
	}
	var out []byte
	for n > 0 {
		out = append([]byte{byte(n & 0xff)}, out...)
		n >>= 8
	}
	return out
}
