package sii_test

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha1"
	"encoding/base64"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tu-usuario/facturacion-sii/internal/domain"
	infrasii "github.com/tu-usuario/facturacion-sii/internal/infrastructure/sii"
)

func documentoFirmable(t *testing.T) ([]byte, string) {
	t.Helper()
	d := boletaPrueba()
	out, err := infrasii.NewXMLBuilderService().Build(d)
	require.NoError(t, err)
	return out, infrasii.DocumentoID(d)
}

func TestSign_EstructuraDeLaFirma(t *testing.T) {
	cert, _ := certificadoPrueba(t)
	xmlDoc, refID := documentoFirmable(t)

	out, err := infrasii.NewFirmaService().Sign(xmlDoc, refID, cert, false)
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(out))
	root := doc.Root()

	hijos := root.ChildElements()
	require.NotEmpty(t, hijos)
	sig := hijos[len(hijos)-1]
	// La firma queda como último hijo de la raíz
	require.Equal(t, "Signature", sig.Tag)

	si := sig.SelectElement("SignedInfo")
	require.NotNil(t, si)
	ref := si.SelectElement("Reference")
	require.NotNil(t, ref)
	assert.Equal(t, "#"+refID, ref.SelectAttrValue("URI", ""))

	ki := sig.SelectElement("KeyInfo")
	require.NotNil(t, ki)
	assert.NotNil(t, ki.SelectElement("KeyValue"))
	// Sin embedCert no viaja el certificado
	assert.Nil(t, ki.SelectElement("X509Data"))
}

func TestSign_DigestYFirmaVerificables(t *testing.T) {
	cert, key := certificadoPrueba(t)
	xmlDoc, refID := documentoFirmable(t)

	out, err := infrasii.NewFirmaService().Sign(xmlDoc, refID, cert, false)
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(out))
	root := doc.Root()
	sig := root.ChildElements()[len(root.ChildElements())-1]

	// 1) El digest de la referencia coincide con el nodo firmado
	documento := root.SelectElement("Documento")
	require.NotNil(t, documento)
	digest := sha1.Sum(canonico(t, serializarNodo(t, documento)))
	dv := sig.SelectElement("SignedInfo").SelectElement("Reference").SelectElement("DigestValue")
	require.NotNil(t, dv)
	assert.Equal(t, base64.StdEncoding.EncodeToString(digest[:]), dv.Text())

	// 2) La firma sobre SignedInfo canonicalizado verifica con la llave pública
	firma, err := base64.StdEncoding.DecodeString(sig.SelectElement("SignatureValue").Text())
	require.NoError(t, err)
	siDigest := sha1.Sum(canonico(t, serializarNodo(t, sig.SelectElement("SignedInfo"))))
	assert.NoError(t, rsa.VerifyPKCS1v15(&key.PublicKey, crypto.SHA1, siDigest[:], firma))
}

func TestSign_AlteracionRompeElDigest(t *testing.T) {
	cert, _ := certificadoPrueba(t)
	xmlDoc, refID := documentoFirmable(t)

	out, err := infrasii.NewFirmaService().Sign(xmlDoc, refID, cert, false)
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(out))
	root := doc.Root()

	// Cambiar el total después de firmar
	documento := root.SelectElement("Documento")
	mnt := documento.FindElement(".//MntTotal")
	require.NotNil(t, mnt)
	mnt.SetText("9999")

	digest := sha1.Sum(canonico(t, serializarNodo(t, documento)))
	sig := root.ChildElements()[len(root.ChildElements())-1]
	dv := sig.SelectElement("SignedInfo").SelectElement("Reference").SelectElement("DigestValue")
	assert.NotEqual(t, base64.StdEncoding.EncodeToString(digest[:]), dv.Text())
}

func TestSign_RaizSinIDRecibeUno(t *testing.T) {
	cert, _ := certificadoPrueba(t)
	sobre := []byte(`<LibroBoleta><Caratula><Periodo>2026-08</Periodo></Caratula></LibroBoleta>`)

	out, err := infrasii.NewFirmaService().Sign(sobre, "", cert, true)
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(out))
	root := doc.Root()
	assert.Equal(t, "DOC1", root.SelectAttrValue("ID", ""))

	sig := root.ChildElements()[len(root.ChildElements())-1]
	require.Equal(t, "Signature", sig.Tag)
	assert.Equal(t, "#DOC1", sig.SelectElement("SignedInfo").SelectElement("Reference").SelectAttrValue("URI", ""))
	// Los sobres llevan el certificado embebido
	assert.NotNil(t, sig.SelectElement("KeyInfo").SelectElement("X509Data"))
}

func TestSign_SobreSinCertificado(t *testing.T) {
	_, key := certificadoPrueba(t)
	// Llave sin cadena de certificados
	cert := tlsSinCertificado(key)
	sobre := []byte(`<LibroBoleta ID="L1"><Caratula/></LibroBoleta>`)

	_, err := infrasii.NewFirmaService().Sign(sobre, "L1", cert, true)
	assert.ErrorIs(t, err, domain.ErrCertificadoFaltante)
}

func TestSign_ReferenciaInexistente(t *testing.T) {
	cert, _ := certificadoPrueba(t)
	xmlDoc, _ := documentoFirmable(t)

	_, err := infrasii.NewFirmaService().Sign(xmlDoc, "NO-EXISTE", cert, false)
	assert.ErrorIs(t, err, domain.ErrFirma)
}
