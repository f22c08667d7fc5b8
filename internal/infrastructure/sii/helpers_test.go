package sii_test

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/xml"
	"math/big"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/require"
	"github.com/ucarion/c14n"
)

// certificadoPrueba genera un certificado autofirmado con su llave RSA,
// suficiente para ejercitar timbre y firma sin material real.
func certificadoPrueba(t *testing.T) (tls.Certificate, *rsa.PrivateKey) {
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

	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}, key
}

// tlsSinCertificado entrega la llave sin cadena de certificados asociada.
func tlsSinCertificado(key *rsa.PrivateKey) tls.Certificate {
	return tls.Certificate{PrivateKey: key}
}

// canonico replica la canonicalización que usa el firmante.
func canonico(t *testing.T, data []byte) []byte {
	t.Helper()
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	out, err := c14n.Canonicalize(dec)
	require.NoError(t, err)
	return out
}

// serializarNodo extrae un subárbol como documento independiente.
func serializarNodo(t *testing.T, el *etree.Element) []byte {
	t.Helper()
	doc := etree.NewDocument()
	doc.SetRoot(el.Copy())
	out, err := doc.WriteToBytes()
	require.NoError(t, err)
	return out
}
