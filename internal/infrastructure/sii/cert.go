// Package sii construye, timbra y firma los documentos tributarios
// electrónicos en el formato XML que valida la autoridad.
package sii

import (
	"crypto/rsa"
	"crypto/tls"
	"fmt"
	"os"
	"strings"

	"github.com/tu-usuario/facturacion-sii/internal/domain"
	"golang.org/x/crypto/pkcs12"
)

// LoadCertificate carga el certificado del contribuyente con su llave
// privada. Acepta .p12/.pfx (con contraseña) o un PEM con cert+llave.
// Credenciales ausentes o contraseña incorrecta no son fallas transitorias:
// se reportan con los sentinelas del dominio y exigen intervención.
func LoadCertificate(path, password string) (tls.Certificate, error) {
	if path == "" {
		return tls.Certificate{}, fmt.Errorf("%w: ruta no configurada", domain.ErrCertificadoFaltante)
	}
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".p12") || strings.HasSuffix(lower, ".pfx") {
		return loadFromP12(path, password)
	}
	cert, err := tls.LoadX509KeyPair(path, path)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("%w: %v", domain.ErrCertificadoFaltante, err)
	}
	return cert, nil
}

// loadFromP12 carga certificado y llave privada desde un archivo PKCS#12.
func loadFromP12(path, password string) (tls.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("%w: leer %s: %v", domain.ErrCertificadoFaltante, path, err)
	}
	priv, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		// pkcs12 no distingue contraseña mala de archivo corrupto; para el
		// operador ambas se corrigen revisando las credenciales.
		return tls.Certificate{}, fmt.Errorf("%w: %v", domain.ErrPasswordCertificado, err)
	}
	return tls.Certificate{
		Certificate: [][]byte{cert.Raw},
		PrivateKey:  priv,
		Leaf:        cert,
	}, nil
}

// rsaKey extrae la llave RSA del certificado; los validadores de la
// autoridad solo aceptan RSA.
func rsaKey(cert tls.Certificate) (*rsa.PrivateKey, error) {
	priv, ok := cert.PrivateKey.(*rsa.PrivateKey)
	if !ok || priv == nil {
		return nil, fmt.Errorf("%w: el certificado debe incluir llave privada RSA", domain.ErrFirma)
	}
	return priv, nil
}
