package sii

import (
	"bytes"
	"fmt"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// xmlDeclLatin1 declaración que exige la autoridad en los archivos enviados.
const xmlDeclLatin1 = `<?xml version="1.0" encoding="ISO-8859-1"?>` + "\n"

// EncodeLatin1 convierte el XML (UTF-8 interno) a ISO-8859-1 y antepone la
// declaración correspondiente. La autoridad no acepta UTF-8 en los archivos
// de DTE ni de reportes.
func EncodeLatin1(xmlBytes []byte) ([]byte, error) {
	// Quitar una declaración previa si la hubiera
	if bytes.HasPrefix(xmlBytes, []byte("<?xml")) {
		if fin := bytes.Index(xmlBytes, []byte("?>")); fin >= 0 {
			xmlBytes = bytes.TrimLeft(xmlBytes[fin+2:], "\r\n")
		}
	}

	var out bytes.Buffer
	out.WriteString(xmlDeclLatin1)
	w := transform.NewWriter(&out, charmap.ISO8859_1.NewEncoder())
	if _, err := w.Write(xmlBytes); err != nil {
		return nil, fmt.Errorf("codificar a ISO-8859-1: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("codificar a ISO-8859-1: %w", err)
	}
	return out.Bytes(), nil
}
