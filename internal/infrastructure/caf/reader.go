// Package caf parsea los archivos de Código de Autorización de Folios que
// entrega el SII, uno por tipo de documento.
package caf

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/tu-usuario/facturacion-sii/internal/domain"
	"github.com/tu-usuario/facturacion-sii/internal/domain/entity"
)

// ReadFile lee y parsea el archivo CAF en path. Retorna ErrCafFaltante
// (envuelto) si el archivo no existe, no es XML o no trae el rango esperado.
func ReadFile(path string) (*entity.FolioRange, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: leer %s: %v", domain.ErrCafFaltante, path, err)
	}
	return Parse(data)
}

// Parse interpreta el contenido de un CAF. La búsqueda de nodos es por
// local-name, ignorando prefijos y namespaces: los archivos emitidos por la
// autoridad no declaran el namespace por defecto de forma consistente entre
// tipos de documento.
func Parse(data []byte) (*entity.FolioRange, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("%w: parsear XML: %v", domain.ErrCafFaltante, err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("%w: documento sin raíz", domain.ErrCafFaltante)
	}

	da := findLocal(root, "DA")
	if da == nil {
		return nil, fmt.Errorf("%w: no se encontró el nodo DA", domain.ErrCafFaltante)
	}
	rng := findLocal(da, "RNG")
	if rng == nil {
		return nil, fmt.Errorf("%w: no se encontró el rango RNG", domain.ErrCafFaltante)
	}

	tipo, err := intText(da, "TD")
	if err != nil {
		return nil, err
	}
	desde, err := int64Text(rng, "D")
	if err != nil {
		return nil, err
	}
	hasta, err := int64Text(rng, "H")
	if err != nil {
		return nil, err
	}
	if desde > hasta {
		return nil, fmt.Errorf("%w: rango invertido %d-%d", domain.ErrCafFaltante, desde, hasta)
	}

	r := &entity.FolioRange{
		TipoDTE: tipo,
		Desde:   desde,
		Hasta:   hasta,
	}
	if fa := findLocal(da, "FA"); fa != nil {
		if fecha, err := time.Parse("2006-01-02", fa.Text()); err == nil {
			r.FechaResolucion = fecha
		}
	}
	if idk := findLocal(da, "IDK"); idk != nil {
		r.NumeroResolucion = idk.Text()
	}

	bloque, err := rawCafBlock(data)
	if err != nil {
		return nil, err
	}
	r.BloqueCAF = bloque

	return r, nil
}

// rawCafBlock extrae el elemento <CAF>...</CAF> tal cual viene en el archivo,
// byte a byte. No se puede reserializar con el parser: el bloque trae adentro
// la firma del SII sobre esos bytes exactos. Acepta el elemento con o sin
// prefijo de namespace.
func rawCafBlock(data []byte) ([]byte, error) {
	inicio, nombre := buscarAperturaCAF(data)
	if inicio < 0 {
		return nil, fmt.Errorf("%w: no se encontró el bloque CAF", domain.ErrCafFaltante)
	}
	cierre := "</" + nombre + ">"
	fin := bytes.Index(data[inicio:], []byte(cierre))
	if fin < 0 {
		return nil, fmt.Errorf("%w: bloque CAF sin cierre", domain.ErrCafFaltante)
	}
	fin = inicio + fin + len(cierre)
	return append([]byte(nil), data[inicio:fin]...), nil
}

// buscarAperturaCAF retorna la posición del tag de apertura cuyo local-name
// es CAF y el nombre completo del tag (con prefijo si lo trae).
func buscarAperturaCAF(data []byte) (int, string) {
	for i := 0; i < len(data); i++ {
		if data[i] != '<' || i+1 >= len(data) || data[i+1] == '/' || data[i+1] == '?' || data[i+1] == '!' {
			continue
		}
		j := i + 1
		for j < len(data) && data[j] != '>' && data[j] != '/' && data[j] != ' ' && data[j] != '\t' && data[j] != '\r' && data[j] != '\n' {
			j++
		}
		nombre := string(data[i+1 : j])
		if nombre == "CAF" || strings.HasSuffix(nombre, ":CAF") {
			return i, nombre
		}
	}
	return -1, ""
}

// findLocal busca en profundidad el primer elemento cuyo local-name coincida,
// sin importar prefijo ni namespace.
func findLocal(el *etree.Element, local string) *etree.Element {
	for _, child := range el.ChildElements() {
		if child.Tag == local {
			return child
		}
		if found := findLocal(child, local); found != nil {
			return found
		}
	}
	return nil
}

func intText(parent *etree.Element, local string) (int, error) {
	el := findLocal(parent, local)
	if el == nil {
		return 0, fmt.Errorf("%w: falta el nodo %s", domain.ErrCafFaltante, local)
	}
	n, err := strconv.Atoi(el.Text())
	if err != nil {
		return 0, fmt.Errorf("%w: nodo %s no numérico: %q", domain.ErrCafFaltante, local, el.Text())
	}
	return n, nil
}

func int64Text(parent *etree.Element, local string) (int64, error) {
	el := findLocal(parent, local)
	if el == nil {
		return 0, fmt.Errorf("%w: falta el nodo %s", domain.ErrCafFaltante, local)
	}
	n, err := strconv.ParseInt(el.Text(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: nodo %s no numérico: %q", domain.ErrCafFaltante, local, el.Text())
	}
	return n, nil
}
