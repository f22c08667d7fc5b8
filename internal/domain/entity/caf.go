package entity

import "time"

// FolioRange representa el rango de folios autorizado por un CAF del SII
// para un tipo de documento. Inmutable una vez parseado; un solo rango
// vigente por tipo a la vez.
type FolioRange struct {
	TipoDTE          int       // Tipo de documento autorizado (<TD>)
	Desde            int64     // Primer folio autorizado (<RNG><D>)
	Hasta            int64     // Último folio autorizado (<RNG><H>)
	FechaResolucion  time.Time // Fecha de autorización (<FA>)
	NumeroResolucion string    // Identificador de la resolución/llave (<IDK>)

	// BloqueCAF es el elemento <CAF>...</CAF> completo, byte a byte tal como
	// viene en el archivo. Se copia sin reinterpretar dentro del TED de cada
	// documento; modificarlo invalidaría la firma del SII que trae adentro.
	BloqueCAF []byte
}

// Contains indica si el folio cae dentro del rango autorizado.
func (r FolioRange) Contains(folio int64) bool {
	return folio >= r.Desde && folio <= r.Hasta
}

// Size cantidad de folios que autoriza el rango.
func (r FolioRange) Size() int64 {
	return r.Hasta - r.Desde + 1
}
