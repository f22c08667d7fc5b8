package emission

import (
	"context"

	"github.com/tu-usuario/facturacion-sii/internal/domain/entity"
)

// FolioAllocator entrega el siguiente folio autorizado de un tipo de documento.
type FolioAllocator interface {
	Allocate(ctx context.Context, tipoDTE int) (int64, error)
}

// Enviador es el colaborador de transporte hacia la autoridad tributaria:
// recibe un documento ya firmado y devuelve el identificador de seguimiento
// del envío. La implementación concreta (upload SOAP/REST del SII) vive fuera
// de este módulo; en desarrollo se usa un stub.
type Enviador interface {
	Enviar(ctx context.Context, d *entity.DTE) (trackID string, err error)
}
