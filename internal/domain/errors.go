package domain

import "errors"

// Errores de dominio (sin dependencias externas). Cada etapa de la emisión
// retorna uno de estos sentinelas envuelto con contexto; el llamador los
// distingue con errors.Is — nunca con booleanos pelados.
var (
	// ErrCafFaltante: no hay archivo CAF configurado/legible para el tipo pedido,
	// o el archivo no contiene el rango autorizado esperado.
	ErrCafFaltante = errors.New("CAF faltante o inválido para el tipo de documento")

	// ErrFoliosAgotados: el rango autorizado se consumió por completo.
	// Requiere cargar un nuevo CAF; la llamada que falla no muta estado.
	ErrFoliosAgotados = errors.New("rango de folios agotado: cargue un nuevo CAF")

	// ErrBoletaNominativaRequerida: boleta sobre el umbral sin receptor
	// plenamente identificado (RUT y correo de contacto).
	ErrBoletaNominativaRequerida = errors.New("boleta sobre el umbral: se requiere receptor identificado")

	// ErrEnsamblaje: entrada estructuralmente inválida (faltan campos
	// obligatorios del emisor/receptor para el tipo de documento).
	ErrEnsamblaje = errors.New("no se pudo ensamblar el documento: datos incompletos")

	// ErrCertificadoFaltante: archivo de certificado ausente o ilegible.
	ErrCertificadoFaltante = errors.New("certificado digital faltante o ilegible")

	// ErrPasswordCertificado: el PKCS#12 no se pudo abrir con la contraseña dada.
	ErrPasswordCertificado = errors.New("contraseña del certificado incorrecta")

	// ErrFirma: falló la operación criptográfica de firma. Reintentable una vez;
	// ninguna etapa de firma muta estado (el folio ya fue consumido antes,
	// y eso es intencional).
	ErrFirma = errors.New("falló la firma digital")
)
