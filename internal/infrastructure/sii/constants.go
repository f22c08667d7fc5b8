package sii

// Algoritmos y namespaces de la firma XML. La familia RSA/SHA-1 está obsoleta
// fuera de este dominio, pero es la que aceptan los validadores de la
// autoridad: la compatibilidad de protocolo manda sobre la práctica general.
const (
	NamespaceDS        = "http://www.w3.org/2000/09/xmldsig#"
	AlgC14N            = "http://www.w3.org/TR/2001/REC-xml-c14n-20010315"
	AlgRSASHA1         = "http://www.w3.org/2000/09/xmldsig#rsa-sha1"
	AlgSHA1            = "http://www.w3.org/2000/09/xmldsig#sha1"
	TransformEnveloped = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"
)
