package sii

import (
	"fmt"
	"strings"
)

// NormalizeRUT deja el RUT en formato canónico "cuerpo-DV" sin puntos,
// con el dígito verificador en mayúscula. "12.345.678-k" -> "12345678-K".
func NormalizeRUT(rut string) string {
	s := strings.ToUpper(strings.TrimSpace(rut))
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, "-", "")
	if len(s) < 2 {
		return s
	}
	return s[:len(s)-1] + "-" + s[len(s)-1:]
}

// ValidateRUT valida el dígito verificador de un RUT chileno (módulo 11).
// Acepta "76.543.210-K", "76543210-K" o "76543210K".
func ValidateRUT(rut string) error {
	s := strings.ToUpper(strings.TrimSpace(rut))
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, "-", "")
	if len(s) < 2 {
		return fmt.Errorf("sii: RUT demasiado corto: %q", rut)
	}
	body, dv := s[:len(s)-1], s[len(s)-1:]
	for _, r := range body {
		if r < '0' || r > '9' {
			return fmt.Errorf("sii: RUT con caracteres no numéricos en el cuerpo: %q", rut)
		}
	}
	if expected := VerificationDigit(body); expected != dv {
		return fmt.Errorf("sii: dígito verificador incorrecto para %q (esperado %s)", rut, expected)
	}
	return nil
}

// VerificationDigit calcula el dígito verificador módulo 11 para el cuerpo de un RUT.
// Los factores 2..7 se aplican de derecha a izquierda, reiniciando en 2.
func VerificationDigit(body string) string {
	sum, factor := 0, 2
	for i := len(body) - 1; i >= 0; i-- {
		sum += int(body[i]-'0') * factor
		factor++
		if factor > 7 {
			factor = 2
		}
	}
	switch rest := 11 - (sum % 11); rest {
	case 11:
		return "0"
	case 10:
		return "K"
	default:
		return fmt.Sprintf("%d", rest)
	}
}
