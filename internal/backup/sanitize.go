package backup

import (
	"strings"
)

// RedactedValue replaces secrets that must never leave the store
const RedactedValue = "[REDACTED]"

// Sanitizer masks personally identifiable fields before records are
// serialized into an archive payload.
type Sanitizer struct {
	rules map[string]func(record map[string]interface{})
}

// NewSanitizer creates a sanitizer with the per-table masking rules
func NewSanitizer() *Sanitizer {
	s := &Sanitizer{rules: make(map[string]func(map[string]interface{}))}

	s.rules["usuarios"] = func(record map[string]interface{}) {
		redactField(record, "senha_hash")
		maskStringField(record, "email", MaskEmail)
	}
	s.rules["colaboradores"] = func(record map[string]interface{}) {
		maskStringField(record, "cpf", MaskCPF)
		maskStringField(record, "email", MaskEmail)
		maskStringField(record, "telefone", MaskPhone)
	}
	s.rules["registros_ponto"] = func(record map[string]interface{}) {
		maskStringField(record, "ip_address", MaskIP)
	}
	s.rules["audit_sessions"] = func(record map[string]interface{}) {
		maskStringField(record, "ip_address", MaskIP)
		redactField(record, "token_hash")
	}
	s.rules["logs_auditoria"] = func(record map[string]interface{}) {
		maskStringField(record, "ip_address", MaskIP)
	}

	return s
}

// SanitizeRecord applies the table's masking rule in place
func (s *Sanitizer) SanitizeRecord(table string, record map[string]interface{}) {
	if rule, ok := s.rules[table]; ok {
		rule(record)
	}
}

// StripBiometric removes raw biometric payloads from a record
func (s *Sanitizer) StripBiometric(record map[string]interface{}) {
	for _, field := range []string{"template_data", "face_encoding", "fingerprint_data"} {
		if _, ok := record[field]; ok {
			record[field] = RedactedValue
		}
	}
}

func redactField(record map[string]interface{}, field string) {
	if _, ok := record[field]; ok {
		record[field] = RedactedValue
	}
}

func maskStringField(record map[string]interface{}, field string, mask func(string) string) {
	if v, ok := record[field]; ok {
		if str, ok := v.(string); ok && str != "" {
			record[field] = mask(str)
		}
	}
}

// MaskCPF keeps the first three and last two digits of a CPF
func MaskCPF(cpf string) string {
	digits := onlyDigits(cpf)
	if len(digits) != 11 {
		return "***"
	}
	return digits[:3] + ".***.***-" + digits[9:]
}

// MaskEmail keeps the first character of the local part and the domain
func MaskEmail(email string) string {
	at := strings.Index(email, "@")
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***@" + email[at+1:]
}

// MaskPhone keeps only the last four digits
func MaskPhone(phone string) string {
	digits := onlyDigits(phone)
	if len(digits) < 4 {
		return "***"
	}
	return "***" + digits[len(digits)-4:]
}

// MaskIP keeps only the first octet of an IPv4 address
func MaskIP(ip string) string {
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return "***"
	}
	return parts[0] + ".***.***.***"
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
