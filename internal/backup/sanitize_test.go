package backup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizer_Usuarios(t *testing.T) {
	s := NewSanitizer()
	record := map[string]interface{}{
		"id":         1,
		"email":      "joao.silva@empresa.com.br",
		"senha_hash": "$2b$10$abcdefghij",
		"perfil":     "ADMINISTRADOR",
	}

	s.SanitizeRecord("usuarios", record)

	assert.Equal(t, "j***@empresa.com.br", record["email"])
	assert.Equal(t, RedactedValue, record["senha_hash"])
	assert.Equal(t, "ADMINISTRADOR", record["perfil"])
	assert.Equal(t, 1, record["id"])
}

func TestSanitizer_Colaboradores(t *testing.T) {
	s := NewSanitizer()
	record := map[string]interface{}{
		"cpf":      "123.456.789-09",
		"email":    "maria@empresa.com",
		"telefone": "(11) 98765-4321",
		"nome":     "Maria Souza",
	}

	s.SanitizeRecord("colaboradores", record)

	assert.Equal(t, "123.***.***-09", record["cpf"])
	assert.Equal(t, "m***@empresa.com", record["email"])
	assert.Equal(t, "***4321", record["telefone"])
	assert.Equal(t, "Maria Souza", record["nome"])
}

func TestSanitizer_AuditSessions(t *testing.T) {
	s := NewSanitizer()
	record := map[string]interface{}{
		"ip_address": "192.168.1.42",
		"token_hash": "abc123",
	}

	s.SanitizeRecord("audit_sessions", record)

	assert.Equal(t, "192.***.***.***", record["ip_address"])
	assert.Equal(t, RedactedValue, record["token_hash"])
}

func TestSanitizer_UnknownTableUntouched(t *testing.T) {
	s := NewSanitizer()
	record := map[string]interface{}{
		"cpf":   "123.456.789-09",
		"email": "x@y.com",
	}

	s.SanitizeRecord("configuracoes", record)

	assert.Equal(t, "123.456.789-09", record["cpf"])
	assert.Equal(t, "x@y.com", record["email"])
}

func TestSanitizer_StripBiometric(t *testing.T) {
	s := NewSanitizer()
	record := map[string]interface{}{
		"colaborador_id": 7,
		"template_data":  "base64-template",
		"face_encoding":  "base64-encoding",
	}

	s.StripBiometric(record)

	assert.Equal(t, RedactedValue, record["template_data"])
	assert.Equal(t, RedactedValue, record["face_encoding"])
	assert.Equal(t, 7, record["colaborador_id"])
}

func TestMaskCPF(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"123.456.789-09", "123.***.***-09"},
		{"12345678909", "123.***.***-09"},
		{"12345", "***"},
		{"", "***"},
		{"not-a-cpf", "***"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MaskCPF(tt.input), "input %q", tt.input)
	}
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "a***@example.com", MaskEmail("admin@example.com"))
	assert.Equal(t, "***", MaskEmail("not-an-email"))
	assert.Equal(t, "***", MaskEmail("@nolocal.com"))
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "***4321", MaskPhone("(11) 98765-4321"))
	assert.Equal(t, "***", MaskPhone("123"))
}

func TestMaskIP(t *testing.T) {
	assert.Equal(t, "10.***.***.***", MaskIP("10.0.0.1"))
	assert.Equal(t, "***", MaskIP("::1"))
}
