package recovery

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidCPF(t *testing.T) {
	tests := []struct {
		name string
		cpf  string
		want bool
	}{
		{"valid with punctuation", "529.982.247-25", true},
		{"valid digits only", "52998224725", true},
		{"wrong check digit", "529.982.247-24", false},
		{"all same digits", "111.111.111-11", false},
		{"too short", "1234567890", false},
		{"too long", "123456789012", false},
		{"empty", "", false},
		{"letters", "abc.def.ghi-jk", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidCPF(tt.cpf))
		})
	}
}

func TestValidCPF_AllRepeatedDigitsRejected(t *testing.T) {
	for d := '0'; d <= '9'; d++ {
		cpf := strings.Repeat(string(d), 11)
		assert.False(t, ValidCPF(cpf), "repeated digit CPF %s must be invalid", cpf)
	}
}

func TestNewSandboxName(t *testing.T) {
	name := newSandboxName()
	assert.True(t, strings.HasPrefix(name, "recovery_test_"))
	assert.Len(t, name, len("recovery_test_")+12)

	// names are unique per run
	assert.NotEqual(t, name, newSandboxName())
}

func TestQualify(t *testing.T) {
	assert.Equal(t, "`sandbox`.`usuarios`", qualify("sandbox", "usuarios"))
}
