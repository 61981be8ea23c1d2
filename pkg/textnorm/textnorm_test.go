package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"trim and lower", "  AJUDA  ", "ajuda"},
		{"diacritics", "Diário: Hoje", "diario: hoje"},
		{"cedilla and tilde", "Atenção, ansiosa", "atencao, ansiosa"},
		{"collapse whitespace", "qual   seu\t\nnome", "qual seu nome"},
		{"already folded", "reset", "reset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Fold(tt.input))
		})
	}
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "João", Title("JOÃO"))
	assert.Equal(t, "Maria Clara", Title(" maria clara "))
}

func TestContainsAny(t *testing.T) {
	hit, ok := ContainsAny("estou triste hoje", []string{"cansad", "triste"})
	assert.True(t, ok)
	assert.Equal(t, "triste", hit)

	_, ok = ContainsAny("tudo bem", []string{"triste", ""})
	assert.False(t, ok)
}
