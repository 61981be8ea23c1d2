package names

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromText(t *testing.T) {
	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{"meu nome é Ana", "Ana", true},
		{"Oi! Meu nome é ana maria e eu gosto de café", "Ana Maria", true},
		{"meu nome e joão", "João", true},
		{"MEU NOME É CARLOS", "Carlos", true},
		{"pode me chamar de Duda!", "Duda", true},
		{"me chama de bia, por favor", "Bia", true},
		{"me chame de Lu", "Lu", true},
		{"my name is john smith", "John Smith", true},
		{"call me Ishmael.", "Ishmael", true},
		{"meu nome é Ana Maria Souza Lima", "Ana Maria Souza", true},
		{"Eu sou a Carla", "Carla", true},
		{"sou o João muito feliz", "João", true},
		{"I'm Peter", "Peter", true},
		{"I am Mary Jane", "Mary Jane", true},
		{"sou a favor disso", "", false},
		{"I'm tired", "", false},
		{"sou o melhor", "", false},
		{"me chame de a", "", false},
		{"meu nome é Aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "", false},
		{"qual seu nome?", "", false},
		{"me chama de novo quando puder", "", false},
		{"pode me chamar de volta amanhã?", "", false},
		{"me chame de volta depois", "", false},
		{"call me back later", "", false},
		{"call me when you can", "", false},
		{"me chama de Nina quando puder", "Nina", true},
		{"pode me chamar de Dani amanhã", "Dani", true},
		{"estou triste hoje", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := FromText(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeDisplayName(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"Ana Paula", "Ana"},
		{"ana", "Ana"},
		{"Hoje, ✨ ana   paula", "Ana"},
		{"today: John", "John"},
		{"ontem - Marcos Silva", "Marcos"},
		{"12/03 Bia", "Bia"},
		{"12/03/2026 hoje Bia", "Bia"},
		{"🌸 Júlia", "Júlia"},
		{"Carla,, Souza", "Carla"},
		{"Paulo🔥", "Paulo"},
		{"Hojeana", "Hojeana"},
		{"Hoje", ""},
		{"  ", ""},
		{"123 456", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeDisplayName(tt.raw))
		})
	}
}
