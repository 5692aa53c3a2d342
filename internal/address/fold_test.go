package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "GOIANIA", Fold("Goiânia"))
	assert.Equal(t, "SAO JOSE", Fold("São José"))
	assert.Equal(t, "CONDOMINIO", Fold("condomínio"))
	assert.Equal(t, "", Fold(""))
}

func TestCollapseSpaces(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "A B C", collapseSpaces("  A \t B\n\nC "))
	assert.Equal(t, "", collapseSpaces("   "))
}

func TestCardinal(t *testing.T) {
	t.Parallel()

	tests := map[int]string{
		0:   "",
		1:   "UM",
		3:   "TRES",
		10:  "DEZ",
		14:  "QUATORZE",
		19:  "DEZENOVE",
		20:  "VINTE",
		21:  "VINTE E UM",
		55:  "CINQUENTA E CINCO",
		90:  "NOVENTA",
		99:  "NOVENTA E NOVE",
		100: "",
	}
	for n, want := range tests {
		assert.Equal(t, want, Cardinal(n), "Cardinal(%d)", n)
	}
}
