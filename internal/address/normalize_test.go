package address

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizer_Canonical(t *testing.T) {
	t.Parallel()

	n := NewNormalizer(nil, nil)

	tests := []struct {
		name   string
		raw    string
		bairro string
		want   string
	}{
		{"coded street with plot", "Rua RC 11 Qd 5 Lt 7", "Setor Central", "RUA RC-011, 5-7"},
		{"glued code", "R RC11 QD5 LT7", "", "RUA RC-011, 5-7"},
		{"abbreviated avenue", "Av. Goiás, Qd 10 Lt 2", "", "AVENIDA GOIAS, 10-2"},
		{"avenue without dot", "AV T 63 QD 100 LT 5", "", "AVENIDA T-063, 100-5"},
		{"unpadded code", "Rua MDV 13 Qd 4 Lt 8", "", "RUA MDV-13, 4-8"},
		{"numbered street", "Rua 9 Qd 2 Lt 3", "", "RUA NOVE, 2-3"},
		{"numbered street two digits", "rua 21, qd 2", "", "RUA VINTE E UM, Q-2"},
		{"quadra only", "Rua das Flores Qd 12", "", "RUA DAS FLORES, Q-12"},
		{"bare street", "Avenida Anhanguera", "", "AVENIDA ANHANGUERA"},
		{"house number separator", "Rua 10 nº 520", "", "RUA DEZ"},
		{"dash separator", "Rua Antonio - Setor Oeste", "", "RUA ANTONIO"},
		{"plot first", "Qd 5 Lt 7 Rua RC 11", "", "RUA RC-011, 5-7"},
		{"bare pair", "Rua RC 11, 5-7", "", "RUA RC-011, 5-7"},
		{"zero plot ignored", "Rua X Qd 0 Lt 0", "", "RUA X"},
		{"tagged placeholder plot", "Rua X Qd SN Lt 0", "", "RUA X"},
		{"tagged slash placeholder", "Rua X Qd S/N Lt 4", "", "RUA X"},
		{"condominium", "Condomínio das Flores, Bloco 2", "", CondominiumSentinel},
		{"condominium by neighborhood", "Rua 3", "Residencial Miami", CondominiumSentinel},
		{"condominium exception", "Rua Canadá Qd 3 Lt 4", "Residencial Canadá Apto", "RUA CANADA, 3-4"},
		{"empty", "", "", ""},
		{"placeholder", "nan", "", ""},
		{"only plot", "Qd 5 Lt 7", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, n.Canonical(tt.raw, tt.bairro))
		})
	}
}

func TestNormalizer_Normalize(t *testing.T) {
	t.Parallel()

	n := NewNormalizer(nil, nil)

	addr, err := n.Normalize("Rua RC 11 Qd 05 Lt 07", "")
	require.NoError(t, err)
	assert.Equal(t, NormalizedAddress{Street: "RUA RC-011", Quadra: "5", Lote: "7"}, addr)

	addr, err = n.Normalize("Edifício Central apto 12", "")
	require.NoError(t, err)
	assert.True(t, addr.Condominium)
	assert.Empty(t, addr.Street)
	assert.Empty(t, addr.Quadra)
	assert.Empty(t, addr.Lote)
}

func TestNormalizer_ParseError(t *testing.T) {
	t.Parallel()

	n := NewNormalizer(nil, nil)

	_, err := n.Normalize("   ", "")
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "empty address", pe.Reason)
	assert.Contains(t, pe.Error(), "empty address")

	_, err = n.Normalize(", - ,", "")
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "no street name", pe.Reason)
}

func TestNormalizer_RecoversFromPanic(t *testing.T) {
	t.Parallel()

	n := NewNormalizer(nil, nil)
	n.rewrites = append(n.rewrites, rewrite{name: "boom", apply: func(string) string { panic("boom") }})

	addr, err := n.Normalize("Rua X", "")
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "internal fault", pe.Reason)
	assert.Equal(t, NormalizedAddress{}, addr)
	assert.Empty(t, n.Canonical("Rua X", ""))
}

func TestNormalizer_IsCondominium(t *testing.T) {
	t.Parallel()

	n := NewNormalizer(nil, nil)

	tests := []struct {
		raw, bairro string
		want        bool
	}{
		{"Cond. Jardins", "", true},
		{"Rua 5 BL 3 AP 101", "", true},
		{"Rua 5", "Jardins Lisboa", true},
		{"Rua Condor 5", "", false},
		{"Rua Apolo", "", false},
		{"Rua Vereda dos Buritis Bloco 2", "", false},
		{"Rua 5 Qd 3", "Setor Bueno", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, n.IsCondominium(tt.raw, tt.bairro))
		})
	}
}

func TestRewriteTable(t *testing.T) {
	t.Parallel()

	n := NewNormalizer(nil, nil)
	byName := make(map[string]rewrite, len(n.rewrites))
	names := make([]string, 0, len(n.rewrites))
	for _, rw := range n.rewrites {
		byName[rw.name] = rw
		names = append(names, rw.name)
	}

	assert.Equal(t, []string{"cleanup", "split", "street_prefix", "avenue_prefix", "coded_street", "numeral"}, names)

	tests := []struct {
		rule string
		in   string
		want string
	}{
		{"cleanup", "RUA  X / QD 5 / 7", "RUA X QD 5-7"},
		{"split", "RC11 QD5", "RC 11 QD 5"},
		{"street_prefix", "R. GOIAS", "RUA GOIAS"},
		{"street_prefix", "R 9", "RUA 9"},
		{"street_prefix", "RODOVIA", "RODOVIA"},
		{"avenue_prefix", "AV.ANHANGUERA", "AVENIDA ANHANGUERA"},
		{"avenue_prefix", "AVENIDA X", "AVENIDA X"},
		{"coded_street", "RUA RC 11", "RUA RC-011"},
		{"coded_street", "RUA T-63", "RUA T-063"},
		{"coded_street", "RUA MDV 013", "RUA MDV-13"},
		{"coded_street", "RUA 12 QD 5 LT 7", "RUA 12 QD 5 LT 7"},
		{"coded_street", "RUA RC-011", "RUA RC-011"},
		{"numeral", "RUA 9 QD 1", "RUA NOVE QD 1"},
		{"numeral", "AVENIDA 85", "AVENIDA OITENTA E CINCO"},
		{"numeral", "RUA 12-5", "RUA 12-5"},
		{"numeral", "RUA 120", "RUA 120"},
	}

	for _, tt := range tests {
		t.Run(tt.rule+"/"+tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, byName[tt.rule].apply(tt.in))
		})
	}
}

func TestNormalizedAddress_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "RUA X, 1-2", NormalizedAddress{Street: "RUA X", Quadra: "1", Lote: "2"}.String())
	assert.Equal(t, "RUA X, Q-1", NormalizedAddress{Street: "RUA X", Quadra: "1"}.String())
	assert.Equal(t, "RUA X", NormalizedAddress{Street: "RUA X", Lote: "2"}.String())
	assert.Equal(t, CondominiumSentinel, NormalizedAddress{Condominium: true}.String())
}
