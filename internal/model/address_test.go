package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchStatusValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status MatchStatus
		want   string
	}{
		{StatusExact, "EXACT_MATCH"},
		{StatusStreetNoQuadra, "STREET_FOUND_NO_QUADRA"},
		{StatusBairroMismatch, "BAIRRO_MISMATCH"},
		{StatusCondominium, "CONDOMINIO_DETECTED"},
		{StatusFailed, "FAILED"},
		{StatusManualFix, "MANUAL_FIX"},
		{NeighborStatus(1), "NEIGHBOR_LOTE_1"},
		{NeighborStatus(-3), "NEIGHBOR_LOTE_-3"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, string(tt.status))
		})
	}
}

func TestCoordinate_MarshalJSON(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(Coord(-16.6869))
	require.NoError(t, err)
	assert.Equal(t, "-16.6869", string(b))

	b, err = json.Marshal(NotFoundCoord())
	require.NoError(t, err)
	assert.Equal(t, `"Não encontrado"`, string(b))

	b, err = json.Marshal(Coordinate{})
	require.NoError(t, err)
	assert.Equal(t, `""`, string(b))
}

func TestCoordinate_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	var c Coordinate
	require.NoError(t, json.Unmarshal([]byte("-49.25"), &c))
	assert.True(t, c.Valid)
	assert.InDelta(t, -49.25, c.Value, 1e-9)

	require.NoError(t, json.Unmarshal([]byte(`"Não encontrado"`), &c))
	assert.False(t, c.Valid)
	assert.Equal(t, NotFound, c.Text)

	assert.Error(t, json.Unmarshal([]byte(`{}`), &c))
}

func TestCoordinate_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "-16.5", Coord(-16.5).String())
	assert.Equal(t, NotFound, NotFoundCoord().String())
	assert.Equal(t, "", Coordinate{}.String())
}

func TestMatchResult_Category(t *testing.T) {
	t.Parallel()

	found := MatchResult{Lat: Coord(1), Lng: Coord(2), Status: StatusExact}
	partial := MatchResult{Lat: Coord(1), Lng: Coord(2), Partial: true}

	assert.Equal(t, CategoryFound, found.Category())
	assert.Equal(t, CategoryPartial, partial.Category())
	assert.Equal(t, CategoryCondominium, CondominiumResult(0, "Condominio").Category())
	assert.Equal(t, CategoryNotFound, FailedResult(0, "").Category())
}

func TestTerminalResults(t *testing.T) {
	t.Parallel()

	cond := CondominiumResult(4, "Condominio")
	assert.Equal(t, 4, cond.Index)
	assert.Equal(t, "", cond.Lat.String())
	assert.Equal(t, "", cond.Lng.String())
	assert.False(t, cond.Partial)
	assert.True(t, cond.Condominium)
	assert.Equal(t, StatusCondominium, cond.Status)

	failed := FailedResult(7, "RUA X")
	assert.Equal(t, NotFound, failed.Lat.String())
	assert.Equal(t, NotFound, failed.Lng.String())
	assert.False(t, failed.Partial)
	assert.False(t, failed.Condominium)
	assert.Equal(t, StatusFailed, failed.Status)
	assert.False(t, failed.Found())
}
