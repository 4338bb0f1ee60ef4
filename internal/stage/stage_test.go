package stage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demandline/internal/stage"
)

func TestCatalogOrdinalsAreDense(t *testing.T) {
	all := stage.All()
	require.Len(t, all, stage.Count)
	for i, s := range all {
		assert.Equal(t, i, s.Ordinal)
		assert.NotEmpty(t, s.Key)
		assert.NotEmpty(t, s.Label)
		assert.NotEmpty(t, s.Color)
	}
}

func TestCatalogKeysAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, s := range stage.All() {
		assert.False(t, seen[s.Key], "duplicate key %s", s.Key)
		seen[s.Key] = true
	}
}

func TestCatalogEndpoints(t *testing.T) {
	first, err := stage.ByOrdinal(0)
	require.NoError(t, err)
	assert.Equal(t, "demand_to_be_initiated", first.Key)
	assert.Equal(t, "Demand to be Initiated", first.Label)

	last, err := stage.ByOrdinal(stage.Count - 1)
	require.NoError(t, err)
	assert.Equal(t, "available_for_integration", last.Key)
	assert.Equal(t, "Available for Integration", last.Label)
}

func TestByKey(t *testing.T) {
	s, err := stage.ByKey("financial_sanction")
	require.NoError(t, err)
	assert.Equal(t, 9, s.Ordinal)

	_, err = stage.ByKey("nonsense")
	assert.ErrorIs(t, err, stage.ErrUnknownStage)
}

func TestProgressKeyIsNotACatalogStage(t *testing.T) {
	assert.False(t, stage.IsKnown(stage.ProgressKey))
	_, err := stage.ByKey(stage.ProgressKey)
	assert.ErrorIs(t, err, stage.ErrUnknownStage)
}

func TestByOrdinalBounds(t *testing.T) {
	_, err := stage.ByOrdinal(-1)
	assert.ErrorIs(t, err, stage.ErrUnknownStage)
	_, err = stage.ByOrdinal(stage.Count)
	assert.ErrorIs(t, err, stage.ErrUnknownStage)
}
