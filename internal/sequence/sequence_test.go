package sequence_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"demandline/internal/sequence"
	"demandline/internal/stage"
)

func TestFirstStageMustBeZero(t *testing.T) {
	assert.NoError(t, sequence.Validate(nil, 0))

	err := sequence.Validate(nil, 3)
	assert.EqualError(t, err, "first stage must be 0 (Demand to be Initiated), but got 3")
	seqErr, ok := err.(sequence.InvalidSequenceError)
	assert.True(t, ok)
	assert.Equal(t, 0, seqErr.Expected)
	assert.Equal(t, 3, seqErr.Got)
}

func TestStrictChainNoSkipsRepeatsOrReversals(t *testing.T) {
	two := 2
	assert.NoError(t, sequence.Validate(&two, 3))

	// skip
	err := sequence.Validate(&two, 5)
	assert.EqualError(t, err, "invalid stage sequence: expected stage 3, but got 5")

	// repeat
	assert.Error(t, sequence.Validate(&two, 2))

	// reversal
	assert.Error(t, sequence.Validate(&two, 1))
}

func TestNext(t *testing.T) {
	assert.Equal(t, 0, sequence.Next(nil))
	five := 5
	assert.Equal(t, 6, sequence.Next(&five))
	last := stage.Count - 1
	assert.Equal(t, stage.Count, sequence.Next(&last))
}

func TestFullChainIsAccepted(t *testing.T) {
	var max *int
	for i := 0; i < stage.Count; i++ {
		assert.NoError(t, sequence.Validate(max, i), "ordinal %d", i)
		v := i
		max = &v
	}
}
