package tree

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tr := grownTree(t)

	data, err := tr.Encode()
	require.NoError(t, err)
	back, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, tr, back, "Decoding should restore the exact training state")
	assert.True(t, back.IsFinished())
	assert.Equal(t, tr.CheckpointKey, back.CheckpointKey)
}

func TestEncodeIsDeterministic(t *testing.T) {
	tr := grownTree(t)

	first, err := tr.Encode()
	require.NoError(t, err)
	second, err := tr.Encode()
	require.NoError(t, err)

	assert.Equal(t, first, second, "The same state should always encode to the same bytes")
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("not a checkpoint"))

	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "unmarshaling", decodeErr.Reason)
}

func TestDecodeRejectsInconsistentState(t *testing.T) {
	tr := grownTree(t)
	tr.At(tr.Root).Right = NoChild
	data, err := json.Marshal(tr)
	require.NoError(t, err)

	_, err = Decode(data)

	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "inconsistent state", decodeErr.Reason)
}

func TestDecodeErrorUnwraps(t *testing.T) {
	_, err := Decode([]byte("{"))

	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Error(t, decodeErr.Unwrap(), "The parser diagnostic should stay reachable")
}
