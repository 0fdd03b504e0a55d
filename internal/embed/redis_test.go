package embed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorEncoding_RoundTrip(t *testing.T) {
	v := []float32{0.25, -1.5, 3.125, 0}

	got, err := decodeVector(encodeVector(v))

	require.NoError(t, err)
	assert.Equal(t, v, got)
	assert.Len(t, encodeVector(v), 16)
}

func TestDecodeVector_RejectsTruncatedBytes(t *testing.T) {
	_, err := decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}
