package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncrementalUTF8Decoder_CompleteRunes(t *testing.T) {
	var d incrementalUTF8Decoder
	out := d.push([]byte("hello"))
	assert.Equal(t, "hello", out)
	assert.Empty(t, d.pending)
}

func TestIncrementalUTF8Decoder_SplitAcrossTokens(t *testing.T) {
	var d incrementalUTF8Decoder
	full := "日本語"
	raw := []byte(full)
	require.True(t, len(raw) > 3)

	// Split mid-rune: first two bytes of the first 3-byte rune.
	first := d.push(raw[:2])
	assert.Empty(t, first, "incomplete rune must not be emitted yet")

	rest := d.push(raw[2:])
	assert.Equal(t, full, rest)
}

func TestIncrementalUTF8Decoder_InvalidByteSkipped(t *testing.T) {
	var d incrementalUTF8Decoder
	out := d.push([]byte{0xff, 'a'})
	assert.Equal(t, "a", out, "an invalid lead byte should be skipped, not stall output forever")
}

func TestIncrementalUTF8Decoder_EmptyPush(t *testing.T) {
	var d incrementalUTF8Decoder
	assert.Equal(t, "", d.push(nil))
}
