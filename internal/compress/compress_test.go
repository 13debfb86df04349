package compress

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("mmap lm payload "), 512)

	for _, codec := range []Codec{None, Gzip, Zstd, LZ4} {
		t.Run(codec.String(), func(t *testing.T) {
			var buf bytes.Buffer
			w, err := NewWriter(&buf, codec)
			require.NoError(t, err)
			_, err = w.Write(payload)
			require.NoError(t, err)
			require.NoError(t, w.Close())

			assert.Equal(t, codec, Detect(buf.Bytes()))

			r, got, err := NewReader(&buf)
			require.NoError(t, err)
			defer r.Close()
			assert.Equal(t, codec, got)

			data, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, payload, data)
		})
	}
}

func TestNewReaderShortInput(t *testing.T) {
	r, codec, err := NewReader(bytes.NewReader([]byte{1}))
	require.NoError(t, err)
	assert.Equal(t, None, codec)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, data)
}

func TestUnknownCodec(t *testing.T) {
	_, err := NewWriter(io.Discard, Codec(42))
	assert.ErrorIs(t, err, ErrUnknownCodec)
	assert.Equal(t, "unknown", Codec(42).String())
}
