package ngramlm

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"testing"

	"github.com/hupe1980/ngramlm/format"
	"github.com/hupe1980/ngramlm/internal/backend"
	"github.com/hupe1980/ngramlm/internal/conv"
	"github.com/hupe1980/ngramlm/vocab"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateError(t *testing.T) {
	assert.NoError(t, translateError("lm.bin", "load", nil))

	t.Run("public errors pass through", func(t *testing.T) {
		for _, err := range []error{
			format.NewFormatError("lm.bin", "bad", nil),
			&UnsupportedOrderError{Path: "lm.bin", MaxOrder: 2, ModelOrder: 3},
			&VocabularyPolicyError{Path: "lm.bin", Token: "</s>", Policy: ThrowUp},
			&NumericPolicyError{Path: "lm.bin", Order: 1, Words: []string{"a"}, Prob: 1},
			NewIOError("lm.bin", "read", io.ErrUnexpectedEOF),
			fmt.Errorf("%w: lm.bin", ErrModelHasNoVocab),
		} {
			assert.Same(t, err, translateError("other.bin", "load", err))
		}
	})

	t.Run("layout errors become format errors", func(t *testing.T) {
		for _, cause := range []error{
			fmt.Errorf("%w: bucket count", backend.ErrCorrupt),
			vocab.ErrCorrupt,
			fmt.Errorf("decompressed size: %w", conv.ErrOverflow),
		} {
			err := translateError("lm.bin", "load", cause)
			var fe *FormatError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, "lm.bin", fe.Path)
			assert.ErrorIs(t, err, cause)
		}
	})

	t.Run("missing strings", func(t *testing.T) {
		err := translateError("lm.bin", "load", vocab.ErrNoWords)
		assert.ErrorIs(t, err, ErrModelHasNoVocab)
		assert.ErrorIs(t, err, vocab.ErrNoWords)
	})

	t.Run("everything else is io", func(t *testing.T) {
		err := translateError("lm.bin", "read", fs.ErrPermission)
		var ioe *IOError
		require.ErrorAs(t, err, &ioe)
		assert.Equal(t, "read", ioe.Op)
		assert.ErrorIs(t, err, fs.ErrPermission)
		assert.Equal(t, "ngramlm: read lm.bin: permission denied", err.Error())
	})
}

func TestPolicyErrorMessages(t *testing.T) {
	vpe := &VocabularyPolicyError{Token: "<s>", Policy: ThrowUp}
	assert.Equal(t, "ngramlm: vocabulary has no <s> (policy throw_up)", vpe.Error())
	vpe.Path = "lm.bin"
	assert.Equal(t, "ngramlm: lm.bin: vocabulary has no <s> (policy throw_up)", vpe.Error())

	npe := &NumericPolicyError{Path: "lm.bin", Order: 2, Words: []string{"a", "b"}, Prob: 0.5}
	assert.Contains(t, npe.Error(), `["a" "b"]`)
	assert.Nil(t, errors.Unwrap(npe))
}
