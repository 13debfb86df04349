package ngramlm

import (
	"errors"
	"fmt"

	"github.com/hupe1980/ngramlm/format"
	"github.com/hupe1980/ngramlm/internal/backend"
	"github.com/hupe1980/ngramlm/internal/conv"
	"github.com/hupe1980/ngramlm/internal/mmap"
	"github.com/hupe1980/ngramlm/vocab"
)

var (
	// ErrModelHasNoVocab is returned when vocabulary strings are requested
	// from a model built without them.
	ErrModelHasNoVocab = errors.New("ngramlm: model has no vocabulary strings")
	// ErrClosed is returned by operations on a closed Model.
	ErrClosed = errors.New("ngramlm: model is closed")
	// ErrChecksumMismatch is the cause of a FormatError raised when the body
	// checksum does not match the header.
	ErrChecksumMismatch = errors.New("ngramlm: checksum mismatch")
)

// FormatError reports an unrecognized or inconsistent model file.
type FormatError = format.FormatError

// UnsupportedOrderError reports a model whose order exceeds the configured
// maximum.
type UnsupportedOrderError = format.UnsupportedOrderError

// VocabularyPolicyError is returned when a required vocabulary entry is
// missing and the matching policy is ThrowUp.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type VocabularyPolicyError struct {
	Path   string
	Token  string
	Policy WarningAction
	cause  error
}

func (e *VocabularyPolicyError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("ngramlm: vocabulary has no %s (policy %s)", e.Token, e.Policy)
	}
	return fmt.Sprintf("ngramlm: %s: vocabulary has no %s (policy %s)", e.Path, e.Token, e.Policy)
}

func (e *VocabularyPolicyError) Unwrap() error { return e.cause }

// NumericPolicyError is returned when a positive log-probability is found
// and PositiveLogProbability is ThrowUp.
type NumericPolicyError struct {
	Path  string
	Order int
	Words []string
	Prob  float32
	cause error
}

func (e *NumericPolicyError) Error() string {
	return fmt.Sprintf("ngramlm: %s: positive log-probability %g for %d-gram %q", e.Path, e.Prob, e.Order, e.Words)
}

func (e *NumericPolicyError) Unwrap() error { return e.cause }

// IOError reports a model file or blob that could not be read or mapped.
//
// The original underlying error can be accessed via errors.Unwrap, so
// errors.Is(err, fs.ErrNotExist) works for missing files.
type IOError struct {
	Path  string
	Op    string
	cause error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("ngramlm: %s %s: %v", e.Op, e.Path, e.cause)
}

func (e *IOError) Unwrap() error { return e.cause }

// NewIOError wraps cause as an IOError.
func NewIOError(path, op string, cause error) *IOError {
	return &IOError{Path: path, Op: op, cause: cause}
}

func translateError(path, op string, err error) error {
	if err == nil {
		return nil
	}

	// Already public.
	var (
		fe  *FormatError
		uoe *UnsupportedOrderError
		vpe *VocabularyPolicyError
		npe *NumericPolicyError
		ioe *IOError
	)
	switch {
	case errors.As(err, &fe), errors.As(err, &uoe), errors.As(err, &vpe),
		errors.As(err, &npe), errors.As(err, &ioe):
		return err
	case errors.Is(err, ErrModelHasNoVocab), errors.Is(err, ErrInvalidConfig):
		return err
	}

	// Layout inconsistencies are format errors.
	switch {
	case errors.Is(err, backend.ErrCorrupt), errors.Is(err, vocab.ErrCorrupt),
		errors.Is(err, mmap.ErrOutOfBounds), errors.Is(err, mmap.ErrInvalidOffset),
		errors.Is(err, conv.ErrOverflow):
		return format.NewFormatError(path, err.Error(), err)
	case errors.Is(err, vocab.ErrNoWords):
		return fmt.Errorf("%w: %w", ErrModelHasNoVocab, err)
	}

	// Everything else came from the file system or a blob source.
	return &IOError{Path: path, Op: op, cause: err}
}
