// Package build writes binary models from n-gram statistics.
//
// Statistics are the already-estimated log10 probabilities and backoffs of
// an ARPA-style model. The builder assigns word indices, applies the
// vocabulary and numeric policies of the Config, completes the n-gram set
// with the prefixes and suffixes every lookup layout needs, computes rest
// costs and serializes one of the six layouts.
//
// Example:
//
//	stats := &build.Statistics{Orders: [][]build.NGram{
//	    {{Words: []string{"<unk>"}, Prob: -2}, {Words: []string{"<s>"}, Prob: -99, Backoff: -0.5}, ...},
//	    {{Words: []string{"<s>", "the"}, Prob: -0.3}, ...},
//	}}
//	err := build.WriteFile(ctx, "model.bin", stats, format.Trie, ngramlm.DefaultConfig())
package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/hupe1980/ngramlm"
	"github.com/hupe1980/ngramlm/blobstore"
	"github.com/hupe1980/ngramlm/format"
	"github.com/hupe1980/ngramlm/internal/compress"
	"github.com/hupe1980/ngramlm/internal/fs"
	"github.com/hupe1980/ngramlm/resource"
)

var (
	// ErrEmpty is returned for statistics without unigrams.
	ErrEmpty = errors.New("build: no unigrams")
	// ErrMissingUnigram is returned when an n-gram uses a word that has no
	// unigram entry.
	ErrMissingUnigram = errors.New("build: word has no unigram")
	// ErrDuplicate is returned when an n-gram is listed twice.
	ErrDuplicate = errors.New("build: duplicate n-gram")
	// ErrBadNGram is returned for an n-gram whose length does not match its
	// order.
	ErrBadNGram = errors.New("build: malformed n-gram")
)

// NGram is one estimated n-gram. Words are in sentence order. Backoff is
// ignored for the highest order.
type NGram struct {
	Words   []string
	Prob    float32
	Backoff float32
}

// Statistics holds the n-grams of every order. Orders[0] are the unigrams,
// whose order also fixes the vocabulary order after the reserved tokens.
type Statistics struct {
	Orders [][]NGram
}

// Order returns the highest n-gram order.
func (s *Statistics) Order() int {
	return len(s.Orders)
}

// Codec selects whole-file compression of the written model.
type Codec = compress.Codec

const (
	// None writes the model uncompressed, so it can be memory mapped.
	None = compress.None
	// Gzip compresses with gzip.
	Gzip = compress.Gzip
	// Zstd compresses with Zstandard.
	Zstd = compress.Zstd
	// LZ4 compresses with the lz4 frame format.
	LZ4 = compress.LZ4
)

type options struct {
	logger     *ngramlm.Logger
	codec      Codec
	progress   ngramlm.ProgressFunc
	controller *resource.Controller
	fs         fs.FileSystem
}

// Option configures a build.
type Option func(*options)

// WithLogger sets the logger for policy warnings and build results.
func WithLogger(logger *ngramlm.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithCompression compresses the written model. Compressed models are
// always read into the heap when loaded.
func WithCompression(codec Codec) Option {
	return func(o *options) {
		o.codec = codec
	}
}

// WithProgress reports build stages.
func WithProgress(fn ngramlm.ProgressFunc) Option {
	return func(o *options) {
		o.progress = fn
	}
}

// WithResourceController throttles model output to the controller's IO
// limit.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.controller = rc
	}
}

func (o *options) output(ctx context.Context, w io.Writer) io.Writer {
	if o.controller == nil {
		return w
	}
	return resource.NewRateLimitedWriter(ctx, w, o.controller)
}

func applyOptions(optFns []Option) options {
	o := options{logger: ngramlm.NoopLogger(), codec: None, fs: fs.Default}
	for _, fn := range optFns {
		fn(&o)
	}
	return o
}

// Write builds a model of type mt and writes it to w.
func Write(ctx context.Context, w io.Writer, stats *Statistics, mt format.ModelType, cfg ngramlm.Config, opts ...Option) error {
	o := applyOptions(opts)
	start := time.Now()

	img, err := assemble(ctx, stats, mt, cfg, &o)
	if err == nil {
		err = img.writeTo(o.output(ctx, w), o.codec)
	}
	o.logger.LogBuild(ctx, "", img.counts(), time.Since(start), err)
	return err
}

// WriteFile builds a model and writes it to path. With WriteMmap the file is
// staged under cfg.TemporaryDirectoryPrefix and renamed into place, so
// readers never see a partial model. With WriteAfter path is written
// directly once the model is complete.
func WriteFile(ctx context.Context, path string, stats *Statistics, mt format.ModelType, cfg ngramlm.Config, opts ...Option) error {
	o := applyOptions(opts)
	start := time.Now()

	img, err := assemble(ctx, stats, mt, cfg, &o)
	if err == nil {
		switch cfg.WriteMethod {
		case ngramlm.WriteMmap:
			err = writeStaged(ctx, &o, path, cfg.TemporaryDirectoryPrefix, img)
		default:
			err = writeDirect(ctx, &o, path, img)
		}
		if err != nil {
			err = ngramlm.NewIOError(path, "write", err)
		}
	}
	o.logger.LogBuild(ctx, path, img.counts(), time.Since(start), err)
	return err
}

// Publish builds a model and uploads it to up under name.
func Publish(ctx context.Context, up blobstore.Uploader, name string, stats *Statistics, mt format.ModelType, cfg ngramlm.Config, opts ...Option) error {
	o := applyOptions(opts)
	start := time.Now()

	img, err := assemble(ctx, stats, mt, cfg, &o)
	if err == nil {
		var buf bytes.Buffer
		if err = img.writeTo(&buf, o.codec); err == nil {
			out := io.Reader(&buf)
			if o.controller != nil {
				out = resource.NewRateLimitedReader(ctx, out, o.controller)
			}
			if err = up.Upload(ctx, name, out); err != nil {
				err = ngramlm.NewIOError(name, "upload", err)
			}
		}
	}
	o.logger.LogBuild(ctx, name, img.counts(), time.Since(start), err)
	return err
}

func writeDirect(ctx context.Context, o *options, path string, img *image) error {
	f, err := o.fs.Create(path)
	if err != nil {
		return err
	}
	if err := img.writeTo(o.output(ctx, f), o.codec); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func writeStaged(ctx context.Context, o *options, path, dir string, img *image) error {
	fsys := o.fs
	if dir == "" {
		dir = filepath.Dir(path)
	}
	f, err := fsys.CreateTemp(dir, ".ngramlm-build-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	cleanup := func() { _ = fsys.Remove(tmp) }

	if err := img.writeTo(o.output(ctx, f), o.codec); err != nil {
		_ = f.Close()
		cleanup()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		cleanup()
		return err
	}
	if err := f.Close(); err != nil {
		cleanup()
		return err
	}
	if err := fsys.Rename(tmp, path); err != nil {
		cleanup()
		return fmt.Errorf("build: moving staged model into place: %w", err)
	}
	return nil
}
