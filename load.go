package ngramlm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/ngramlm/format"
	"github.com/hupe1980/ngramlm/internal/backend"
	"github.com/hupe1980/ngramlm/internal/compress"
	"github.com/hupe1980/ngramlm/internal/conv"
	"github.com/hupe1980/ngramlm/internal/hash"
	"github.com/hupe1980/ngramlm/internal/mmap"
	"github.com/hupe1980/ngramlm/resource"
	"github.com/hupe1980/ngramlm/vocab"
	"golang.org/x/sync/errgroup"
)

const (
	readChunkSize     = 4 << 20
	minParallelChunk  = 1 << 20
	chunksPerWorker   = 4
	progressIntervals = 10
)

// Load opens the binary model at path. Gzip, zstd and lz4 compressed models
// are decompressed to the heap regardless of cfg.LoadMethod.
func Load(ctx context.Context, path string, cfg Config, opts ...Option) (*Model, error) {
	o := applyOptions(opts)
	info := LoadInfo{Path: path, Method: cfg.LoadMethod}
	start := time.Now()

	m, err := load(ctx, path, cfg, &o, &info)

	info.Duration = time.Since(start)
	o.metricsCollector.RecordLoad(info, err)
	o.logger.LogLoad(ctx, path, info, err)
	if err != nil {
		return nil, err
	}
	m.info = info
	return m, nil
}

func load(ctx context.Context, path string, cfg Config, o *options, info *LoadInfo) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	h, err := format.Recognize(path, cfg.maxOrder())
	if err != nil {
		return nil, translateError(path, "open", err)
	}
	info.ModelType = h.Fixed.ModelType
	info.Order = h.Order()

	p := newProgress(ctx, o, cfg.ShowProgress)
	r, err := acquire(ctx, path, h, cfg, o, p)
	if err != nil {
		return nil, translateError(path, "read", err)
	}
	info.Bytes = int64(len(r.data))
	info.Mapped = r.mapped
	info.Populated = r.populated

	if o.verifyChecksum {
		r.hint(mmap.AccessSequential)
	}
	m, err := newModel(ctx, path, h, r.data, cfg, o, p)
	r.hint(mmap.AccessRandom)
	if err != nil {
		_ = r.release()
		return nil, translateError(path, "load", err)
	}
	m.release = r.release
	return m, nil
}

// region is the addressable model: a mapping or a heap copy.
type region struct {
	data      []byte
	release   func() error
	advise    func(mmap.AccessPattern) error
	mapped    bool
	populated bool
}

// hint forwards a paging hint to mapped regions. Failures only cost
// read-ahead and are ignored.
func (r *region) hint(pattern mmap.AccessPattern) {
	if r.advise != nil {
		_ = r.advise(pattern)
	}
}

func acquire(ctx context.Context, path string, h *format.Header, cfg Config, o *options, p *progress) (*region, error) {
	codec, err := sniff(path)
	if err != nil {
		return nil, err
	}
	if codec != compress.None {
		o.logger.DebugContext(ctx, "decompressing model to heap", "path", path, "codec", codec.String())
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return readCompressed(ctx, f, expectedSize(h), o.controller, p)
	}

	switch cfg.LoadMethod {
	case Lazy:
		return mapFile(path, false)
	case PopulateOrLazy:
		return mapFile(path, mmap.PopulateSupported())
	case PopulateOrRead:
		if mmap.PopulateSupported() {
			return mapFile(path, true)
		}
		return readFile(ctx, path, o.controller, p)
	case Read:
		return readFile(ctx, path, o.controller, p)
	case ParallelRead:
		return parallelRead(ctx, path, o.controller, p)
	default:
		return nil, fmt.Errorf("%w: load_method %d", ErrInvalidConfig, cfg.LoadMethod)
	}
}

func sniff(path string) (compress.Codec, error) {
	f, err := os.Open(path)
	if err != nil {
		return compress.None, err
	}
	defer f.Close()
	head := make([]byte, 4)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return compress.None, err
	}
	return compress.Detect(head[:n]), nil
}

// expectedSize is the file length the header describes.
func expectedSize(h *format.Header) uint64 {
	end := uint64(h.Size())
	for _, s := range []format.Section{h.Body.Vocab, h.Body.Search, h.Body.Strings} {
		end = max(end, s.End())
	}
	return end
}

func mapFile(path string, populate bool) (*region, error) {
	var opts []mmap.Option
	if populate {
		opts = append(opts, mmap.WithPopulate())
	}
	m, err := mmap.Open(path, opts...)
	if err != nil {
		return nil, err
	}
	return &region{data: m.Bytes(), release: m.Close, advise: m.Advise, mapped: true, populated: m.Populated()}, nil
}

// heap reserves size bytes from rc and returns the buffer and its release.
func heap(ctx context.Context, rc *resource.Controller, size int64) ([]byte, func() error, error) {
	if err := rc.AcquireMemory(ctx, size); err != nil {
		return nil, nil, err
	}
	var once sync.Once
	release := func() error {
		once.Do(func() { rc.ReleaseMemory(size) })
		return nil
	}
	return make([]byte, size), release, nil
}

func readFile(ctx context.Context, path string, rc *resource.Controller, p *progress) (*region, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}

	buf, release, err := heap(ctx, rc, fi.Size())
	if err != nil {
		return nil, err
	}
	if err := readFull(ctx, resource.NewRateLimitedReader(ctx, f, rc), buf, p); err != nil {
		_ = release()
		return nil, err
	}
	return &region{data: buf, release: release}, nil
}

func readCompressed(ctx context.Context, r io.Reader, size uint64, rc *resource.Controller, p *progress) (*region, error) {
	zr, _, err := compress.NewReader(resource.NewRateLimitedReader(ctx, r, rc))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	n, err := conv.Uint64ToInt(size)
	if err != nil {
		return nil, fmt.Errorf("decompressed size: %w", err)
	}
	buf, release, err := heap(ctx, rc, int64(n))
	if err != nil {
		return nil, err
	}
	if err := readFull(ctx, zr, buf, p); err != nil {
		_ = release()
		return nil, err
	}
	return &region{data: buf, release: release}, nil
}

func readFull(ctx context.Context, r io.Reader, buf []byte, p *progress) error {
	total := int64(len(buf))
	for off := 0; off < len(buf); {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(off+readChunkSize, len(buf))
		n, err := io.ReadFull(r, buf[off:end])
		off += n
		p.report("read", int64(off), total)
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				return fmt.Errorf("%w: read %d of %d bytes", io.ErrUnexpectedEOF, off, total)
			}
			return err
		}
	}
	return nil
}

func parallelRead(ctx context.Context, path string, rc *resource.Controller, p *progress) (*region, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := fi.Size()

	buf, release, err := heap(ctx, rc, size)
	if err != nil {
		return nil, err
	}

	workers := max(rc.Readers(), 1)
	chunk := max(size/(workers*chunksPerWorker), minParallelChunk)
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	var acquireErr error
	for off := int64(0); off < size; off += chunk {
		if acquireErr = rc.AcquireReader(gctx); acquireErr != nil {
			break
		}
		end := min(off+chunk, size)
		g.Go(func() error {
			defer rc.ReleaseReader()
			if err := rc.AcquireIO(gctx, int(end-off)); err != nil {
				return err
			}
			n, err := f.ReadAt(buf[off:end], off)
			if err != nil && !(errors.Is(err, io.EOF) && int64(n) == end-off) {
				return err
			}
			p.report("read", done.Add(int64(n)), size)
			return nil
		})
	}
	err = g.Wait()
	if err == nil {
		err = acquireErr
	}
	if err != nil {
		_ = release()
		return nil, err
	}
	return &region{data: buf, release: release}, nil
}

// newModel builds the vocabulary and backend views over data and applies
// the load-time policies.
func newModel(ctx context.Context, name string, h *format.Header, data []byte, cfg Config, o *options, p *progress) (*Model, error) {
	hdr := uint64(h.Size())
	if size := expectedSize(h); uint64(len(data)) < size {
		return nil, format.NewMismatchError(name, "truncated file",
			strconv.FormatUint(size, 10)+" bytes", strconv.Itoa(len(data))+" bytes", nil)
	}
	for _, s := range []format.Section{h.Body.Vocab, h.Body.Search} {
		if s.Offset < hdr || s.Size == 0 {
			return nil, format.NewFormatError(name, "section overlaps header", nil)
		}
	}
	vocabSection, err := mmap.Section(data, h.Body.Vocab.Offset, h.Body.Vocab.Size)
	if err != nil {
		return nil, err
	}
	searchSection, err := mmap.Section(data, h.Body.Search.Offset, h.Body.Search.Size)
	if err != nil {
		return nil, err
	}

	if o.verifyChecksum {
		if err := verifyChecksum(ctx, name, h.Body.Checksum, data[hdr:], p); err != nil {
			return nil, err
		}
	}

	var strings []byte
	if h.Fixed.HasVocabulary && h.Body.Strings.Size > 0 {
		if strings, err = mmap.Section(data, h.Body.Strings.Offset, h.Body.Strings.Size); err != nil {
			return nil, err
		}
	}
	v, err := vocab.Open(vocabSection, strings)
	if err != nil {
		return nil, err
	}
	if uint64(v.Size()) != h.Counts[0] {
		return nil, format.NewMismatchError(name, "vocabulary size differs from unigram count",
			strconv.FormatUint(h.Counts[0], 10), strconv.Itoa(v.Size()), nil)
	}
	if o.storeVocab != nil && *o.storeVocab && !v.HasWords() {
		return nil, fmt.Errorf("%w: %s", ErrModelHasNoVocab, name)
	}

	b, err := backend.Open(backend.ParamsFromHeader(h), searchSection)
	if err != nil {
		return nil, err
	}

	m := &Model{
		cfg:     cfg,
		header:  h,
		vocab:   v,
		backend: b,
		logger:  o.logger,
		metrics: o.metricsCollector,
	}

	bos, err := m.marker(ctx, name, vocab.BeginSentence)
	if err != nil {
		return nil, err
	}
	eos, err := m.marker(ctx, name, vocab.EndSentence)
	if err != nil {
		return nil, err
	}
	v.SetSpecial(bos, eos, vocab.UnknownIndex)

	if err := m.checkPositive(ctx, name); err != nil {
		return nil, err
	}
	if err := m.resolveUnknown(ctx, name); err != nil {
		return nil, err
	}

	if o.vocabCallback != nil {
		if !v.HasWords() {
			return nil, fmt.Errorf("%w: %s: vocabulary callback needs strings", ErrModelHasNoVocab, name)
		}
		err := v.Enumerate(func(i WordIndex, w string) error {
			o.vocabCallback(i, w)
			return nil
		})
		if err != nil {
			return nil, err
		}
		p.report("vocab", int64(v.Size()), int64(v.Size()))
	}
	if o.storeVocab != nil && !*o.storeVocab {
		v.DropWords()
	}
	return m, nil
}

// verifyChecksum recomputes the body CRC32C chunk by chunk so long scans
// report progress and honor cancellation.
func verifyChecksum(ctx context.Context, name string, want uint32, body []byte, p *progress) error {
	var crc uint32
	total := int64(len(body))
	for off := 0; off < len(body); off += readChunkSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(off+readChunkSize, len(body))
		crc = hash.UpdateCRC32C(crc, body[off:end])
		p.report("checksum", int64(end), total)
	}
	if crc != want {
		return format.NewMismatchError(name, "checksum mismatch",
			fmt.Sprintf("%08x", want), fmt.Sprintf("%08x", crc), ErrChecksumMismatch)
	}
	return nil
}

func (m *Model) marker(ctx context.Context, name, token string) (WordIndex, error) {
	if i, ok := m.vocab.IndexOpt(token); ok {
		return i, nil
	}
	action := m.cfg.SentenceMarkerMissing
	if action == ThrowUp {
		return 0, &VocabularyPolicyError{Path: name, Token: token, Policy: action}
	}
	m.logger.LogPolicy(ctx, action, "sentence marker missing, mapping it to <unk>", "path", name, "token", token)
	return vocab.UnknownIndex, nil
}

func (m *Model) checkPositive(ctx context.Context, name string) error {
	var (
		count int
		first WordIndex
		prob  float32
	)
	m.backend.ScanUnigrams(func(w WordIndex, p float32) {
		if p > 0 {
			if count == 0 {
				first, prob = w, p
			}
			count++
		}
	})
	if count == 0 {
		return nil
	}
	action := m.cfg.PositiveLogProbability
	if action == ThrowUp {
		return &NumericPolicyError{Path: name, Order: 1, Words: []string{m.wordName(first)}, Prob: prob}
	}
	m.logger.LogPolicy(ctx, action, "positive log-probabilities clamped to zero", "path", name, "count", count)
	m.backend.ClampUnigrams()
	return nil
}

func (m *Model) resolveUnknown(ctx context.Context, name string) error {
	if m.header.Body.Flags&format.FlagUnknownSynthesized == 0 {
		e, _, _ := m.backend.Unigram(vocab.UnknownIndex)
		m.unkProb = e.Prob
		return nil
	}
	action := m.cfg.UnknownMissing
	if action == ThrowUp {
		return &VocabularyPolicyError{Path: name, Token: vocab.Unknown, Policy: action}
	}
	m.logger.LogPolicy(ctx, action, "model has no <unk> statistics, using unknown_missing_logprob",
		"path", name, "logprob", m.cfg.UnknownMissingLogProb)
	m.unkProb = m.cfg.UnknownMissingLogProb
	return nil
}

func (m *Model) wordName(w WordIndex) string {
	if s, ok := m.vocab.Word(w); ok {
		return s
	}
	return "#" + strconv.FormatUint(uint64(w), 10)
}

// progress forwards stage progress to the callback and, when enabled, logs
// each tenth of a stage.
type progress struct {
	ctx    context.Context
	fn     ProgressFunc
	logger *Logger
	show   bool

	mu     sync.Mutex
	logged map[string]int64
}

func newProgress(ctx context.Context, o *options, show bool) *progress {
	return &progress{ctx: ctx, fn: o.progress, logger: o.logger, show: show, logged: make(map[string]int64)}
}

func (p *progress) report(stage string, done, total int64) {
	if p == nil || (p.fn == nil && !p.show) {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fn != nil {
		p.fn(stage, done, total)
	}
	if !p.show {
		return
	}
	step := int64(progressIntervals)
	if total > 0 {
		step = done * progressIntervals / total
	}
	if last, ok := p.logged[stage]; ok && step <= last {
		return
	}
	p.logged[stage] = step
	p.logger.LogProgress(p.ctx, stage, done, total)
}
