package build

import (
	"context"
	"fmt"
	"io"

	"github.com/hupe1980/ngramlm"
	"github.com/hupe1980/ngramlm/format"
	"github.com/hupe1980/ngramlm/internal/backend"
	"github.com/hupe1980/ngramlm/internal/compress"
	"github.com/hupe1980/ngramlm/internal/hash"
	"golang.org/x/sync/errgroup"
)

// image is a complete uncompressed model: header followed by the body.
type image struct {
	header *format.Header
	body   []byte
}

func (img *image) counts() []uint64 {
	if img == nil {
		return nil
	}
	return img.header.Counts
}

func (img *image) writeTo(w io.Writer, codec Codec) error {
	cw, err := compress.NewWriter(w, codec)
	if err != nil {
		return err
	}
	if _, err := cw.Write(img.header.AppendBinary(nil)); err != nil {
		_ = cw.Close()
		return err
	}
	if _, err := cw.Write(img.body); err != nil {
		_ = cw.Close()
		return err
	}
	return cw.Close()
}

func (o *options) report(stage string, done, total int64) {
	if o.progress != nil {
		o.progress(stage, done, total)
	}
}

// assemble runs the whole pipeline.
func assemble(ctx context.Context, stats *Statistics, mt format.ModelType, cfg ngramlm.Config, o *options) (*image, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !mt.Valid() {
		return nil, fmt.Errorf("build: unknown model type %d", uint32(mt))
	}

	const stages = 5
	o.report("index", 0, stages)
	s, err := index(ctx, stats, cfg, o.logger)
	if err != nil {
		return nil, err
	}
	if err := s.checkPositive(ctx, cfg, o.logger); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o.report("blanks", 1, stages)
	if n := s.fillBlanks(); n > 0 {
		o.logger.DebugContext(ctx, "inserted blank n-grams", "count", n)
	}
	s.markExtensions()
	if mt == format.RestProbing {
		s.computeRest(cfg.RestFunction)
	}

	o.report("encode", 2, stages)
	in := &backend.Input{
		ModelType:         mt,
		Orders:            make([][]backend.Record, s.order()),
		ProbingMultiplier: cfg.ProbingMultiplier,
	}
	if mt.Quantized() {
		in.ProbBits, in.BackoffBits = cfg.ProbBits, cfg.BackoffBits
	}
	if mt.ArrayPointers() {
		in.BhikshaBits = cfg.PointerBhikshaBits
	}

	var vocabSection, searchSection, stringsSection []byte
	g, gctx := errgroup.WithContext(ctx)
	for n := 1; n <= s.order(); n++ {
		g.Go(func() error {
			in.Orders[n-1] = s.records(n)
			return gctx.Err()
		})
	}
	g.Go(func() error {
		var err error
		vocabSection, err = s.vocab.Table(cfg.ProbingMultiplier)
		return err
	})
	if cfg.IncludeVocab {
		g.Go(func() error {
			stringsSection = s.vocab.Strings()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if searchSection, err = backend.Write(in); err != nil {
		return nil, err
	}

	o.report("checksum", 3, stages)
	h := &format.Header{
		Fixed: format.FixedParameters{
			Order:             uint8(s.order()),
			ProbingMultiplier: cfg.ProbingMultiplier,
			ModelType:         mt,
			HasVocabulary:     cfg.IncludeVocab,
			SearchVersion:     format.SearchVersion,
		},
		Counts: in.Counts(),
		Body: format.Body{
			Flags:        s.flags,
			ProbBits:     in.ProbBits,
			BackoffBits:  in.BackoffBits,
			BhikshaBits:  in.BhikshaBits,
			RestFunction: uint8(cfg.RestFunction),
		},
	}

	var body []byte
	off := uint64(h.Size())
	place := func(section []byte) format.Section {
		if section == nil {
			return format.Section{}
		}
		body = append(body, make([]byte, format.Align8(len(body))-len(body))...)
		sec := format.Section{Offset: off + uint64(len(body)), Size: uint64(len(section))}
		body = append(body, section...)
		return sec
	}
	h.Body.Vocab = place(vocabSection)
	h.Body.Search = place(searchSection)
	h.Body.Strings = place(stringsSection)
	h.Body.Checksum = hash.CRC32C(body)

	o.report("done", stages, stages)
	return &image{header: h, body: body}, nil
}
