package ngramlm

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/hupe1980/ngramlm/blobstore"
	"github.com/hupe1980/ngramlm/format"
	"github.com/hupe1980/ngramlm/internal/compress"
	"github.com/hupe1980/ngramlm/resource"
)

// Open loads the model stored under name in store.
//
// Mappable blobs are used in place. Other blobs are staged to a temporary
// file under Config.TemporaryDirectoryPrefix, through the store's Downloader
// when it has one, and then loaded with Config.LoadMethod.
func Open(ctx context.Context, store blobstore.BlobStore, name string, cfg Config, opts ...Option) (*Model, error) {
	o := applyOptions(opts)
	info := LoadInfo{Path: name, Method: cfg.LoadMethod}
	start := time.Now()

	m, err := open(ctx, store, name, cfg, &o, &info)

	info.Duration = time.Since(start)
	o.metricsCollector.RecordLoad(info, err)
	o.logger.LogLoad(ctx, name, info, err)
	if err != nil {
		return nil, err
	}
	m.info = info
	return m, nil
}

func open(ctx context.Context, store blobstore.BlobStore, name string, cfg Config, o *options, info *LoadInfo) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, translateError(name, "open blob", err)
	}

	if mp, ok := blob.(blobstore.Mappable); ok {
		data, err := mp.Bytes()
		if err != nil {
			_ = blob.Close()
			return nil, translateError(name, "map blob", err)
		}
		return openBytes(ctx, name, data, blob.Close, cfg, o, info)
	}

	path, err := stage(ctx, store, blob, name, cfg, o)
	_ = blob.Close()
	if err != nil {
		return nil, translateError(name, "download", err)
	}

	m, err := load(ctx, path, cfg, o, info)
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	// The mapping or heap copy outlives the file name on unix; elsewhere the
	// file goes when the model is closed.
	if err := os.Remove(path); err == nil {
		return m, nil
	}
	release := m.release
	m.release = func() error {
		return errors.Join(release(), os.Remove(path))
	}
	return m, nil
}

func openBytes(ctx context.Context, name string, data []byte, closeBlob func() error, cfg Config, o *options, info *LoadInfo) (*Model, error) {
	fail := func(op string, err error) (*Model, error) {
		_ = closeBlob()
		return nil, translateError(name, op, err)
	}

	p := newProgress(ctx, o, cfg.ShowProgress)
	head := data[:min(len(data), 4)]
	r := &region{data: data, release: closeBlob, mapped: true}

	var (
		h   *format.Header
		err error
	)
	if compress.Detect(head) != compress.None {
		h, err = format.RecognizeReader(bytes.NewReader(data), name, cfg.maxOrder())
		if err != nil {
			return fail("open", err)
		}
		r, err = readCompressed(ctx, bytes.NewReader(data), expectedSize(h), o.controller, p)
		_ = closeBlob()
		if err != nil {
			return nil, translateError(name, "decompress", err)
		}
	} else if h, err = format.Parse(data, name, cfg.maxOrder()); err != nil {
		return fail("open", err)
	}

	info.ModelType = h.Fixed.ModelType
	info.Order = h.Order()
	info.Bytes = int64(len(r.data))
	info.Mapped = r.mapped

	m, err := newModel(ctx, name, h, r.data, cfg, o, p)
	if err != nil {
		_ = r.release()
		return nil, translateError(name, "load", err)
	}
	m.release = r.release
	return m, nil
}

// stage copies blob into a temporary file and returns its path.
func stage(ctx context.Context, store blobstore.BlobStore, blob blobstore.Blob, name string, cfg Config, o *options) (string, error) {
	f, err := os.CreateTemp(cfg.TemporaryDirectoryPrefix, "ngramlm-*.bin")
	if err != nil {
		return "", err
	}
	path := f.Name()

	if d, ok := store.(blobstore.Downloader); ok {
		o.logger.DebugContext(ctx, "downloading model", "name", name, "size", blob.Size())
		_, err = d.Download(ctx, name, f)
	} else {
		o.logger.DebugContext(ctx, "copying model", "name", name, "size", blob.Size())
		src := resource.NewRateLimitedReader(ctx, io.NewSectionReader(blob, 0, blob.Size()), o.controller)
		_, err = io.Copy(f, src)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}
