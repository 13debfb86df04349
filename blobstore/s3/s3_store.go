package s3

import (
	"context"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hupe1980/ngramlm/blobstore"
)

// Store implements blobstore.BlobStore, blobstore.Downloader and
// blobstore.Uploader for S3.
type Store struct {
	client   Client
	bucket   string
	prefix   string
	download DownloadConfig
	upload   UploadConfig
}

var (
	_ blobstore.BlobStore  = (*Store)(nil)
	_ blobstore.Downloader = (*Store)(nil)
	_ blobstore.Uploader   = (*Store)(nil)
)

// Option configures New.
type Option func(*settings)

type settings struct {
	prefix   string
	region   string
	download DownloadConfig
	upload   UploadConfig
	loadOpts []func(*config.LoadOptions) error
}

// WithPrefix sets the key prefix (e.g. "models/").
func WithPrefix(prefix string) Option {
	return func(s *settings) { s.prefix = prefix }
}

// WithRegion overrides the region from the environment.
func WithRegion(region string) Option {
	return func(s *settings) { s.region = region }
}

// WithDownloadConfig tunes parallel downloads.
func WithDownloadConfig(cfg DownloadConfig) Option {
	return func(s *settings) { s.download = cfg }
}

// WithUploadConfig tunes multipart uploads.
func WithUploadConfig(cfg UploadConfig) Option {
	return func(s *settings) { s.upload = cfg }
}

// WithLoadOptions passes options to config.LoadDefaultConfig.
func WithLoadOptions(opts ...func(*config.LoadOptions) error) Option {
	return func(s *settings) { s.loadOpts = append(s.loadOpts, opts...) }
}

// New creates a store from the default AWS configuration chain.
func New(ctx context.Context, bucket string, opts ...Option) (*Store, error) {
	s := settings{download: DefaultDownloadConfig(), upload: DefaultUploadConfig()}
	for _, opt := range opts {
		opt(&s)
	}
	loadOpts := s.loadOpts
	if s.region != "" {
		loadOpts = append(loadOpts, config.WithRegion(s.region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}
	store := NewStore(s3.NewFromConfig(cfg), bucket, s.prefix)
	store.download = s.download
	store.upload = s.upload
	return store, nil
}

// NewStore creates a new S3 blob store.
// rootPrefix is prepended to all keys (e.g. "models/").
func NewStore(client Client, bucket, rootPrefix string) *Store {
	return &Store{
		client:   client,
		bucket:   bucket,
		prefix:   rootPrefix,
		download: DefaultDownloadConfig(),
		upload:   DefaultUploadConfig(),
	}
}

func (s *Store) key(name string) string {
	return path.Join(s.prefix, name)
}

// Open returns a blob served by ranged GETs. ctx bounds every read.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	key := s.key(name)

	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, blobstore.ErrNotFound
		}
		return nil, err
	}

	return &s3Blob{
		ctx:    ctx,
		client: s.client,
		bucket: s.bucket,
		key:    key,
		size:   aws.ToInt64(head.ContentLength),
	}, nil
}

// Download fetches the whole object with concurrent ranged GETs.
func (s *Store) Download(ctx context.Context, name string, w io.WriterAt) (int64, error) {
	n, err := newDownloader(s.client, s.download).Download(ctx, w, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil && isNotFound(err) {
		return n, blobstore.ErrNotFound
	}
	return n, err
}

// Upload streams r as a multipart upload.
func (s *Store) Upload(ctx context.Context, name string, r io.Reader) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
		Body:   r,
	}
	if s.upload.EnableChecksum {
		input.ChecksumAlgorithm = types.ChecksumAlgorithmCrc32c
	}
	_, err := newUploader(s.client, s.upload).Upload(ctx, input)
	return err
}
