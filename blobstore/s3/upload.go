package s3

import (
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
)

// UploadConfig configures the S3 uploader.
type UploadConfig struct {
	// PartSize is the minimum part size for multipart uploads.
	// Default: 16MB
	PartSize int64

	// Concurrency is the number of concurrent part uploads.
	// Default: 5 (matches SDK default)
	Concurrency int

	// EnableChecksum requests CRC32C integrity validation.
	// Default: true
	EnableChecksum bool

	// LeavePartsOnError keeps the parts of a failed multipart upload.
	// Default: false (abort on error)
	LeavePartsOnError bool
}

// DefaultUploadConfig returns the default upload settings.
func DefaultUploadConfig() UploadConfig {
	return UploadConfig{
		PartSize:          16 * 1024 * 1024,
		Concurrency:       5,
		EnableChecksum:    true,
		LeavePartsOnError: false,
	}
}

// DownloadConfig configures the S3 downloader.
type DownloadConfig struct {
	// PartSize is the size of each ranged GET.
	// Default: 16MB
	PartSize int64

	// Concurrency is the number of concurrent ranged GETs.
	// Default: 8
	Concurrency int
}

// DefaultDownloadConfig returns the default download settings.
func DefaultDownloadConfig() DownloadConfig {
	return DownloadConfig{
		PartSize:    16 * 1024 * 1024,
		Concurrency: 8,
	}
}

func newUploader(client Client, cfg UploadConfig) *manager.Uploader {
	return manager.NewUploader(client, func(u *manager.Uploader) {
		if cfg.PartSize > 0 {
			u.PartSize = cfg.PartSize
		}
		if cfg.Concurrency > 0 {
			u.Concurrency = cfg.Concurrency
		}
		u.LeavePartsOnError = cfg.LeavePartsOnError
	})
}

func newDownloader(client Client, cfg DownloadConfig) *manager.Downloader {
	return manager.NewDownloader(client, func(d *manager.Downloader) {
		if cfg.PartSize > 0 {
			d.PartSize = cfg.PartSize
		}
		if cfg.Concurrency > 0 {
			d.Concurrency = cfg.Concurrency
		}
	})
}
