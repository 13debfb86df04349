// Package s3 serves models from Amazon S3.
//
//	store, err := s3.New(ctx, "models", s3.WithPrefix("lm/"), s3.WithRegion("eu-west-1"))
//	if err != nil {
//	    return err
//	}
//	m, err := ngramlm.Open(ctx, store, "en-5gram.bin", ngramlm.DefaultConfig())
//
// Open issues ranged GetObject reads. Download implements
// blobstore.Downloader with the transfer manager's parallel ranged GETs,
// which is how the loader stages a model before mapping it. Upload sends
// built models as multipart uploads carrying CRC32C checksums.
package s3
