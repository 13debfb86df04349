// Package minio serves models from MinIO and other S3-compatible servers
// through the minio-go client.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds: credentials.NewStaticV4(accessKey, secretKey, ""),
//	})
//	if err != nil {
//	    return err
//	}
//	store := minioblob.NewStore(client, "models", "lm/")
//	m, err := ngramlm.Open(ctx, store, "en-5gram.bin", ngramlm.DefaultConfig())
//
// Blobs are read with ranged GetObject calls. The loader stages them into
// a temporary file before mapping. Built models are published with a
// streaming PutObject.
package minio
