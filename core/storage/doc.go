// Package storage wraps the MinIO client behind a small interface.
//
// The module archive only needs bucket management, uploads, downloads, listing
// and bulk removal, so Client exposes exactly those calls. The interface works
// against AWS S3 and self-hosted MinIO alike and is mocked in core/storage/mocks
// for unit tests.
//
// # Usage
//
//	client, err := storage.NewClient(cfg.Storage)
//	exists, err := client.BucketExists(ctx, cfg.Storage.Bucket)
package storage
