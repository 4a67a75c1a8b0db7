package core

import (
	"context"
	"errors"

	"github.com/atelier-studio/atelier/pkg/object-storage/s3"
)

var ErrStorageDisabled = errors.New("object storage not configured")

// FileStorage is the blob store behind reference uploads and locally
// produced media. Returned URLs are publicly fetchable.
type FileStorage interface {
	Upload(ctx context.Context, fullPath string, content []byte, contentType string) (string, error)
	Delete(ctx context.Context, fullPath string) error
}

func setupFileStorage(cfg ObjectStorageDriver) FileStorage {
	if cfg.Driver != "s3" || cfg.S3 == nil {
		return disabledStorage{}
	}
	return s3.NewS3Client(cfg.S3.Endpoint, cfg.S3.Region, cfg.S3.Bucket, cfg.S3.AccessKey, cfg.S3.SecretKey,
		s3.WithPathStyle(cfg.S3.UsePathStyle),
		s3.WithPublicDomain(cfg.StaticDomain))
}

type disabledStorage struct{}

func (disabledStorage) Upload(context.Context, string, []byte, string) (string, error) {
	return "", ErrStorageDisabled
}

func (disabledStorage) Delete(context.Context, string) error {
	return ErrStorageDisabled
}
