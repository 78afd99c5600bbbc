package filestoresvc

import (
	"context"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"

	"github.com/lojf/nextgen/core"
)

type minioStore struct {
	client *minio.Client
	bucket string
}

var _ core.FileStore = (*minioStore)(nil)

// NewMinioStore connects to the object storage endpoint and makes sure the
// configured bucket exists.
func NewMinioStore(ctx context.Context, conf *core.Config) (*minioStore, error) {
	client, err := minio.New(conf.FileStore.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(conf.FileStore.AccessKey, conf.FileStore.SecretKey, ""),
		Secure: conf.FileStore.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating minio client")
	}

	store := &minioStore{client: client, bucket: conf.FileStore.Bucket}

	exists, err := client.BucketExists(ctx, store.bucket)
	if err != nil {
		return nil, errors.Wrap(err, "checking bucket")
	}
	if !exists {
		if err := client.MakeBucket(ctx, store.bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, errors.Wrap(err, "creating bucket")
		}
	}
	return store, nil
}

func (s *minioStore) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	return errors.Wrap(err, "uploading object")
}

func (s *minioStore) Remove(ctx context.Context, key string) error {
	return errors.Wrap(s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}), "removing object")
}

func (s *minioStore) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, url.Values{})
	if err != nil {
		return "", errors.Wrap(err, "presigning object")
	}
	return u.String(), nil
}
