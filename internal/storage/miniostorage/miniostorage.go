// Package miniostorage keeps published watermarked exports in a MinIO bucket
package miniostorage

import (
	"context"
	"errors"
	"io"

	"github.com/UnendingLoop/TextWatermark/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/wb-go/wbf/zlog"
)

type MinioExportStorage struct {
	bucket string
	client *minio.Client
}

func NewMinioClient(ctx context.Context, cfg config.StorageConfig) (*MinioExportStorage, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("minio endpoint is empty")
	}

	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "default"
		zlog.Logger.Warn().Msgf("Bucket name is empty. Using default value %q...", bucket)
	}

	// подключаемся к минио - создаем клиента
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.User, cfg.Pass, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, err
	}

	// создаем бакет если его нет
	if err := ensureBucket(ctx, client, bucket); err != nil {
		return nil, err
	}

	return &MinioExportStorage{bucket: bucket, client: client}, nil
}

func (s *MinioExportStorage) Put(ctx context.Context, key string, size int64, contentType string, r io.Reader) error {
	if r == nil {
		return errors.New("nil reader passed to storage.Put")
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (s *MinioExportStorage) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", err
	}

	st, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, "", err
	}

	return obj, st.ContentType, nil
}

func (s *MinioExportStorage) Delete(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

func ensureBucket(ctx context.Context, client *minio.Client, bucket string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
}
