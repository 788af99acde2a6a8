package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/annualguard/annualguard/internal/domain/analysis"
)

// Store implementasi analysis.DocumentStore di atas MinIO / S3-compatible
// object storage. Source PDF disimpan untuk audit, verdict JSON sebagai
// downloadable artifact.
type Store struct {
	client     *minio.Client
	bucketName string
	region     string
}

// New buat koneksi MinIO
func New(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string, useSSL bool) (*Store, error) {
	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, err
	}

	// pastikan bucket ada
	exists, err := cli.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, err
		}
	}

	return &Store{client: cli, bucketName: bucket, region: region}, nil
}

// PutDocument uploads the source PDF under the given key.
func (s *Store) PutDocument(ctx context.Context, key string, content []byte) (string, error) {
	return s.put(ctx, key, content, "application/pdf")
}

// PutVerdictJSON uploads a verdict artifact under the given key.
func (s *Store) PutVerdictJSON(ctx context.Context, key string, payload []byte) (string, error) {
	return s.put(ctx, key, payload, "application/json")
}

// Ping reachability probe untuk health endpoint
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucketName)
	return err
}

func (s *Store) put(ctx context.Context, key string, content []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucketName, key,
		bytes.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", err
	}
	// URL publik (jika bucket public), kalau private harus generate presigned URL
	url := fmt.Sprintf("http://%s/%s/%s", s.client.EndpointURL().Host, s.bucketName, key)
	return url, nil
}

var _ analysis.DocumentStore = (*Store)(nil)
