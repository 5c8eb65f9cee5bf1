package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config holds object storage connection settings
type Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Bucket          string
	// PublicURL is the base URL clients use to download objects.
	// When empty it is derived from Endpoint and UseSSL.
	PublicURL string
}

// ObjectInfo describes a stored object
type ObjectInfo struct {
	Path         string
	Size         int64
	LastModified time.Time
}

// publicReadPolicy allows anonymous downloads of uploaded materials only
const publicReadPolicy = `{
	"Version": "2012-10-17",
	"Statement": [{
		"Effect": "Allow",
		"Principal": {"AWS": ["*"]},
		"Action": ["s3:GetObject"],
		"Resource": ["arn:aws:s3:::%s/%s*"]
	}]
}`

// objectStorage implements object storage operations on top of MinIO
type objectStorage struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewObjectStorage connects to MinIO, makes sure the bucket exists and is publicly readable
func NewObjectStorage(ctx context.Context, cfg Config) (*objectStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	policy := fmt.Sprintf(publicReadPolicy, cfg.Bucket, MaterialsPrefix)
	if err := client.SetBucketPolicy(ctx, cfg.Bucket, policy); err != nil {
		return nil, fmt.Errorf("failed to set bucket policy: %w", err)
	}

	publicURL := cfg.PublicURL
	if publicURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s", scheme, cfg.Endpoint)
	}

	return &objectStorage{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

// Upload stores the content under path and returns its public URL
func (s *objectStorage) Upload(ctx context.Context, path string, reader io.Reader, size int64, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, s.bucket, path, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object: %w", err)
	}

	return s.PublicURL(path), nil
}

// Remove deletes the object stored under path
func (s *objectStorage) Remove(ctx context.Context, path string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, path, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove object: %w", err)
	}
	return nil
}

// List returns all objects whose path starts with prefix
func (s *objectStorage) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", object.Err)
		}
		objects = append(objects, ObjectInfo{
			Path:         object.Key,
			Size:         object.Size,
			LastModified: object.LastModified,
		})
	}
	return objects, nil
}

// PublicURL builds the download URL of an object path
func (s *objectStorage) PublicURL(path string) string {
	return buildPublicURL(s.publicURL, s.bucket, path)
}

// PathFromURL extracts the object path from a public URL produced by this storage.
// The second return value is false for URLs that point elsewhere (e.g. YouTube).
func (s *objectStorage) PathFromURL(publicURL string) (string, bool) {
	return pathFromPublicURL(s.publicURL, s.bucket, publicURL)
}
