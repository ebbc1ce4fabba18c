// Package cache implements the poster download cache and composed
// output storage: local disk by default, with an optional durable
// S3/R2-compatible backend for multi-instance deployments.
package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"maukemana-backend/internal/batcherr"
)

// Meta is the sidecar JSON persisted alongside every cached poster
// download.
type Meta struct {
	JellyfinID       string    `json:"jellyfin_id"`
	OriginalPosterID string    `json:"original_poster_id"`
	CachedAt         time.Time `json:"cached_at"`
}

// Store persists poster downloads and composed outputs. LocalStore is
// always available; RemoteStore additionally mirrors to an S3/R2
// bucket when configured.
type Store interface {
	// PutPoster writes a freshly downloaded poster image for
	// posterID, returning the cache key it was stored under.
	PutPoster(ctx context.Context, posterID string, data []byte, meta Meta) (key string, err error)
	// PutOutput writes a composed poster, returning its output key.
	PutOutput(ctx context.Context, data []byte) (key string, err error)
	// Get reads back previously stored bytes by key (either a
	// cache/posters/... or output/processed/... key).
	Get(ctx context.Context, key string) ([]byte, error)
}

// LocalStore persists under a base directory on local disk, using a
// cache/posters/... and output/processed/... key layout.
type LocalStore struct {
	baseDir string
}

// NewLocalStore creates a LocalStore rooted at baseDir.
func NewLocalStore(baseDir string) *LocalStore {
	return &LocalStore{baseDir: baseDir}
}

func (s *LocalStore) PutPoster(ctx context.Context, posterID string, data []byte, meta Meta) (string, error) {
	key := fmt.Sprintf("cache/posters/batch_%s_%s.jpg", posterID, shortUUID())
	if err := s.write(key, data); err != nil {
		return "", batcherr.Compose("cache.put_poster", err)
	}
	meta.CachedAt = time.Now()
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return "", batcherr.Compose("cache.put_poster", fmt.Errorf("marshal meta: %w", err))
	}
	if err := s.write(key+".meta", metaBytes); err != nil {
		return "", batcherr.Compose("cache.put_poster", fmt.Errorf("write meta sidecar: %w", err))
	}
	return key, nil
}

func (s *LocalStore) PutOutput(ctx context.Context, data []byte) (string, error) {
	key := fmt.Sprintf("output/processed/%s.jpg", uuid.New().String())
	if err := s.write(key, data); err != nil {
		return "", batcherr.Compose("cache.put_output", err)
	}
	return key, nil
}

func (s *LocalStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, key))
	if err != nil {
		return nil, batcherr.Compose("cache.get", fmt.Errorf("read %s: %w", key, err))
	}
	return data, nil
}

func (s *LocalStore) write(key string, data []byte) error {
	path := filepath.Join(s.baseDir, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir for %s: %w", key, err)
	}
	return os.WriteFile(path, data, 0o644)
}

// shortUUID returns the first 8 hex characters of a fresh UUID, used
// to disambiguate cache filenames within the same poster id without
// the full 36-character form (batch_<poster_id>_<short-uuid>.jpg).
func shortUUID() string {
	full := uuid.New().String()
	return full[:8]
}

// RemoteStore wraps LocalStore and mirrors every write to an
// S3-compatible bucket (e.g. Cloudflare R2), for deployments that run
// more than one batch-core instance against shared cache state.
type RemoteStore struct {
	local  *LocalStore
	client *s3.Client
	bucket string
}

// NewRemoteStore configures an S3-compatible client with static
// credentials, a region of "auto", and a caller-supplied endpoint.
func NewRemoteStore(localBaseDir, endpoint, bucket, accessKeyID, secretAccessKey string) *RemoteStore {
	client := s3.New(s3.Options{
		Region:       "auto",
		BaseEndpoint: aws.String(endpoint),
		Credentials:  credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
	})
	return &RemoteStore{
		local:  NewLocalStore(localBaseDir),
		client: client,
		bucket: bucket,
	}
}

func (s *RemoteStore) PutPoster(ctx context.Context, posterID string, data []byte, meta Meta) (string, error) {
	key, err := s.local.PutPoster(ctx, posterID, data, meta)
	if err != nil {
		return "", err
	}
	if err := s.putObject(ctx, key, data); err != nil {
		return "", err
	}
	return key, nil
}

func (s *RemoteStore) PutOutput(ctx context.Context, data []byte) (string, error) {
	key, err := s.local.PutOutput(ctx, data)
	if err != nil {
		return "", err
	}
	if err := s.putObject(ctx, key, data); err != nil {
		return "", err
	}
	return key, nil
}

func (s *RemoteStore) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return s.local.Get(ctx, key)
	}
	defer result.Body.Close()
	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, batcherr.Compose("cache.get", fmt.Errorf("read remote object body: %w", err))
	}
	return data, nil
}

func (s *RemoteStore) putObject(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		return batcherr.Compose("cache.put_object", fmt.Errorf("put remote object %s: %w", key, err))
	}
	return nil
}
