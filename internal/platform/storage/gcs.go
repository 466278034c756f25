package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/storage"
	"github.com/phrazzld/scry-studio/internal/clock"
	"github.com/phrazzld/scry-studio/internal/domain"
)

// GCSSigner issues V4 signed URLs for objects in a Cloud Storage bucket.
type GCSSigner struct {
	bucket *storage.BucketHandle
	ttl    time.Duration
	clock  clock.Clock
	logger *slog.Logger

	// sign defaults to the bucket's SignedURL, which discovers signing
	// credentials from the environment.
	sign func(object string, opts *storage.SignedURLOptions) (string, error)
}

// NewGCSSigner creates a client with application default credentials.
func NewGCSSigner(ctx context.Context, bucket string, ttl time.Duration, clk clock.Clock, logger *slog.Logger) (*GCSSigner, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return NewGCSSignerWithBucket(client.Bucket(bucket), ttl, clk, logger), nil
}

// NewGCSSignerWithBucket wraps an existing bucket handle.
func NewGCSSignerWithBucket(bucket *storage.BucketHandle, ttl time.Duration, clk clock.Clock, logger *slog.Logger) *GCSSigner {
	return &GCSSigner{
		bucket: bucket,
		ttl:    ttl,
		clock:  clk,
		logger: logger.With("component", "gcs_signer"),
		sign:   bucket.SignedURL,
	}
}

// Sign implements Signer.
func (s *GCSSigner) Sign(ctx context.Context, objectPath string) (domain.AudioArtifact, error) {
	if objectPath == "" {
		return domain.AudioArtifact{}, ErrEmptyObjectPath
	}

	expiresAt := s.clock.Now().Add(s.ttl)
	url, err := s.sign(objectPath, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: expiresAt,
	})
	if err != nil {
		return domain.AudioArtifact{}, fmt.Errorf("failed to sign %s: %w", objectPath, err)
	}

	s.logger.Debug("signed object url", "object", objectPath, "expires_at", expiresAt)
	return expiring(url, objectPath, expiresAt), nil
}

// Delete implements Signer.
func (s *GCSSigner) Delete(ctx context.Context, objectPath string) error {
	if objectPath == "" {
		return ErrEmptyObjectPath
	}
	err := s.bucket.Object(objectPath).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete %s: %w", objectPath, err)
	}
	return nil
}
