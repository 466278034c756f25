package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/phrazzld/scry-studio/internal/clock"
	"github.com/phrazzld/scry-studio/internal/domain"
)

// S3Signer issues presigned GET URLs for objects in an S3 bucket.
type S3Signer struct {
	api    s3iface.S3API
	bucket string
	ttl    time.Duration
	clock  clock.Clock
	logger *slog.Logger
}

// NewS3Signer creates a client for region using the default credential chain.
func NewS3Signer(region, bucket string, ttl time.Duration, clk clock.Clock, logger *slog.Logger) (*S3Signer, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, fmt.Errorf("failed to create aws session: %w", err)
	}
	return NewS3SignerWithAPI(s3.New(sess), bucket, ttl, clk, logger), nil
}

// NewS3SignerWithAPI wraps an existing S3 client.
func NewS3SignerWithAPI(api s3iface.S3API, bucket string, ttl time.Duration, clk clock.Clock, logger *slog.Logger) *S3Signer {
	return &S3Signer{
		api:    api,
		bucket: bucket,
		ttl:    ttl,
		clock:  clk,
		logger: logger.With("component", "s3_signer"),
	}
}

// Sign implements Signer.
func (s *S3Signer) Sign(ctx context.Context, objectPath string) (domain.AudioArtifact, error) {
	if objectPath == "" {
		return domain.AudioArtifact{}, ErrEmptyObjectPath
	}

	req, _ := s.api.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectPath),
	})
	req.SetContext(ctx)

	expiresAt := s.clock.Now().Add(s.ttl)
	url, err := req.Presign(s.ttl)
	if err != nil {
		return domain.AudioArtifact{}, fmt.Errorf("failed to presign %s: %w", objectPath, err)
	}

	s.logger.Debug("presigned object url", "object", objectPath, "expires_at", expiresAt)
	return expiring(url, objectPath, expiresAt), nil
}

// Delete implements Signer.
func (s *S3Signer) Delete(ctx context.Context, objectPath string) error {
	if objectPath == "" {
		return ErrEmptyObjectPath
	}
	_, err := s.api.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectPath),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", objectPath, err)
	}
	return nil
}
