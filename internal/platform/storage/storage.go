// Package storage issues access URLs for generated audio objects and deletes
// them. Signed-URL providers mint a fresh, time-limited URL for the same
// object on every call; the public provider returns a permanent URL.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/scry-studio/internal/clock"
	"github.com/phrazzld/scry-studio/internal/config"
	"github.com/phrazzld/scry-studio/internal/domain"
)

// ErrEmptyObjectPath is returned when no object is named.
var ErrEmptyObjectPath = errors.New("object path cannot be empty")

// Signer issues access URLs for stored audio objects.
type Signer interface {
	// Sign returns an artifact for objectPath with a newly issued URL.
	Sign(ctx context.Context, objectPath string) (domain.AudioArtifact, error)
	// Delete removes the object. Deleting a missing object is not an error.
	Delete(ctx context.Context, objectPath string) error
}

// New builds the signer selected by cfg.Provider.
func New(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (Signer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Provider {
	case "gcs":
		return NewGCSSigner(ctx, cfg.Bucket, cfg.URLTTL, clock.Real{}, logger)
	case "s3":
		return NewS3Signer(cfg.Region, cfg.Bucket, cfg.URLTTL, clock.Real{}, logger)
	case "public":
		return NewPublicSigner(cfg.PublicBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}

func expiring(url, objectPath string, expiresAt time.Time) domain.AudioArtifact {
	exp := expiresAt.UTC()
	return domain.AudioArtifact{URL: url, ObjectPath: objectPath, ExpiresAt: &exp}
}
