package storage

import (
	"context"
	"net/url"
	"strings"

	"github.com/phrazzld/scry-studio/internal/domain"
)

// PublicSigner serves objects from a public base URL. Its URLs never expire
// and it does not own the objects, so Delete is a no-op.
type PublicSigner struct {
	baseURL string
}

// NewPublicSigner creates a signer rooted at baseURL.
func NewPublicSigner(baseURL string) *PublicSigner {
	return &PublicSigner{baseURL: strings.TrimRight(baseURL, "/")}
}

// Sign implements Signer.
func (s *PublicSigner) Sign(_ context.Context, objectPath string) (domain.AudioArtifact, error) {
	if objectPath == "" {
		return domain.AudioArtifact{}, ErrEmptyObjectPath
	}
	segments := strings.Split(strings.TrimLeft(objectPath, "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return domain.AudioArtifact{
		URL:        s.baseURL + "/" + strings.Join(segments, "/"),
		ObjectPath: objectPath,
	}, nil
}

// Delete implements Signer.
func (s *PublicSigner) Delete(context.Context, string) error {
	return nil
}
