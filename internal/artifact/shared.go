package artifact

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/domain"
	"golang.org/x/sync/singleflight"
)

// SharedRefresher collapses concurrent refreshes of the same job issued by
// different guards into one backend call.
type SharedRefresher struct {
	next  Refresher
	group singleflight.Group
}

// NewSharedRefresher wraps next.
func NewSharedRefresher(next Refresher) *SharedRefresher {
	return &SharedRefresher{next: next}
}

// RefreshAudio implements Refresher.
func (s *SharedRefresher) RefreshAudio(ctx context.Context, jobID uuid.UUID) (domain.AudioArtifact, error) {
	v, err, _ := s.group.Do(jobID.String(), func() (interface{}, error) {
		return s.next.RefreshAudio(ctx, jobID)
	})
	if err != nil {
		return domain.AudioArtifact{}, err
	}
	return v.(domain.AudioArtifact), nil
}
