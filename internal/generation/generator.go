package generation

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/domain"
)

// QuizRequest describes one quiz to write.
type QuizRequest struct {
	NotebookID uuid.UUID
	Source     string
	Count      int
}

// QuizGenerator writes quiz questions from notebook text.
type QuizGenerator interface {
	// GenerateQuiz returns exactly req.Count questions or an error.
	GenerateQuiz(ctx context.Context, req QuizRequest) ([]domain.QuizQuestion, error)
}

// AudioRequest describes one deep-dive audio overview to synthesize.
type AudioRequest struct {
	JobID      uuid.UUID
	NotebookID uuid.UUID
}

// AudioSynthesizer produces an audio object in storage.
type AudioSynthesizer interface {
	// SynthesizeAudio blocks until the object exists and returns its path.
	SynthesizeAudio(ctx context.Context, req AudioRequest) (objectPath string, err error)
}

// SourceLoader reads the text content of a notebook.
type SourceLoader interface {
	LoadSource(ctx context.Context, notebookID uuid.UUID) (string, error)
}
