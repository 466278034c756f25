package gemini

import (
	"bytes"
	_ "embed"
	"fmt"
	"text/template"

	"github.com/phrazzld/scry-studio/internal/generation"
)

// Question bounds accepted by the generator.
const (
	MinQuestions = 1
	MaxQuestions = 10
	maxOptions   = 5
)

//go:embed prompts/quiz.tmpl
var quizTemplate string

var promptTemplate = template.Must(template.New("quiz").Parse(quizTemplate))

// createPrompt renders the quiz prompt for source text and a question count.
func createPrompt(source string, count int) (string, error) {
	if source == "" {
		return "", generation.ErrEmptySource
	}
	if count < MinQuestions || count > MaxQuestions {
		return "", fmt.Errorf("%w: %d", ErrInvalidCount, count)
	}

	var buf bytes.Buffer
	if err := promptTemplate.Execute(&buf, promptData{
		Source:     source,
		Count:      count,
		MaxOptions: maxOptions,
	}); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buf.String(), nil
}
