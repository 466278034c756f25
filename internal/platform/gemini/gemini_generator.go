package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/phrazzld/scry-studio/internal/config"
	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/generation"
	"github.com/sethvargo/go-retry"
	"google.golang.org/genai"
)

// contentGenerator is the subset of genai.Models the generator calls.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// GeminiGenerator implements generation.QuizGenerator using Google's Gemini API.
type GeminiGenerator struct {
	logger  *slog.Logger
	config  config.LLMConfig
	models  contentGenerator
	backoff func() retry.Backoff
}

var _ generation.QuizGenerator = (*GeminiGenerator)(nil)

// NewGeminiGenerator creates a generator with a Gemini API client.
func NewGeminiGenerator(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*GeminiGenerator, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	return newGenerator(logger, cfg, client.Models)
}

func newGenerator(logger *slog.Logger, cfg config.LLMConfig, models contentGenerator) (*GeminiGenerator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelaySeconds < 1 {
		cfg.RetryDelaySeconds = 2
	}

	g := &GeminiGenerator{
		logger: logger.With("component", "gemini_generator", "model", cfg.ModelName),
		config: cfg,
		models: models,
	}
	g.backoff = func() retry.Backoff {
		b := retry.NewExponential(time.Duration(g.config.RetryDelaySeconds) * time.Second)
		b = retry.WithJitterPercent(50, b)
		return retry.WithMaxRetries(uint64(g.config.MaxRetries), b)
	}
	return g, nil
}

// GenerateQuiz asks the model for req.Count questions about req.Source.
func (g *GeminiGenerator) GenerateQuiz(
	ctx context.Context,
	req generation.QuizRequest,
) ([]domain.QuizQuestion, error) {
	prompt, err := createPrompt(req.Source, req.Count)
	if err != nil {
		return nil, err
	}

	log := g.logger.With("notebook_id", req.NotebookID, "count", req.Count)
	log.InfoContext(ctx, "generating quiz", "source_length", len(req.Source))

	resp, err := g.callWithRetry(ctx, log, prompt)
	if err != nil {
		return nil, err
	}

	questions, err := parseResponse(resp, req.Count)
	if err != nil {
		log.WarnContext(ctx, "rejecting model response", "error", err)
		return nil, err
	}

	log.InfoContext(ctx, "quiz generated", "questions", len(questions))
	return questions, nil
}

func (g *GeminiGenerator) callWithRetry(ctx context.Context, log *slog.Logger, prompt string) (*quizResponse, error) {
	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: prompt}},
	}}
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   quizSchema(),
	}

	var (
		result  *quizResponse
		attempt int
	)
	err := retry.Do(ctx, g.backoff(), func(ctx context.Context) error {
		attempt++
		log.DebugContext(ctx, "calling Gemini API", "attempt", attempt)

		resp, err := g.models.GenerateContent(ctx, g.config.ModelName, contents, cfg)
		if err != nil {
			if isTransient(err) {
				log.WarnContext(ctx, "transient Gemini API error", "attempt", attempt, "error", err)
				return retry.RetryableError(fmt.Errorf("%w: %v", generation.ErrTransientFailure, err))
			}
			return fmt.Errorf("%w: %v", generation.ErrGenerationFailed, err)
		}

		text, err := responseText(resp)
		if err != nil {
			return err
		}

		var parsed quizResponse
		if err := json.Unmarshal([]byte(text), &parsed); err != nil {
			return fmt.Errorf("%w: failed to parse JSON response: %v", generation.ErrInvalidResponse, err)
		}
		result = &parsed
		return nil
	})
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, generation.ErrTransientFailure) {
			err = fmt.Errorf("%w: %v", generation.ErrTransientFailure, err)
		}
		log.ErrorContext(ctx, "Gemini API call failed", "attempts", attempt, "error", err)
		return nil, err
	}
	return result, nil
}

// responseText extracts the concatenated text of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("%w: nil response", generation.ErrInvalidResponse)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt blocked (%s)", generation.ErrContentBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}
	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", generation.ErrContentBlocked
	}
	if candidate.Content == nil {
		return "", fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: empty text in response", generation.ErrInvalidResponse)
	}
	return sb.String(), nil
}

// isTransient reports whether err is worth retrying: rate limits, server
// errors and anything that is not an API error (network failures).
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return transientCode(apiErr.Code)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return transientCode(apiErrPtr.Code)
	}
	return true
}

func transientCode(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// parseResponse validates the model's questions and converts them to domain
// values. Extra questions are dropped; too few is an error.
func parseResponse(resp *quizResponse, count int) ([]domain.QuizQuestion, error) {
	if resp == nil {
		return nil, fmt.Errorf("%w: response is nil", generation.ErrInvalidResponse)
	}
	if len(resp.Questions) < count {
		return nil, fmt.Errorf("%w: got %d questions, want %d",
			generation.ErrInvalidResponse, len(resp.Questions), count)
	}

	questions := make([]domain.QuizQuestion, 0, count)
	for i, q := range resp.Questions[:count] {
		if strings.TrimSpace(q.Prompt) == "" {
			return nil, fmt.Errorf("%w: question %d has no prompt", generation.ErrInvalidResponse, i)
		}
		if len(q.Options) < 2 {
			return nil, fmt.Errorf("%w: question %d has %d options", generation.ErrInvalidResponse, i, len(q.Options))
		}

		keys := make(map[string]bool, len(q.Options))
		options := make([]domain.QuizOption, 0, len(q.Options))
		for _, o := range q.Options {
			if o.Key == "" || keys[o.Key] {
				return nil, fmt.Errorf("%w: question %d has a missing or repeated option key %q",
					generation.ErrInvalidResponse, i, o.Key)
			}
			keys[o.Key] = true
			options = append(options, domain.QuizOption{Key: o.Key, Text: o.Text})
		}
		if !keys[q.CorrectKey] {
			return nil, fmt.Errorf("%w: question %d correct key %q is not an option",
				generation.ErrInvalidResponse, i, q.CorrectKey)
		}

		questions = append(questions, domain.QuizQuestion{
			Prompt:      q.Prompt,
			Options:     options,
			CorrectKey:  q.CorrectKey,
			Explanation: q.Explanation,
		})
	}
	return questions, nil
}
