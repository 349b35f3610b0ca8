package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"ats-scanner/internal/ai"
	"ats-scanner/internal/apperr"
	"ats-scanner/internal/logger"

	"go.uber.org/zap"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

type Scorer struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

//go:embed prompt.md
var promptTemplate string

const defaultMaxLogLength = 200

var _ ai.Scorer = (*Scorer)(nil)

func NewScorer(generator contentGenerator, log *zap.Logger, maxLogLength int) *Scorer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	return &Scorer{generator: generator, logger: logger.OrNop(log), maxLogLen: maxLogLength}
}

// Score asks the model for an assessment. Model or transport failures are
// reported as external service failures.
func (s *Scorer) Score(ctx context.Context, resumeText string, job ai.JobContext) (*ai.Assessment, error) {
	if strings.TrimSpace(resumeText) == "" {
		return nil, fmt.Errorf("%w: resume text is empty", apperr.ErrValidation)
	}

	prompt := buildPrompt(resumeText, job)
	s.logger.Debug("gemini generate content request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, s.maxLogLen)),
	)

	raw, err := s.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrExternalService, err)
	}

	s.logger.Debug("gemini generate content response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, s.maxLogLen)),
	)

	assessment, err := parseResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrExternalService, err)
	}
	assessment.Raw = raw
	return assessment, nil
}

func buildPrompt(resumeText string, job ai.JobContext) string {
	industry := strings.TrimSpace(job.Industry)
	if industry == "" {
		industry = "not specified"
	}
	description := strings.TrimSpace(job.Description)
	if description == "" {
		description = "not provided; assess general ATS readiness"
	}
	return strings.NewReplacer(
		"{{INDUSTRY}}", industry,
		"{{JOB_DESCRIPTION}}", description,
		"{{RESUME}}", strings.TrimSpace(resumeText),
	).Replace(promptTemplate)
}

func parseResponse(raw string) (*ai.Assessment, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(extractJSON(raw)), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	score, ok := coerceFloat(data["score"])
	if !ok {
		return nil, errors.New("parse gemini response: score missing")
	}

	return &ai.Assessment{
		Score:           ai.ClampScore(score),
		Feedback:        ai.SanitizeFeedback(coerceString(data["feedback"])),
		OptimizedResume: coerceString(data["optimized_resume"]),
	}, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case nil:
		return ""
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}
