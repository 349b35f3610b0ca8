package gemini

import (
	"context"
	"errors"
	"testing"

	"ats-scanner/internal/ai"
	"ats-scanner/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubGenerator struct {
	response   string
	err        error
	lastPrompt string
}

func (s *stubGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	s.lastPrompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func TestScorerScore(t *testing.T) {
	stub := &stubGenerator{response: "```json\n{\"score\": 81, \"feedback\": \"<p>Good</p><script>x</script>\", \"optimized_resume\": \"Jane Doe\"}\n```"}
	scorer := NewScorer(stub, zap.NewNop(), 0)

	got, err := scorer.Score(context.Background(), "Jane Doe, Go developer", ai.JobContext{Description: "Backend engineer", Industry: "fintech"})
	require.NoError(t, err)
	assert.Equal(t, 81, got.Score)
	assert.Equal(t, "<p>Good</p>", got.Feedback)
	assert.Equal(t, "Jane Doe", got.OptimizedResume)

	assert.Contains(t, stub.lastPrompt, "- Industry: fintech")
	assert.Contains(t, stub.lastPrompt, "Backend engineer")
	assert.Contains(t, stub.lastPrompt, "Jane Doe, Go developer")
}

func TestScorerDefaultsJobContext(t *testing.T) {
	stub := &stubGenerator{response: `{"score": "140", "feedback": ""}`}
	got, err := NewScorer(stub, nil, 0).Score(context.Background(), "resume", ai.JobContext{})
	require.NoError(t, err)
	assert.Equal(t, 100, got.Score)
	assert.Contains(t, stub.lastPrompt, "- Industry: not specified")
}

func TestScorerErrors(t *testing.T) {
	tests := []struct {
		name    string
		stub    *stubGenerator
		resume  string
		wantErr error
	}{
		{name: "empty resume", stub: &stubGenerator{}, resume: "  ", wantErr: apperr.ErrValidation},
		{name: "generator failure", stub: &stubGenerator{err: errors.New("quota exhausted")}, resume: "cv", wantErr: apperr.ErrExternalService},
		{name: "not json", stub: &stubGenerator{response: "I think it is fine"}, resume: "cv", wantErr: apperr.ErrExternalService},
		{name: "no score", stub: &stubGenerator{response: `{"feedback": "<p>x</p>"}`}, resume: "cv", wantErr: apperr.ErrExternalService},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewScorer(tt.stub, nil, 0).Score(context.Background(), tt.resume, ai.JobContext{})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, extractJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, extractJSON("```\n{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, extractJSON(` {"a":1} `))
}

func TestGeneratorRequiresKey(t *testing.T) {
	_, err := NewGenerator(context.Background(), " ", "")
	assert.Error(t, err)

	var g *Generator
	_, err = g.GenerateContent(context.Background(), "hi")
	assert.Error(t, err)
	assert.Empty(t, g.Model())
}
