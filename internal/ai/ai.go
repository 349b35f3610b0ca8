// Package ai defines the resume scoring contract and the helpers shared by
// its implementations.
package ai

import (
	"context"
	"math"

	"github.com/microcosm-cc/bluemonday"
)

type JobContext struct {
	Description string
	Industry    string
}

type Assessment struct {
	Score           int
	Feedback        string // sanitized HTML
	OptimizedResume string
	Raw             string
}

type Scorer interface {
	Score(ctx context.Context, resumeText string, job JobContext) (*Assessment, error)
}

// ClampScore rounds v into the 0..100 range; NaN scores as 0.
func ClampScore(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Round(math.Max(0, math.Min(100, v))))
}

var feedbackPolicy = bluemonday.UGCPolicy()

// SanitizeFeedback strips anything from model-written HTML that a browser
// could execute.
func SanitizeFeedback(html string) string {
	return feedbackPolicy.Sanitize(html)
}
