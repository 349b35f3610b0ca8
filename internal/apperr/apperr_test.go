package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: http.StatusOK},
		{name: "not found wrapped", err: fmt.Errorf("user 4: %w", ErrNotFound), want: http.StatusNotFound},
		{name: "validation", err: fmt.Errorf("%w: plan inactive", ErrValidation), want: http.StatusBadRequest},
		{name: "external", err: fmt.Errorf("%w: stripe down", ErrExternalService), want: http.StatusBadGateway},
		{name: "signature", err: ErrSignatureInvalid, want: http.StatusBadRequest},
		{name: "config", err: ErrConfigurationMissing, want: http.StatusBadRequest},
		{name: "unknown", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Status(tt.err))
		})
	}
}

func TestMessageMasksInternalErrors(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "internal server error", Message(errors.New("pq: connection refused")))
	assert.Equal(t, "validation failed: plan inactive", Message(fmt.Errorf("%w: plan inactive", ErrValidation)))
}
