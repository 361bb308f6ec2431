package providers

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyError(t *testing.T) {
	cases := map[string]ErrorType{
		"insufficient_quota":                 ErrorQuota,
		"openai chat error 429: slow down":   ErrorRate,
		"context_length_exceeded":            ErrorContext,
		"timeout":                            ErrorTransient,
		"openai chat error 503: overloaded":  ErrorTransient,
		`openai key missing for alias ""`:    ErrorAuth,
		"bad request":                        ErrorPermanent,
	}
	for msg, want := range cases {
		assert.Equal(t, want, ClassifyError(errors.New(msg)), msg)
	}
	assert.Equal(t, ErrorType(""), ClassifyError(nil))
	assert.Equal(t, ErrorTransient, ClassifyError(fmt.Errorf("embed: %w", context.DeadlineExceeded)))
}
