package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompletionDefaultsComeFromConfig(t *testing.T) {
	c := NewClient("test-key", "gpt-4o-mini", 0.2, 2048, 30)

	assert.InDelta(t, 0.2, c.effectiveTemperature(CompletionRequest{}), 1e-6)
	assert.Equal(t, 2048, c.effectiveMaxTokens(CompletionRequest{}))
}

func TestCompletionRequestOverridesDefaults(t *testing.T) {
	c := NewClient("test-key", "gpt-4o-mini", 0.2, 2048, 30)

	req := CompletionRequest{Temperature: 0.7, MaxTokens: 512}
	assert.InDelta(t, 0.7, c.effectiveTemperature(req), 1e-6)
	assert.Equal(t, 512, c.effectiveMaxTokens(req))
}
