package extractor

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/fraga/KnowledgeNexus/internal/llm"
	"github.com/fraga/KnowledgeNexus/pkg/logger"
)

// maxExtractionChars bounds how much document text a single completion sees.
const maxExtractionChars = 12000

const extractionSystemPrompt = `You are a knowledge extraction engine. Given a document, produce a JSON object with:
- "description": one sentence characterizing what kind of document this is
- "summary": a concise 2-4 sentence summary of the content
- "entities": array of {"name", "type", "attributes"} where type is one of: person, organization, location, event, other, and attributes is an object of short string facts about the entity found in the text
- "relationships": array of {"subject", "predicate", "object"} where subject and object are entity names from the entities array and predicate is a short snake_case verb phrase (e.g. works_at, located_in, married_to)

Use entity names exactly as they appear in the text. Only include relationships whose endpoints are in the entities array. Return JSON only, no prose.`

// OpenAIExtractor is the model-backed Extractor implementation.
type OpenAIExtractor struct {
	client *llm.Client
}

func NewOpenAIExtractor(client *llm.Client) *OpenAIExtractor {
	return &OpenAIExtractor{client: client}
}

func (e *OpenAIExtractor) Extract(ctx context.Context, text, instructions string) (*Extraction, error) {
	if len(text) > maxExtractionChars {
		truncated := truncateAtRuneBoundary(text, maxExtractionChars)
		logger.Warn("Document text truncated for extraction",
			zap.Int("document_bytes", len(text)),
			zap.Int("kept_bytes", len(truncated)),
		)
		text = truncated
	}

	var sb strings.Builder
	if instructions != "" {
		fmt.Fprintf(&sb, "Extraction focus: %s\n\n", instructions)
	}
	fmt.Fprintf(&sb, "Document:\n%s\n\nReturn JSON only.", text)

	resp, err := e.client.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: extractionSystemPrompt,
		UserPrompt:   sb.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("extraction completion failed: %w", err)
	}

	ext, err := parseExtraction(resp.Content)
	if err != nil {
		// Unparseable output degrades to an empty result set; the document
		// still completes with a description of what went wrong.
		logger.Warn("Model output unparseable, degrading to empty extraction", zap.Error(err))
		return &Extraction{
			Description: fmt.Sprintf("extraction degraded: %v", err),
		}, nil
	}

	logger.Info("Extraction completed",
		zap.Int("entities", len(ext.Entities)),
		zap.Int("relationships", len(ext.Relationships)),
	)

	return ext, nil
}

// truncateAtRuneBoundary cuts s to at most max bytes without splitting a
// multi-byte rune.
func truncateAtRuneBoundary(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
