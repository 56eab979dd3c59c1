package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"github.com/fraga/KnowledgeNexus/internal/models"
	"github.com/fraga/KnowledgeNexus/pkg/logger"
)

// summarySentences is how many leading sentences the statistical summary keeps.
const summarySentences = 3

// ProseExtractor is the statistical Extractor implementation, backed by the
// prose NER model. It runs fully offline and surfaces entities only; the
// relationship list is always empty, which is a valid extraction result.
type ProseExtractor struct{}

func NewProseExtractor() *ProseExtractor {
	return &ProseExtractor{}
}

func (e *ProseExtractor) Extract(ctx context.Context, text, instructions string) (*Extraction, error) {
	doc, err := prose.NewDocument(text)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze text: %w", err)
	}

	ext := &Extraction{
		Description: "Document processed with statistical entity recognition.",
		Summary:     leadingSentences(doc, summarySentences),
	}

	seen := make(map[string]bool)
	for _, ent := range doc.Entities() {
		name := strings.TrimSpace(ent.Text)
		norm := models.NormalizeName(name)
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		ext.Entities = append(ext.Entities, models.CandidateEntity{
			Name: name,
			Type: proseLabelToType(ent.Label),
		})
	}

	logger.Debug("Statistical extraction completed",
		zap.Int("entities", len(ext.Entities)),
	)

	return sanitize(ext), nil
}

func proseLabelToType(label string) models.EntityType {
	switch label {
	case "PERSON":
		return models.EntityPerson
	case "GPE":
		return models.EntityLocation
	default:
		return models.EntityOther
	}
}

func leadingSentences(doc *prose.Document, n int) string {
	sentences := doc.Sentences()
	if len(sentences) > n {
		sentences = sentences[:n]
	}
	parts := make([]string, 0, len(sentences))
	for _, s := range sentences {
		parts = append(parts, strings.TrimSpace(s.Text))
	}
	return strings.Join(parts, " ")
}
