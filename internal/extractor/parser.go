package extractor

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/fraga/KnowledgeNexus/internal/models"
)

// wireExtraction is the JSON the model is asked to produce.
type wireExtraction struct {
	Description   string             `json:"description"`
	Summary       string             `json:"summary"`
	Entities      []wireEntity       `json:"entities"`
	Relationships []wireRelationship `json:"relationships"`
}

type wireEntity struct {
	Name       string            `json:"name"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

type wireRelationship struct {
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    string `json:"object"`
}

// parseExtraction decodes model output into an Extraction. Model JSON is
// frequently wrapped in markdown fences or mildly malformed, so parsing
// falls back to jsonrepair before giving up.
func parseExtraction(content string) (*Extraction, error) {
	raw := stripFences(content)

	var wire wireExtraction
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(raw)
		if repairErr != nil {
			return nil, fmt.Errorf("failed to repair model output: %w", repairErr)
		}
		if err := json.Unmarshal([]byte(repaired), &wire); err != nil {
			return nil, fmt.Errorf("failed to decode model output after repair: %w", err)
		}
	}

	ext := &Extraction{
		Description: strings.TrimSpace(wire.Description),
		Summary:     strings.TrimSpace(wire.Summary),
	}
	for _, e := range wire.Entities {
		ext.Entities = append(ext.Entities, models.CandidateEntity{
			Name:       strings.TrimSpace(e.Name),
			Type:       models.ParseEntityType(e.Type),
			Attributes: e.Attributes,
		})
	}
	for _, r := range wire.Relationships {
		ext.Relationships = append(ext.Relationships, models.CandidateRelationship{
			SubjectName: strings.TrimSpace(r.Subject),
			Predicate:   strings.TrimSpace(r.Predicate),
			ObjectName:  strings.TrimSpace(r.Object),
		})
	}

	return sanitize(ext), nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
