package extractor

import (
	"context"

	"github.com/fraga/KnowledgeNexus/internal/models"
)

// Extraction is the shape-guaranteed output of one extraction pass. Every
// relationship's subject and object name corresponds to some entity in
// Entities; recall and precision are explicitly not guaranteed, and an empty
// entity set with a populated summary is a valid result.
type Extraction struct {
	Description   string                         `json:"description"`
	Summary       string                         `json:"summary"`
	Entities      []models.CandidateEntity       `json:"entities"`
	Relationships []models.CandidateRelationship `json:"relationships"`
}

// Extractor is the capability interface over entity/relationship extraction.
// Implementations may be model-backed or statistical; only the output shape
// is part of the contract. Instructions bias which entities and
// relationships are surfaced but never change the schema.
type Extractor interface {
	Extract(ctx context.Context, text, instructions string) (*Extraction, error)
}

// sanitize enforces the shape guarantee: entities without names are dropped,
// types are folded onto the enum, and relationships whose endpoints do not
// correspond to a surviving entity name are discarded.
func sanitize(ext *Extraction) *Extraction {
	entities := make([]models.CandidateEntity, 0, len(ext.Entities))
	names := make(map[string]bool)
	for _, e := range ext.Entities {
		norm := models.NormalizeName(e.Name)
		if norm == "" || names[norm] {
			continue
		}
		names[norm] = true
		e.Type = models.ParseEntityType(string(e.Type))
		entities = append(entities, e)
	}

	relationships := make([]models.CandidateRelationship, 0, len(ext.Relationships))
	for _, r := range ext.Relationships {
		if r.Predicate == "" {
			continue
		}
		if !names[models.NormalizeName(r.SubjectName)] || !names[models.NormalizeName(r.ObjectName)] {
			continue
		}
		relationships = append(relationships, r)
	}

	ext.Entities = entities
	ext.Relationships = relationships
	return ext
}
