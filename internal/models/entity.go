package models

import "strings"

type EntityType string

const (
	EntityPerson       EntityType = "person"
	EntityOrganization EntityType = "organization"
	EntityLocation     EntityType = "location"
	EntityEvent        EntityType = "event"
	EntityOther        EntityType = "other"
)

// ParseEntityType maps a free-form type label onto the enum, falling back to
// EntityOther for anything it does not recognize.
func ParseEntityType(s string) EntityType {
	switch EntityType(strings.ToLower(strings.TrimSpace(s))) {
	case EntityPerson, EntityOrganization, EntityLocation, EntityEvent, EntityOther:
		return EntityType(strings.ToLower(strings.TrimSpace(s)))
	case "org", "company":
		return EntityOrganization
	case "place", "gpe":
		return EntityLocation
	default:
		return EntityOther
	}
}

// CandidateEntity is an unresolved entity surfaced by the extractor. It lives
// only within one pipeline run and is always passed through the resolver
// before anything touches the graph.
type CandidateEntity struct {
	Name             string            `json:"name"`
	Type             EntityType        `json:"type"`
	Attributes       map[string]string `json:"attributes,omitempty"`
	SourceDocumentID string            `json:"source_document_id,omitempty"`
}

// CandidateRelationship references candidate entities by surface name within
// the same run.
type CandidateRelationship struct {
	SubjectName string `json:"subject"`
	Predicate   string `json:"predicate"`
	ObjectName  string `json:"object"`
}

// ResolvedEntity is the canonical, graph-resident record for one real-world
// entity. Attribute values are multi-valued so that merge conflicts retain
// both values instead of overwriting.
type ResolvedEntity struct {
	EntityID          string              `json:"entity_id"`
	CanonicalName     string              `json:"canonical_name"`
	Type              EntityType          `json:"type"`
	Aliases           []string            `json:"aliases"`
	Attributes        map[string][]string `json:"attributes,omitempty"`
	SourceDocumentIDs []string            `json:"source_document_ids"`
}

// HasAlias reports whether the entity already knows the given surface form
// under normalized comparison.
func (e *ResolvedEntity) HasAlias(name string) bool {
	norm := NormalizeName(name)
	for _, a := range e.Aliases {
		if NormalizeName(a) == norm {
			return true
		}
	}
	return false
}

// Ref returns the reference a Document carries for this entity.
func (e *ResolvedEntity) Ref() EntityRef {
	return EntityRef{EntityID: e.EntityID, Name: e.CanonicalName, Type: e.Type}
}

// ResolvedRelationship is a directed edge between two resolved entities.
// The (subject, predicate, object) tuple is the identity; repeated writes of
// an identical tuple are idempotent.
type ResolvedRelationship struct {
	SubjectID string `json:"subject_entity_id"`
	Predicate string `json:"predicate"`
	ObjectID  string `json:"object_entity_id"`
}

// NormalizeName is the normalized-equality form used for entity identity:
// lowercased with runs of whitespace collapsed to a single space.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
