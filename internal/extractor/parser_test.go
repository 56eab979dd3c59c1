package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fraga/KnowledgeNexus/internal/models"
)

func TestParseExtractionWellFormed(t *testing.T) {
	content := `{
		"description": "A short biography.",
		"summary": "Alice works at Acme Corp in Springfield.",
		"entities": [
			{"name": "Alice", "type": "person", "attributes": {"role": "engineer"}},
			{"name": "Acme Corp", "type": "organization"},
			{"name": "Springfield", "type": "location"}
		],
		"relationships": [
			{"subject": "Alice", "predicate": "works_at", "object": "Acme Corp"},
			{"subject": "Acme Corp", "predicate": "located_in", "object": "Springfield"}
		]
	}`

	ext, err := parseExtraction(content)
	require.NoError(t, err)

	assert.Equal(t, "A short biography.", ext.Description)
	require.Len(t, ext.Entities, 3)
	assert.Equal(t, models.EntityPerson, ext.Entities[0].Type)
	assert.Equal(t, "engineer", ext.Entities[0].Attributes["role"])
	require.Len(t, ext.Relationships, 2)
}

func TestParseExtractionStripsMarkdownFences(t *testing.T) {
	content := "```json\n{\"summary\": \"s\", \"entities\": [{\"name\": \"Bob\", \"type\": \"person\"}], \"relationships\": []}\n```"

	ext, err := parseExtraction(content)
	require.NoError(t, err)
	require.Len(t, ext.Entities, 1)
	assert.Equal(t, "Bob", ext.Entities[0].Name)
}

func TestParseExtractionRepairsSloppyJSON(t *testing.T) {
	// Unquoted keys and a trailing comma, typical model sloppiness.
	content := `{summary: "s", entities: [{name: "Bob", type: "person"},], relationships: []}`

	ext, err := parseExtraction(content)
	require.NoError(t, err)
	require.Len(t, ext.Entities, 1)
	assert.Equal(t, "Bob", ext.Entities[0].Name)
}

func TestParseExtractionDropsDanglingRelationships(t *testing.T) {
	content := `{
		"entities": [{"name": "Alice", "type": "person"}],
		"relationships": [
			{"subject": "Alice", "predicate": "works_at", "object": "Ghost Corp"},
			{"subject": "Nobody", "predicate": "knows", "object": "Alice"}
		]
	}`

	ext, err := parseExtraction(content)
	require.NoError(t, err)
	assert.Empty(t, ext.Relationships)
}

func TestParseExtractionNormalizesUnknownTypes(t *testing.T) {
	content := `{
		"entities": [
			{"name": "Acme", "type": "company"},
			{"name": "Widget", "type": "product"}
		],
		"relationships": []
	}`

	ext, err := parseExtraction(content)
	require.NoError(t, err)
	require.Len(t, ext.Entities, 2)
	assert.Equal(t, models.EntityOrganization, ext.Entities[0].Type)
	assert.Equal(t, models.EntityOther, ext.Entities[1].Type)
}

func TestParseExtractionDropsUnnamedAndDuplicateEntities(t *testing.T) {
	content := `{
		"entities": [
			{"name": "  ", "type": "person"},
			{"name": "Alice", "type": "person"},
			{"name": "alice", "type": "person"}
		],
		"relationships": []
	}`

	ext, err := parseExtraction(content)
	require.NoError(t, err)
	require.Len(t, ext.Entities, 1)
}

func TestParseExtractionRejectsGarbage(t *testing.T) {
	_, err := parseExtraction("I could not find any entities, sorry!")
	require.Error(t, err)
}
