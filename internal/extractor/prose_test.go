package extractor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fraga/KnowledgeNexus/internal/models"
)

func TestProseExtractorShapeGuarantee(t *testing.T) {
	e := NewProseExtractor()

	ext, err := e.Extract(context.Background(), "Barack Obama visited Berlin last summer. The trip was short.", "")
	require.NoError(t, err)
	require.NotNil(t, ext)
	require.NotEmpty(t, ext.Summary)

	names := make(map[string]bool)
	for _, ent := range ext.Entities {
		require.NotEmpty(t, ent.Name)
		require.Contains(t, []models.EntityType{
			models.EntityPerson, models.EntityOrganization, models.EntityLocation,
			models.EntityEvent, models.EntityOther,
		}, ent.Type)
		names[models.NormalizeName(ent.Name)] = true
	}
	for _, rel := range ext.Relationships {
		require.True(t, names[models.NormalizeName(rel.SubjectName)])
		require.True(t, names[models.NormalizeName(rel.ObjectName)])
	}
}

func TestProseExtractorSummaryTruncation(t *testing.T) {
	e := NewProseExtractor()

	ext, err := e.Extract(context.Background(),
		"One. Two. Three. Four. Five.", "")
	require.NoError(t, err)
	require.NotEmpty(t, ext.Summary)
	require.NotContains(t, ext.Summary, "Five")
}
