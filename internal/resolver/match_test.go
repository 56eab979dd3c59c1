package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fraga/KnowledgeNexus/internal/models"
)

func TestSimilarityExactAndNormalized(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("Alice Smith", "Alice Smith"))
	assert.Equal(t, 1.0, Similarity("  alice   SMITH ", "Alice Smith"))
}

func TestSimilarityNearMisspelling(t *testing.T) {
	got := Similarity("Jon Smith", "John Smith")
	assert.GreaterOrEqual(t, got, 0.85)
}

func TestSimilarityTokenReorder(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("Smith John", "John Smith"))
}

func TestSimilarityUnrelatedNamesScoreLow(t *testing.T) {
	assert.Less(t, Similarity("Alice Smith", "Acme Corporation"), 0.5)
}

func TestSimilarityEmptyName(t *testing.T) {
	assert.Equal(t, 0.0, Similarity("", "Alice"))
	assert.Equal(t, 0.0, Similarity("   ", "Alice"))
}

func TestBestFuzzyMatchRespectsThreshold(t *testing.T) {
	candidates := []models.ResolvedEntity{
		{EntityID: "e1", CanonicalName: "John Smith", Type: models.EntityPerson},
	}

	assert.Nil(t, bestFuzzyMatch("Completely Different", candidates, 0.85))
	assert.NotNil(t, bestFuzzyMatch("Jon Smith", candidates, 0.85))
}

func TestBestFuzzyMatchTieBreaksOnSmallerID(t *testing.T) {
	// Both candidates score identically against the probe name.
	candidates := []models.ResolvedEntity{
		{EntityID: "e2", CanonicalName: "Jon Smith", Type: models.EntityPerson},
		{EntityID: "e1", CanonicalName: "Jon Smith", Type: models.EntityPerson},
	}

	got := bestFuzzyMatch("John Smith", candidates, 0.85)
	assert.NotNil(t, got)
	assert.Equal(t, "e1", got.EntityID)
}

func TestBestFuzzyMatchUsesAliases(t *testing.T) {
	candidates := []models.ResolvedEntity{
		{
			EntityID:      "e1",
			CanonicalName: "International Business Machines",
			Type:          models.EntityOrganization,
			Aliases:       []string{"IBM Corp"},
		},
	}

	got := bestFuzzyMatch("IBM Corp.", candidates, 0.85)
	assert.NotNil(t, got)
}
