package resolver

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fraga/KnowledgeNexus/internal/graph"
	"github.com/fraga/KnowledgeNexus/internal/graph/memory"
	"github.com/fraga/KnowledgeNexus/internal/models"
)

func newTestResolver(store graph.Store) *Resolver {
	return New(store, Config{SimilarityThreshold: 0.85})
}

func TestResolveCreatesEntitiesAndRelationships(t *testing.T) {
	store := memory.New()
	r := newTestResolver(store)

	result, err := r.Resolve(context.Background(), "doc-1",
		[]models.CandidateEntity{
			{Name: "Alice Smith", Type: models.EntityPerson, Attributes: map[string]string{"role": "founder"}},
			{Name: "Acme Corp", Type: models.EntityOrganization},
		},
		[]models.CandidateRelationship{
			{SubjectName: "Alice Smith", Predicate: "founded", ObjectName: "Acme Corp"},
		},
	)
	require.NoError(t, err)
	require.Len(t, result.Entities, 2)
	require.Len(t, result.Relationships, 1)

	entities := store.AllEntities()
	require.Len(t, entities, 2)

	edges := store.Relationships()
	require.Len(t, edges, 1)
	assert.Equal(t, "founded", edges[0].Predicate)
}

func TestResolveMergesAcrossDocuments(t *testing.T) {
	store := memory.New()
	r := newTestResolver(store)
	ctx := context.Background()

	first, err := r.Resolve(ctx, "doc-1",
		[]models.CandidateEntity{
			{Name: "Alice Smith", Type: models.EntityPerson, Attributes: map[string]string{"city": "Berlin"}},
		}, nil)
	require.NoError(t, err)

	second, err := r.Resolve(ctx, "doc-2",
		[]models.CandidateEntity{
			{Name: "alice  smith", Type: models.EntityPerson, Attributes: map[string]string{"city": "Hamburg"}},
		}, nil)
	require.NoError(t, err)

	// Same entity both times: exact normalized match.
	require.Len(t, store.AllEntities(), 1)
	assert.Equal(t, first.Entities[0].EntityID, second.Entities[0].EntityID)

	merged := store.AllEntities()[0]
	assert.ElementsMatch(t, []string{"doc-1", "doc-2"}, merged.SourceDocumentIDs)
	// Conflicting attribute values are kept side by side.
	assert.ElementsMatch(t, []string{"Berlin", "Hamburg"}, merged.Attributes["city"])
}

func TestResolveFuzzyMergeAddsAlias(t *testing.T) {
	store := memory.New()
	r := newTestResolver(store)
	ctx := context.Background()

	_, err := r.Resolve(ctx, "doc-1",
		[]models.CandidateEntity{{Name: "John Smith", Type: models.EntityPerson}}, nil)
	require.NoError(t, err)

	_, err = r.Resolve(ctx, "doc-2",
		[]models.CandidateEntity{{Name: "Jon Smith", Type: models.EntityPerson}}, nil)
	require.NoError(t, err)

	entities := store.AllEntities()
	require.Len(t, entities, 1)
	assert.Equal(t, "John Smith", entities[0].CanonicalName)
	assert.True(t, entities[0].HasAlias("Jon Smith"))
}

func TestResolveCanonicalNameIsAnAlias(t *testing.T) {
	store := memory.New()
	r := newTestResolver(store)

	result, err := r.Resolve(context.Background(), "doc-1",
		[]models.CandidateEntity{{Name: "Alice", Type: models.EntityPerson}}, nil)
	require.NoError(t, err)
	require.Len(t, result.Entities, 1)

	// A freshly created entity already knows its canonical name as an alias.
	assert.Contains(t, result.Entities[0].Aliases, "Alice")
	assert.True(t, result.Entities[0].HasAlias(result.Entities[0].CanonicalName))

	stored := store.AllEntities()
	require.Len(t, stored, 1)
	assert.Contains(t, stored[0].Aliases, "Alice")
}

func TestResolveNeverMergesAcrossTypes(t *testing.T) {
	store := memory.New()
	r := newTestResolver(store)
	ctx := context.Background()

	_, err := r.Resolve(ctx, "doc-1",
		[]models.CandidateEntity{{Name: "Paris", Type: models.EntityLocation}}, nil)
	require.NoError(t, err)

	_, err = r.Resolve(ctx, "doc-2",
		[]models.CandidateEntity{{Name: "Paris", Type: models.EntityPerson}}, nil)
	require.NoError(t, err)

	assert.Len(t, store.AllEntities(), 2)
}

func TestResolveCollapsesDuplicatesWithinRun(t *testing.T) {
	store := memory.New()
	r := newTestResolver(store)

	result, err := r.Resolve(context.Background(), "doc-1",
		[]models.CandidateEntity{
			{Name: "Acme Corp", Type: models.EntityOrganization},
			{Name: "ACME  CORP", Type: models.EntityOrganization},
		}, nil)
	require.NoError(t, err)

	assert.Len(t, result.Entities, 1)
	assert.Len(t, store.AllEntities(), 1)
}

func TestResolveDropsDanglingRelationships(t *testing.T) {
	store := memory.New()
	r := newTestResolver(store)

	result, err := r.Resolve(context.Background(), "doc-1",
		[]models.CandidateEntity{{Name: "Alice", Type: models.EntityPerson}},
		[]models.CandidateRelationship{
			{SubjectName: "Alice", Predicate: "works_at", ObjectName: "Ghost Corp"},
		},
	)
	require.NoError(t, err)

	assert.Empty(t, result.Relationships)
	assert.Empty(t, store.Relationships())
}

func TestResolveRelationshipIdempotentAcrossRuns(t *testing.T) {
	store := memory.New()
	r := newTestResolver(store)
	ctx := context.Background()

	entities := []models.CandidateEntity{
		{Name: "Alice", Type: models.EntityPerson},
		{Name: "Acme", Type: models.EntityOrganization},
	}
	rels := []models.CandidateRelationship{
		{SubjectName: "Alice", Predicate: "works_at", ObjectName: "Acme"},
	}

	_, err := r.Resolve(ctx, "doc-1", entities, rels)
	require.NoError(t, err)
	_, err = r.Resolve(ctx, "doc-2", entities, rels)
	require.NoError(t, err)

	assert.Len(t, store.Relationships(), 1)
}

func TestResolveWhitespaceInsensitiveMatch(t *testing.T) {
	store := memory.New()
	r := newTestResolver(store)
	ctx := context.Background()

	_, err := r.Resolve(ctx, "doc-1",
		[]models.CandidateEntity{{Name: "International Business Machines", Type: models.EntityOrganization}}, nil)
	require.NoError(t, err)
	_, err = r.Resolve(ctx, "doc-2",
		[]models.CandidateEntity{{Name: "International Business  Machines", Type: models.EntityOrganization}}, nil)
	require.NoError(t, err)

	require.Len(t, store.AllEntities(), 1)
}

func TestResolveRollsBackOnStoreFailure(t *testing.T) {
	store := &failingStore{Store: memory.New()}
	r := newTestResolver(store)

	_, err := r.Resolve(context.Background(), "doc-1",
		[]models.CandidateEntity{
			{Name: "Alice", Type: models.EntityPerson},
			{Name: "Acme", Type: models.EntityOrganization},
		},
		[]models.CandidateRelationship{
			{SubjectName: "Alice", Predicate: "works_at", ObjectName: "Acme"},
		},
	)
	require.Error(t, err)

	// Nothing from the failed run is visible.
	assert.Empty(t, store.Store.AllEntities())
	assert.Empty(t, store.Store.Relationships())
}

func TestResolveConcurrentRunsConverge(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		docID := fmt.Sprintf("doc-%d", i)
		go func() {
			r := newTestResolver(store)
			_, err := r.Resolve(ctx, docID,
				[]models.CandidateEntity{{Name: "Alice", Type: models.EntityPerson}}, nil)
			errs <- err
		}()
	}
	require.NoError(t, <-errs)
	require.NoError(t, <-errs)

	entities := store.AllEntities()
	require.Len(t, entities, 1)
	assert.ElementsMatch(t, []string{"doc-0", "doc-1"}, entities[0].SourceDocumentIDs)
}

// failingStore delegates to the in-memory store but fails every relationship
// write, forcing the resolver down its rollback path.
type failingStore struct {
	*memory.Store
}

func (s *failingStore) Begin(ctx context.Context) (graph.Tx, error) {
	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &failingTx{Tx: tx}, nil
}

type failingTx struct {
	graph.Tx
}

func (t *failingTx) UpsertRelationship(ctx context.Context, subjectID, predicate, objectID string) error {
	return fmt.Errorf("simulated write failure")
}
