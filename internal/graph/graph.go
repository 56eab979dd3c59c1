package graph

import (
	"context"
	"errors"

	"github.com/fraga/KnowledgeNexus/internal/models"
)

var ErrNotFound = errors.New("entity not found")

// Store is the transactional facade over the shared knowledge graph. All
// shared state between pipeline runs lives behind this interface; the store
// is the single point of concurrency control.
type Store interface {
	// Connect acquires the store before pipeline work starts.
	Connect(ctx context.Context) error
	// Close releases the store unconditionally, even after failures.
	Close(ctx context.Context) error

	// FindMatchingEntities returns entities of the given type whose canonical
	// name or any alias equals name under normalized comparison.
	FindMatchingEntities(ctx context.Context, name string, entityType models.EntityType) ([]models.ResolvedEntity, error)

	// EntitiesByType returns every entity of the given type. The resolver
	// uses this as the scan set for fuzzy matching.
	EntitiesByType(ctx context.Context, entityType models.EntityType) ([]models.ResolvedEntity, error)

	// Begin opens a transaction. Every mutation for one document goes through
	// a single transaction so the graph sees all of them or none.
	Begin(ctx context.Context) (Tx, error)
}

// Tx is one atomic batch of graph mutations.
type Tx interface {
	// UpsertEntity writes the entity keyed on its normalized
	// (canonical_name, type) pair and returns the persistent entity id.
	// When a concurrent writer created the same entity first, the returned
	// id is the winner's and differs from entity.EntityID.
	UpsertEntity(ctx context.Context, entity *models.ResolvedEntity) (string, error)

	// UpsertRelationship writes a directed edge, idempotent on the full
	// (subject, predicate, object) tuple.
	UpsertRelationship(ctx context.Context, subjectID, predicate, objectID string) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// LookupKey is the uniqueness key entities are upserted on.
func LookupKey(name string, entityType models.EntityType) string {
	return string(entityType) + ":" + models.NormalizeName(name)
}
