package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/fraga/KnowledgeNexus/internal/graph"
	"github.com/fraga/KnowledgeNexus/internal/models"
)

// Store is an in-memory graph.Store. It backs tests and store-less
// deployments and honors the same contract as the Neo4j client: uniqueness
// on the (canonical_name, type) lookup key, idempotent relationship tuples,
// and atomic per-transaction visibility. Transactions hold the store lock
// from Begin to Commit/Rollback, so concurrent writers serialize.
type Store struct {
	mu       sync.Mutex
	byLookup map[string]*models.ResolvedEntity
	byID     map[string]*models.ResolvedEntity
	edges    map[string]models.ResolvedRelationship
}

func New() *Store {
	return &Store{
		byLookup: make(map[string]*models.ResolvedEntity),
		byID:     make(map[string]*models.ResolvedEntity),
		edges:    make(map[string]models.ResolvedRelationship),
	}
}

func (s *Store) Connect(ctx context.Context) error { return nil }
func (s *Store) Close(ctx context.Context) error   { return nil }

func (s *Store) FindMatchingEntities(ctx context.Context, name string, entityType models.EntityType) ([]models.ResolvedEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	norm := models.NormalizeName(name)

	var matches []models.ResolvedEntity
	for _, e := range s.byLookup {
		if e.Type != entityType {
			continue
		}
		if models.NormalizeName(e.CanonicalName) == norm || e.HasAlias(name) {
			matches = append(matches, cloneEntity(e))
		}
	}

	sortByID(matches)
	return matches, nil
}

func (s *Store) EntitiesByType(ctx context.Context, entityType models.EntityType) ([]models.ResolvedEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entities []models.ResolvedEntity
	for _, e := range s.byLookup {
		if e.Type == entityType {
			entities = append(entities, cloneEntity(e))
		}
	}

	sortByID(entities)
	return entities, nil
}

func (s *Store) Begin(ctx context.Context) (graph.Tx, error) {
	s.mu.Lock()
	return &transaction{
		store:    s,
		entities: make(map[string]*models.ResolvedEntity),
		edges:    make(map[string]models.ResolvedRelationship),
	}, nil
}

// AllEntities returns a copy of every committed entity, ordered by id.
func (s *Store) AllEntities() []models.ResolvedEntity {
	s.mu.Lock()
	defer s.mu.Unlock()

	entities := make([]models.ResolvedEntity, 0, len(s.byLookup))
	for _, e := range s.byLookup {
		entities = append(entities, cloneEntity(e))
	}
	sortByID(entities)
	return entities
}

// Relationships returns a copy of every committed edge.
func (s *Store) Relationships() []models.ResolvedRelationship {
	s.mu.Lock()
	defer s.mu.Unlock()

	edges := make([]models.ResolvedRelationship, 0, len(s.edges))
	for _, r := range s.edges {
		edges = append(edges, r)
	}
	sort.Slice(edges, func(i, j int) bool {
		return edgeKey(edges[i].SubjectID, edges[i].Predicate, edges[i].ObjectID) <
			edgeKey(edges[j].SubjectID, edges[j].Predicate, edges[j].ObjectID)
	})
	return edges
}

type transaction struct {
	store    *Store
	entities map[string]*models.ResolvedEntity
	edges    map[string]models.ResolvedRelationship
	done     bool
}

func (t *transaction) UpsertEntity(ctx context.Context, entity *models.ResolvedEntity) (string, error) {
	if t.done {
		return "", fmt.Errorf("transaction already finished")
	}

	lookup := graph.LookupKey(entity.CanonicalName, entity.Type)
	staged := cloneEntity(entity)

	// A committed or previously staged entity with the same lookup key wins
	// the identity; the incoming state is merged onto it.
	if existing, ok := t.entities[lookup]; ok {
		merged := mergeEntities(existing, &staged)
		t.entities[lookup] = &merged
		return merged.EntityID, nil
	}
	if existing, ok := t.store.byLookup[lookup]; ok {
		merged := mergeEntities(existing, &staged)
		t.entities[lookup] = &merged
		return merged.EntityID, nil
	}

	t.entities[lookup] = &staged
	return staged.EntityID, nil
}

func (t *transaction) UpsertRelationship(ctx context.Context, subjectID, predicate, objectID string) error {
	if t.done {
		return fmt.Errorf("transaction already finished")
	}

	key := edgeKey(subjectID, predicate, objectID)
	t.edges[key] = models.ResolvedRelationship{
		SubjectID: subjectID,
		Predicate: predicate,
		ObjectID:  objectID,
	}
	return nil
}

func (t *transaction) Commit(ctx context.Context) error {
	if t.done {
		return fmt.Errorf("transaction already finished")
	}
	t.done = true
	defer t.store.mu.Unlock()

	for lookup, e := range t.entities {
		t.store.byLookup[lookup] = e
		t.store.byID[e.EntityID] = e
	}
	for key, r := range t.edges {
		t.store.edges[key] = r
	}
	return nil
}

func (t *transaction) Rollback(ctx context.Context) error {
	if t.done {
		return fmt.Errorf("transaction already finished")
	}
	t.done = true
	t.store.mu.Unlock()
	return nil
}

// mergeEntities folds incoming state onto the winning record, keeping the
// winner's id and canonical name and unioning everything else.
func mergeEntities(winner, incoming *models.ResolvedEntity) models.ResolvedEntity {
	merged := cloneEntity(winner)

	for _, alias := range incoming.Aliases {
		if !merged.HasAlias(alias) {
			merged.Aliases = append(merged.Aliases, alias)
		}
	}

	for _, docID := range incoming.SourceDocumentIDs {
		if !containsString(merged.SourceDocumentIDs, docID) {
			merged.SourceDocumentIDs = append(merged.SourceDocumentIDs, docID)
		}
	}

	if len(incoming.Attributes) > 0 && merged.Attributes == nil {
		merged.Attributes = make(map[string][]string)
	}
	for key, values := range incoming.Attributes {
		for _, v := range values {
			if !containsString(merged.Attributes[key], v) {
				merged.Attributes[key] = append(merged.Attributes[key], v)
			}
		}
	}

	return merged
}

func cloneEntity(e *models.ResolvedEntity) models.ResolvedEntity {
	clone := models.ResolvedEntity{
		EntityID:          e.EntityID,
		CanonicalName:     e.CanonicalName,
		Type:              e.Type,
		Aliases:           append([]string(nil), e.Aliases...),
		SourceDocumentIDs: append([]string(nil), e.SourceDocumentIDs...),
	}
	if e.Attributes != nil {
		clone.Attributes = make(map[string][]string, len(e.Attributes))
		for k, v := range e.Attributes {
			clone.Attributes[k] = append([]string(nil), v...)
		}
	}
	return clone
}

func sortByID(entities []models.ResolvedEntity) {
	sort.Slice(entities, func(i, j int) bool {
		return entities[i].EntityID < entities[j].EntityID
	})
}

func edgeKey(subjectID, predicate, objectID string) string {
	return subjectID + "|" + predicate + "|" + objectID
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
