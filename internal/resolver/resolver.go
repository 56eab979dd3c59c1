package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fraga/KnowledgeNexus/internal/graph"
	"github.com/fraga/KnowledgeNexus/internal/metrics"
	"github.com/fraga/KnowledgeNexus/internal/models"
	"github.com/fraga/KnowledgeNexus/pkg/logger"
)

const DefaultSimilarityThreshold = 0.85

type Config struct {
	SimilarityThreshold float64
}

// Resolver folds candidate entities into the graph's canonical records.
// Matching is match-then-merge: exact normalized lookup first, then a fuzzy
// scan over same-type entities, then creation. All writes for one document go
// through a single transaction.
type Resolver struct {
	store     graph.Store
	threshold float64
}

func New(store graph.Store, cfg Config) *Resolver {
	threshold := cfg.SimilarityThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultSimilarityThreshold
	}
	return &Resolver{store: store, threshold: threshold}
}

// Result is what one resolution run persisted.
type Result struct {
	Entities      []models.ResolvedEntity
	Relationships []models.ResolvedRelationship
}

// Resolve matches, merges and persists one document's candidates. On any
// store error the transaction is rolled back and the graph is untouched.
func (r *Resolver) Resolve(ctx context.Context, docID string, entities []models.CandidateEntity, relationships []models.CandidateRelationship) (*Result, error) {
	var (
		order  []*models.ResolvedEntity
		byKey  = make(map[string]*models.ResolvedEntity)
		byName = make(map[string]*models.ResolvedEntity)
	)

	for _, cand := range entities {
		name := strings.TrimSpace(cand.Name)
		if name == "" {
			continue
		}
		key := graph.LookupKey(name, cand.Type)

		if existing, ok := byKey[key]; ok {
			mergeCandidate(existing, cand, docID)
			recordName(byName, name, existing)
			continue
		}

		// A candidate can also belong to an entity staged earlier in this
		// same run, for example when a document introduces a name and then
		// refers back to it by an alias.
		if staged, outcome := matchStaged(order, name, cand.Type, r.threshold); staged != nil {
			mergeCandidate(staged, cand, docID)
			metrics.EntitiesResolved.WithLabelValues(outcome).Inc()
			byKey[key] = staged
			recordName(byName, name, staged)
			continue
		}

		resolved, outcome, err := r.matchCandidate(ctx, name, cand.Type)
		if err != nil {
			return nil, fmt.Errorf("match %q: %w", name, err)
		}
		mergeCandidate(resolved, cand, docID)
		metrics.EntitiesResolved.WithLabelValues(outcome).Inc()

		byKey[key] = resolved
		order = append(order, resolved)
		recordName(byName, name, resolved)
	}

	tx, err := r.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	for _, entity := range order {
		persistedID, err := tx.UpsertEntity(ctx, entity)
		if err != nil {
			rollback(ctx, tx)
			return nil, fmt.Errorf("upsert entity %q: %w", entity.CanonicalName, err)
		}
		// A concurrent run may have created the entity first; adopt the
		// winner's id so relationships attach to the surviving record.
		if persistedID != entity.EntityID {
			logger.Debug("Entity creation race lost, adopting winner",
				zap.String("local_id", entity.EntityID),
				zap.String("persisted_id", persistedID),
			)
			entity.EntityID = persistedID
		}
	}

	resolved, dropped := resolveRelationships(relationships, byName)
	if dropped > 0 {
		logger.Warn("Dropped relationships with unresolved endpoints",
			zap.String("document_id", docID),
			zap.Int("dropped", dropped),
		)
	}
	for _, rel := range resolved {
		if err := tx.UpsertRelationship(ctx, rel.SubjectID, rel.Predicate, rel.ObjectID); err != nil {
			rollback(ctx, tx)
			return nil, fmt.Errorf("upsert relationship %s-[%s]->%s: %w",
				rel.SubjectID, rel.Predicate, rel.ObjectID, err)
		}
		metrics.RelationshipsWritten.Inc()
	}

	if err := tx.Commit(ctx); err != nil {
		rollback(ctx, tx)
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	result := &Result{Relationships: resolved}
	for _, entity := range order {
		result.Entities = append(result.Entities, *entity)
	}
	return result, nil
}

// matchCandidate finds the graph entity this name belongs to, or starts a new
// one. Exact normalized matches win over fuzzy ones.
func (r *Resolver) matchCandidate(ctx context.Context, name string, entityType models.EntityType) (*models.ResolvedEntity, string, error) {
	exact, err := r.store.FindMatchingEntities(ctx, name, entityType)
	if err != nil {
		return nil, "", err
	}
	if len(exact) > 0 {
		// The store orders matches by entity id, so a duplicate set always
		// elects the same record.
		match := exact[0]
		return &match, "merged_exact", nil
	}

	sameType, err := r.store.EntitiesByType(ctx, entityType)
	if err != nil {
		return nil, "", err
	}
	if fuzzy := bestFuzzyMatch(name, sameType, r.threshold); fuzzy != nil {
		match := *fuzzy
		return &match, "merged_fuzzy", nil
	}

	// The canonical name is always also an alias, so alias lookups cover
	// every surface form including the canonical one.
	return &models.ResolvedEntity{
		EntityID:      uuid.NewString(),
		CanonicalName: name,
		Type:          entityType,
		Aliases:       []string{name},
	}, "created", nil
}

// matchStaged looks for a home among entities already resolved in this run,
// exact normalized equality first and then fuzzy similarity.
func matchStaged(staged []*models.ResolvedEntity, name string, entityType models.EntityType, threshold float64) (*models.ResolvedEntity, string) {
	norm := models.NormalizeName(name)
	for _, e := range staged {
		if e.Type != entityType {
			continue
		}
		if models.NormalizeName(e.CanonicalName) == norm || e.HasAlias(name) {
			return e, "merged_exact"
		}
	}

	var (
		best      *models.ResolvedEntity
		bestScore float64
	)
	for _, e := range staged {
		if e.Type != entityType {
			continue
		}
		score := similarityToEntity(name, e)
		if score < threshold {
			continue
		}
		if best == nil || score > bestScore ||
			(score == bestScore && e.EntityID < best.EntityID) {
			best, bestScore = e, score
		}
	}
	if best != nil {
		return best, "merged_fuzzy"
	}
	return nil, ""
}

// mergeCandidate folds one candidate's surface form, attributes and
// provenance into the resolved record. Conflicting attribute values are kept
// side by side rather than overwritten.
func mergeCandidate(entity *models.ResolvedEntity, cand models.CandidateEntity, docID string) {
	name := strings.TrimSpace(cand.Name)
	if name != "" && !entity.HasAlias(name) {
		entity.Aliases = append(entity.Aliases, name)
	}

	if len(cand.Attributes) > 0 && entity.Attributes == nil {
		entity.Attributes = make(map[string][]string, len(cand.Attributes))
	}
	for k, v := range cand.Attributes {
		v = strings.TrimSpace(v)
		if v == "" || containsString(entity.Attributes[k], v) {
			continue
		}
		entity.Attributes[k] = append(entity.Attributes[k], v)
	}

	if docID != "" && !containsString(entity.SourceDocumentIDs, docID) {
		entity.SourceDocumentIDs = append(entity.SourceDocumentIDs, docID)
	}
}

// recordName indexes a surface form for relationship endpoint lookup. The
// first entity to claim a name keeps it.
func recordName(byName map[string]*models.ResolvedEntity, name string, entity *models.ResolvedEntity) {
	norm := models.NormalizeName(name)
	if _, ok := byName[norm]; !ok {
		byName[norm] = entity
	}
}

// resolveRelationships maps surface-name endpoints to persisted entity ids,
// dropping edges whose endpoints did not survive resolution and collapsing
// duplicate tuples.
func resolveRelationships(candidates []models.CandidateRelationship, byName map[string]*models.ResolvedEntity) ([]models.ResolvedRelationship, int) {
	var (
		out     []models.ResolvedRelationship
		seen    = make(map[string]bool)
		dropped int
	)
	for _, cand := range candidates {
		predicate := strings.TrimSpace(cand.Predicate)
		subject := byName[models.NormalizeName(cand.SubjectName)]
		object := byName[models.NormalizeName(cand.ObjectName)]
		if predicate == "" || subject == nil || object == nil {
			dropped++
			continue
		}
		key := subject.EntityID + "|" + predicate + "|" + object.EntityID
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, models.ResolvedRelationship{
			SubjectID: subject.EntityID,
			Predicate: predicate,
			ObjectID:  object.EntityID,
		})
	}
	return out, dropped
}

func rollback(ctx context.Context, tx graph.Tx) {
	if err := tx.Rollback(ctx); err != nil {
		logger.Error("Transaction rollback failed", zap.Error(err))
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
