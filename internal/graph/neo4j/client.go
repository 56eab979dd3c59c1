package neo4j

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/fraga/KnowledgeNexus/internal/graph"
	"github.com/fraga/KnowledgeNexus/internal/models"
	"github.com/fraga/KnowledgeNexus/pkg/circuitbreaker"
	"github.com/fraga/KnowledgeNexus/pkg/logger"
	"github.com/fraga/KnowledgeNexus/pkg/retry"
)

// Client implements graph.Store against a Neo4j server. Entities are nodes
// labeled Entity with a unique `lookup` property (type + normalized canonical
// name) so concurrent creation races converge on a single node.
type Client struct {
	driver      neo4j.DriverWithContext
	database    string
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

func NewClient(uri, username, password, database string) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(
		uri,
		neo4j.BasicAuth(username, password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	cb := circuitbreaker.New("neo4j", circuitbreaker.Config{
		MaxRequests:      3,
		Timeout:          20 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   200 * time.Millisecond,
		MaxDelay:       3 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("Neo4j client initialized", zap.String("uri", uri))

	return &Client{
		driver:      driver,
		database:    database,
		cb:          cb,
		retryConfig: retryConfig,
	}, nil
}

// Connect verifies connectivity and installs the uniqueness constraint the
// upsert discipline depends on.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("failed to verify connectivity: %w", err)
	}

	session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database})
	defer session.Close(ctx)

	_, err := session.Run(ctx,
		"CREATE CONSTRAINT entity_lookup IF NOT EXISTS FOR (e:Entity) REQUIRE e.lookup IS UNIQUE",
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to create uniqueness constraint: %w", err)
	}

	return nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

func (c *Client) readWithRetry(ctx context.Context, operation func(neo4j.SessionWithContext) error) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database})
			defer session.Close(ctx)
			return operation(session)
		})
	})
}

func (c *Client) FindMatchingEntities(ctx context.Context, name string, entityType models.EntityType) ([]models.ResolvedEntity, error) {
	norm := models.NormalizeName(name)

	var entities []models.ResolvedEntity
	err := c.readWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		query := `
			MATCH (e:Entity {type: $type})
			WHERE e.lookup = $lookup OR $norm IN e.alias_keys
			RETURN e.id, e.canonical_name, e.type, e.aliases, e.attributes, e.source_document_ids
			ORDER BY e.id
		`

		result, err := session.Run(ctx, query, map[string]interface{}{
			"type":   string(entityType),
			"lookup": graph.LookupKey(name, entityType),
			"norm":   norm,
		})
		if err != nil {
			return fmt.Errorf("failed to find matching entities: %w", err)
		}

		entities, err = collectEntities(ctx, result)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("Entity lookup completed",
		zap.String("name", name),
		zap.String("type", string(entityType)),
		zap.Int("matches", len(entities)),
	)

	return entities, nil
}

func (c *Client) EntitiesByType(ctx context.Context, entityType models.EntityType) ([]models.ResolvedEntity, error) {
	var entities []models.ResolvedEntity
	err := c.readWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		query := `
			MATCH (e:Entity {type: $type})
			RETURN e.id, e.canonical_name, e.type, e.aliases, e.attributes, e.source_document_ids
			ORDER BY e.id
		`

		result, err := session.Run(ctx, query, map[string]interface{}{
			"type": string(entityType),
		})
		if err != nil {
			return fmt.Errorf("failed to list entities: %w", err)
		}

		entities, err = collectEntities(ctx, result)
		return err
	})
	if err != nil {
		return nil, err
	}

	return entities, nil
}

func (c *Client) Begin(ctx context.Context) (graph.Tx, error) {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database})

	tx, err := session.BeginTransaction(ctx)
	if err != nil {
		session.Close(ctx)
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &transaction{session: session, tx: tx}, nil
}

type transaction struct {
	session neo4j.SessionWithContext
	tx      neo4j.ExplicitTransaction
}

func (t *transaction) UpsertEntity(ctx context.Context, entity *models.ResolvedEntity) (string, error) {
	aliasKeys := make([]string, len(entity.Aliases))
	for i, a := range entity.Aliases {
		aliasKeys[i] = models.NormalizeName(a)
	}

	// List properties are unioned rather than overwritten so the loser of a
	// creation race folds into the winner's record instead of clobbering it.
	// Attributes need the same treatment but live in a JSON property, so the
	// union happens in a second statement after reading the current value.
	query := `
		MERGE (e:Entity {lookup: $lookup})
		ON CREATE SET e.id = $id, e.created_at = timestamp()
		SET e.canonical_name = coalesce(e.canonical_name, $canonical_name),
		    e.type = $type,
		    e.aliases = [a IN coalesce(e.aliases, []) WHERE NOT a IN $aliases] + $aliases,
		    e.alias_keys = [a IN coalesce(e.alias_keys, []) WHERE NOT a IN $alias_keys] + $alias_keys,
		    e.source_document_ids = [d IN coalesce(e.source_document_ids, []) WHERE NOT d IN $source_document_ids] + $source_document_ids,
		    e.updated_at = timestamp()
		RETURN e.id, e.attributes
	`

	result, err := t.tx.Run(ctx, query, map[string]interface{}{
		"lookup":              graph.LookupKey(entity.CanonicalName, entity.Type),
		"id":                  entity.EntityID,
		"canonical_name":      entity.CanonicalName,
		"type":                string(entity.Type),
		"aliases":             entity.Aliases,
		"alias_keys":          aliasKeys,
		"source_document_ids": entity.SourceDocumentIDs,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upsert entity: %w", err)
	}

	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return "", fmt.Errorf("failed to read upsert result: %w", err)
		}
		return "", fmt.Errorf("entity upsert returned no record")
	}

	record := result.Record()
	id, _ := record.Get("e.id")
	persistedID, ok := id.(string)
	if !ok || persistedID == "" {
		return "", fmt.Errorf("entity upsert returned invalid id")
	}

	stored, _ := record.Get("e.attributes")
	merged, err := unionAttributes(asString(stored), entity.Attributes)
	if err != nil {
		return "", fmt.Errorf("failed to merge attributes: %w", err)
	}
	if merged != "" {
		_, err := t.tx.Run(ctx, `MATCH (e:Entity {lookup: $lookup}) SET e.attributes = $attributes`,
			map[string]interface{}{
				"lookup":     graph.LookupKey(entity.CanonicalName, entity.Type),
				"attributes": merged,
			})
		if err != nil {
			return "", fmt.Errorf("failed to write attributes: %w", err)
		}
	}

	return persistedID, nil
}

// unionAttributes folds incoming attribute values into the stored JSON map,
// keeping every value already present so concurrent writers never drop each
// other's merges.
func unionAttributes(storedJSON string, incoming map[string][]string) (string, error) {
	merged := make(map[string][]string)
	if storedJSON != "" {
		if err := json.Unmarshal([]byte(storedJSON), &merged); err != nil {
			return "", fmt.Errorf("failed to unmarshal stored attributes: %w", err)
		}
	}

	for key, values := range incoming {
		for _, v := range values {
			if !containsValue(merged[key], v) {
				merged[key] = append(merged[key], v)
			}
		}
	}

	if len(merged) == 0 {
		return "", nil
	}
	out, err := json.Marshal(merged)
	if err != nil {
		return "", fmt.Errorf("failed to marshal merged attributes: %w", err)
	}
	return string(out), nil
}

func containsValue(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (t *transaction) UpsertRelationship(ctx context.Context, subjectID, predicate, objectID string) error {
	query := `
		MATCH (s:Entity {id: $subject_id})
		MATCH (o:Entity {id: $object_id})
		MERGE (s)-[r:RELATES {predicate: $predicate}]->(o)
		ON CREATE SET r.created_at = timestamp()
	`

	_, err := t.tx.Run(ctx, query, map[string]interface{}{
		"subject_id": subjectID,
		"predicate":  predicate,
		"object_id":  objectID,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert relationship: %w", err)
	}

	return nil
}

func (t *transaction) Commit(ctx context.Context) error {
	defer t.session.Close(ctx)
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (t *transaction) Rollback(ctx context.Context) error {
	defer t.session.Close(ctx)
	if err := t.tx.Rollback(ctx); err != nil {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	return nil
}

func collectEntities(ctx context.Context, result neo4j.ResultWithContext) ([]models.ResolvedEntity, error) {
	var entities []models.ResolvedEntity
	for result.Next(ctx) {
		record := result.Record()

		id, _ := record.Get("e.id")
		canonical, _ := record.Get("e.canonical_name")
		entityType, _ := record.Get("e.type")
		aliases, _ := record.Get("e.aliases")
		attributes, _ := record.Get("e.attributes")
		sourceDocs, _ := record.Get("e.source_document_ids")

		entity := models.ResolvedEntity{
			EntityID:          asString(id),
			CanonicalName:     asString(canonical),
			Type:              models.EntityType(asString(entityType)),
			Aliases:           asStringSlice(aliases),
			SourceDocumentIDs: asStringSlice(sourceDocs),
		}

		if raw := asString(attributes); raw != "" {
			if err := json.Unmarshal([]byte(raw), &entity.Attributes); err != nil {
				return nil, fmt.Errorf("failed to unmarshal attributes for entity %s: %w", entity.EntityID, err)
			}
		}

		entities = append(entities, entity)
	}

	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("error iterating results: %w", err)
	}

	return entities, nil
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asStringSlice(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
