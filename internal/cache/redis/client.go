package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fraga/KnowledgeNexus/internal/extractor"
	"github.com/fraga/KnowledgeNexus/pkg/logger"
)

// Client caches extraction results so reprocessing identical text skips the
// LLM round trip.
type Client struct {
	client *redis.Client
	ttl    time.Duration
}

func NewClient(host string, port int, password string, db int, ttl time.Duration) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client, ttl: ttl}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) SetExtraction(ctx context.Context, textHash string, ext *extractor.Extraction) error {
	data, err := json.Marshal(ext)
	if err != nil {
		return fmt.Errorf("failed to marshal extraction: %w", err)
	}

	if err := c.client.Set(ctx, extractionKey(textHash), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set extraction cache: %w", err)
	}

	logger.Debug("Extraction cached", zap.String("text_hash", textHash), zap.Duration("ttl", c.ttl))
	return nil
}

func (c *Client) GetExtraction(ctx context.Context, textHash string) (*extractor.Extraction, bool, error) {
	data, err := c.client.Get(ctx, extractionKey(textHash)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get extraction cache: %w", err)
	}

	var ext extractor.Extraction
	if err := json.Unmarshal(data, &ext); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal extraction: %w", err)
	}

	logger.Debug("Extraction cache hit", zap.String("text_hash", textHash))
	return &ext, true, nil
}

func (c *Client) InvalidateExtractions(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, "extraction:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warn("Failed to delete cache key", zap.Error(err))
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Extraction cache invalidated")
	return nil
}

func extractionKey(textHash string) string {
	return "extraction:" + textHash
}
