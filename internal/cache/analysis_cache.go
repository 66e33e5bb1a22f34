package cache

import (
	"cicdassess/internal/model"
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// AnalysisCache keeps the latest analysis in Redis in front of Mongo
type AnalysisCache interface {
	Get(ctx context.Context) (*model.Analysis, error)
	Set(ctx context.Context, a *model.Analysis) error
	Delete(ctx context.Context) error
}

type analysisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAnalysisCache creates a new analysis cache
func NewAnalysisCache(client *redis.Client) AnalysisCache {
	return &analysisCache{
		client: client,
		ttl:    24 * time.Hour,
	}
}

func (c *analysisCache) key() string {
	return "analysis:current"
}

func (c *analysisCache) Get(ctx context.Context) (*model.Analysis, error) {
	data, err := c.client.Get(ctx, c.key()).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var a model.Analysis
	if err := json.Unmarshal([]byte(data), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *analysisCache) Set(ctx context.Context, a *model.Analysis) error {
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(), data, c.ttl).Err()
}

func (c *analysisCache) Delete(ctx context.Context) error {
	return c.client.Del(ctx, c.key()).Err()
}
