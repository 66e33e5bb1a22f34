package cache

import (
	"cicdassess/internal/model"
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	refreshQueueKey   = "analysis:refresh:queue"
	refreshPendingKey = "analysis:refresh:pending"
)

// RefreshQueue carries analysis refresh jobs from request handlers to the background worker.
// While a job is pending, further enqueues are coalesced into it.
type RefreshQueue interface {
	// Enqueue returns false when a job was already pending.
	Enqueue(ctx context.Context, reason string) (bool, error)
	// Next blocks up to wait for a job; nil, nil on timeout.
	Next(ctx context.Context, wait time.Duration) (*model.RefreshJob, error)
}

type refreshQueue struct {
	client     *redis.Client
	pendingTTL time.Duration
}

// NewRefreshQueue creates a Redis list backed refresh queue
func NewRefreshQueue(client *redis.Client) RefreshQueue {
	return &refreshQueue{
		client:     client,
		pendingTTL: 10 * time.Minute,
	}
}

func (q *refreshQueue) Enqueue(ctx context.Context, reason string) (bool, error) {
	ok, err := q.client.SetNX(ctx, refreshPendingKey, reason, q.pendingTTL).Result()
	if err != nil {
		return false, err
	}
	if !ok {
		// A marker with an empty list is stale (worker died between pop and clear): requeue.
		n, err := q.client.LLen(ctx, refreshQueueKey).Result()
		if err != nil {
			return false, err
		}
		if n > 0 {
			return false, nil
		}
		if err := q.client.Set(ctx, refreshPendingKey, reason, q.pendingTTL).Err(); err != nil {
			return false, err
		}
	}

	job := model.RefreshJob{
		ID:          uuid.New().String(),
		Reason:      reason,
		RequestedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(job)
	if err != nil {
		return false, err
	}
	if err := q.client.LPush(ctx, refreshQueueKey, data).Err(); err != nil {
		q.client.Del(ctx, refreshPendingKey)
		return false, err
	}
	return true, nil
}

func (q *refreshQueue) Next(ctx context.Context, wait time.Duration) (*model.RefreshJob, error) {
	res, err := q.client.BRPop(ctx, wait, refreshQueueKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// Clear the marker before the job runs so submissions arriving mid-refresh queue another pass.
	// The popped job is returned even if this fails; Enqueue repairs a stale marker.
	q.client.Del(ctx, refreshPendingKey)

	// BRPOP replies with [key, value]
	var job model.RefreshJob
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, err
	}
	return &job, nil
}
