package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"order-processing-system/internal/models"
)

const (
	alertQueueKey      = "stock:alert:queue"
	alertProcessingKey = "stock:alert:processing"
	orderQueueKey      = "order:intake:queue"
)

// RedisQueue backs the two asynchronous side channels of the service: the
// low-stock alert dispatch queue and the async order intake queue. Both are
// sorted sets scored by the time an item becomes due, which gives delayed
// retries for free.
type RedisQueue struct {
	client *redis.Client
}

func NewRedisQueue(redisURL string) (*RedisQueue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisQueue{client: client}, nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}

func (q *RedisQueue) EnqueueAlert(ctx context.Context, item models.AlertQueueItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal alert item: %w", err)
	}

	score := item.Score
	if score == 0 {
		score = float64(time.Now().UnixNano())
	}

	return q.client.ZAdd(ctx, alertQueueKey, redis.Z{
		Score:  score,
		Member: string(data),
	}).Err()
}

func (q *RedisQueue) EnqueueAlertWithDelay(ctx context.Context, item models.AlertQueueItem, delay time.Duration) error {
	item.Score = float64(time.Now().Add(delay).UnixNano())
	return q.EnqueueAlert(ctx, item)
}

// DequeueAlert pops the first due alert, or returns nil when nothing is due.
// The alert is tracked in a processing set until CompleteAlert is called.
func (q *RedisQueue) DequeueAlert(ctx context.Context) (*models.AlertQueueItem, error) {
	now := float64(time.Now().UnixNano())

	results, err := q.client.ZRangeByScoreWithScores(ctx, alertQueueKey, &redis.ZRangeBy{
		Min:    "-inf",
		Max:    fmt.Sprintf("%f", now),
		Offset: 0,
		Count:  1,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get items from alert queue: %w", err)
	}

	if len(results) == 0 {
		return nil, nil
	}

	member := results[0].Member

	removed, err := q.client.ZRem(ctx, alertQueueKey, member).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to remove item from alert queue: %w", err)
	}
	if removed == 0 {
		// Another worker claimed it first.
		return nil, nil
	}

	var item models.AlertQueueItem
	if err := json.Unmarshal([]byte(member), &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal alert item: %w", err)
	}

	if err := q.client.SAdd(ctx, alertProcessingKey, item.AlertID).Err(); err != nil {
		return nil, fmt.Errorf("failed to add to processing set: %w", err)
	}

	return &item, nil
}

func (q *RedisQueue) CompleteAlert(ctx context.Context, alertID string) error {
	return q.client.SRem(ctx, alertProcessingKey, alertID).Err()
}

func (q *RedisQueue) RescheduleAlert(ctx context.Context, item models.AlertQueueItem, delay time.Duration) error {
	if err := q.CompleteAlert(ctx, item.AlertID); err != nil {
		return err
	}
	return q.EnqueueAlertWithDelay(ctx, item, delay)
}

func (q *RedisQueue) AlertQueueSize(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, alertQueueKey).Result()
}

// GetQueuedAlerts lists every alert currently sitting in the dispatch queue,
// due or not. Startup recovery uses it to avoid double-enqueueing.
func (q *RedisQueue) GetQueuedAlerts(ctx context.Context) ([]models.AlertQueueItem, error) {
	results, err := q.client.ZRangeWithScores(ctx, alertQueueKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get queued alerts: %w", err)
	}

	var items []models.AlertQueueItem
	for _, result := range results {
		var item models.AlertQueueItem
		if err := json.Unmarshal([]byte(result.Member), &item); err != nil {
			continue
		}
		item.Score = result.Score
		items = append(items, item)
	}
	return items, nil
}

func (q *RedisQueue) ClearAlertProcessing(ctx context.Context) error {
	return q.client.Del(ctx, alertProcessingKey).Err()
}

func (q *RedisQueue) EnqueueOrder(ctx context.Context, job models.QueuedOrder) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal queued order: %w", err)
	}

	score := job.Score
	if score == 0 {
		score = float64(time.Now().UnixNano())
	}

	return q.client.ZAdd(ctx, orderQueueKey, redis.Z{
		Score:  score,
		Member: string(data),
	}).Err()
}

func (q *RedisQueue) DequeueOrder(ctx context.Context) (*models.QueuedOrder, error) {
	now := float64(time.Now().UnixNano())

	results, err := q.client.ZRangeByScoreWithScores(ctx, orderQueueKey, &redis.ZRangeBy{
		Min:    "-inf",
		Max:    fmt.Sprintf("%f", now),
		Offset: 0,
		Count:  1,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get items from order queue: %w", err)
	}

	if len(results) == 0 {
		return nil, nil
	}

	member := results[0].Member

	removed, err := q.client.ZRem(ctx, orderQueueKey, member).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to remove item from order queue: %w", err)
	}
	if removed == 0 {
		return nil, nil
	}

	var job models.QueuedOrder
	if err := json.Unmarshal([]byte(member), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal queued order: %w", err)
	}
	return &job, nil
}

func (q *RedisQueue) OrderQueueSize(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, orderQueueKey).Result()
}
