package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// RedisQueue implements a Redis-backed job queue
type RedisQueue struct {
	client *redis.Client
	ctx    context.Context
}

// NewRedisQueue creates a new Redis queue
func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{
		client: client,
		ctx:    context.Background(),
	}
}

// Enqueue adds a job to the queue
func (q *RedisQueue) Enqueue(queueName string, payload interface{}, opts ...EnqueueOption) (string, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	job := &Job{
		ID:         uuid.New().String(),
		Queue:      queueName,
		Payload:    payloadBytes,
		Status:     JobStatusPending,
		RetryCount: 0,
		MaxRetries: DefaultRetryCount,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
		RunAt:      time.Now(),
	}

	// Apply options
	for _, opt := range opts {
		opt(job)
	}

	return job.ID, q.push(queueName, job)
}

// EnqueueIn adds a job to the queue with a delay
func (q *RedisQueue) EnqueueIn(queueName string, payload interface{}, delay time.Duration, opts ...EnqueueOption) (string, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	runAt := time.Now().Add(delay)

	job := &Job{
		ID:         uuid.New().String(),
		Queue:      queueName,
		Payload:    payloadBytes,
		Status:     JobStatusPending,
		RetryCount: 0,
		MaxRetries: DefaultRetryCount,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
		RunAt:      runAt,
	}

	for _, opt := range opts {
		opt(job)
	}

	jobBytes, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}

	// Add to delayed queue with score as unix timestamp
	err = q.client.ZAdd(q.ctx, "delayed:"+queueName, &redis.Z{
		Score:  float64(runAt.Unix()),
		Member: jobBytes,
	}).Err()
	if err != nil {
		return "", fmt.Errorf("failed to add job to delayed queue: %w", err)
	}

	return job.ID, nil
}

// Dequeue gets a job from the queue, blocking briefly when none is ready
func (q *RedisQueue) Dequeue(queueName string) (*Job, error) {
	// First, move any delayed jobs that are ready to run
	q.moveReadyDelayedJobs(queueName)

	result := q.client.BRPop(q.ctx, 1*time.Second, queueName)
	if result.Err() != nil {
		if result.Err() == redis.Nil {
			return nil, nil // No jobs available
		}
		return nil, fmt.Errorf("failed to pop job from queue: %w", result.Err())
	}

	if len(result.Val()) < 2 {
		return nil, fmt.Errorf("unexpected result format from BRPOP")
	}

	jobBytes := result.Val()[1]
	var job Job
	if err := json.Unmarshal([]byte(jobBytes), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	return &job, nil
}

// Fail marks a job as failed, re-enqueueing it with backoff while retries remain
func (q *RedisQueue) Fail(job *Job, jobErr error) error {
	if job.RetryCount < job.MaxRetries {
		job.RetryCount++
		job.Status = JobStatusPending
		job.UpdatedAt = time.Now()

		delay := calculateBackoff(job.RetryCount)
		log.Printf("Job %s on queue %s failed (attempt %d/%d), retrying in %s: %v",
			job.ID, job.Queue, job.RetryCount, job.MaxRetries, delay, jobErr)

		jobBytes, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("failed to marshal job for retry: %w", err)
		}

		return q.client.ZAdd(q.ctx, "delayed:"+job.Queue, &redis.Z{
			Score:  float64(time.Now().Add(delay).Unix()),
			Member: jobBytes,
		}).Err()
	}

	job.Status = JobStatusFailed
	job.UpdatedAt = time.Now()
	log.Printf("Job %s on queue %s failed permanently after %d retries: %v",
		job.ID, job.Queue, job.RetryCount, jobErr)

	jobBytes, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal failed job: %w", err)
	}

	// Park permanently failed jobs for inspection
	if err := q.client.LPush(q.ctx, "failed:"+job.Queue, jobBytes).Err(); err != nil {
		return fmt.Errorf("failed to record failed job: %w", err)
	}
	return q.client.Expire(q.ctx, "failed:"+job.Queue, DefaultTTL).Err()
}

// push serializes a job and pushes it onto its queue list
func (q *RedisQueue) push(queueName string, job *Job) error {
	jobBytes, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	if err := q.client.LPush(q.ctx, queueName, jobBytes).Err(); err != nil {
		return fmt.Errorf("failed to push job to queue: %w", err)
	}

	return nil
}

// moveReadyDelayedJobs moves delayed jobs whose run time has passed onto
// the live queue
func (q *RedisQueue) moveReadyDelayedJobs(queueName string) {
	now := float64(time.Now().Unix())

	jobs, err := q.client.ZRangeByScore(q.ctx, "delayed:"+queueName, &redis.ZRangeBy{
		Min: "0",
		Max: fmt.Sprintf("%f", now),
	}).Result()
	if err != nil {
		if err != redis.Nil {
			log.Printf("Failed to fetch delayed jobs for queue %s: %v", queueName, err)
		}
		return
	}

	for _, jobBytes := range jobs {
		if err := q.client.LPush(q.ctx, queueName, jobBytes).Err(); err != nil {
			log.Printf("Failed to move delayed job to queue %s: %v", queueName, err)
			continue
		}
		if err := q.client.ZRem(q.ctx, "delayed:"+queueName, jobBytes).Err(); err != nil {
			log.Printf("Failed to remove delayed job from queue %s: %v", queueName, err)
		}
	}
}
