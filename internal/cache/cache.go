// Package cache mirrors job status and progress into redis so external
// dashboards can poll without hitting the API. The mirror is advisory: the
// in-memory job store stays the source of truth, and when redis is not
// configured a no-op implementation takes its place.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// StatusMirror publishes job state snapshots. Implementations must be safe
// for concurrent use.
type StatusMirror interface {
	SetJobStatus(ctx context.Context, jobID uuid.UUID, status string, progress int, ttl time.Duration) error
	GetJobStatus(ctx context.Context, jobID uuid.UUID) (string, int, bool, error)
	Delete(ctx context.Context, jobID uuid.UUID) error
	Ping(ctx context.Context) error
}

type statusPayload struct {
	Status   string `json:"status"`
	Progress int    `json:"progress"`
}

// RedisMirror implements StatusMirror using go-redis/v9.
type RedisMirror struct {
	client *redis.Client
}

// NewRedisMirror creates a RedisMirror from a redis URL.
func NewRedisMirror(redisURL string) (*RedisMirror, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisMirror{client: redis.NewClient(opts)}, nil
}

func (c *RedisMirror) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisMirror) SetJobStatus(ctx context.Context, jobID uuid.UUID, status string, progress int, ttl time.Duration) error {
	raw, err := json.Marshal(statusPayload{Status: status, Progress: progress})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, jobStatusKey(jobID), raw, ttl).Err()
}

func (c *RedisMirror) GetJobStatus(ctx context.Context, jobID uuid.UUID) (string, int, bool, error) {
	raw, err := c.client.Get(ctx, jobStatusKey(jobID)).Bytes()
	if err == redis.Nil {
		return "", 0, false, nil
	}
	if err != nil {
		return "", 0, false, err
	}
	var p statusPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", 0, false, err
	}
	return p.Status, p.Progress, true, nil
}

func (c *RedisMirror) Delete(ctx context.Context, jobID uuid.UUID) error {
	return c.client.Del(ctx, jobStatusKey(jobID)).Err()
}

func (c *RedisMirror) Close() error {
	return c.client.Close()
}

func jobStatusKey(jobID uuid.UUID) string {
	return "job:" + jobID.String()
}

// NoopMirror is used when redis is not configured.
type NoopMirror struct{}

func (NoopMirror) SetJobStatus(context.Context, uuid.UUID, string, int, time.Duration) error {
	return nil
}

func (NoopMirror) GetJobStatus(context.Context, uuid.UUID) (string, int, bool, error) {
	return "", 0, false, nil
}

func (NoopMirror) Delete(context.Context, uuid.UUID) error { return nil }

func (NoopMirror) Ping(context.Context) error { return nil }

var (
	_ StatusMirror = (*RedisMirror)(nil)
	_ StatusMirror = NoopMirror{}
)
