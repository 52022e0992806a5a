package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/proteindock/api/internal/model"
)

const (
	jobKeyPrefix = "dockjob:"
	jobTTL       = 24 * time.Hour
)

// JobStore persists the latest snapshot of each project's job so that status
// can be polled after the push stream is gone.
type JobStore interface {
	SaveJob(ctx context.Context, job *model.Job) error
	GetJob(ctx context.Context, project string) (*model.Job, error)
}

// RedisJobStore keeps one JSON snapshot per project with a rolling TTL.
type RedisJobStore struct {
	redis *redis.Client
}

func NewRedisJobStore(redisClient *redis.Client) *RedisJobStore {
	return &RedisJobStore{redis: redisClient}
}

func (s *RedisJobStore) SaveJob(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, jobKeyPrefix+job.Project, data, jobTTL).Err()
}

// GetJob returns (nil, nil) when no snapshot exists for the project.
func (s *RedisJobStore) GetJob(ctx context.Context, project string) (*model.Job, error) {
	data, err := s.redis.Get(ctx, jobKeyPrefix+project).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}
