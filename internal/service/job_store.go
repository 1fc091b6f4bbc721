package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/renderscope/api/internal/model"
)

// JobTTL is how long job records and results are kept
const JobTTL = 24 * time.Hour

var ErrJobNotFound = errors.New("job not found")

// JobStore persists background jobs and their result files
type JobStore interface {
	Save(ctx context.Context, job *model.Job) error
	Get(ctx context.Context, jobID string) (*model.Job, error)
	SaveResult(ctx context.Context, jobID string, data []byte) error
	Result(ctx context.Context, jobID string) ([]byte, error)
}

// RedisJobStore keeps jobs as JSON under job:<id> and results under job:<id>:result
type RedisJobStore struct {
	redis *redis.Client
}

func NewRedisJobStore(client *redis.Client) *RedisJobStore {
	return &RedisJobStore{redis: client}
}

func (s *RedisJobStore) Save(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, jobKey(job.ID), data, JobTTL).Err()
}

func (s *RedisJobStore) Get(ctx context.Context, jobID string) (*model.Job, error) {
	data, err := s.redis.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}

	return &job, nil
}

func (s *RedisJobStore) SaveResult(ctx context.Context, jobID string, data []byte) error {
	return s.redis.Set(ctx, jobKey(jobID)+":result", data, JobTTL).Err()
}

func (s *RedisJobStore) Result(ctx context.Context, jobID string) ([]byte, error) {
	data, err := s.redis.Get(ctx, jobKey(jobID)+":result").Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrJobNotFound
	}
	return data, err
}

func jobKey(jobID string) string {
	return fmt.Sprintf("job:%s", jobID)
}
