package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"jsjudge/internal/common/cache"
	"jsjudge/internal/judge/model"
	appErr "jsjudge/pkg/errors"

	"github.com/zeromicro/go-zero/core/collection"
)

const (
	statusKeyPrefix   = "judge:status:"
	defaultStatusTTL  = 30 * time.Minute
	defaultStatusSize = 10000
)

// statusStore persists encoded statuses by key.
type statusStore interface {
	load(ctx context.Context, key string) (model.ExecutionStatus, bool, error)
	store(ctx context.Context, key string, status model.ExecutionStatus) error
}

// StatusRepository keeps execution statuses for a bounded time, either in
// process memory or in Redis when several replicas share state.
type StatusRepository struct {
	store statusStore
}

// NewStatusRepository creates an in-process repository holding at most limit statuses.
func NewStatusRepository(ttl time.Duration, limit int) (*StatusRepository, error) {
	if ttl <= 0 {
		ttl = defaultStatusTTL
	}
	if limit <= 0 {
		limit = defaultStatusSize
	}
	c, err := collection.NewCache(ttl, collection.WithLimit(limit), collection.WithName("judge-status"))
	if err != nil {
		return nil, fmt.Errorf("create status cache: %w", err)
	}
	return &StatusRepository{store: memoryStore{cache: c}}, nil
}

// NewRedisStatusRepository creates a repository backed by Redis.
func NewRedisStatusRepository(redisCache *cache.RedisCache, ttl time.Duration) (*StatusRepository, error) {
	if redisCache == nil {
		return nil, fmt.Errorf("redis cache is required")
	}
	if ttl <= 0 {
		ttl = defaultStatusTTL
	}
	return &StatusRepository{store: redisStore{cache: redisCache, ttl: ttl}}, nil
}

// Get returns status by submission id.
func (r *StatusRepository) Get(ctx context.Context, submissionID string) (model.ExecutionStatus, error) {
	if submissionID == "" {
		return model.ExecutionStatus{}, appErr.ValidationError("submission_id", "required")
	}
	status, ok, err := r.store.load(ctx, statusKeyPrefix+submissionID)
	if err != nil {
		return model.ExecutionStatus{}, appErr.Wrapf(err, appErr.ServiceUnavailable, "load submission status")
	}
	if !ok {
		return model.ExecutionStatus{}, appErr.New(appErr.SubmissionNotFound).WithMessage("submission status not found")
	}
	return status, nil
}

// Save stores status, replacing any earlier value.
func (r *StatusRepository) Save(ctx context.Context, status model.ExecutionStatus) error {
	if status.SubmissionID == "" {
		return appErr.ValidationError("submission_id", "required")
	}
	if err := r.store.store(ctx, statusKeyPrefix+status.SubmissionID, status); err != nil {
		return appErr.Wrapf(err, appErr.ServiceUnavailable, "save submission status")
	}
	return nil
}

// Update applies fn to the stored status. Callers serialize concurrent
// updates of the same id; a missing status is reported as SubmissionNotFound.
func (r *StatusRepository) Update(ctx context.Context, submissionID string, fn func(*model.ExecutionStatus)) error {
	status, err := r.Get(ctx, submissionID)
	if err != nil {
		return err
	}
	fn(&status)
	return r.Save(ctx, status)
}

type memoryStore struct {
	cache *collection.Cache
}

func (m memoryStore) load(ctx context.Context, key string) (model.ExecutionStatus, bool, error) {
	val, ok := m.cache.Get(key)
	if !ok {
		return model.ExecutionStatus{}, false, nil
	}
	status, ok := val.(model.ExecutionStatus)
	if !ok {
		return model.ExecutionStatus{}, false, fmt.Errorf("status cache holds %T", val)
	}
	return status, true, nil
}

func (m memoryStore) store(ctx context.Context, key string, status model.ExecutionStatus) error {
	m.cache.Set(key, status)
	return nil
}

type redisStore struct {
	cache *cache.RedisCache
	ttl   time.Duration
}

func (r redisStore) load(ctx context.Context, key string) (model.ExecutionStatus, bool, error) {
	raw, ok, err := r.cache.Get(ctx, key)
	if err != nil || !ok {
		return model.ExecutionStatus{}, false, err
	}
	var status model.ExecutionStatus
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		return model.ExecutionStatus{}, false, fmt.Errorf("decode status: %w", err)
	}
	return status, true, nil
}

func (r redisStore) store(ctx context.Context, key string, status model.ExecutionStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	return r.cache.Set(ctx, key, data, r.ttl)
}
