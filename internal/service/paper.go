package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/examguard-backend/internal/config"
	"github.com/stemsi/examguard-backend/internal/model"
)

// ShuffleQuestions returns a permutation of items drawn from rng. The input is not modified.
func ShuffleQuestions[T any](items []T, rng *rand.Rand) []T {
	out := make([]T, len(items))
	copy(out, items)
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

func newRandomSource() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// PaperCache stores the student-facing question list of an exam in creation
// order. Every Invalidate moves the exam to a new version; Set only fills the
// version its paper was read at, so a paper built before an invalidation is
// never served after it.
type PaperCache interface {
	// Get returns the cached paper and the current version. On a miss the
	// version is still reported, for the Set that follows.
	Get(ctx context.Context, examID uuid.UUID) (paper []model.QuestionForStudent, version int64, ok bool, err error)
	Set(ctx context.Context, examID uuid.UUID, version int64, paper []model.QuestionForStudent) error
	Invalidate(ctx context.Context, examID uuid.UUID) error
}

// RedisPaperCache keeps papers as JSON strings with a TTL, one key per version.
type RedisPaperCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisPaperCache(rdb *redis.Client, ttl time.Duration) *RedisPaperCache {
	return &RedisPaperCache{rdb: rdb, ttl: ttl}
}

func (c *RedisPaperCache) Get(ctx context.Context, examID uuid.UUID) ([]model.QuestionForStudent, int64, bool, error) {
	id := examID.String()
	version, err := c.rdb.Get(ctx, config.CacheKey.ExamPaperVersionKey(id)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, false, fmt.Errorf("get paper version: %w", err)
	}

	raw, err := c.rdb.Get(ctx, config.CacheKey.ExamPaperKey(id, version)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, version, false, nil
		}
		return nil, 0, false, fmt.Errorf("get paper: %w", err)
	}

	var paper []model.QuestionForStudent
	if err := json.Unmarshal(raw, &paper); err != nil {
		return nil, version, false, fmt.Errorf("decode paper: %w", err)
	}
	return paper, version, true, nil
}

func (c *RedisPaperCache) Set(ctx context.Context, examID uuid.UUID, version int64, paper []model.QuestionForStudent) error {
	raw, err := json.Marshal(paper)
	if err != nil {
		return fmt.Errorf("encode paper: %w", err)
	}
	return c.rdb.Set(ctx, config.CacheKey.ExamPaperKey(examID.String(), version), raw, c.ttl).Err()
}

// Invalidate bumps the version; papers stored under older versions expire on their own.
func (c *RedisPaperCache) Invalidate(ctx context.Context, examID uuid.UUID) error {
	return c.rdb.Incr(ctx, config.CacheKey.ExamPaperVersionKey(examID.String())).Err()
}

// NopPaperCache never hits. Used by tools that run without Redis.
type NopPaperCache struct{}

func (NopPaperCache) Get(context.Context, uuid.UUID) ([]model.QuestionForStudent, int64, bool, error) {
	return nil, 0, false, nil
}
func (NopPaperCache) Set(context.Context, uuid.UUID, int64, []model.QuestionForStudent) error {
	return nil
}
func (NopPaperCache) Invalidate(context.Context, uuid.UUID) error { return nil }
