package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"time"

	"evaly-service/internal/app"
	"evaly-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuestionCache caches the active questions of a section or bank in Redis and falls back to
// the wrapped repository on a miss. Scoring reads a section's questions once per attempt, so
// this is the hot read path.
// Questions are stored as: SET questions:{referenceID} {json array}
// Every invalidation bumps questions:{referenceID}:version; a fill only writes when the version
// it saw before reading the repository is still current, so a concurrent update always wins.
type QuestionCache struct {
	app.QuestionRepository
	client *redis.Client
	ttl    time.Duration
	sf     singleflight.Group
}

func NewQuestionCache(client *redis.Client, next app.QuestionRepository, ttl time.Duration) *QuestionCache {
	return &QuestionCache{QuestionRepository: next, client: client, ttl: ttl}
}

func (c *QuestionCache) Insert(ctx context.Context, q domain.Question) error {
	if err := c.QuestionRepository.Insert(ctx, q); err != nil {
		return err
	}
	c.invalidate(ctx, q.ReferenceID)
	return nil
}

func (c *QuestionCache) Update(ctx context.Context, q domain.Question) error {
	if err := c.QuestionRepository.Update(ctx, q); err != nil {
		return err
	}
	c.invalidate(ctx, q.ReferenceID)
	return nil
}

func (c *QuestionCache) FindActiveByReferenceID(ctx context.Context, referenceID string) ([]domain.Question, error) {
	if questions, ok := c.cached(ctx, referenceID); ok {
		return questions, nil
	}

	result, err, _ := c.sf.Do(referenceID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if questions, ok := c.cached(ctx, referenceID); ok {
			return questions, nil
		}
		version, err := c.version(ctx, c.client, referenceID)
		if err != nil {
			return c.QuestionRepository.FindActiveByReferenceID(ctx, referenceID)
		}
		questions, err := c.QuestionRepository.FindActiveByReferenceID(ctx, referenceID)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(questions); err == nil {
			c.fill(ctx, referenceID, version, raw)
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	// Callers may mutate the slice; hand each one its own copy.
	shared := result.([]domain.Question)
	out := make([]domain.Question, len(shared))
	for i, q := range shared {
		out[i] = q.Clone()
	}
	return out, nil
}

func (c *QuestionCache) cached(ctx context.Context, referenceID string) ([]domain.Question, bool) {
	raw, err := c.client.Get(ctx, c.key(referenceID)).Bytes()
	if err != nil {
		return nil, false
	}
	var questions []domain.Question
	if err := json.Unmarshal(raw, &questions); err != nil {
		return nil, false
	}
	return questions, true
}

// fill stores raw unless the reference was invalidated since version was read.
// A lost WATCH race leaves the key empty for the next reader.
func (c *QuestionCache) fill(ctx context.Context, referenceID string, version int64, raw []byte) {
	_ = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := c.version(ctx, tx, referenceID)
		if err != nil || current != version {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.key(referenceID), raw, c.ttlWithJitter())
			return nil
		})
		return err
	}, c.versionKey(referenceID))
}

func (c *QuestionCache) version(ctx context.Context, cmd redis.Cmdable, referenceID string) (int64, error) {
	v, err := cmd.Get(ctx, c.versionKey(referenceID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// invalidate is best effort; a stale entry lives at most one TTL.
func (c *QuestionCache) invalidate(ctx context.Context, referenceID string) {
	_, _ = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.versionKey(referenceID))
		pipe.Del(ctx, c.key(referenceID))
		return nil
	})
}

func (c *QuestionCache) key(referenceID string) string {
	return "questions:" + referenceID
}

func (c *QuestionCache) versionKey(referenceID string) string {
	return "questions:" + referenceID + ":version"
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(rand.Int63n(jitterMax+1))
}
