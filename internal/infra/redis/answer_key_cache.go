package redis

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"timed-quiz-runner/internal/domain"
)

// AnswerKeyLoader fetches an answer key from its origin (file, URL, database).
type AnswerKeyLoader interface {
	LoadAnswerKey(ctx context.Context, ref string) (domain.AnswerKey, error)
}

// AnswerKeyCache caches answer keys in Redis (hash per reference) and falls back to a loader on cache miss.
// Answers are stored as: HSET quiz:answerkey:{ref} {questionNumber} {option}
type AnswerKeyCache struct {
	client *redis.Client
	loader AnswerKeyLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewAnswerKeyCache(client *redis.Client, loader AnswerKeyLoader, ttl time.Duration) *AnswerKeyCache {
	return &AnswerKeyCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *AnswerKeyCache) LoadAnswerKey(ctx context.Context, ref string) (domain.AnswerKey, error) {
	cacheKey := c.cacheKey(ref)

	answers, err := c.client.HGetAll(ctx, cacheKey).Result()
	if err == nil && len(answers) > 0 {
		return buildKeyFromCache(answers), nil
	}

	result, err, _ := c.sf.Do(ref, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		answers, err := c.client.HGetAll(ctx, cacheKey).Result()
		if err == nil && len(answers) > 0 {
			return buildKeyFromCache(answers), nil
		}

		key, err := c.loader.LoadAnswerKey(ctx, ref)
		if err != nil {
			return domain.AnswerKey(nil), err
		}

		ttl := c.ttlWithJitter()
		pipe := c.client.Pipeline()
		for i, v := range key {
			if v == 0 {
				continue
			}
			pipe.HSet(ctx, cacheKey, strconv.Itoa(i+1), v)
		}
		if ttl > 0 {
			pipe.Expire(ctx, cacheKey, ttl)
		}
		_, _ = pipe.Exec(ctx)

		return key, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(domain.AnswerKey), nil
}

func (c *AnswerKeyCache) cacheKey(ref string) string {
	return "quiz:answerkey:" + ref
}

// buildKeyFromCache rebuilds a positional key; fields that fail to parse stay unknown.
func buildKeyFromCache(answers map[string]string) domain.AnswerKey {
	size := 0
	for field := range answers {
		if n, err := strconv.Atoi(field); err == nil && n > size {
			size = n
		}
	}
	key := make(domain.AnswerKey, size)
	for field, raw := range answers {
		n, err := strconv.Atoi(field)
		if err != nil || n <= 0 {
			continue
		}
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			key[n-1] = v
		}
	}
	return key
}

func (c *AnswerKeyCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
