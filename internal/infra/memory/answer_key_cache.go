package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"timed-quiz-runner/internal/domain"
)

// AnswerKeyLoader fetches an answer key from its origin (file, URL, database).
type AnswerKeyLoader interface {
	LoadAnswerKey(ctx context.Context, ref string) (domain.AnswerKey, error)
}

// AnswerKeyCache keeps each loaded answer key for ttl (plus jitter). Every
// session gets its own copy of the key.
type AnswerKeyCache struct {
	loader AnswerKeyLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	rndMu sync.Mutex
	cache map[string]cachedKey
}

type cachedKey struct {
	key       domain.AnswerKey
	expiresAt time.Time
}

func NewAnswerKeyCache(loader AnswerKeyLoader, ttl time.Duration) *AnswerKeyCache {
	return &AnswerKeyCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedKey),
	}
}

func (c *AnswerKeyCache) LoadAnswerKey(ctx context.Context, ref string) (domain.AnswerKey, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[ref]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.key.Clone(), nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(ref, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[ref]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.key, nil
		}
		c.mu.RUnlock()

		key, err := c.loader.LoadAnswerKey(ctx, ref)
		if err != nil {
			return domain.AnswerKey(nil), err
		}

		c.mu.Lock()
		c.cache[ref] = cachedKey{
			key:       key.Clone(),
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return key, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(domain.AnswerKey).Clone(), nil
}

// StaticAnswerKeys is a loader backed by an in-memory map (useful for tests/demos).
type StaticAnswerKeys struct {
	keys map[string]domain.AnswerKey
}

func NewStaticAnswerKeys(keys map[string]domain.AnswerKey) *StaticAnswerKeys {
	return &StaticAnswerKeys{keys: keys}
}

func (l *StaticAnswerKeys) LoadAnswerKey(_ context.Context, ref string) (domain.AnswerKey, error) {
	if key, ok := l.keys[ref]; ok {
		return key, nil
	}
	return nil, domain.ErrAnswerKeyUnavailable
}

func (c *AnswerKeyCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
