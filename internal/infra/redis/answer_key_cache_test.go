package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"timed-quiz-runner/internal/domain"
	"timed-quiz-runner/internal/infra/memory"
)

func TestAnswerKeyCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)

	loader := &countingLoader{
		AnswerKeyLoader: memory.NewStaticAnswerKeys(map[string]domain.AnswerKey{
			"answers.txt": {2, 3, 1},
		}),
	}
	cache := NewAnswerKeyCache(client, loader, time.Minute)

	key, err := cache.LoadAnswerKey(context.Background(), "answers.txt")
	if err != nil {
		t.Fatalf("load key: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if got := mr.HGet("quiz:answerkey:answers.txt", "2"); got != "3" {
		t.Fatalf("expected cached answer 3 for question 2, got %q", got)
	}

	// Second call should hit cache, loader not incremented.
	cached, err := cache.LoadAnswerKey(context.Background(), "answers.txt")
	if err != nil {
		t.Fatalf("load cached key: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if cached.String() != key.String() {
		t.Fatalf("expected cached key %v, got %v", key, cached)
	}
}

func TestAnswerKeyCachePropagatesLoaderErrors(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	cache := NewAnswerKeyCache(newClient(mr), memory.NewStaticAnswerKeys(nil), time.Minute)
	if _, err := cache.LoadAnswerKey(context.Background(), "missing"); !errors.Is(err, domain.ErrAnswerKeyUnavailable) {
		t.Fatalf("expected ErrAnswerKeyUnavailable, got %v", err)
	}
	if mr.Exists("quiz:answerkey:missing") {
		t.Fatalf("expected failed load not to be cached")
	}
}

func TestBuildKeyFromCacheKeepsGapsUnknown(t *testing.T) {
	key := buildKeyFromCache(map[string]string{"1": "4", "3": "2", "x": "1"})
	if len(key) != 3 {
		t.Fatalf("expected key of length 3, got %v", key)
	}
	if _, ok := key.Lookup(1); ok {
		t.Fatalf("expected question 2 to be unknown")
	}
	if v, _ := key.Lookup(2); v != 2 {
		t.Fatalf("expected answer 2 for question 3, got %d", v)
	}
}

type countingLoader struct {
	memory.AnswerKeyLoader
	calls int
}

func (l *countingLoader) LoadAnswerKey(ctx context.Context, ref string) (domain.AnswerKey, error) {
	l.calls++
	return l.AnswerKeyLoader.LoadAnswerKey(ctx, ref)
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
