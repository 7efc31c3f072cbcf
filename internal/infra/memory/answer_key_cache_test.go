package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"timed-quiz-runner/internal/domain"
)

func TestAnswerKeyCacheCaches(t *testing.T) {
	loader := &countingLoader{
		AnswerKeyLoader: NewStaticAnswerKeys(map[string]domain.AnswerKey{
			"answers.txt": {2, 3, 1},
		}),
	}
	cache := NewAnswerKeyCache(loader, time.Minute)

	key, err := cache.LoadAnswerKey(context.Background(), "answers.txt")
	if err != nil {
		t.Fatalf("load key: %v", err)
	}
	if len(key) != 3 || key[1] != 3 {
		t.Fatalf("unexpected key %v", key)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := cache.LoadAnswerKey(context.Background(), "answers.txt"); err != nil {
		t.Fatalf("load key 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestAnswerKeyCacheHandsOutCopies(t *testing.T) {
	source := map[string]domain.AnswerKey{"answers.txt": {2, 3, 1}}
	cache := NewAnswerKeyCache(NewStaticAnswerKeys(source), time.Minute)

	first, err := cache.LoadAnswerKey(context.Background(), "answers.txt")
	if err != nil {
		t.Fatalf("load key: %v", err)
	}
	first[0] = 4
	source["answers.txt"][1] = 4

	second, err := cache.LoadAnswerKey(context.Background(), "answers.txt")
	if err != nil {
		t.Fatalf("load cached key: %v", err)
	}
	if second.String() != "2\n3\n1" {
		t.Fatalf("expected cached key untouched by callers, got %v", second)
	}
}

func TestAnswerKeyCacheDoesNotCacheFailures(t *testing.T) {
	loader := &countingLoader{AnswerKeyLoader: NewStaticAnswerKeys(nil)}
	cache := NewAnswerKeyCache(loader, time.Minute)

	for i := 0; i < 2; i++ {
		_, err := cache.LoadAnswerKey(context.Background(), "missing.txt")
		if !errors.Is(err, domain.ErrAnswerKeyUnavailable) {
			t.Fatalf("expected ErrAnswerKeyUnavailable, got %v", err)
		}
	}
	if loader.calls != 2 {
		t.Fatalf("expected every failed load to reach the loader, got %d", loader.calls)
	}
}

func TestAnswerKeyCacheExpires(t *testing.T) {
	loader := &countingLoader{
		AnswerKeyLoader: NewStaticAnswerKeys(map[string]domain.AnswerKey{"k": {1}}),
	}
	cache := NewAnswerKeyCache(loader, time.Minute)
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	cache.clock = func() time.Time { return now }

	_, _ = cache.LoadAnswerKey(context.Background(), "k")
	now = now.Add(2 * time.Minute)
	_, _ = cache.LoadAnswerKey(context.Background(), "k")
	if loader.calls != 2 {
		t.Fatalf("expected reload after expiry, loader calls %d", loader.calls)
	}
}

type countingLoader struct {
	AnswerKeyLoader
	calls int
}

func (l *countingLoader) LoadAnswerKey(ctx context.Context, ref string) (domain.AnswerKey, error) {
	l.calls++
	return l.AnswerKeyLoader.LoadAnswerKey(ctx, ref)
}
