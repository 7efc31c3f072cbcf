package redis

import (
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"timed-quiz-runner/internal/app"
	"timed-quiz-runner/internal/domain"
)

func TestSessionStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewSessionStore(client, time.Minute)

	session := app.NewSession("s1")
	if err := session.Initialize(domain.BuildQuestions(2, "q/%d.JPG", nil), 60); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	store.Put(session)
	if !mr.Exists("quiz:session:s1") {
		t.Fatalf("expected redis key to be set")
	}
	if got := mr.HGet("quiz:session:s1", "state"); got != string(domain.StateActive) {
		t.Fatalf("expected active marker, got %q", got)
	}
	if got := mr.HGet("quiz:session:s1", "remaining"); got != "120" {
		t.Fatalf("expected remaining 120, got %q", got)
	}
	if ttl := mr.TTL("quiz:session:s1"); ttl != time.Minute {
		t.Fatalf("expected ttl of a minute, got %v", ttl)
	}
	if ids := store.IDs(); len(ids) != 1 || ids[0] != "s1" {
		t.Fatalf("unexpected ids %v", ids)
	}

	store.Delete("s1")
	if mr.Exists("quiz:session:s1") {
		t.Fatalf("expected redis key to be removed")
	}
	if _, ok := store.Get("s1"); ok {
		t.Fatalf("expected session removed locally")
	}
}
