package app_test

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"timed-quiz-runner/internal/app"
	"timed-quiz-runner/internal/domain"
	"timed-quiz-runner/internal/infra/memory"
)

func TestStartLoadsAnswerKeyAndDeliversReport(t *testing.T) {
	ctx := context.Background()
	sink := memory.NewReportSink(0)
	service, _ := newTestService(memory.NewStaticAnswerKeys(map[string]domain.AnswerKey{
		"answers.txt": {2, 3, 1},
	}), sink)

	session, err := service.Start(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	service.Wait()

	snap := session.Snapshot()
	if snap.State != domain.StateActive || snap.RemainingSeconds != 180 || !snap.AnswerKeyLoaded {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.Question.ImageRef != "questions/1.JPG" || len(snap.Navigator) != 3 {
		t.Fatalf("unexpected question setup %+v", snap.Question)
	}

	for i, v := range []int{2, 4, 1} {
		if err := session.SelectOption(i, v); err != nil {
			t.Fatalf("select: %v", err)
		}
	}
	res, err := session.Submit()
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Correct != 2 || res.Wrong != 1 || res.Percentage != 66.67 {
		t.Fatalf("unexpected result %+v", res)
	}

	report, err := sink.Load(ctx, session.ID())
	if err != nil {
		t.Fatalf("expected report delivered to sink: %v", err)
	}
	if !strings.Contains(report.Body, "Q2: 4 | 3 | 0 sec | No") {
		t.Fatalf("unexpected report body:\n%s", report.Body)
	}

	fromService, err := service.Report(ctx, session.ID())
	if err != nil || fromService.Body != report.Body {
		t.Fatalf("expected service report to match sink, err=%v", err)
	}
}

func TestStartWithFailingAnswerKeySource(t *testing.T) {
	ctx := context.Background()
	sink := memory.NewReportSink(0)
	service, _ := newTestService(memory.NewStaticAnswerKeys(nil), sink)

	session, err := service.Start(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	service.Wait()

	_ = session.SelectOption(0, 2)
	_ = session.SelectOption(1, 3)
	res, _ := session.Submit()
	if res.Correct != 0 || res.Wrong != res.Attempted || res.Attempted != 2 {
		t.Fatalf("expected degraded scoring, got %+v", res)
	}
	if _, err := sink.Load(ctx, session.ID()); err != nil {
		t.Fatalf("expected report delivered despite missing key: %v", err)
	}
}

func TestLateAnswerKeyDoesNotRescore(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	keys := &blockingKeys{release: release, key: domain.AnswerKey{1, 1, 1}}
	service, _ := newTestService(keys, memory.NewReportSink(0))

	session, err := service.Start(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	_ = session.SelectOption(0, 1)
	res, _ := session.Submit()

	close(release)
	service.Wait()

	if res.Correct != 0 {
		t.Fatalf("expected wrong answer before key load, got %+v", res)
	}
	if after, _ := session.Result(); after.Correct != 0 {
		t.Fatalf("expected score to stand after late key, got %+v", after)
	}
}

func TestTimerExpiryDeliversReportOnce(t *testing.T) {
	ctx := context.Background()
	sink := &countingSink{}
	ticker := newFakeTicker()
	service := app.NewQuizService(memory.NewSessionStore(), nil, sink, app.Settings{
		Questions:          1,
		SecondsPerQuestion: 2,
	}, nil, app.WithTickerFactory(ticker.factory))

	session, err := service.Start(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	updates, cancel := session.Subscribe()
	defer cancel()

	ticker.fire()
	ticker.fire()
	waitForState(t, updates, domain.StateSubmitted)
	// the timer goroutine delivers after publishing the submitted snapshot
	deadline := time.Now().Add(5 * time.Second)
	for sink.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	_, _ = session.Submit()

	if sink.count() != 1 {
		t.Fatalf("expected exactly one delivery, got %d", sink.count())
	}
}

func TestSessionLookup(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(nil, nil)

	if _, err := service.Session(ctx, "missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	session, _ := service.Start(ctx)
	if _, err := service.Report(ctx, session.ID()); !errors.Is(err, domain.ErrNotSubmitted) {
		t.Fatalf("expected ErrNotSubmitted, got %v", err)
	}
	got, err := service.Session(ctx, session.ID())
	if err != nil || got != session {
		t.Fatalf("expected stored session, err=%v", err)
	}
}

func TestRemoveStopsAndDropsSession(t *testing.T) {
	ctx := context.Background()
	service, ticker := newTestService(nil, nil)

	session, err := service.Start(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	updates, cancel := session.Subscribe()
	defer cancel()

	if err := service.Remove(ctx, session.ID()); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if ticker.stops() != 1 {
		t.Fatalf("expected timer stopped once, got %d", ticker.stops())
	}
	timeout := time.After(5 * time.Second)
	for closed := false; !closed; {
		select {
		case _, ok := <-updates:
			closed = !ok
		case <-timeout:
			t.Fatalf("expected subscriber channel closed")
		}
	}
	if _, err := service.Session(ctx, session.ID()); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session dropped, got %v", err)
	}
	if err := service.Remove(ctx, session.ID()); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on second remove, got %v", err)
	}
}

func TestReportArchiveErrorsSurface(t *testing.T) {
	ctx := context.Background()
	broken := errors.New("connection refused")
	service := app.NewQuizService(memory.NewSessionStore(), nil, nil, app.Settings{}, nil,
		app.WithReportArchive(memory.NewReportSink(0), failingArchive{err: broken}))

	if _, err := service.Report(ctx, "gone"); !errors.Is(err, broken) {
		t.Fatalf("expected archive error, got %v", err)
	}
}

func TestMultiSinkJoinsErrors(t *testing.T) {
	failing := errors.New("disk full")
	mem := memory.NewReportSink(0)
	sinks := app.MultiSink{mem, failingSink{err: failing}}

	err := sinks.Deliver(context.Background(), domain.Report{SessionID: "s1"})
	if !errors.Is(err, failing) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if _, err := mem.Load(context.Background(), "s1"); err != nil {
		t.Fatalf("expected healthy sink to receive the report")
	}
}

func newTestService(keys app.AnswerKeySource, sink app.ReportSink) (*app.QuizService, *fakeTicker) {
	ticker := newFakeTicker()
	ids := 0
	service := app.NewQuizService(memory.NewSessionStore(), keys, sink, app.Settings{
		Questions:          3,
		SecondsPerQuestion: 60,
		AnswerKeyRef:       "answers.txt",
	}, nil,
		app.WithTickerFactory(ticker.factory),
		app.WithServiceClock(newFakeClock().Now),
		app.WithIDGenerator(func() string {
			ids++
			return "session-" + strconv.Itoa(ids)
		}),
	)
	return service, ticker
}

type blockingKeys struct {
	release chan struct{}
	key     domain.AnswerKey
}

func (b *blockingKeys) LoadAnswerKey(ctx context.Context, _ string) (domain.AnswerKey, error) {
	select {
	case <-b.release:
		return b.key, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type countingSink struct {
	mu    sync.Mutex
	calls int
}

func (c *countingSink) Deliver(context.Context, domain.Report) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return nil
}

func (c *countingSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type failingArchive struct {
	err error
}

func (f failingArchive) Load(context.Context, string) (domain.Report, error) {
	return domain.Report{}, f.err
}

type failingSink struct {
	err error
}

func (f failingSink) Deliver(context.Context, domain.Report) error {
	return f.err
}
