package app

import (
	"fmt"
	"sync"
	"time"

	"timed-quiz-runner/internal/domain"
)

// SubmitHook receives the outcome of a session exactly once, on submission.
type SubmitHook func(result domain.Result, report domain.Report)

// SessionOption customizes a Session.
type SessionOption func(*Session)

// WithClock replaces time.Now, for deterministic tests.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// WithReportFormat selects the report layout produced on submission.
func WithReportFormat(format ReportFormat) SessionOption {
	return func(s *Session) { s.format = format }
}

// WithSubmitHook registers the callback fired once the session is submitted.
func WithSubmitHook(hook SubmitHook) SessionOption {
	return func(s *Session) { s.onSubmit = hook }
}

// Session is one timed quiz attempt. All mutations go through its methods and
// are serialized by mu; once submitted it is frozen.
type Session struct {
	id       string
	now      func() time.Time
	format   ReportFormat
	onSubmit SubmitHook

	mu          sync.Mutex
	state       domain.State
	questions   []domain.Question
	answers     []int
	guessed     []bool
	elapsed     []int
	remaining   int
	current     int
	startedAt   time.Time
	enteredAt   time.Time
	submittedAt time.Time
	key         domain.AnswerKey
	result      domain.Result
	report      domain.Report
	stopTimer   func()
	subscribers map[chan domain.Snapshot]struct{}
}

// NewSession creates a session in the NotStarted state.
func NewSession(id string, opts ...SessionOption) *Session {
	s := &Session{
		id:          id,
		now:         time.Now,
		format:      ReportGuessed,
		state:       domain.StateNotStarted,
		subscribers: make(map[chan domain.Snapshot]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() domain.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Initialize sets up the questions and the countdown of
// len(questions) * perQuestionBudget seconds. It must be called exactly once.
func (s *Session) Initialize(questions []domain.Question, perQuestionBudget int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StateNotStarted {
		return domain.ErrAlreadyStarted
	}
	if len(questions) == 0 {
		return domain.ErrNoQuestions
	}
	if perQuestionBudget <= 0 {
		return fmt.Errorf("per-question budget must be positive, got %d", perQuestionBudget)
	}

	n := len(questions)
	now := s.now()
	s.questions = questions
	s.answers = make([]int, n)
	s.guessed = make([]bool, n)
	s.elapsed = make([]int, n)
	s.remaining = n * perQuestionBudget
	s.current = 0
	s.startedAt = now
	s.enteredAt = now
	s.state = domain.StateActive
	s.broadcastLocked()
	return nil
}

// StartTimer begins the countdown, calling Tick on every signal of a ticker
// built by newTicker. The ticker is stopped exactly once, on submission.
func (s *Session) StartTimer(newTicker TickerFactory, interval time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.state == domain.StateNotStarted:
		return domain.ErrNotStarted
	case s.state == domain.StateSubmitted, s.stopTimer != nil:
		return nil
	}

	t := newTicker(interval)
	done := make(chan struct{})
	var once sync.Once
	s.stopTimer = func() {
		once.Do(func() {
			t.Stop()
			close(done)
		})
	}
	go s.runTimer(t, done)
	return nil
}

func (s *Session) runTimer(t Ticker, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-t.C():
			s.Tick()
		}
	}
}

// SelectOption records value as the answer for question i. The last selection wins.
func (s *Session) SelectOption(i, value int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StateActive {
		return s.inactiveErrLocked()
	}
	if err := s.checkIndexLocked(i); err != nil {
		return err
	}
	if !s.questions[i].HasOption(value) {
		return fmt.Errorf("%w: %d for question %d", domain.ErrInvalidOption, value, i+1)
	}
	s.answers[i] = value
	s.broadcastLocked()
	return nil
}

// SetGuessed flags (or unflags) the answer to question i as a guess.
func (s *Session) SetGuessed(i int, guessed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StateActive {
		return s.inactiveErrLocked()
	}
	if err := s.checkIndexLocked(i); err != nil {
		return err
	}
	s.guessed[i] = guessed
	s.broadcastLocked()
	return nil
}

// NavigateTo commits the time spent on the current question and moves to question i.
func (s *Session) NavigateTo(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StateActive {
		return s.inactiveErrLocked()
	}
	if err := s.checkIndexLocked(i); err != nil {
		return err
	}
	s.navigateLocked(i)
	return nil
}

// Next moves to the following question; it is a no-op on the last one.
func (s *Session) Next() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StateActive {
		return s.inactiveErrLocked()
	}
	if s.current < len(s.questions)-1 {
		s.navigateLocked(s.current + 1)
	}
	return nil
}

// Prev moves to the preceding question; it is a no-op on the first one.
func (s *Session) Prev() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StateActive {
		return s.inactiveErrLocked()
	}
	if s.current > 0 {
		s.navigateLocked(s.current - 1)
	}
	return nil
}

// Tick consumes one second of the countdown and submits when it runs out.
// It does nothing unless the session is active.
func (s *Session) Tick() {
	s.mu.Lock()
	if s.state != domain.StateActive {
		s.mu.Unlock()
		return
	}
	if s.remaining > 0 {
		s.remaining--
	}
	fired := false
	if s.remaining == 0 {
		fired = s.submitLocked()
	}
	s.broadcastLocked()
	result, report, hook := s.result, s.report, s.onSubmit
	s.mu.Unlock()

	if fired && hook != nil {
		hook(result, report)
	}
}

// LoadAnswerKey installs the correct answers. A key arriving after submission
// is ignored: the submitted score stands. It reports whether the key was applied.
func (s *Session) LoadAnswerKey(key domain.AnswerKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == domain.StateSubmitted {
		return false
	}
	s.key = append(domain.AnswerKey(nil), key...)
	return true
}

// Submit freezes the session, scores it and builds the report. Repeated calls
// return the first result and do not fire the submit hook again.
func (s *Session) Submit() (domain.Result, error) {
	s.mu.Lock()
	if s.state == domain.StateNotStarted {
		s.mu.Unlock()
		return domain.Result{}, domain.ErrNotStarted
	}
	fired := s.submitLocked()
	if fired {
		s.broadcastLocked()
	}
	result, report, hook := s.result, s.report, s.onSubmit
	s.mu.Unlock()

	if fired && hook != nil {
		hook(result, report)
	}
	return result, nil
}

// Result returns the score once the session has been submitted.
func (s *Session) Result() (domain.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.state == domain.StateSubmitted
}

// Report returns the finished report, or ErrNotSubmitted.
func (s *Session) Report() (domain.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.StateSubmitted {
		return domain.Report{}, domain.ErrNotSubmitted
	}
	return s.report, nil
}

// SubmittedAt reports when the session was submitted.
func (s *Session) SubmittedAt() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submittedAt, s.state == domain.StateSubmitted
}

// Snapshot returns a copy of the session state for rendering.
func (s *Session) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel that receives a snapshot after every change.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *Session) Subscribe() (<-chan domain.Snapshot, func()) {
	ch := make(chan domain.Snapshot, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// Close stops the countdown and detaches every subscriber. The session keeps
// its state; Close is for sessions being dropped from their store.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopTimer != nil {
		s.stopTimer()
	}
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

// inactiveErrLocked is what a mutation returns outside the Active state:
// an error before Initialize, nothing once submitted.
func (s *Session) inactiveErrLocked() error {
	if s.state == domain.StateNotStarted {
		return domain.ErrNotStarted
	}
	return nil
}

func (s *Session) checkIndexLocked(i int) error {
	if i < 0 || i >= len(s.questions) {
		return fmt.Errorf("%w: %d not in [0,%d)", domain.ErrInvalidIndex, i, len(s.questions))
	}
	return nil
}

func (s *Session) navigateLocked(i int) {
	now := s.now()
	s.commitElapsedLocked(now)
	s.current = i
	s.enteredAt = now
	s.broadcastLocked()
}

// commitElapsedLocked adds the whole seconds spent on the current question.
// A clock that moved backwards contributes nothing.
func (s *Session) commitElapsedLocked(now time.Time) {
	spent := int(now.Sub(s.enteredAt) / time.Second)
	if spent < 0 {
		spent = 0
	}
	s.elapsed[s.current] += spent
	s.enteredAt = now
}

func (s *Session) submitLocked() bool {
	if s.state != domain.StateActive {
		return false
	}
	if s.stopTimer != nil {
		s.stopTimer()
	}

	now := s.now()
	s.commitElapsedLocked(now)
	s.state = domain.StateSubmitted
	s.submittedAt = now

	a := attempt{answers: s.answers, guessed: s.guessed, elapsed: s.elapsed, key: s.key}
	s.result = score(a)
	s.report = domain.Report{
		SessionID: s.id,
		FileName:  domain.ReportFileName,
		Body:      buildReportBody(a, s.format),
		CreatedAt: now,
	}
	return true
}

func (s *Session) broadcastLocked() {
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// drop the stale snapshot so a slow reader never blocks the session
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (s *Session) snapshotLocked() domain.Snapshot {
	snap := domain.Snapshot{
		SessionID:        s.id,
		State:            s.state,
		CurrentIndex:     s.current,
		Answers:          append([]int(nil), s.answers...),
		Guessed:          append([]bool(nil), s.guessed...),
		Elapsed:          append([]int(nil), s.elapsed...),
		RemainingSeconds: s.remaining,
		Clock:            domain.FormatClock(s.remaining),
		Navigator:        make([]domain.NavigatorEntry, len(s.questions)),
		AnswerKeyLoaded:  s.key.Known(),
		StartedAt:        s.startedAt,
	}
	if len(s.questions) > 0 {
		snap.Question = s.questions[s.current]
	}
	for i := range s.questions {
		snap.Navigator[i] = domain.NavigatorEntry{
			Number:   i + 1,
			Answered: s.answers[i] != 0,
			Guessed:  s.guessed[i],
		}
	}
	if s.state == domain.StateSubmitted {
		result := s.result
		snap.Result = &result
	}
	return snap
}
