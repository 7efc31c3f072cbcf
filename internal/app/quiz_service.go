package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"timed-quiz-runner/internal/domain"
)

// SessionRepository abstracts where live sessions are kept (in-memory, Redis-marked, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(id string) (*Session, bool)
	Delete(id string)
	IDs() []string
}

// AnswerKeySource supplies the correct answers for a reference (path, URL or stored key id).
type AnswerKeySource interface {
	LoadAnswerKey(ctx context.Context, ref string) (domain.AnswerKey, error)
}

// ReportSink delivers a finished report to the user or to storage.
type ReportSink interface {
	Deliver(ctx context.Context, report domain.Report) error
}

// ReportArchive looks up reports that outlive their session.
type ReportArchive interface {
	Load(ctx context.Context, sessionID string) (domain.Report, error)
}

// Settings shapes every session the service starts.
type Settings struct {
	Questions          int
	SecondsPerQuestion int
	ImagePattern       string
	Options            []int
	AnswerKeyRef       string
	ReportFormat       ReportFormat
	TickInterval       time.Duration
	KeyFetchTimeout    time.Duration
	DeliveryTimeout    time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.Questions <= 0 {
		s.Questions = 120
	}
	if s.SecondsPerQuestion <= 0 {
		s.SecondsPerQuestion = 60
	}
	if s.ImagePattern == "" {
		s.ImagePattern = "questions/%d.JPG"
	}
	if len(s.Options) == 0 {
		s.Options = domain.DefaultOptions
	}
	if s.ReportFormat == "" {
		s.ReportFormat = ReportGuessed
	}
	if s.TickInterval <= 0 {
		s.TickInterval = time.Second
	}
	if s.KeyFetchTimeout <= 0 {
		s.KeyFetchTimeout = 10 * time.Second
	}
	if s.DeliveryTimeout <= 0 {
		s.DeliveryTimeout = 10 * time.Second
	}
	return s
}

// ServiceOption customizes a QuizService.
type ServiceOption func(*QuizService)

// WithTickerFactory replaces the production ticker, for tests.
func WithTickerFactory(f TickerFactory) ServiceOption {
	return func(s *QuizService) { s.newTicker = f }
}

// WithServiceClock replaces time.Now for every session the service starts.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *QuizService) { s.now = now }
}

// WithReportArchive adds stores Report falls back to, in order, once a
// session has been removed.
func WithReportArchive(archives ...ReportArchive) ServiceOption {
	return func(s *QuizService) { s.archives = append(s.archives, archives...) }
}

// WithIDGenerator replaces the uuid-based session id generator.
func WithIDGenerator(f func() string) ServiceOption {
	return func(s *QuizService) { s.newID = f }
}

// QuizService contains the quiz session use cases.
type QuizService struct {
	sessions SessionRepository
	keys     AnswerKeySource
	sink     ReportSink
	archives []ReportArchive
	settings Settings
	logger   *zap.Logger

	newTicker TickerFactory
	newID     func() string
	now       func() time.Time

	fetches sync.WaitGroup
}

func NewQuizService(store SessionRepository, keys AnswerKeySource, sink ReportSink, settings Settings, logger *zap.Logger, opts ...ServiceOption) *QuizService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &QuizService{
		sessions:  store,
		keys:      keys,
		sink:      sink,
		settings:  settings.withDefaults(),
		logger:    logger,
		newTicker: NewTicker,
		newID:     uuid.NewString,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start creates, initializes and registers a new session, starts its countdown
// and launches the one-shot answer key fetch.
func (s *QuizService) Start(ctx context.Context) (*Session, error) {
	id := s.newID()
	session := NewSession(id,
		WithClock(s.now),
		WithReportFormat(s.settings.ReportFormat),
		WithSubmitHook(s.deliver),
	)

	questions := domain.BuildQuestions(s.settings.Questions, s.settings.ImagePattern, s.settings.Options)
	if err := session.Initialize(questions, s.settings.SecondsPerQuestion); err != nil {
		return nil, err
	}
	s.sessions.Put(session)

	s.fetchAnswerKey(ctx, session, len(questions))

	if err := session.StartTimer(s.newTicker, s.settings.TickInterval); err != nil {
		s.sessions.Delete(id)
		return nil, err
	}

	s.logger.Info("quiz session started",
		zap.String("session_id", id),
		zap.Int("questions", len(questions)),
		zap.Int("seconds", len(questions)*s.settings.SecondsPerQuestion),
	)
	return session, nil
}

// Session looks up a live session.
func (s *QuizService) Session(_ context.Context, id string) (*Session, error) {
	session, ok := s.sessions.Get(id)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Report returns the finished report of a submitted session. Once the session
// is gone the report archives are consulted.
func (s *QuizService) Report(ctx context.Context, id string) (domain.Report, error) {
	session, err := s.Session(ctx, id)
	if err == nil {
		return session.Report()
	}
	for _, archive := range s.archives {
		report, archiveErr := archive.Load(ctx, id)
		if archiveErr == nil {
			return report, nil
		}
		if !errors.Is(archiveErr, domain.ErrReportNotFound) {
			return domain.Report{}, archiveErr
		}
	}
	return domain.Report{}, err
}

// Remove stops a session and drops it from the store. Delivered reports stay
// available through the archives.
func (s *QuizService) Remove(_ context.Context, id string) error {
	session, ok := s.sessions.Get(id)
	if !ok {
		return domain.ErrSessionNotFound
	}
	session.Close()
	s.sessions.Delete(id)
	s.logger.Debug("quiz session removed", zap.String("session_id", id))
	return nil
}

// Wait blocks until in-flight answer key fetches have finished.
func (s *QuizService) Wait() {
	s.fetches.Wait()
}

// fetchAnswerKey loads the key once, without retries. On failure the key stays
// unknown and every answer scores as wrong. The fetch keeps the caller's
// values but not its cancellation: a websocket request ends with its connection.
func (s *QuizService) fetchAnswerKey(parent context.Context, session *Session, questions int) {
	logger := s.logger.With(zap.String("session_id", session.ID()), zap.String("ref", s.settings.AnswerKeyRef))
	if s.keys == nil {
		logger.Warn("no answer key source configured", zap.Error(domain.ErrAnswerKeyUnavailable))
		return
	}

	s.fetches.Add(1)
	go func() {
		defer s.fetches.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), s.settings.KeyFetchTimeout)
		defer cancel()

		key, err := s.keys.LoadAnswerKey(ctx, s.settings.AnswerKeyRef)
		if err != nil {
			if !errors.Is(err, domain.ErrAnswerKeyUnavailable) {
				err = errors.Join(domain.ErrAnswerKeyUnavailable, err)
			}
			logger.Error("error loading answer key", zap.Error(err))
			return
		}
		if len(key) != questions {
			logger.Warn("answer key length does not match question count",
				zap.Int("answers", len(key)), zap.Int("questions", questions))
		}
		if !session.LoadAnswerKey(key) {
			logger.Warn("answer key arrived after submission; score not revised")
			return
		}
		logger.Debug("answer key loaded", zap.Int("answers", len(key)))
	}()
}

func (s *QuizService) deliver(result domain.Result, report domain.Report) {
	logger := s.logger.With(zap.String("session_id", report.SessionID))
	logger.Info("quiz session submitted",
		zap.Int("attempted", result.Attempted),
		zap.Int("correct", result.Correct),
		zap.Int("wrong", result.Wrong),
		zap.Int("guessed", result.Guessed),
		zap.Float64("percentage", result.Percentage),
	)
	// Re-put so stores that mirror session state record the submission.
	if session, ok := s.sessions.Get(report.SessionID); ok {
		s.sessions.Put(session)
	}
	if s.sink == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.settings.DeliveryTimeout)
	defer cancel()
	if err := s.sink.Deliver(ctx, report); err != nil {
		logger.Error("failed to deliver report", zap.Error(err))
	}
}

// MultiSink delivers a report to every sink, joining their errors.
type MultiSink []ReportSink

func (m MultiSink) Deliver(ctx context.Context, report domain.Report) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Deliver(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
