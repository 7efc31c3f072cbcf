package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"timed-quiz-runner/internal/domain"
)

// ReportSink keeps each session's report for ttl after delivery so it can
// still be downloaded once the session itself is gone. A ttl <= 0 keeps
// reports until the process exits.
type ReportSink struct {
	ttl   time.Duration
	clock func() time.Time

	mu      sync.RWMutex
	reports map[string]storedReport
}

type storedReport struct {
	report      domain.Report
	deliveredAt time.Time
}

func NewReportSink(ttl time.Duration) *ReportSink {
	return &ReportSink{
		ttl:     ttl,
		clock:   time.Now,
		reports: make(map[string]storedReport),
	}
}

// Deliver stores the report and drops expired ones.
func (s *ReportSink) Deliver(_ context.Context, report domain.Report) error {
	now := s.clock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(now)
	s.reports[report.SessionID] = storedReport{report: report, deliveredAt: now}
	return nil
}

// Load returns the report delivered for a session, or ErrReportNotFound.
func (s *ReportSink) Load(_ context.Context, sessionID string) (domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.reports[sessionID]
	if !ok || s.expired(stored, s.clock()) {
		return domain.Report{}, fmt.Errorf("%w: %s", domain.ErrReportNotFound, sessionID)
	}
	return stored.report, nil
}

func (s *ReportSink) expired(stored storedReport, now time.Time) bool {
	return s.ttl > 0 && !now.Before(stored.deliveredAt.Add(s.ttl))
}

func (s *ReportSink) pruneLocked(now time.Time) {
	for id, stored := range s.reports {
		if s.expired(stored, now) {
			delete(s.reports, id)
		}
	}
}
