package domain

import "errors"

var (
	// ErrSessionNotFound is returned when no quiz session exists for an id.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrNotStarted is returned when a session is used before Initialize.
	ErrNotStarted = errors.New("quiz session not started")
	// ErrAlreadyStarted is returned when Initialize is called twice.
	ErrAlreadyStarted = errors.New("quiz session already started")
	// ErrNoQuestions indicates a session was initialized without questions.
	ErrNoQuestions = errors.New("quiz has no questions")
	// ErrInvalidIndex indicates a question index outside [0, N).
	ErrInvalidIndex = errors.New("invalid question index")
	// ErrInvalidOption indicates a value outside the question's option set.
	ErrInvalidOption = errors.New("invalid option")
	// ErrNotSubmitted is returned when a report is requested before submission.
	ErrNotSubmitted = errors.New("quiz session not submitted")
	// ErrReportNotFound is returned by report stores holding nothing for a session.
	ErrReportNotFound = errors.New("report not found")
	// ErrAnswerKeyUnavailable wraps any failure to fetch or parse the answer key.
	ErrAnswerKeyUnavailable = errors.New("answer key unavailable")
)
