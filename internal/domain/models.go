package domain

import (
	"fmt"
	"time"
)

// DefaultOptions is the option set every question offers unless configured otherwise.
var DefaultOptions = []int{1, 2, 3, 4}

// ReportFileName is the name the report is delivered under.
const ReportFileName = "exam_report.txt"

// Question is an image-based MCQ question.
type Question struct {
	Index    int    `json:"index"`
	ImageRef string `json:"imageRef"`
	Options  []int  `json:"options"`
}

// HasOption reports whether value is selectable for the question.
func (q Question) HasOption(value int) bool {
	for _, opt := range q.Options {
		if opt == value {
			return true
		}
	}
	return false
}

// BuildQuestions creates n questions whose images follow pattern, formatted
// with the 1-based question number (e.g. "questions/%d.JPG").
func BuildQuestions(n int, pattern string, options []int) []Question {
	if len(options) == 0 {
		options = DefaultOptions
	}
	questions := make([]Question, n)
	for i := range questions {
		opts := make([]int, len(options))
		copy(opts, options)
		questions[i] = Question{
			Index:    i,
			ImageRef: fmt.Sprintf(pattern, i+1),
			Options:  opts,
		}
	}
	return questions
}

// State is the lifecycle state of a quiz session.
type State string

const (
	StateNotStarted State = "not_started"
	StateActive     State = "active"
	StateSubmitted  State = "submitted"
)

// Result summarizes a scored attempt.
type Result struct {
	Total            int     `json:"total"`
	Attempted        int     `json:"attempted"`
	Correct          int     `json:"correct"`
	Wrong            int     `json:"wrong"`
	Guessed          int     `json:"guessed"`
	Percentage       float64 `json:"percentage"`
	GuessedQuestions []int   `json:"guessedQuestions"` // 1-based
}

// Summary renders the completion message shown to the user after submission.
func (r Result) Summary() string {
	return fmt.Sprintf("Test Completed!\n\nTotal Questions: %d\nAttempted: %d\nCorrect: %d\nWrong: %d\nGuessed: %d\nPercentage: %.2f%%",
		r.Total, r.Attempted, r.Correct, r.Wrong, r.Guessed, r.Percentage)
}

// Report is the finished plain-text report handed to a ReportSink.
type Report struct {
	SessionID string    `json:"sessionId"`
	FileName  string    `json:"fileName"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// NavigatorEntry is one cell of the question navigator.
type NavigatorEntry struct {
	Number   int  `json:"number"`
	Answered bool `json:"answered"`
	Guessed  bool `json:"guessed"`
}

// Snapshot is a read-only view of a session for rendering.
type Snapshot struct {
	SessionID        string           `json:"sessionId"`
	State            State            `json:"state"`
	CurrentIndex     int              `json:"currentIndex"`
	Question         Question         `json:"question"`
	Answers          []int            `json:"answers"` // 0 means not answered
	Guessed          []bool           `json:"guessed"`
	Elapsed          []int            `json:"elapsed"`
	RemainingSeconds int              `json:"remainingSeconds"`
	Clock            string           `json:"clock"`
	Navigator        []NavigatorEntry `json:"navigator"`
	AnswerKeyLoaded  bool             `json:"answerKeyLoaded"`
	StartedAt        time.Time        `json:"startedAt"`
	Result           *Result          `json:"result,omitempty"`
}

// FormatClock renders seconds as MM:SS.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
