package app

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"timed-quiz-runner/internal/domain"
)

// ReportFormat selects the report layout.
type ReportFormat string

const (
	// ReportGuessed lists only incorrect or guess-flagged questions, with a Guessed column.
	ReportGuessed ReportFormat = "guessed"
	// ReportPlain lists every question without the Guessed column.
	ReportPlain ReportFormat = "plain"
)

const reportSeparator = "--------------------------------------------------------"

// ParseReportFormat maps a config value to a ReportFormat, defaulting to ReportGuessed.
func ParseReportFormat(raw string) ReportFormat {
	if ReportFormat(strings.ToLower(strings.TrimSpace(raw))) == ReportPlain {
		return ReportPlain
	}
	return ReportGuessed
}

// attempt is the frozen state scoring and reporting work from.
type attempt struct {
	answers []int
	guessed []bool
	elapsed []int
	key     domain.AnswerKey
}

// score counts correct and wrong answers. Answers against an unknown key count as wrong.
func score(a attempt) domain.Result {
	n := len(a.answers)
	res := domain.Result{Total: n, GuessedQuestions: []int{}}
	for i, ans := range a.answers {
		if ans != 0 {
			if correct, ok := a.key.Lookup(i); ok && correct == ans {
				res.Correct++
			} else {
				res.Wrong++
			}
		}
		if a.guessed[i] {
			res.GuessedQuestions = append(res.GuessedQuestions, i+1)
		}
	}
	res.Attempted = res.Correct + res.Wrong
	res.Guessed = len(res.GuessedQuestions)
	if n > 0 {
		res.Percentage = math.Round(float64(res.Correct)/float64(n)*100*100) / 100
	}
	return res
}

func buildReportBody(a attempt, format ReportFormat) string {
	var b strings.Builder
	if format == ReportPlain {
		b.WriteString("Q.No | Your Answer | Correct Answer | Time Spent\n")
	} else {
		b.WriteString("Q.No | Your Answer | Correct Answer | Time Spent | Guessed\n")
	}
	b.WriteString(reportSeparator + "\n")

	for i, ans := range a.answers {
		correct, known := a.key.Lookup(i)
		incorrect := ans == 0 || !known || ans != correct

		yours := "Not Answered"
		if ans != 0 {
			yours = strconv.Itoa(ans)
		}
		want := "Unknown"
		if known {
			want = strconv.Itoa(correct)
		}

		if format == ReportPlain {
			fmt.Fprintf(&b, "Q%d: %s | %s | %d sec\n", i+1, yours, want, a.elapsed[i])
			continue
		}
		if !incorrect && !a.guessed[i] {
			continue
		}
		flag := "No"
		if a.guessed[i] {
			flag = "Yes"
		}
		fmt.Fprintf(&b, "Q%d: %s | %s | %d sec | %s\n", i+1, yours, want, a.elapsed[i], flag)
	}
	return b.String()
}
