package grading

import "time"

// Status of a single graded question. Derived on read, never stored.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCorrect   Status = "correct"
	StatusPartial   Status = "partial"
	StatusIncorrect Status = "incorrect"
)

// Clamp bounds a grader's score to [0, max].
func Clamp(score, max float64) float64 {
	if score < 0 {
		return 0
	}
	if score > max {
		return max
	}
	return score
}

func CorrectionStatus(studentScore *float64, questionScore float64) Status {
	switch {
	case studentScore == nil:
		return StatusPending
	case *studentScore >= questionScore:
		return StatusCorrect
	case *studentScore <= 0:
		return StatusIncorrect
	default:
		return StatusPartial
	}
}

// Aggregate sums the student scores of an attempt. It is nil until the
// attempt is submitted; ungraded questions count as zero.
func Aggregate(submittedAt *time.Time, scores []*float64) *float64 {
	if submittedAt == nil {
		return nil
	}
	total := 0.0
	for _, s := range scores {
		if s != nil {
			total += *s
		}
	}
	return &total
}

// Graded reports whether every question has a score.
func Graded(scores []*float64) bool {
	for _, s := range scores {
		if s == nil {
			return false
		}
	}
	return true
}
