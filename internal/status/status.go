// Package status derives the state of an attempt from its timestamps and
// grading progress. Nothing here is persisted.
package status

import (
	"time"

	"github.com/mind-engage/mindengage-assessment/internal/exam"
	"github.com/mind-engage/mindengage-assessment/internal/grading"
)

type Status int

const (
	Waiting Status = iota
	Started
	Ended
	Initialized
	Expired
	Submitted
	AwaitingCorrection
)

var names = [...]string{
	Waiting:            "waiting",
	Started:            "started",
	Ended:              "ended",
	Initialized:        "initialized",
	Expired:            "expired",
	Submitted:          "submitted",
	AwaitingCorrection: "awaiting_correction",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(names) {
		return "unknown"
	}
	return names[s]
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Item is one question of an attempt as seen by the classifier.
type Item struct {
	Type          exam.QuestionType
	QuestionScore float64
	StudentScore  *float64
}

// Classify evaluates the states in precedence order; the first match wins.
// A nil attempt is one that was never started or submitted.
func Classify(app exam.Application, a *exam.Attempt, items []Item, now time.Time) Status {
	var startedAt, submittedAt *time.Time
	if a != nil {
		startedAt, submittedAt = a.StartedAt, a.SubmittedAt
	}
	switch {
	case submittedAt != nil && pendingDiscursive(items):
		return AwaitingCorrection
	case submittedAt != nil:
		return Submitted
	case startedAt != nil && expired(app, *startedAt, now):
		return Expired
	case startedAt != nil:
		return Initialized
	case !app.EndedAt.After(now):
		return Ended
	case !app.StartedAt.After(now):
		return Started
	default:
		return Waiting
	}
}

func expired(app exam.Application, startedAt, now time.Time) bool {
	deadline, ok := app.Deadline(startedAt)
	return ok && now.After(deadline)
}

func pendingDiscursive(items []Item) bool {
	for _, it := range items {
		if it.Type == exam.TypeDiscursive && it.StudentScore == nil {
			return true
		}
	}
	return false
}

// Attempt is an attempt with its questions and derived state.
type Attempt struct {
	exam.Attempt
	Items  []Item
	Status Status
	Score  *float64 // nil until submitted
}

// Evaluate fills in Status and Score for every attempt.
func Evaluate(app exam.Application, attempts []Attempt, now time.Time) {
	for i := range attempts {
		a := &attempts[i]
		a.Status = Classify(app, &a.Attempt, a.Items, now)
		a.Score = grading.Aggregate(a.SubmittedAt, scores(a.Items))
	}
}

// Select evaluates attempts, ordered oldest first, and picks the one to show
// as current. It returns nil when there are none.
func Select(app exam.Application, attempts []Attempt, now time.Time) *Attempt {
	if len(attempts) == 0 {
		return nil
	}
	Evaluate(app, attempts, now)
	for i := len(attempts) - 1; i >= 0; i-- {
		if attempts[i].Status == AwaitingCorrection {
			return &attempts[i]
		}
	}
	for i := len(attempts) - 1; i >= 0; i-- {
		if a := attempts[i]; !a.Submitted() && a.Status != Expired {
			return &attempts[i]
		}
	}
	var best *Attempt
	for i := len(attempts) - 1; i >= 0; i-- {
		a := &attempts[i]
		if !a.Submitted() || a.Score == nil || !grading.Graded(scores(a.Items)) {
			continue
		}
		if best == nil || *a.Score > *best.Score {
			best = a
		}
	}
	if best != nil {
		return best
	}
	return &attempts[len(attempts)-1]
}

func scores(items []Item) []*float64 {
	out := make([]*float64, len(items))
	for i, it := range items {
		out[i] = it.StudentScore
	}
	return out
}
