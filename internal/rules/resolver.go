// Package rules turns an exam's rules into the concrete questions of one
// attempt.
package rules

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"github.com/mind-engage/mindengage-assessment/internal/exam"
	"github.com/mind-engage/mindengage-assessment/internal/shuffle"
)

var (
	ErrDuplicateFixedQuestion   = errors.New("fixed question already selected by an earlier rule")
	ErrFixedQuestionUnavailable = errors.New("fixed question does not exist")
	ErrInsufficientCandidates   = errors.New("not enough questions match the rule")
)

// Kind classifies a rule failure for operators.
type Kind string

const (
	KindFixed   Kind = "E1" // fixed rule cannot be honored
	KindDynamic Kind = "E2" // dynamic rule has too few candidates
)

// Error reports the rule that could not be resolved.
type Error struct {
	RuleID     int64
	Kind       Kind
	Err        error
	QuestionID string // fixed rules
	Categories string // dynamic rules, "Parent > Child AND ..."
	Type       string // dynamic rules, empty when any type
	Requested  int
	Available  int
}

func (e *Error) Error() string {
	if e.Kind == KindFixed {
		return fmt.Sprintf("rule %d (%s): question %s: %v", e.RuleID, e.Kind, e.QuestionID, e.Err)
	}
	scope := e.Categories
	if scope == "" {
		scope = "any category"
	}
	if e.Type != "" {
		scope += ", type " + e.Type
	}
	return fmt.Sprintf("rule %d (%s): %v: %s: requested %d, available %d",
		e.RuleID, e.Kind, e.Err, scope, e.Requested, e.Available)
}

func (e *Error) Unwrap() error { return e.Err }

// Assignment is one selected question and the points it is worth.
type Assignment struct {
	QuestionID string  `json:"question_id"`
	Score      float64 `json:"score"`
	RuleID     int64   `json:"rule_id"`
}

type Resolver struct {
	// Categories names categories in error messages. May be nil.
	Categories *exam.CategoryIndex
}

// Resolve processes rules in ascending id order against pool, which holds
// every question of the company. Fixed rules take their question whether or
// not it is enabled; dynamic rules draw enabled questions from rng. The result
// is in rule order, see Order for the display order.
func (r Resolver) Resolve(rules []exam.Rule, pool []exam.PoolQuestion, rng *rand.Rand) ([]Assignment, error) {
	ordered := append([]exam.Rule(nil), rules...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	known := make(map[string]bool, len(pool))
	for _, q := range pool {
		known[q.ID] = true
	}

	selected := map[string]bool{}
	var out []Assignment
	for _, rl := range ordered {
		if rl.Fixed() {
			qid := *rl.QuestionID
			if selected[qid] {
				return nil, &Error{RuleID: rl.ID, Kind: KindFixed, Err: ErrDuplicateFixedQuestion, QuestionID: qid}
			}
			if !known[qid] {
				return nil, &Error{RuleID: rl.ID, Kind: KindFixed, Err: ErrFixedQuestionUnavailable, QuestionID: qid}
			}
			selected[qid] = true
			out = append(out, Assignment{QuestionID: qid, Score: rl.Score, RuleID: rl.ID})
			continue
		}

		candidates := make([]string, 0, len(pool))
		for _, q := range pool {
			if q.Enabled && !selected[q.ID] && matches(rl, q) {
				candidates = append(candidates, q.ID)
			}
		}
		if len(candidates) < rl.QuestionsCount {
			e := &Error{
				RuleID:     rl.ID,
				Kind:       KindDynamic,
				Err:        ErrInsufficientCandidates,
				Categories: r.Categories.Describe(rl.CategoryIDs),
				Requested:  rl.QuestionsCount,
				Available:  len(candidates),
			}
			if rl.QuestionType != nil {
				e.Type = string(*rl.QuestionType)
			}
			return nil, e
		}
		sort.Strings(candidates)
		shuffle.Slice(rng, candidates)
		for _, qid := range candidates[:rl.QuestionsCount] {
			selected[qid] = true
			out = append(out, Assignment{QuestionID: qid, Score: rl.Score, RuleID: rl.ID})
		}
	}
	return out, nil
}

// Order returns the assignments in display order.
func Order(as []Assignment, rng *rand.Rand) []Assignment {
	out := append([]Assignment(nil), as...)
	shuffle.Slice(rng, out)
	return out
}

// matches reports whether q satisfies the rule's type filter and belongs to
// every one of its categories.
func matches(rl exam.Rule, q exam.PoolQuestion) bool {
	if rl.QuestionType != nil && q.Type != *rl.QuestionType {
		return false
	}
	if len(rl.CategoryIDs) == 0 {
		return true
	}
	has := make(map[string]bool, len(q.CategoryIDs))
	for _, c := range q.CategoryIDs {
		has[c] = true
	}
	for _, c := range rl.CategoryIDs {
		if !has[c] {
			return false
		}
	}
	return true
}
