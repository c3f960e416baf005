package grading

import (
	"context"
	"errors"
	"sort"
	"strings"
)

// Q is the slice of an attempt question needed for grading.
type Q struct {
	Type      string // "options" | "discursive"
	Points    float64
	AnswerKey []string // correct option ids
}

// Result is the outcome of grading a single question response.
type Result struct {
	AutoPoints  float64 // points awarded automatically
	MaxPoints   float64
	NeedsManual bool // left for a grader; AutoPoints is meaningless
	Feedback    []string
}

// Strategy grades a single question.
type Strategy interface {
	Grade(ctx context.Context, q Q, response string) (Result, error)
}

// Grader routes by question type to the correct Strategy.
type Grader interface {
	Grade(ctx context.Context, q Q, response string) (Result, error)
}

type defaultGrader struct {
	strategies map[string]Strategy
}

func (g *defaultGrader) Grade(ctx context.Context, q Q, response string) (Result, error) {
	s, ok := g.strategies[q.Type]
	if !ok {
		return Result{MaxPoints: q.Points, NeedsManual: true, Feedback: []string{"no strategy available"}}, nil
	}
	return s.Grade(ctx, q, response)
}

// NewDefaultGrader installs the built-in strategies: all-or-nothing set
// comparison for "options", manual grading for "discursive".
func NewDefaultGrader() Grader {
	return &defaultGrader{
		strategies: map[string]Strategy{
			"options":    objectiveStrategy{},
			"discursive": manualStrategy{},
		},
	}
}

// --- Strategies ---

type objectiveStrategy struct{}

func (objectiveStrategy) Grade(_ context.Context, q Q, response string) (Result, error) {
	res := Result{MaxPoints: q.Points}
	if len(q.AnswerKey) == 0 {
		return res, errors.New("options question has no correct option")
	}
	if Objective(ParseSelection(response), q.AnswerKey) {
		res.AutoPoints = q.Points
	}
	return res, nil
}

type manualStrategy struct{}

func (manualStrategy) Grade(_ context.Context, q Q, _ string) (Result, error) {
	return Result{MaxPoints: q.Points, NeedsManual: true, Feedback: []string{"manual grading required"}}, nil
}

// ParseSelection splits a stored "id,id,..." answer into the selected ids.
// Blank entries are dropped and duplicates collapse.
func ParseSelection(answer string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, p := range strings.Split(answer, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// JoinSelection is the stored form of a selection: ids deduplicated and
// sorted, so equal selections store equal strings.
func JoinSelection(ids []string) string {
	sel := ParseSelection(strings.Join(ids, ","))
	sort.Strings(sel)
	return strings.Join(sel, ",")
}

// Objective reports whether selected and correct are the same set. There
// is no partial credit.
func Objective(selected, correct []string) bool {
	return setEqual(toSet(selected), toSet(correct))
}

// helpers

func toSet(arr []string) map[string]struct{} {
	m := make(map[string]struct{}, len(arr))
	for _, s := range arr {
		m[s] = struct{}{}
	}
	return m
}

func setEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
