package grading_test

import (
	"context"
	"testing"
	"time"

	"github.com/mind-engage/mindengage-assessment/internal/grading"
)

func fp(f float64) *float64 { return &f }

func TestObjectiveAllOrNothing(t *testing.T) {
	g := grading.NewDefaultGrader()
	q := grading.Q{Type: "options", Points: 5, AnswerKey: []string{"2", "3"}}
	tests := []struct {
		name     string
		response string
		want     float64
	}{
		{"order independent", "3,2", 5},
		{"partial selection", "2", 0},
		{"extra selection", "2,3,4", 0},
		{"spaces and duplicates", " 3, 2 ,3,", 5},
		{"empty", "", 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := g.Grade(context.Background(), q, tc.response)
			if err != nil {
				t.Fatal(err)
			}
			if res.AutoPoints != tc.want || res.NeedsManual {
				t.Fatalf("got %+v, want %.0f points", res, tc.want)
			}
		})
	}
}

func TestDiscursiveNeedsManual(t *testing.T) {
	res, err := grading.NewDefaultGrader().Grade(context.Background(), grading.Q{Type: "discursive", Points: 3}, "an essay")
	if err != nil {
		t.Fatal(err)
	}
	if !res.NeedsManual || res.MaxPoints != 3 {
		t.Fatalf("got %+v", res)
	}
}

func TestOptionsWithoutKeyFails(t *testing.T) {
	if _, err := grading.NewDefaultGrader().Grade(context.Background(), grading.Q{Type: "options", Points: 1}, "a"); err == nil {
		t.Fatal("expected error")
	}
}

func TestJoinSelection(t *testing.T) {
	if got := grading.JoinSelection([]string{"b", " a", "b", ""}); got != "a,b" {
		t.Fatalf("JoinSelection = %q", got)
	}
}

func TestClamp(t *testing.T) {
	cases := map[float64]float64{-1: 0, 0: 0, 2.5: 2.5, 4: 4, 9: 4}
	for in, want := range cases {
		if got := grading.Clamp(in, 4); got != want {
			t.Errorf("Clamp(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestCorrectionStatus(t *testing.T) {
	tests := []struct {
		score *float64
		want  grading.Status
	}{
		{nil, grading.StatusPending},
		{fp(4), grading.StatusCorrect},
		{fp(1.5), grading.StatusPartial},
		{fp(0), grading.StatusIncorrect},
	}
	for _, tc := range tests {
		if got := grading.CorrectionStatus(tc.score, 4); got != tc.want {
			t.Errorf("CorrectionStatus(%v) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestAggregate(t *testing.T) {
	scores := []*float64{fp(2), nil, fp(3.5)}
	if got := grading.Aggregate(nil, scores); got != nil {
		t.Fatalf("before submission: %v", *got)
	}
	now := time.Now()
	got := grading.Aggregate(&now, scores)
	if got == nil || *got != 5.5 {
		t.Fatalf("Aggregate = %v", got)
	}
	if grading.Graded(scores) {
		t.Fatal("Graded with a nil score")
	}
	if !grading.Graded(scores[:1]) {
		t.Fatal("Graded = false for scored questions")
	}
}
