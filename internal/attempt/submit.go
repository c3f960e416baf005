package attempt

import (
	"context"
	"fmt"
	"strings"

	"github.com/mind-engage/mindengage-assessment/internal/events"
	"github.com/mind-engage/mindengage-assessment/internal/exam"
	"github.com/mind-engage/mindengage-assessment/internal/grading"
	"github.com/mind-engage/mindengage-assessment/internal/tenancy"
)

// Answer targets one question of an attempt by its attempt question id.
// Options questions may pass the selected ids in Selected instead of a
// comma-joined Value.
type Answer struct {
	ID       string   `json:"id" validate:"required"`
	Value    string   `json:"value"`
	Selected []string `json:"selected,omitempty" validate:"dive,required"`
}

func (a Answer) text() string {
	if len(a.Selected) > 0 {
		return strings.Join(a.Selected, ",")
	}
	return a.Value
}

type submitInput struct {
	AttemptID string   `validate:"required"`
	Answers   []Answer `validate:"dive"`
}

// SubmitAnswers stores answers. With isSubmitting it also grades every
// options question and finalizes the attempt in the same transaction.
func (e *Engine) SubmitAnswers(ctx context.Context, attemptID string, answers []Answer, isSubmitting bool) error {
	sc, err := tenancy.FromContext(ctx)
	if err != nil {
		return err
	}
	in := submitInput{AttemptID: strings.TrimSpace(attemptID), Answers: answers}
	if err := exam.Validate(in); err != nil {
		return err
	}

	return e.store.InTx(ctx, func(r exam.Repo) error {
		a, err := r.GetAttempt(ctx, sc.CompanyID, in.AttemptID, true)
		if err != nil {
			return err
		}
		if err := ownedBy(sc, a); err != nil {
			return err
		}
		if a.Submitted() {
			return ErrAlreadySubmitted
		}
		if a.StartedAt == nil {
			return fmt.Errorf("attempt %s not started: %w", a.ID, ErrNotFound)
		}
		app, err := r.GetApplication(ctx, sc.CompanyID, a.ApplicationID)
		if err != nil {
			return err
		}
		now := e.now()
		if deadline, ok := app.Deadline(*a.StartedAt); ok && now.After(deadline) {
			return ErrTimeExpired
		}

		qs, err := r.AttemptQuestions(ctx, a.ID)
		if err != nil {
			return err
		}
		index := make(map[string]int, len(qs))
		ids := make([]string, len(qs))
		for i, q := range qs {
			index[q.ID] = i
			ids[i] = q.QuestionID
		}
		bank, err := r.GetQuestions(ctx, sc.CompanyID, ids)
		if err != nil {
			return err
		}

		for _, ans := range in.Answers {
			i, ok := index[strings.TrimSpace(ans.ID)]
			if !ok {
				return fmt.Errorf("question %s is not part of attempt %s: %w", ans.ID, a.ID, ErrNotFound)
			}
			q := bank[qs[i].QuestionID]
			value := ans.text()
			switch q.Type {
			case exam.TypeOptions:
				value = grading.JoinSelection(grading.ParseSelection(value))
			case exam.TypeDiscursive:
				if q.MaxLength != nil {
					value = truncate(value, *q.MaxLength)
				}
			}
			if err := r.SaveAnswer(ctx, qs[i].ID, value); err != nil {
				return err
			}
			qs[i].Answer = &value
		}

		if !isSubmitting {
			return e.record(ctx, r, sc.CompanyID, events.AnswersSaved, a.ID, map[string]any{"answers": len(in.Answers)})
		}

		var auto float64
		pending := 0
		for _, aq := range qs {
			q := bank[aq.QuestionID]
			answer := ""
			if aq.Answer != nil {
				answer = *aq.Answer
			}
			res, err := e.grader.Grade(ctx, grading.Q{
				Type:      string(q.Type),
				Points:    aq.QuestionScore,
				AnswerKey: q.CorrectOptionIDs(),
			}, answer)
			if err != nil {
				return fmt.Errorf("grade question %s: %w", aq.QuestionID, err)
			}
			if res.NeedsManual {
				pending++
				continue
			}
			score := res.AutoPoints
			if err := r.SetStudentScore(ctx, aq.ID, &score); err != nil {
				return err
			}
			auto += score
		}
		if err := r.SetAttemptTimes(ctx, a.ID, a.StartedAt, &now); err != nil {
			return err
		}
		return e.record(ctx, r, sc.CompanyID, events.AttemptSubmitted, a.ID, map[string]any{
			"auto_score": auto,
			"pending":    pending,
		})
	})
}

// truncate cuts s to at most n characters.
func truncate(s string, n int) string {
	if n < 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
