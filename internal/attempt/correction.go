package attempt

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/mind-engage/mindengage-assessment/internal/events"
	"github.com/mind-engage/mindengage-assessment/internal/exam"
	"github.com/mind-engage/mindengage-assessment/internal/grading"
	"github.com/mind-engage/mindengage-assessment/internal/tenancy"
)

type gradeInput struct {
	AttemptQuestionID string  `validate:"required"`
	GraderID          string  `validate:"required"`
	Feedback          *string `validate:"omitempty,max=10000"`
}

// GradeQuestion records a grader's score for one question of a submitted
// attempt. The score is clamped to the question's worth; the grader is the
// scope's subject.
func (e *Engine) GradeQuestion(ctx context.Context, attemptQuestionID string, score float64, feedback *string) error {
	sc, err := tenancy.FromContext(ctx)
	if err != nil {
		return err
	}
	in := gradeInput{strings.TrimSpace(attemptQuestionID), sc.SubjectID, feedback}
	if err := exam.Validate(in); err != nil {
		return err
	}
	if math.IsNaN(score) {
		return &ValidationError{Err: errors.New("score is not a number")}
	}

	return e.store.InTx(ctx, func(r exam.Repo) error {
		aq, err := r.GetAttemptQuestion(ctx, sc.CompanyID, in.AttemptQuestionID)
		if err != nil {
			return err
		}
		a, err := r.GetAttempt(ctx, sc.CompanyID, aq.AttemptID, true)
		if err != nil {
			return err
		}
		if !a.Submitted() {
			return ErrNotSubmitted
		}
		s := grading.Clamp(score, aq.QuestionScore)
		if err := r.SetCorrection(ctx, aq.ID, s, in.GraderID, feedback); err != nil {
			return err
		}
		return e.record(ctx, r, sc.CompanyID, events.QuestionGraded, a.ID, map[string]any{
			"attempt_question_id": aq.ID,
			"score":               s,
			"grader_id":           in.GraderID,
			"status":              grading.CorrectionStatus(&s, aq.QuestionScore),
		})
	})
}

// DeleteCorrection discards an attempt. With resetApplication the attempt
// row survives without questions or timestamps, and the next start reuses
// it without spending another attempt.
func (e *Engine) DeleteCorrection(ctx context.Context, attemptID string, resetApplication bool) error {
	sc, err := tenancy.FromContext(ctx)
	if err != nil {
		return err
	}
	attemptID = strings.TrimSpace(attemptID)
	if err := exam.Validate(struct {
		AttemptID string `validate:"required"`
	}{attemptID}); err != nil {
		return err
	}

	return e.store.InTx(ctx, func(r exam.Repo) error {
		a, err := r.GetAttempt(ctx, sc.CompanyID, attemptID, true)
		if err != nil {
			return err
		}
		if resetApplication {
			if err := r.DeleteAttemptQuestions(ctx, a.ID); err != nil {
				return err
			}
			if err := r.SetAttemptTimes(ctx, a.ID, nil, nil); err != nil {
				// another open attempt exists for the pair
				if errors.Is(err, exam.ErrConflict) {
					return ErrAttemptInProgress
				}
				return err
			}
		} else if err := r.DeleteAttempt(ctx, a.ID); err != nil {
			return err
		}
		return e.record(ctx, r, sc.CompanyID, events.CorrectionDeleted, a.ID, map[string]any{
			"reset":      resetApplication,
			"student_id": a.StudentID,
		})
	})
}

type feedbackInput struct {
	AttemptID string   `validate:"required"`
	Text      string   `validate:"required,max=5000"`
	Tags      []string `validate:"max=20,dive,required,max=64"`
}

// SendFeedback stores the student's one-time feedback on a submitted
// attempt.
func (e *Engine) SendFeedback(ctx context.Context, attemptID, text string, tags []string) error {
	sc, err := tenancy.FromContext(ctx)
	if err != nil {
		return err
	}
	in := feedbackInput{strings.TrimSpace(attemptID), strings.TrimSpace(text), tags}
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
		app, err := r.GetApplication(ctx, sc.CompanyID, a.ApplicationID)
		if err != nil {
			return err
		}
		switch {
		case !app.AllowFeedback:
			return ErrFeedbackNotAllowed
		case !a.Submitted():
			return ErrNotSubmitted
		case a.Feedback != nil:
			return ErrFeedbackAlreadySent
		}
		if err := r.SetAttemptFeedback(ctx, a.ID, in.Text, in.Tags); err != nil {
			return err
		}
		return e.record(ctx, r, sc.CompanyID, events.FeedbackSent, a.ID, map[string]any{"tags": in.Tags})
	})
}
