package attempt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-assessment/internal/events"
	"github.com/mind-engage/mindengage-assessment/internal/exam"
	"github.com/mind-engage/mindengage-assessment/internal/lock"
	"github.com/mind-engage/mindengage-assessment/internal/rules"
	"github.com/mind-engage/mindengage-assessment/internal/tenancy"
)

type startInput struct {
	ApplicationID string `validate:"required"`
	StudentID     string `validate:"required"`
}

// StartOrResume returns the attempt the student should work on, generating
// its questions. A reset attempt that was never started is reused; otherwise
// a new attempt is created while the application allows one more.
func (e *Engine) StartOrResume(ctx context.Context, applicationID, studentID string) (string, error) {
	sc, err := tenancy.FromContext(ctx)
	if err != nil {
		return "", err
	}
	in := startInput{strings.TrimSpace(applicationID), strings.TrimSpace(studentID)}
	if err := exam.Validate(in); err != nil {
		return "", err
	}
	if err := actsFor(sc, in.StudentID); err != nil {
		return "", err
	}

	lctx := ctx
	if e.lockWait > 0 {
		var cancel context.CancelFunc
		lctx, cancel = context.WithTimeout(ctx, e.lockWait)
		defer cancel()
	}
	release, err := e.locker.Acquire(lctx, lock.PairKey(sc.CompanyID, in.ApplicationID, in.StudentID))
	if err != nil {
		return "", fmt.Errorf("start attempt: %w", err)
	}
	defer release()

	var attemptID string
	err = e.store.InTx(ctx, func(r exam.Repo) error {
		if err := r.LockPair(ctx, sc.CompanyID, in.ApplicationID, in.StudentID); err != nil {
			return err
		}
		app, err := r.GetApplication(ctx, sc.CompanyID, in.ApplicationID)
		if err != nil {
			return err
		}
		now := e.now()
		if now.Before(app.StartedAt) {
			return ErrApplicationNotStarted
		}
		if !now.Before(app.EndedAt) {
			return ErrApplicationEnded
		}

		prior, err := r.ListAttempts(ctx, sc.CompanyID, in.ApplicationID, in.StudentID)
		if err != nil {
			return err
		}
		var reuse *exam.Attempt
		for i := range prior {
			if prior[i].StartedAt == nil && !prior[i].Submitted() {
				reuse = &prior[i]
				break
			}
		}
		if reuse == nil {
			if len(prior) >= app.Attempts {
				return ErrNoAttemptsLeft
			}
			if n := len(prior); n > 0 && !prior[n-1].Submitted() {
				return ErrAttemptInProgress
			}
		}

		ex, err := r.GetExam(ctx, sc.CompanyID, app.ExamID)
		if err != nil {
			return err
		}
		assigned, err := e.resolve(ctx, r, sc.CompanyID, ex)
		if err != nil {
			return err
		}
		ordered := rules.Order(assigned, e.rng())

		var a exam.Attempt
		if reuse != nil {
			a = *reuse
			if err := r.DeleteAttemptQuestions(ctx, a.ID); err != nil {
				return err
			}
			if err := r.SetAttemptTimes(ctx, a.ID, &now, nil); err != nil {
				return err
			}
		} else {
			a = exam.Attempt{
				ID:            uuid.NewString(),
				ApplicationID: in.ApplicationID,
				StudentID:     in.StudentID,
				CreatedAt:     creationTime(now, prior),
				StartedAt:     &now,
			}
			if err := r.InsertAttempt(ctx, sc.CompanyID, a); err != nil {
				if errors.Is(err, exam.ErrConflict) {
					return ErrAttemptInProgress
				}
				return err
			}
		}

		qs := make([]exam.AttemptQuestion, len(ordered))
		for i, as := range ordered {
			qs[i] = exam.AttemptQuestion{
				ID:            uuid.NewString(),
				AttemptID:     a.ID,
				QuestionID:    as.QuestionID,
				Position:      i,
				QuestionScore: as.Score,
			}
		}
		if err := r.InsertAttemptQuestions(ctx, qs); err != nil {
			return err
		}
		attemptID = a.ID
		return e.record(ctx, r, sc.CompanyID, events.AttemptStarted, a.ID, map[string]any{
			"application_id": in.ApplicationID,
			"student_id":     in.StudentID,
			"questions":      len(qs),
			"reused":         reuse != nil,
		})
	})
	if err != nil {
		return "", err
	}
	return attemptID, nil
}

// creationTime keeps created_at strictly increasing per pair so that
// ordering and option seeds differ between attempts.
func creationTime(now time.Time, prior []exam.Attempt) time.Time {
	now = now.Truncate(time.Millisecond)
	if n := len(prior); n > 0 && !now.After(prior[n-1].CreatedAt) {
		return prior[n-1].CreatedAt.Add(time.Millisecond)
	}
	return now
}
