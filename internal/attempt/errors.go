package attempt

import (
	"errors"
	"fmt"

	"github.com/mind-engage/mindengage-assessment/internal/exam"
	"github.com/mind-engage/mindengage-assessment/internal/rules"
)

var (
	ErrNotFound = exam.ErrNotFound

	// attempt policy
	ErrNoAttemptsLeft        = errors.New("no attempts left for this application")
	ErrAttemptInProgress     = errors.New("an attempt is already in progress")
	ErrApplicationNotStarted = errors.New("application has not started yet")
	ErrApplicationEnded      = errors.New("application has ended")

	ErrTimeExpired = errors.New("attempt time limit expired")

	// state guards
	ErrAlreadySubmitted    = fmt.Errorf("attempt already submitted: %w", exam.ErrNotFound)
	ErrNotSubmitted        = errors.New("attempt not submitted")
	ErrFeedbackAlreadySent = errors.New("feedback already sent")
	ErrFeedbackNotAllowed  = errors.New("application does not accept feedback")
)

type ValidationError = exam.ValidationError

// MisconfiguredExamError means the exam's rules cannot produce an attempt.
// An administrator has to fix the exam.
type MisconfiguredExamError struct {
	ExamID string
	Rule   *rules.Error
}

func (e *MisconfiguredExamError) Error() string {
	return fmt.Sprintf("exam %s is misconfigured: %v", e.ExamID, e.Rule)
}

func (e *MisconfiguredExamError) Unwrap() error { return e.Rule }
