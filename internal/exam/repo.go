package exam

import (
	"context"
	"errors"
	"time"

	"github.com/mind-engage/mindengage-assessment/internal/events"
)

var (
	// ErrNotFound covers both missing rows and rows outside the caller's company.
	ErrNotFound = errors.New("not found")
	// ErrConflict reports a unique-constraint violation.
	ErrConflict = errors.New("conflict")
)

// Repo is the persistence surface of the engine. A Repo obtained from
// SQLStore.InTx runs every call in the same transaction.
type Repo interface {
	GetExam(ctx context.Context, companyID, examID string) (Exam, error)
	ListCategories(ctx context.Context, companyID string) ([]Category, error)
	// QuestionPool lists every question of the company, enabled or not.
	QuestionPool(ctx context.Context, companyID string) ([]PoolQuestion, error)
	GetQuestions(ctx context.Context, companyID string, ids []string) (map[string]Question, error)
	GetApplication(ctx context.Context, companyID, applicationID string) (Application, error)

	// LockPair serializes attempt creation for one student on one application
	// for the rest of the transaction.
	LockPair(ctx context.Context, companyID, applicationID, studentID string) error
	GetAttempt(ctx context.Context, companyID, attemptID string, forUpdate bool) (Attempt, error)
	// ListAttempts returns the pair's attempts oldest first.
	ListAttempts(ctx context.Context, companyID, applicationID, studentID string) ([]Attempt, error)
	InsertAttempt(ctx context.Context, companyID string, a Attempt) error
	SetAttemptTimes(ctx context.Context, attemptID string, startedAt, submittedAt *time.Time) error
	SetAttemptFeedback(ctx context.Context, attemptID, text string, tags []string) error
	DeleteAttempt(ctx context.Context, attemptID string) error

	// AttemptQuestions returns the attempt's questions in display order.
	AttemptQuestions(ctx context.Context, attemptID string) ([]AttemptQuestion, error)
	GetAttemptQuestion(ctx context.Context, companyID, id string) (AttemptQuestion, error)
	InsertAttemptQuestions(ctx context.Context, qs []AttemptQuestion) error
	DeleteAttemptQuestions(ctx context.Context, attemptID string) error
	SaveAnswer(ctx context.Context, id string, answer string) error
	SetStudentScore(ctx context.Context, id string, score *float64) error
	SetCorrection(ctx context.Context, id string, score float64, graderID string, feedback *string) error

	AppendEvent(ctx context.Context, e events.Event) error
}
