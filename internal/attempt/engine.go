// Package attempt runs the attempt lifecycle: generation, answering,
// submission and correction.
package attempt

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/mind-engage/mindengage-assessment/internal/events"
	"github.com/mind-engage/mindengage-assessment/internal/exam"
	"github.com/mind-engage/mindengage-assessment/internal/grading"
	"github.com/mind-engage/mindengage-assessment/internal/lock"
	"github.com/mind-engage/mindengage-assessment/internal/rules"
	"github.com/mind-engage/mindengage-assessment/internal/tenancy"
)

// Store is the transactional persistence the engine runs on.
type Store interface {
	Repo() exam.Repo
	InTx(ctx context.Context, fn func(exam.Repo) error) error
}

type Engine struct {
	store    Store
	locker   lock.Locker
	grader   grading.Grader
	now      func() time.Time
	rng      func() *rand.Rand
	lockWait time.Duration
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithRand sets the source of question selection and ordering. Each call
// of the factory must return an independent generator.
func WithRand(f func() *rand.Rand) Option { return func(e *Engine) { e.rng = f } }
func WithLocker(l lock.Locker) Option     { return func(e *Engine) { e.locker = l } }
func WithGrader(g grading.Grader) Option  { return func(e *Engine) { e.grader = g } }
func WithLockWait(d time.Duration) Option { return func(e *Engine) { e.lockWait = d } }

func New(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		locker:   lock.NewLocal(),
		grader:   grading.NewDefaultGrader(),
		now:      time.Now,
		rng:      func() *rand.Rand { return rand.New(rand.NewSource(time.Now().UnixNano())) },
		lockWait: 5 * time.Second,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// ResolveRules previews the questions the exam's rules would produce, in
// rule order.
func (e *Engine) ResolveRules(ctx context.Context, examID string) ([]rules.Assignment, error) {
	sc, err := tenancy.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	examID = strings.TrimSpace(examID)
	if err := exam.Validate(struct {
		ExamID string `validate:"required"`
	}{examID}); err != nil {
		return nil, err
	}
	r := e.store.Repo()
	ex, err := r.GetExam(ctx, sc.CompanyID, examID)
	if err != nil {
		return nil, err
	}
	return e.resolve(ctx, r, sc.CompanyID, ex)
}

func (e *Engine) resolve(ctx context.Context, r exam.Repo, companyID string, ex exam.Exam) ([]rules.Assignment, error) {
	pool, err := r.QuestionPool(ctx, companyID)
	if err != nil {
		return nil, err
	}
	cats, err := r.ListCategories(ctx, companyID)
	if err != nil {
		return nil, err
	}
	res := rules.Resolver{Categories: exam.NewCategoryIndex(cats)}
	out, err := res.Resolve(ex.Rules, pool, e.rng())
	if err != nil {
		var re *rules.Error
		if errors.As(err, &re) {
			log.Printf("[attempt] exam %s (company %s): %v", ex.ID, companyID, re)
			return nil, &MisconfiguredExamError{ExamID: ex.ID, Rule: re}
		}
		return nil, err
	}
	return out, nil
}

func (e *Engine) record(ctx context.Context, r exam.Repo, companyID, typ, key string, data any) error {
	return r.AppendEvent(ctx, events.Event{CompanyID: companyID, Type: typ, Key: key, Data: data, CreatedAt: e.now()})
}

// actsFor hides other students' data when the scope names a student.
func actsFor(sc tenancy.Scope, studentID string) error {
	if sc.SubjectID != "" && sc.SubjectID != studentID {
		return ErrNotFound
	}
	return nil
}

func ownedBy(sc tenancy.Scope, a exam.Attempt) error { return actsFor(sc, a.StudentID) }
