package exam_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mind-engage/mindengage-assessment/internal/db"
	"github.com/mind-engage/mindengage-assessment/internal/events"
	"github.com/mind-engage/mindengage-assessment/internal/exam"
)

func openStore(t *testing.T) *exam.SQLStore {
	t.Helper()
	conn, err := db.Open(context.Background(), db.DriverSQLite, "file:"+t.Name()+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return exam.NewSQLStore(conn, string(db.DriverSQLite))
}

func strp(s string) *string { return &s }

func seedBank(t *testing.T, s *exam.SQLStore) {
	t.Helper()
	ctx := context.Background()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(s.PutCategory(ctx, "acme", exam.Category{ID: "sci", Name: "Science", AllowMultiple: true}))
	must(s.PutCategory(ctx, "acme", exam.Category{ID: "bio", Name: "Biology", ParentID: strp("sci")}))
	must(s.PutQuestion(ctx, "acme", exam.Question{
		ID: "q1", Type: exam.TypeOptions, Description: "Cells?", Enabled: true,
		CategoryIDs: []string{"sci", "bio"},
		Options: []exam.Option{
			{ID: "q1-b", Description: "no"},
			{ID: "q1-a", Description: "yes", IsCorrect: true},
		},
	}))
	must(s.PutQuestion(ctx, "acme", exam.Question{ID: "q2", Type: exam.TypeDiscursive, Description: "Why?", Enabled: true}))
	must(s.PutQuestion(ctx, "acme", exam.Question{ID: "q3", Type: exam.TypeDiscursive, Description: "Old", Enabled: false}))
	must(s.PutExam(ctx, "acme", exam.Exam{ID: "e1", Name: "Quiz", MaxScore: func() *float64 { f := 10.0; return &f }(), Rules: []exam.Rule{
		{QuestionID: strp("q1"), QuestionsCount: 1, Score: 2},
		{QuestionsCount: 1, Score: 3, CategoryIDs: []string{"bio"}},
	}}))
}

func TestBankRoundTrip(t *testing.T) {
	s := openStore(t)
	seedBank(t, s)
	ctx := context.Background()
	r := s.Repo()

	e, err := r.GetExam(ctx, "acme", "e1")
	if err != nil {
		t.Fatal(err)
	}
	if len(e.Rules) != 2 || !e.Rules[0].Fixed() || e.Rules[0].ID >= e.Rules[1].ID {
		t.Fatalf("rules: %+v", e.Rules)
	}
	if len(e.Rules[1].CategoryIDs) != 1 || e.Rules[1].CategoryIDs[0] != "bio" || e.MaxScore == nil || *e.MaxScore != 10 {
		t.Fatalf("exam: %+v", e)
	}

	pool, err := r.QuestionPool(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	if len(pool) != 3 || pool[0].ID != "q1" || len(pool[0].CategoryIDs) != 2 || pool[1].ID != "q2" {
		t.Fatalf("pool: %+v", pool)
	}
	if !pool[0].Enabled || !pool[1].Enabled || pool[2].ID != "q3" || pool[2].Enabled {
		t.Fatalf("pool enabled flags: %+v", pool)
	}

	qs, err := r.GetQuestions(ctx, "acme", []string{"q1", "q2", "missing"})
	if err != nil {
		t.Fatal(err)
	}
	q1 := qs["q1"]
	// options keep their authored order
	if len(qs) != 2 || len(q1.Options) != 2 || q1.Options[0].ID != "q1-b" || q1.CorrectOptionIDs()[0] != "q1-a" {
		t.Fatalf("questions: %+v", qs)
	}

	cats, err := r.ListCategories(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	idx := exam.NewCategoryIndex(cats)
	if got := idx.Describe([]string{"sci", "bio"}); got != "Science AND Science > Biology" {
		t.Fatalf("Describe = %q", got)
	}
	if c, _ := idx.Get("sci"); !c.AllowMultiple || len(idx.Children("sci")) != 1 {
		t.Fatalf("category sci: %+v", c)
	}
}

func TestCompanyScoping(t *testing.T) {
	s := openStore(t)
	seedBank(t, s)
	ctx := context.Background()
	if _, err := s.Repo().GetExam(ctx, "globex", "e1"); !errors.Is(err, exam.ErrNotFound) {
		t.Fatalf("cross-company exam: %v", err)
	}
	if pool, _ := s.Repo().QuestionPool(ctx, "globex"); len(pool) != 0 {
		t.Fatalf("cross-company pool: %+v", pool)
	}
	err := s.PutQuestion(ctx, "globex", exam.Question{ID: "q2", Type: exam.TypeDiscursive, Enabled: true})
	if !errors.Is(err, exam.ErrConflict) {
		t.Fatalf("overwrite foreign question: %v", err)
	}
	err = s.PutApplication(ctx, "globex", exam.Application{
		ID: "a1", ExamID: "e1", StartedAt: time.Now(), EndedAt: time.Now().Add(time.Hour), Attempts: 1,
	})
	if !errors.Is(err, exam.ErrNotFound) {
		t.Fatalf("application on foreign exam: %v", err)
	}
}

func TestValidation(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	tests := []struct {
		name string
		put  func() error
	}{
		{"options without correct option", func() error {
			return s.PutQuestion(ctx, "acme", exam.Question{ID: "x", Type: exam.TypeOptions, Options: []exam.Option{{ID: "o"}}})
		}},
		{"discursive with options", func() error {
			return s.PutQuestion(ctx, "acme", exam.Question{ID: "x", Type: exam.TypeDiscursive, Options: []exam.Option{{ID: "o", IsCorrect: true}}})
		}},
		{"unknown type", func() error {
			return s.PutQuestion(ctx, "acme", exam.Question{ID: "x", Type: "essay"})
		}},
		{"fixed rule with count", func() error {
			return s.PutExam(ctx, "acme", exam.Exam{ID: "e", Name: "E", Rules: []exam.Rule{{QuestionID: strp("q"), QuestionsCount: 2}}})
		}},
		{"fixed rule with categories", func() error {
			return s.PutExam(ctx, "acme", exam.Exam{ID: "e", Name: "E", Rules: []exam.Rule{{QuestionID: strp("q"), QuestionsCount: 1, CategoryIDs: []string{"c"}}}})
		}},
		{"dynamic rule without count", func() error {
			return s.PutExam(ctx, "acme", exam.Exam{ID: "e", Name: "E", Rules: []exam.Rule{{Score: 1}}})
		}},
		{"window ends before start", func() error {
			now := time.Now()
			return s.PutApplication(ctx, "acme", exam.Application{ID: "a", ExamID: "e", StartedAt: now, EndedAt: now.Add(-time.Minute), Attempts: 1})
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var ve *exam.ValidationError
			if err := tc.put(); !errors.As(err, &ve) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
		})
	}
}

func TestAttemptRowsAndOpenAttemptIndex(t *testing.T) {
	s := openStore(t)
	seedBank(t, s)
	ctx := context.Background()
	now := time.UnixMilli(1715342400000)
	if err := s.PutApplication(ctx, "acme", exam.Application{
		ID: "app", ExamID: "e1", StartedAt: now, EndedAt: now.Add(time.Hour), Attempts: 3,
	}); err != nil {
		t.Fatal(err)
	}

	err := s.InTx(ctx, func(r exam.Repo) error {
		if err := r.InsertAttempt(ctx, "acme", exam.Attempt{ID: "t1", ApplicationID: "app", StudentID: "s", CreatedAt: now, StartedAt: &now}); err != nil {
			return err
		}
		if err := r.InsertAttemptQuestions(ctx, []exam.AttemptQuestion{
			{ID: "aq2", AttemptID: "t1", QuestionID: "q2", Position: 1, QuestionScore: 3},
			{ID: "aq1", AttemptID: "t1", QuestionID: "q1", Position: 0, QuestionScore: 2},
		}); err != nil {
			return err
		}
		return r.AppendEvent(ctx, events.Event{CompanyID: "acme", Type: events.AttemptStarted, Key: "t1", Data: map[string]int{"questions": 2}, CreatedAt: now})
	})
	if err != nil {
		t.Fatal(err)
	}

	r := s.Repo()
	qs, err := r.AttemptQuestions(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if len(qs) != 2 || qs[0].ID != "aq1" || qs[0].StudentScore != nil {
		t.Fatalf("attempt questions: %+v", qs)
	}
	if err := r.SaveAnswer(ctx, "aq2", "because"); err != nil {
		t.Fatal(err)
	}
	if err := r.SetCorrection(ctx, "aq2", 1.5, "g1", strp("ok")); err != nil {
		t.Fatal(err)
	}
	aq, err := r.GetAttemptQuestion(ctx, "acme", "aq2")
	if err != nil {
		t.Fatal(err)
	}
	if *aq.Answer != "because" || *aq.StudentScore != 1.5 || *aq.GraderID != "g1" || *aq.Feedback != "ok" {
		t.Fatalf("graded question: %+v", aq)
	}
	if _, err := r.GetAttemptQuestion(ctx, "globex", "aq2"); !errors.Is(err, exam.ErrNotFound) {
		t.Fatalf("cross-company attempt question: %v", err)
	}

	// a second open attempt for the pair violates the partial unique index
	err = r.InsertAttempt(ctx, "acme", exam.Attempt{ID: "t2", ApplicationID: "app", StudentID: "s", CreatedAt: now.Add(time.Millisecond)})
	if !errors.Is(err, exam.ErrConflict) {
		t.Fatalf("second open attempt: %v", err)
	}

	// a failing transaction leaves nothing behind
	boom := errors.New("boom")
	err = s.InTx(ctx, func(r exam.Repo) error {
		if err := r.SetAttemptTimes(ctx, "t1", &now, &now); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx err = %v", err)
	}
	a, err := r.GetAttempt(ctx, "acme", "t1", false)
	if err != nil {
		t.Fatal(err)
	}
	if a.Submitted() || !a.CreatedAt.Equal(now) {
		t.Fatalf("rolled back attempt: %+v", a)
	}

	if err := r.SetAttemptTimes(ctx, "t1", &now, &now); err != nil {
		t.Fatal(err)
	}
	if err := r.InsertAttempt(ctx, "acme", exam.Attempt{ID: "t2", ApplicationID: "app", StudentID: "s", CreatedAt: now.Add(time.Millisecond)}); err != nil {
		t.Fatalf("open attempt after submit: %v", err)
	}
	if err := r.SetAttemptFeedback(ctx, "t1", "fine", []string{"x"}); err != nil {
		t.Fatal(err)
	}
	list, err := r.ListAttempts(ctx, "acme", "app", "s")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != "t1" || list[1].StartedAt != nil || *list[0].Feedback != "fine" || list[0].FeedbackTags[0] != "x" {
		t.Fatalf("attempts: %+v", list)
	}

	if err := r.DeleteAttempt(ctx, "t1"); err != nil {
		t.Fatal(err)
	}
	if qs, _ := r.AttemptQuestions(ctx, "t1"); len(qs) != 0 {
		t.Fatal("questions survived attempt delete")
	}

	evs, err := events.ByKey(ctx, s.DB(), "acme", "t1")
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 1 || string(evs[0].Data.(json.RawMessage)) != `{"questions":2}` {
		t.Fatalf("events: %+v", evs)
	}
}
