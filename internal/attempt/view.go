package attempt

import (
	"context"
	"strings"
	"time"

	"github.com/mind-engage/mindengage-assessment/internal/exam"
	"github.com/mind-engage/mindengage-assessment/internal/grading"
	"github.com/mind-engage/mindengage-assessment/internal/shuffle"
	"github.com/mind-engage/mindengage-assessment/internal/status"
	"github.com/mind-engage/mindengage-assessment/internal/tenancy"
)

// View is what a student sees for one application.
type View struct {
	Status      status.Status    `json:"status"`
	Exam        ExamSummary      `json:"exam"`
	Application exam.Application `json:"application"`
	Attempts    []AttemptDetail  `json:"attempts"`
	// Current is the selected attempt with its questions, nil before the
	// first attempt.
	Current *AttemptDetail `json:"current,omitempty"`
}

type ExamSummary struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	MinScore *float64 `json:"min_score,omitempty"`
	MaxScore *float64 `json:"max_score,omitempty"`
}

type AttemptDetail struct {
	ID           string         `json:"id"`
	Status       status.Status  `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	SubmittedAt  *time.Time     `json:"submitted_at,omitempty"`
	Deadline     *time.Time     `json:"deadline,omitempty"`
	Score        *float64       `json:"score,omitempty"`
	Feedback     *string        `json:"feedback,omitempty"`
	FeedbackTags []string       `json:"feedback_tags,omitempty"`
	Questions    []QuestionView `json:"questions,omitempty"`
}

type QuestionView struct {
	ID            string            `json:"id"` // attempt question id, used when answering
	QuestionID    string            `json:"question_id"`
	Position      int               `json:"position"`
	Type          exam.QuestionType `json:"type"`
	Description   string            `json:"description"`
	MaxLength     *int              `json:"max_length,omitempty"`
	Answer        *string           `json:"answer,omitempty"`
	QuestionScore float64           `json:"question_score"`
	StudentScore  *float64          `json:"student_score,omitempty"`
	Correction    grading.Status    `json:"correction,omitempty"`
	Feedback      *string           `json:"feedback,omitempty"`
	Options       []OptionView      `json:"options,omitempty"`
}

type OptionView struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	IsCorrect   *bool  `json:"is_correct,omitempty"`
}

// AttemptView assembles the student's attempts for an application and picks
// the current one. Scores are shown only when the application shows scores;
// correct options only after submission when it shows answers.
func (e *Engine) AttemptView(ctx context.Context, applicationID, studentID string) (*View, error) {
	sc, err := tenancy.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	in := startInput{strings.TrimSpace(applicationID), strings.TrimSpace(studentID)}
	if err := exam.Validate(in); err != nil {
		return nil, err
	}
	if err := actsFor(sc, in.StudentID); err != nil {
		return nil, err
	}
	r := e.store.Repo()
	app, err := r.GetApplication(ctx, sc.CompanyID, in.ApplicationID)
	if err != nil {
		return nil, err
	}
	ex, err := r.GetExam(ctx, sc.CompanyID, app.ExamID)
	if err != nil {
		return nil, err
	}
	attempts, err := r.ListAttempts(ctx, sc.CompanyID, in.ApplicationID, in.StudentID)
	if err != nil {
		return nil, err
	}

	perAttempt := make([][]exam.AttemptQuestion, len(attempts))
	var ids []string
	for i, a := range attempts {
		qs, err := r.AttemptQuestions(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		perAttempt[i] = qs
		for _, q := range qs {
			ids = append(ids, q.QuestionID)
		}
	}
	bank, err := r.GetQuestions(ctx, sc.CompanyID, dedupe(ids))
	if err != nil {
		return nil, err
	}

	now := e.now()
	states := make([]status.Attempt, len(attempts))
	for i, a := range attempts {
		states[i] = status.Attempt{Attempt: a}
		for _, q := range perAttempt[i] {
			states[i].Items = append(states[i].Items, status.Item{
				Type:          bank[q.QuestionID].Type,
				QuestionScore: q.QuestionScore,
				StudentScore:  q.StudentScore,
			})
		}
	}
	current := status.Select(app, states, now)

	v := &View{
		Exam:        ExamSummary{ID: ex.ID, Name: ex.Name, MinScore: ex.MinScore, MaxScore: ex.MaxScore},
		Application: app,
		Attempts:    make([]AttemptDetail, len(states)),
	}
	if current == nil {
		v.Status = status.Classify(app, nil, nil, now)
		return v, nil
	}
	for i := range states {
		v.Attempts[i] = detail(app, states[i])
		if &states[i] == current {
			d := detail(app, states[i])
			d.Questions = questionViews(app, states[i].Attempt, perAttempt[i], bank)
			v.Current = &d
		}
	}
	v.Status = current.Status
	return v, nil
}

func detail(app exam.Application, s status.Attempt) AttemptDetail {
	d := AttemptDetail{
		ID:           s.ID,
		Status:       s.Status,
		CreatedAt:    s.CreatedAt,
		StartedAt:    s.StartedAt,
		SubmittedAt:  s.SubmittedAt,
		Feedback:     s.Feedback,
		FeedbackTags: s.FeedbackTags,
	}
	if s.StartedAt != nil {
		if dl, ok := app.Deadline(*s.StartedAt); ok {
			d.Deadline = &dl
		}
	}
	if app.ShowScores {
		d.Score = s.Score
	}
	return d
}

func questionViews(app exam.Application, a exam.Attempt, qs []exam.AttemptQuestion, bank map[string]exam.Question) []QuestionView {
	seed := shuffle.SeedFor(a.CreatedAt)
	reveal := app.ShowAnswers && a.Submitted()
	out := make([]QuestionView, 0, len(qs))
	for _, aq := range qs {
		q := bank[aq.QuestionID]
		qv := QuestionView{
			ID:            aq.ID,
			QuestionID:    aq.QuestionID,
			Position:      aq.Position,
			Type:          q.Type,
			Description:   q.Description,
			MaxLength:     q.MaxLength,
			Answer:        aq.Answer,
			QuestionScore: aq.QuestionScore,
		}
		if app.ShowScores {
			qv.StudentScore = aq.StudentScore
			qv.Feedback = aq.Feedback
			if a.Submitted() {
				qv.Correction = grading.CorrectionStatus(aq.StudentScore, aq.QuestionScore)
			}
		}
		for _, o := range shuffle.Options(q.Options, seed) {
			ov := OptionView{ID: o.ID, Description: o.Description}
			if reveal {
				correct := o.IsCorrect
				ov.IsCorrect = &correct
			}
			qv.Options = append(qv.Options, ov)
		}
		out = append(out, qv)
	}
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
