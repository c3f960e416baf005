package exam

import "time"

type QuestionType string

const (
	TypeDiscursive QuestionType = "discursive"
	TypeOptions    QuestionType = "options"
)

func (t QuestionType) Valid() bool {
	return t == TypeDiscursive || t == TypeOptions
}

type Category struct {
	ID            string  `json:"id" validate:"required"`
	Name          string  `json:"name" validate:"required"`
	ParentID      *string `json:"parent_id,omitempty"`
	AllowMultiple bool    `json:"allow_multiple"` // carried for the admin UI; selection ignores it
}

type Option struct {
	ID          string `json:"id" validate:"required"`
	Description string `json:"description"`
	IsCorrect   bool   `json:"is_correct"`
}

type Question struct {
	ID          string       `json:"id" validate:"required"`
	Type        QuestionType `json:"type" validate:"required,oneof=discursive options"`
	Description string       `json:"description"`
	MaxLength   *int         `json:"max_length,omitempty" validate:"omitempty,gt=0"` // discursive only
	Enabled     bool         `json:"enabled"`
	CategoryIDs []string     `json:"category_ids,omitempty"`
	Options     []Option     `json:"options,omitempty" validate:"dive"`
}

// CorrectOptionIDs returns the ids flagged correct, in option order.
func (q Question) CorrectOptionIDs() []string {
	out := make([]string, 0, len(q.Options))
	for _, o := range q.Options {
		if o.IsCorrect {
			out = append(out, o.ID)
		}
	}
	return out
}

// Rule is an exam rule. A fixed rule has QuestionID set and QuestionsCount 1;
// a dynamic rule selects QuestionsCount questions filtered by type and by
// membership in every category of CategoryIDs.
type Rule struct {
	ID             int64         `json:"id"`
	QuestionID     *string       `json:"question_id,omitempty"`
	QuestionType   *QuestionType `json:"question_type,omitempty" validate:"omitempty,oneof=discursive options"`
	QuestionsCount int           `json:"questions_count" validate:"gte=1"`
	Score          float64       `json:"score" validate:"gte=0"`
	CategoryIDs    []string      `json:"category_ids,omitempty"`
}

func (r Rule) Fixed() bool { return r.QuestionID != nil }

type Exam struct {
	ID       string   `json:"id" validate:"required"`
	Name     string   `json:"name" validate:"required"`
	MinScore *float64 `json:"min_score,omitempty"`
	MaxScore *float64 `json:"max_score,omitempty"`
	Rules    []Rule   `json:"rules" validate:"dive"`
}

type Application struct {
	ID            string    `json:"id" validate:"required"`
	ExamID        string    `json:"exam_id" validate:"required"`
	StartedAt     time.Time `json:"started_at" validate:"required"`
	EndedAt       time.Time `json:"ended_at" validate:"required,gtfield=StartedAt"`
	Attempts      int       `json:"attempts" validate:"gte=1"`
	LimitTime     int       `json:"limit_time,omitempty" validate:"gte=0"` // minutes, 0 = unlimited
	ShowAnswers   bool      `json:"show_answers"`
	ShowScores    bool      `json:"show_scores"`
	AllowFeedback bool      `json:"allow_feedback"`
	FeedbackText  *string   `json:"feedback_text,omitempty"`
}

// Deadline reports the moment an attempt started at startedAt runs out of
// time. ok is false when the application has no time limit.
func (a Application) Deadline(startedAt time.Time) (deadline time.Time, ok bool) {
	if a.LimitTime <= 0 {
		return time.Time{}, false
	}
	return startedAt.Add(time.Duration(a.LimitTime) * time.Minute), true
}

// Attempt is one student's take of an application.
type Attempt struct {
	ID            string     `json:"id"`
	ApplicationID string     `json:"application_id"`
	StudentID     string     `json:"student_id"`
	CreatedAt     time.Time  `json:"created_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	SubmittedAt   *time.Time `json:"submitted_at,omitempty"`
	Feedback      *string    `json:"feedback,omitempty"`
	FeedbackTags  []string   `json:"feedback_tags,omitempty"`
}

func (a Attempt) Submitted() bool { return a.SubmittedAt != nil }

type AttemptQuestion struct {
	ID            string   `json:"id"`
	AttemptID     string   `json:"attempt_id"`
	QuestionID    string   `json:"question_id"`
	Position      int      `json:"position"`
	Answer        *string  `json:"answer,omitempty"`
	QuestionScore float64  `json:"question_score"`
	StudentScore  *float64 `json:"student_score,omitempty"`
	GraderID      *string  `json:"grader_id,omitempty"`
	Feedback      *string  `json:"feedback,omitempty"`
}

// PoolQuestion is the slice of a Question needed to select it for an attempt.
// Disabled questions stay in the pool for fixed rules; dynamic rules skip them.
type PoolQuestion struct {
	ID          string
	Type        QuestionType
	Enabled     bool
	CategoryIDs []string
}
