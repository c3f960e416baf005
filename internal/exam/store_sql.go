package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mind-engage/mindengage-assessment/internal/events"
)

// queryable is satisfied by *sql.DB and *sql.Tx.
type queryable interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

func (s *SQLStore) DB() *sql.DB { return s.db }

// Repo returns a Repo that runs each call on its own connection.
func (s *SQLStore) Repo() Repo { return &sqlRepo{q: s.db, driver: s.driver} }

// InTx runs fn in one transaction. The transaction commits only when fn
// returns nil.
func (s *SQLStore) InTx(ctx context.Context, fn func(Repo) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&sqlRepo{q: tx, driver: s.driver}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapWriteErr(fmt.Errorf("commit: %w", err))
	}
	return nil
}

type sqlRepo struct {
	q      queryable
	driver string
}

func (r *sqlRepo) forUpdate() string {
	if r.driver == "postgres" {
		return " FOR UPDATE"
	}
	return "" // sqlite: the single connection already serializes writers
}

// ---- exams & question bank ----

func (r *sqlRepo) GetExam(ctx context.Context, companyID, examID string) (Exam, error) {
	var e Exam
	var minScore, maxScore sql.NullFloat64
	err := r.q.QueryRowContext(ctx,
		`SELECT id, name, min_score, max_score FROM exams WHERE company_id=$1 AND id=$2`,
		companyID, examID).Scan(&e.ID, &e.Name, &minScore, &maxScore)
	if err != nil {
		return Exam{}, notFound(err, "exam")
	}
	e.MinScore = floatPtr(minScore)
	e.MaxScore = floatPtr(maxScore)

	rules, err := r.examRules(ctx, examID)
	if err != nil {
		return Exam{}, err
	}
	cats, err := r.examRuleCategories(ctx, examID)
	if err != nil {
		return Exam{}, err
	}
	for i := range rules {
		rules[i].CategoryIDs = cats[rules[i].ID]
	}
	e.Rules = rules
	return e, nil
}

func (r *sqlRepo) examRules(ctx context.Context, examID string) ([]Rule, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, question_id, question_type, questions_count, score
		   FROM exam_rules WHERE exam_id=$1 ORDER BY id`, examID)
	if err != nil {
		return nil, fmt.Errorf("load exam rules: %w", err)
	}
	defer rows.Close()
	var out []Rule
	for rows.Next() {
		var rl Rule
		var qid, qtype sql.NullString
		if err := rows.Scan(&rl.ID, &qid, &qtype, &rl.QuestionsCount, &rl.Score); err != nil {
			return nil, err
		}
		if qid.Valid {
			rl.QuestionID = &qid.String
		}
		if qtype.Valid && qtype.String != "" {
			t := QuestionType(qtype.String)
			rl.QuestionType = &t
		}
		out = append(out, rl)
	}
	return out, rows.Err()
}

func (r *sqlRepo) examRuleCategories(ctx context.Context, examID string) (map[int64][]string, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT rc.rule_id, rc.category_id
		   FROM exam_rule_categories rc JOIN exam_rules er ON er.id = rc.rule_id
		  WHERE er.exam_id=$1 ORDER BY rc.rule_id, rc.category_id`, examID)
	if err != nil {
		return nil, fmt.Errorf("load rule categories: %w", err)
	}
	defer rows.Close()
	out := map[int64][]string{}
	for rows.Next() {
		var id int64
		var cat string
		if err := rows.Scan(&id, &cat); err != nil {
			return nil, err
		}
		out[id] = append(out[id], cat)
	}
	return out, rows.Err()
}

func (r *sqlRepo) ListCategories(ctx context.Context, companyID string) ([]Category, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, name, parent_id, allow_multiple FROM categories WHERE company_id=$1 ORDER BY id`, companyID)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	defer rows.Close()
	var out []Category
	for rows.Next() {
		var c Category
		var parent sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &parent, &c.AllowMultiple); err != nil {
			return nil, err
		}
		if parent.Valid {
			c.ParentID = &parent.String
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *sqlRepo) QuestionPool(ctx context.Context, companyID string) ([]PoolQuestion, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT q.id, q.type, q.enabled, qc.category_id
		   FROM questions q LEFT JOIN question_categories qc ON qc.question_id = q.id
		  WHERE q.company_id=$1
		  ORDER BY q.id, qc.category_id`, companyID)
	if err != nil {
		return nil, fmt.Errorf("load question pool: %w", err)
	}
	defer rows.Close()
	var out []PoolQuestion
	for rows.Next() {
		var id, typ string
		var enabled bool
		var cat sql.NullString
		if err := rows.Scan(&id, &typ, &enabled, &cat); err != nil {
			return nil, err
		}
		if n := len(out); n == 0 || out[n-1].ID != id {
			out = append(out, PoolQuestion{ID: id, Type: QuestionType(typ), Enabled: enabled})
		}
		if cat.Valid {
			last := &out[len(out)-1]
			last.CategoryIDs = append(last.CategoryIDs, cat.String)
		}
	}
	return out, rows.Err()
}

func (r *sqlRepo) GetQuestions(ctx context.Context, companyID string, ids []string) (map[string]Question, error) {
	out := make(map[string]Question, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	in, args := inList(2, ids)
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, type, description, max_length, enabled FROM questions
		  WHERE company_id=$1 AND id IN (`+in+`)`, append([]any{companyID}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	for rows.Next() {
		var q Question
		var typ string
		var maxLen sql.NullInt64
		if err := rows.Scan(&q.ID, &typ, &q.Description, &maxLen, &q.Enabled); err != nil {
			rows.Close()
			return nil, err
		}
		q.Type = QuestionType(typ)
		if maxLen.Valid {
			n := int(maxLen.Int64)
			q.MaxLength = &n
		}
		out[q.ID] = q
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	found := make([]string, 0, len(out))
	for id := range out {
		found = append(found, id)
	}
	if len(found) == 0 {
		return out, nil
	}
	in, args = inList(1, found)
	rows, err = r.q.QueryContext(ctx,
		`SELECT id, question_id, description, is_correct FROM question_options
		  WHERE question_id IN (`+in+`) ORDER BY question_id, position, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("load options: %w", err)
	}
	for rows.Next() {
		var o Option
		var qid string
		if err := rows.Scan(&o.ID, &qid, &o.Description, &o.IsCorrect); err != nil {
			rows.Close()
			return nil, err
		}
		q := out[qid]
		q.Options = append(q.Options, o)
		out[qid] = q
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	rows, err = r.q.QueryContext(ctx,
		`SELECT question_id, category_id FROM question_categories
		  WHERE question_id IN (`+in+`) ORDER BY question_id, category_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("load question categories: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var qid, cat string
		if err := rows.Scan(&qid, &cat); err != nil {
			return nil, err
		}
		q := out[qid]
		q.CategoryIDs = append(q.CategoryIDs, cat)
		out[qid] = q
	}
	return out, rows.Err()
}

func (r *sqlRepo) GetApplication(ctx context.Context, companyID, applicationID string) (Application, error) {
	var a Application
	var started, ended int64
	var fb sql.NullString
	err := r.q.QueryRowContext(ctx,
		`SELECT id, exam_id, started_at, ended_at, attempts, limit_time,
		        show_answers, show_scores, allow_feedback, feedback_text
		   FROM applications WHERE company_id=$1 AND id=$2`, companyID, applicationID).
		Scan(&a.ID, &a.ExamID, &started, &ended, &a.Attempts, &a.LimitTime,
			&a.ShowAnswers, &a.ShowScores, &a.AllowFeedback, &fb)
	if err != nil {
		return Application{}, notFound(err, "application")
	}
	a.StartedAt = time.UnixMilli(started)
	a.EndedAt = time.UnixMilli(ended)
	if fb.Valid {
		a.FeedbackText = &fb.String
	}
	return a, nil
}

// ---- attempts ----

func (r *sqlRepo) LockPair(ctx context.Context, companyID, applicationID, studentID string) error {
	if r.driver != "postgres" {
		return nil
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(companyID + "\x00" + applicationID + "\x00" + studentID))
	if _, err := r.q.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(h.Sum64())); err != nil {
		return fmt.Errorf("advisory lock: %w", err)
	}
	return nil
}

const attemptCols = `id, application_id, student_id, created_at, started_at, submitted_at, feedback, feedback_tags`

func scanAttempt(sc interface{ Scan(...any) error }) (Attempt, error) {
	var a Attempt
	var created int64
	var started, submitted sql.NullInt64
	var fb, tags sql.NullString
	if err := sc.Scan(&a.ID, &a.ApplicationID, &a.StudentID, &created, &started, &submitted, &fb, &tags); err != nil {
		return Attempt{}, err
	}
	a.CreatedAt = time.UnixMilli(created)
	a.StartedAt = timePtr(started)
	a.SubmittedAt = timePtr(submitted)
	if fb.Valid {
		a.Feedback = &fb.String
	}
	if tags.Valid && tags.String != "" {
		_ = json.Unmarshal([]byte(tags.String), &a.FeedbackTags)
	}
	return a, nil
}

func (r *sqlRepo) GetAttempt(ctx context.Context, companyID, attemptID string, forUpdate bool) (Attempt, error) {
	q := `SELECT ` + attemptCols + ` FROM student_applications WHERE company_id=$1 AND id=$2`
	if forUpdate {
		q += r.forUpdate()
	}
	a, err := scanAttempt(r.q.QueryRowContext(ctx, q, companyID, attemptID))
	if err != nil {
		return Attempt{}, notFound(err, "attempt")
	}
	return a, nil
}

func (r *sqlRepo) ListAttempts(ctx context.Context, companyID, applicationID, studentID string) ([]Attempt, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+attemptCols+` FROM student_applications
		  WHERE company_id=$1 AND application_id=$2 AND student_id=$3
		  ORDER BY created_at, id`, companyID, applicationID, studentID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()
	var out []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *sqlRepo) InsertAttempt(ctx context.Context, companyID string, a Attempt) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO student_applications (id, company_id, application_id, student_id, created_at, started_at, submitted_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		a.ID, companyID, a.ApplicationID, a.StudentID, a.CreatedAt.UnixMilli(), msOrNil(a.StartedAt), msOrNil(a.SubmittedAt))
	return mapWriteErr(err)
}

func (r *sqlRepo) SetAttemptTimes(ctx context.Context, attemptID string, startedAt, submittedAt *time.Time) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE student_applications SET started_at=$1, submitted_at=$2 WHERE id=$3`,
		msOrNil(startedAt), msOrNil(submittedAt), attemptID)
	return mapWriteErr(err)
}

func (r *sqlRepo) SetAttemptFeedback(ctx context.Context, attemptID, text string, tags []string) error {
	buf, err := json.Marshal(tags)
	if err != nil {
		return err
	}
	_, err = r.q.ExecContext(ctx,
		`UPDATE student_applications SET feedback=$1, feedback_tags=$2 WHERE id=$3`, text, string(buf), attemptID)
	return err
}

func (r *sqlRepo) DeleteAttempt(ctx context.Context, attemptID string) error {
	if err := r.DeleteAttemptQuestions(ctx, attemptID); err != nil {
		return err
	}
	_, err := r.q.ExecContext(ctx, `DELETE FROM student_applications WHERE id=$1`, attemptID)
	return err
}

// ---- attempt questions ----

const attemptQuestionCols = `saq.id, saq.attempt_id, saq.question_id, saq.position, saq.answer,
	saq.question_score, saq.student_score, saq.grader_id, saq.feedback`

func scanAttemptQuestion(sc interface{ Scan(...any) error }) (AttemptQuestion, error) {
	var q AttemptQuestion
	var answer, grader, fb sql.NullString
	var score sql.NullFloat64
	if err := sc.Scan(&q.ID, &q.AttemptID, &q.QuestionID, &q.Position, &answer,
		&q.QuestionScore, &score, &grader, &fb); err != nil {
		return AttemptQuestion{}, err
	}
	q.Answer = stringPtr(answer)
	q.StudentScore = floatPtr(score)
	q.GraderID = stringPtr(grader)
	q.Feedback = stringPtr(fb)
	return q, nil
}

func (r *sqlRepo) AttemptQuestions(ctx context.Context, attemptID string) ([]AttemptQuestion, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+attemptQuestionCols+` FROM student_application_questions saq
		  WHERE saq.attempt_id=$1 ORDER BY saq.position`, attemptID)
	if err != nil {
		return nil, fmt.Errorf("load attempt questions: %w", err)
	}
	defer rows.Close()
	var out []AttemptQuestion
	for rows.Next() {
		q, err := scanAttemptQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *sqlRepo) GetAttemptQuestion(ctx context.Context, companyID, id string) (AttemptQuestion, error) {
	q, err := scanAttemptQuestion(r.q.QueryRowContext(ctx,
		`SELECT `+attemptQuestionCols+`
		   FROM student_application_questions saq
		   JOIN student_applications sa ON sa.id = saq.attempt_id
		  WHERE saq.id=$1 AND sa.company_id=$2`, id, companyID))
	if err != nil {
		return AttemptQuestion{}, notFound(err, "attempt question")
	}
	return q, nil
}

func (r *sqlRepo) InsertAttemptQuestions(ctx context.Context, qs []AttemptQuestion) error {
	for _, q := range qs {
		_, err := r.q.ExecContext(ctx,
			`INSERT INTO student_application_questions (id, attempt_id, question_id, position, answer, question_score, student_score)
			 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			q.ID, q.AttemptID, q.QuestionID, q.Position, q.Answer, q.QuestionScore, q.StudentScore)
		if err != nil {
			return mapWriteErr(fmt.Errorf("insert attempt question %s: %w", q.QuestionID, err))
		}
	}
	return nil
}

func (r *sqlRepo) DeleteAttemptQuestions(ctx context.Context, attemptID string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM student_application_questions WHERE attempt_id=$1`, attemptID)
	return err
}

func (r *sqlRepo) SaveAnswer(ctx context.Context, id string, answer string) error {
	_, err := r.q.ExecContext(ctx, `UPDATE student_application_questions SET answer=$1 WHERE id=$2`, answer, id)
	return err
}

func (r *sqlRepo) SetStudentScore(ctx context.Context, id string, score *float64) error {
	_, err := r.q.ExecContext(ctx, `UPDATE student_application_questions SET student_score=$1 WHERE id=$2`, score, id)
	return err
}

func (r *sqlRepo) SetCorrection(ctx context.Context, id string, score float64, graderID string, feedback *string) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE student_application_questions SET student_score=$1, grader_id=$2, feedback=$3 WHERE id=$4`,
		score, graderID, feedback, id)
	return err
}

func (r *sqlRepo) AppendEvent(ctx context.Context, e events.Event) error {
	return events.Append(ctx, r.q, e)
}

// ---- helpers ----

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("load %s: %w", what, err)
}

func mapWriteErr(err error) error {
	if err != nil && isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var sqErr *sqlite.Error
	if errors.As(err, &sqErr) {
		switch sqErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
		return sqErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(sqErr.Error(), "UNIQUE")
	}
	return false
}

// inList renders "$n,$n+1,..." starting at placeholder index start.
func inList(start int, ids []string) (string, []any) {
	ph := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		ph[i] = "$" + strconv.Itoa(start+i)
		args[i] = id
	}
	return strings.Join(ph, ","), args
}

func msOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64)
	return &t
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
