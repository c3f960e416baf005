package exam

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// The Put* writes load a question bank, exams and applications for one
// company. They upsert by id; an id owned by another company is ErrConflict.

func (s *SQLStore) PutCategory(ctx context.Context, companyID string, c Category) error {
	if err := Validate(c); err != nil {
		return err
	}
	return s.inTx(ctx, func(q queryable) error {
		res, err := q.ExecContext(ctx,
			`INSERT INTO categories (id, company_id, name, parent_id, allow_multiple)
			 VALUES ($1,$2,$3,$4,$5)
			 ON CONFLICT (id) DO UPDATE SET name=excluded.name, parent_id=excluded.parent_id,
			   allow_multiple=excluded.allow_multiple
			 WHERE categories.company_id = excluded.company_id`,
			c.ID, companyID, c.Name, c.ParentID, c.AllowMultiple)
		return upserted(res, err, "category", c.ID)
	})
}

func (s *SQLStore) PutQuestion(ctx context.Context, companyID string, qn Question) error {
	if err := Validate(qn); err != nil {
		return err
	}
	return s.inTx(ctx, func(q queryable) error {
		res, err := q.ExecContext(ctx,
			`INSERT INTO questions (id, company_id, type, description, max_length, enabled)
			 VALUES ($1,$2,$3,$4,$5,$6)
			 ON CONFLICT (id) DO UPDATE SET type=excluded.type, description=excluded.description,
			   max_length=excluded.max_length, enabled=excluded.enabled
			 WHERE questions.company_id = excluded.company_id`,
			qn.ID, companyID, string(qn.Type), qn.Description, qn.MaxLength, qn.Enabled)
		if err := upserted(res, err, "question", qn.ID); err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM question_options WHERE question_id=$1`, qn.ID); err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM question_categories WHERE question_id=$1`, qn.ID); err != nil {
			return err
		}
		for i, o := range qn.Options {
			if _, err := q.ExecContext(ctx,
				`INSERT INTO question_options (id, question_id, description, is_correct, position)
				 VALUES ($1,$2,$3,$4,$5)`, o.ID, qn.ID, o.Description, o.IsCorrect, i); err != nil {
				return mapWriteErr(fmt.Errorf("insert option %s: %w", o.ID, err))
			}
		}
		for _, cat := range qn.CategoryIDs {
			if _, err := q.ExecContext(ctx,
				`INSERT INTO question_categories (question_id, category_id) VALUES ($1,$2)`, qn.ID, cat); err != nil {
				return mapWriteErr(fmt.Errorf("link category %s: %w", cat, err))
			}
		}
		return nil
	})
}

// PutExam replaces the exam's rules. New rule ids are assigned in slice
// order, which is also the order they are resolved in.
func (s *SQLStore) PutExam(ctx context.Context, companyID string, e Exam) error {
	if err := Validate(e); err != nil {
		return err
	}
	return s.inTx(ctx, func(q queryable) error {
		res, err := q.ExecContext(ctx,
			`INSERT INTO exams (id, company_id, name, min_score, max_score, created_at)
			 VALUES ($1,$2,$3,$4,$5,$6)
			 ON CONFLICT (id) DO UPDATE SET name=excluded.name, min_score=excluded.min_score,
			   max_score=excluded.max_score
			 WHERE exams.company_id = excluded.company_id`,
			e.ID, companyID, e.Name, e.MinScore, e.MaxScore, time.Now().UnixMilli())
		if err := upserted(res, err, "exam", e.ID); err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx,
			`DELETE FROM exam_rule_categories WHERE rule_id IN (SELECT id FROM exam_rules WHERE exam_id=$1)`, e.ID); err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM exam_rules WHERE exam_id=$1`, e.ID); err != nil {
			return err
		}
		for _, r := range e.Rules {
			var qtype any
			if r.QuestionType != nil {
				qtype = string(*r.QuestionType)
			}
			var id int64
			if err := q.QueryRowContext(ctx,
				`INSERT INTO exam_rules (exam_id, question_id, question_type, questions_count, score)
				 VALUES ($1,$2,$3,$4,$5) RETURNING id`,
				e.ID, r.QuestionID, qtype, r.QuestionsCount, r.Score).Scan(&id); err != nil {
				return fmt.Errorf("insert rule: %w", err)
			}
			for _, cat := range r.CategoryIDs {
				if _, err := q.ExecContext(ctx,
					`INSERT INTO exam_rule_categories (rule_id, category_id) VALUES ($1,$2)`, id, cat); err != nil {
					return mapWriteErr(fmt.Errorf("link rule category %s: %w", cat, err))
				}
			}
		}
		return nil
	})
}

func (s *SQLStore) PutApplication(ctx context.Context, companyID string, a Application) error {
	if err := Validate(a); err != nil {
		return err
	}
	return s.inTx(ctx, func(q queryable) error {
		var owner string
		err := q.QueryRowContext(ctx, `SELECT company_id FROM exams WHERE id=$1`, a.ExamID).Scan(&owner)
		if err != nil || owner != companyID {
			return notFound(orNoRows(err), "exam")
		}
		res, err := q.ExecContext(ctx,
			`INSERT INTO applications (id, company_id, exam_id, started_at, ended_at, attempts, limit_time,
			   show_answers, show_scores, allow_feedback, feedback_text)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			 ON CONFLICT (id) DO UPDATE SET exam_id=excluded.exam_id, started_at=excluded.started_at,
			   ended_at=excluded.ended_at, attempts=excluded.attempts, limit_time=excluded.limit_time,
			   show_answers=excluded.show_answers, show_scores=excluded.show_scores,
			   allow_feedback=excluded.allow_feedback, feedback_text=excluded.feedback_text
			 WHERE applications.company_id = excluded.company_id`,
			a.ID, companyID, a.ExamID, a.StartedAt.UnixMilli(), a.EndedAt.UnixMilli(), a.Attempts, a.LimitTime,
			a.ShowAnswers, a.ShowScores, a.AllowFeedback, a.FeedbackText)
		return upserted(res, err, "application", a.ID)
	})
}

func (s *SQLStore) inTx(ctx context.Context, fn func(queryable) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func upserted(res sql.Result, err error, what, id string) error {
	if err != nil {
		return mapWriteErr(fmt.Errorf("put %s %s: %w", what, id, err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s %s belongs to another company: %w", what, id, ErrConflict)
	}
	return nil
}

func orNoRows(err error) error {
	if err == nil {
		return sql.ErrNoRows
	}
	return err
}
