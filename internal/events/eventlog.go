package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	AttemptStarted    = "attempt.started"
	AttemptSubmitted  = "attempt.submitted"
	AnswersSaved      = "attempt.answers_saved"
	QuestionGraded    = "question.graded"
	CorrectionDeleted = "correction.deleted"
	FeedbackSent      = "attempt.feedback_sent"
)

type Event struct {
	Seq       int64
	CompanyID string
	Type      string
	Key       string // natural key: attempt id
	Data      any    // JSON-encoded on append
	CreatedAt time.Time
}

// Execer is satisfied by *sql.DB and *sql.Tx so events land in the caller's
// transaction.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func Append(ctx context.Context, x Execer, e Event) error {
	buf, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", e.Type, err)
	}
	at := e.CreatedAt
	if at.IsZero() {
		at = time.Now()
	}
	_, err = x.ExecContext(ctx,
		`INSERT INTO event_log (company_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		e.CompanyID, e.Type, e.Key, string(buf), at.UnixMilli())
	return err
}

// ByKey lists the events recorded for key in append order. Data holds the
// raw JSON payload.
func ByKey(ctx context.Context, q Queryer, companyID, key string) ([]Event, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT seq, company_id, typ, key, data, created_at
		   FROM event_log WHERE company_id=$1 AND key=$2 ORDER BY seq`, companyID, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		var data string
		var at int64
		if err := rows.Scan(&e.Seq, &e.CompanyID, &e.Type, &e.Key, &data, &at); err != nil {
			return nil, err
		}
		e.Data = json.RawMessage(data)
		e.CreatedAt = time.UnixMilli(at)
		out = append(out, e)
	}
	return out, rows.Err()
}
