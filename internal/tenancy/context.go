package tenancy

import (
	"context"
	"errors"
	"strings"
)

// Scope is supplied by the caller's authorization layer. Every store query is
// filtered by CompanyID. SubjectID is the acting user: the student on
// student-facing calls, the grader on correction calls.
type Scope struct {
	CompanyID string
	SubjectID string
}

var ErrNoScope = errors.New("tenancy: no company scope in context")

type ctxKey struct{}

var ctxKeyScope = ctxKey{}

func WithScope(ctx context.Context, s Scope) context.Context {
	s.CompanyID = strings.TrimSpace(s.CompanyID)
	s.SubjectID = strings.TrimSpace(s.SubjectID)
	return context.WithValue(ctx, ctxKeyScope, s)
}

func FromContext(ctx context.Context) (Scope, error) {
	if v := ctx.Value(ctxKeyScope); v != nil {
		if s, ok := v.(Scope); ok && s.CompanyID != "" {
			return s, nil
		}
	}
	return Scope{}, ErrNoScope
}
