package tenancy

import (
	"context"
	"errors"
	"testing"
)

func TestScopeRoundTrip(t *testing.T) {
	ctx := WithScope(context.Background(), Scope{CompanyID: " acme ", SubjectID: "u1 "})
	s, err := FromContext(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if s.CompanyID != "acme" || s.SubjectID != "u1" {
		t.Fatalf("scope = %+v", s)
	}
}

func TestMissingScope(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
	}{
		{"no scope", context.Background()},
		{"blank company", WithScope(context.Background(), Scope{CompanyID: "  ", SubjectID: "u1"})},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := FromContext(tc.ctx); !errors.Is(err, ErrNoScope) {
				t.Fatalf("err = %v", err)
			}
		})
	}
}
