package db

import (
	"context"
	"strings"
	"testing"
)

func TestParseDriver(t *testing.T) {
	tests := []struct {
		in   string
		want Driver
		err  bool
	}{
		{"", DriverSQLite, false},
		{"SQLite3", DriverSQLite, false},
		{"pgx", DriverPostgres, false},
		{" postgresql ", DriverPostgres, false},
		{"mysql", "", true},
	}
	for _, tc := range tests {
		got, err := ParseDriver(tc.in)
		if (err != nil) != tc.err || got != tc.want {
			t.Errorf("ParseDriver(%q) = %q, %v", tc.in, got, err)
		}
	}
}

func TestOpenMigratesIdempotently(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, DriverSQLite, "file:migrate_test?mode=memory&cache=shared")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if err := Migrate(ctx, db, DriverSQLite); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	var n int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('student_applications','student_application_questions','event_log')`).
		Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("%d core tables", n)
	}
	if err := Migrate(ctx, db, Driver("oracle")); err == nil {
		t.Fatal("expected unsupported driver")
	}
}

func TestSplitSQL(t *testing.T) {
	stmts := splitSQL(schemaPostgres)
	if len(stmts) < 10 {
		t.Fatalf("%d statements", len(stmts))
	}
	for _, s := range stmts {
		if !strings.HasPrefix(s, "CREATE") {
			t.Fatalf("unexpected statement start: %s", firstLine(s))
		}
	}
}
