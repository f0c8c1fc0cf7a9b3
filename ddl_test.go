package main

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

// fakeExecutor records every statement issued against the target.
type fakeExecutor struct {
	statements []string
	args       [][]any
	failWith   error
	failAfter  int // fail once this many statements have succeeded
}

func (f *fakeExecutor) Exec(_ context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	if f.failWith != nil && len(f.statements) >= f.failAfter {
		return pgconn.CommandTag{}, f.failWith
	}
	f.statements = append(f.statements, sql)
	f.args = append(f.args, arguments)
	return pgconn.CommandTag{}, nil
}

func (f *fakeExecutor) Ping(_ context.Context) error { return nil }

func TestGenerateCreateTable(t *testing.T) {
	cols := []Column{
		{Name: "Id", TargetName: "id", DataType: "int", Nullable: false, IsPrimaryKey: true},
		{Name: "Name", TargetName: "name", DataType: "varchar", MaxLength: 50, Nullable: true},
		{Name: "CreatedAt", TargetName: "created_at", DataType: "datetime2", Nullable: false},
	}

	ddl := generateCreateTable("test_users", cols)

	if !strings.HasPrefix(ddl, "CREATE TABLE IF NOT EXISTS test_users (") {
		t.Fatalf("expected CREATE TABLE IF NOT EXISTS prefix, got:\n%s", ddl)
	}
	if !strings.Contains(ddl, "id integer NOT NULL") {
		t.Errorf("DDL should contain id integer NOT NULL, got:\n%s", ddl)
	}
	if !strings.Contains(ddl, "name varchar(50)") {
		t.Errorf("DDL should contain name varchar(50), got:\n%s", ddl)
	}
	if strings.Contains(ddl, "name varchar(50) NOT NULL") {
		t.Error("nullable column should not have NOT NULL")
	}
	if !strings.Contains(ddl, "created_at timestamp NOT NULL") {
		t.Errorf("DDL should contain created_at timestamp NOT NULL, got:\n%s", ddl)
	}
	if !strings.Contains(ddl, "PRIMARY KEY(id)") {
		t.Errorf("DDL should contain PRIMARY KEY(id), got:\n%s", ddl)
	}
}

func TestGenerateCreateTable_NoPrimaryKey(t *testing.T) {
	cols := []Column{
		{Name: "a", TargetName: "a", DataType: "int", Nullable: true},
		{Name: "b", TargetName: "b", DataType: "nvarchar", MaxLength: -1, Nullable: true},
	}

	ddl := generateCreateTable("plain", cols)

	if strings.Contains(ddl, "PRIMARY KEY") {
		t.Errorf("DDL should not contain a PRIMARY KEY clause, got:\n%s", ddl)
	}
	if !strings.Contains(ddl, "b text") {
		t.Errorf("DDL should map nvarchar(max) to text, got:\n%s", ddl)
	}
}

func TestGenerateCreateTable_PrimaryKeyForcesNotNull(t *testing.T) {
	cols := []Column{
		{Name: "id", TargetName: "id", DataType: "uniqueidentifier", Nullable: true, IsPrimaryKey: true},
	}

	ddl := generateCreateTable("keyed", cols)

	if !strings.Contains(ddl, "id uuid NOT NULL") {
		t.Errorf("primary key column must be NOT NULL regardless of source nullability, got:\n%s", ddl)
	}
}

func TestGenerateCreateTable_ReservedWords(t *testing.T) {
	cols := []Column{
		{Name: "Order", TargetName: "order", DataType: "int", Nullable: false},
	}

	ddl := generateCreateTable("user", cols)

	if !strings.Contains(ddl, `"user"`) {
		t.Errorf("DDL should quote reserved word 'user', got:\n%s", ddl)
	}
	if !strings.Contains(ddl, `"order"`) {
		t.Errorf("DDL should quote reserved word 'order', got:\n%s", ddl)
	}
}

func TestApplyConflictMode(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		mode     Mode
		wantSQL  string
		wantNone bool
	}{
		{ModeInsert, "", true},
		{ModeUpsert, "", true},
		{ModeOverwrite, "DROP TABLE IF EXISTS test_users", false},
		{ModeTruncate, "TRUNCATE TABLE test_users", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			exec := &fakeExecutor{}
			if err := applyConflictMode(ctx, exec, "test_users", tt.mode); err != nil {
				t.Fatalf("applyConflictMode(%s) error: %v", tt.mode, err)
			}
			if tt.wantNone {
				if len(exec.statements) != 0 {
					t.Errorf("mode %s should issue no statements, got %v", tt.mode, exec.statements)
				}
				return
			}
			if len(exec.statements) != 1 || exec.statements[0] != tt.wantSQL {
				t.Errorf("mode %s statements = %v, want [%q]", tt.mode, exec.statements, tt.wantSQL)
			}
		})
	}
}

func TestApplyConflictMode_TruncateMissingTableFails(t *testing.T) {
	exec := &fakeExecutor{failWith: fmt.Errorf(`relation "missing" does not exist`)}
	err := applyConflictMode(context.Background(), exec, "missing", ModeTruncate)
	if err == nil {
		t.Fatal("truncate against a missing table must fail")
	}
}

func TestApplyConflictMode_UnknownMode(t *testing.T) {
	if err := applyConflictMode(context.Background(), &fakeExecutor{}, "t", Mode("merge")); err == nil {
		t.Fatal("expected error for unsupported mode")
	}
}

func TestBuildInsertSQL(t *testing.T) {
	cols := []Column{
		{TargetName: "id"},
		{TargetName: "name"},
		{TargetName: "order"},
	}
	got := buildInsertSQL("test_users", cols)
	want := `INSERT INTO test_users (id, name, "order") VALUES ($1, $2, $3)`
	if got != want {
		t.Errorf("buildInsertSQL() = %q, want %q", got, want)
	}
}
