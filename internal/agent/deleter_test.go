package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/galoberlyn/beezbuddy-be/internal/knowledge"
	"github.com/galoberlyn/beezbuddy-be/pkg/logging"
)

func TestDeleterCascades(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	deleter := NewDeleter(db, knowledge.NewStore(db), nil, logging.NewLoggerWithService("test"))

	mock.ExpectQuery("SELECT avatar_key").
		WithArgs("agent-1", "org-1").
		WillReturnRows(sqlmock.NewRows([]string{"avatar_key"}).AddRow(""))
	mock.ExpectQuery("SELECT object_key").
		WithArgs("agent-1").
		WillReturnRows(sqlmock.NewRows([]string{"object_key"}))

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM beezbuddy.agent_authorized_domains").
		WithArgs("agent-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM beezbuddy.agent_web_links").
		WithArgs("agent-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM beezbuddy.agent_documents").
		WithArgs("agent-1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM beezbuddy.conversations").
		WithArgs("agent-1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("DELETE FROM beezbuddy.public_conversations").
		WithArgs("agent-1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM beezbuddy.agents").
		WithArgs("agent-1", "org-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// Vector cleanup deletes by scope so rows indexed while the
	// relational delete was in flight are removed too.
	mock.ExpectExec("DELETE FROM ai.embeddings").
		WithArgs("org-1", "agent-1").
		WillReturnResult(sqlmock.NewResult(0, 2))

	if err := deleter.Delete(context.Background(), "agent-1", "org-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleterUnknownAgent(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	deleter := NewDeleter(db, knowledge.NewStore(db), nil, logging.NewLoggerWithService("test"))

	mock.ExpectQuery("SELECT avatar_key").
		WithArgs("missing", "org-1").
		WillReturnRows(sqlmock.NewRows([]string{"avatar_key"}))

	err = deleter.Delete(context.Background(), "missing", "org-1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleterSurfacesEmbeddingCleanupFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	deleter := NewDeleter(db, knowledge.NewStore(db), nil, logging.NewLoggerWithService("test"))

	mock.ExpectQuery("SELECT avatar_key").
		WithArgs("agent-1", "org-1").
		WillReturnRows(sqlmock.NewRows([]string{"avatar_key"}).AddRow(""))
	mock.ExpectQuery("SELECT object_key").
		WithArgs("agent-1").
		WillReturnRows(sqlmock.NewRows([]string{"object_key"}))

	mock.ExpectBegin()
	for range [5]struct{}{} {
		mock.ExpectExec("DELETE FROM").WithArgs("agent-1").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectExec("DELETE FROM beezbuddy.agents").
		WithArgs("agent-1", "org-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectExec("DELETE FROM ai.embeddings").
		WithArgs("org-1", "agent-1").
		WillReturnError(errors.New("vector store down"))

	err = deleter.Delete(context.Background(), "agent-1", "org-1")
	if err == nil {
		t.Fatal("expected error when embedding cleanup fails")
	}
}
