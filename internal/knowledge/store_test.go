package knowledge

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestStoreSearch(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	store := NewStore(db)
	metadataBytes, err := json.Marshal(map[string]any{"source": "https://example.com"})
	if err != nil {
		t.Fatalf("marshal metadata: %v", err)
	}

	rows := sqlmock.NewRows([]string{"id", "text", "metadata", "similarity"}).
		AddRow("chunk-1", "refund policy text", metadataBytes, 0.93)

	mock.ExpectQuery("SELECT id").
		WithArgs("org-1", "agent-1", sqlmock.AnyArg(), 4).
		WillReturnRows(rows)

	scope := Scope{OrganizationID: "org-1", AgentID: "agent-1"}
	chunks, err := store.Search(context.Background(), scope, []float32{0.1, 0.2}, 4)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Metadata["source"] != "https://example.com" {
		t.Fatalf("unexpected metadata: %v", chunks[0].Metadata)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStoreSearchRequiresScope(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	store := NewStore(db)

	if _, err := store.Search(context.Background(), Scope{AgentID: "agent-1"}, []float32{0.1}, 4); err == nil {
		t.Fatal("expected error for missing organization id")
	}
	if _, err := store.Search(context.Background(), Scope{OrganizationID: "org-1"}, []float32{0.1}, 4); err == nil {
		t.Fatal("expected error for missing agent id")
	}
}

func TestStoreIDsByAgent(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	store := NewStore(db)

	rows := sqlmock.NewRows([]string{"id"}).AddRow("chunk-1").AddRow("chunk-2")
	mock.ExpectQuery("SELECT id").WithArgs("org-1", "agent-1").WillReturnRows(rows)

	ids, err := store.IDsByAgent(context.Background(), Scope{OrganizationID: "org-1", AgentID: "agent-1"})
	if err != nil {
		t.Fatalf("ids by agent: %v", err)
	}
	if len(ids) != 2 || ids[0] != "chunk-1" || ids[1] != "chunk-2" {
		t.Fatalf("unexpected ids: %v", ids)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStoreDeleteByIDs(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	store := NewStore(db)

	mock.ExpectExec("DELETE FROM ai.embeddings").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	deleted, err := store.DeleteByIDs(context.Background(), []string{"chunk-1", "chunk-2"})
	if err != nil {
		t.Fatalf("delete by ids: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deleted, got %d", deleted)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStoreDeleteByIDsEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	store := NewStore(db)

	deleted, err := store.DeleteByIDs(context.Background(), nil)
	if err != nil {
		t.Fatalf("delete by ids: %v", err)
	}
	if deleted != 0 {
		t.Fatalf("expected 0 deleted, got %d", deleted)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStoreDeleteByAgent(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	store := NewStore(db)

	mock.ExpectExec("DELETE FROM ai.embeddings").
		WithArgs("org-1", "agent-1").
		WillReturnResult(sqlmock.NewResult(0, 4))

	deleted, err := store.DeleteByAgent(context.Background(), Scope{OrganizationID: "org-1", AgentID: "agent-1"})
	if err != nil {
		t.Fatalf("delete by agent: %v", err)
	}
	if deleted != 4 {
		t.Fatalf("expected 4 deleted, got %d", deleted)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStoreDeleteByAgentRequiresScope(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	store := NewStore(db)

	if _, err := store.DeleteByAgent(context.Background(), Scope{AgentID: "agent-1"}); err == nil {
		t.Fatal("expected error for missing organization scope")
	}
}
