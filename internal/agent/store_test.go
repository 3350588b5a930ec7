package agent

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func now() time.Time { return time.Now() }

func TestStoreProfile(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	store := NewStore(db)

	mock.ExpectQuery("SELECT a.id, a.organization_id, o.name").
		WithArgs("agent-1", "org-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "organization_id", "org_name", "name", "persona"}).
			AddRow("agent-1", "org-1", "Acme", "Support Bot", "friendly"))
	mock.ExpectQuery("SELECT domain").
		WithArgs("agent-1").
		WillReturnRows(sqlmock.NewRows([]string{"domain"}).AddRow("acme.example"))

	profile, err := store.Profile(context.Background(), "agent-1", "org-1")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile == nil {
		t.Fatal("expected profile")
	}
	if profile.OrganizationName != "Acme" {
		t.Fatalf("unexpected organization name: %q", profile.OrganizationName)
	}
	if len(profile.AuthorizedDomains) != 1 || profile.AuthorizedDomains[0] != "acme.example" {
		t.Fatalf("unexpected domains: %v", profile.AuthorizedDomains)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStoreProfileUnknownAgent(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	store := NewStore(db)

	mock.ExpectQuery("SELECT a.id, a.organization_id, o.name").
		WithArgs("agent-1", "other-org").
		WillReturnRows(sqlmock.NewRows([]string{"id", "organization_id", "org_name", "name", "persona"}))

	profile, err := store.Profile(context.Background(), "agent-1", "other-org")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	// Cross-tenant lookups are indistinguishable from missing agents.
	if profile != nil {
		t.Fatalf("expected nil profile, got %+v", profile)
	}
}

func TestStoreCreatePersistsDomainsAndLinks(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	store := NewStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO beezbuddy.agents").
		WithArgs(sqlmock.AnyArg(), "org-1", "Support Bot", "friendly", "links", "").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now(), now()))
	mock.ExpectExec("INSERT INTO beezbuddy.agent_authorized_domains").
		WithArgs(sqlmock.AnyArg(), "acme.example").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO beezbuddy.agent_web_links").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "https://acme.example/docs", true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	a := &Agent{
		OrganizationID:    "org-1",
		Name:              "Support Bot",
		Persona:           "friendly",
		KnowledgeBaseType: KnowledgeBaseLinks,
		AuthorizedDomains: []string{"acme.example"},
		WebLinks:          []WebLink{{URL: "https://acme.example/docs", IsSPA: true}},
	}
	if err := store.Create(context.Background(), a); err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.ID == "" {
		t.Fatal("expected generated agent id")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
