package agent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/galoberlyn/beezbuddy-be/internal/chat"
)

// ErrNotFound is returned when an agent does not exist within the
// organization scope.
var ErrNotFound = errors.New("agent not found")

// Document is an uploaded knowledge-base file tracked by its object key.
type Document struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agentId"`
	ObjectKey string    `json:"objectKey"`
	Filename  string    `json:"filename"`
	CreatedAt time.Time `json:"createdAt"`
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts the agent with its authorized domains and web links in a
// single transaction.
func (s *Store) Create(ctx context.Context, a *Agent) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create agent: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO beezbuddy.agents (id, organization_id, name, persona, knowledge_base_type, avatar_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING created_at, updated_at
	`, a.ID, a.OrganizationID, a.Name, a.Persona, string(a.KnowledgeBaseType), a.AvatarKey).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert agent: %w", err)
	}

	if err := insertDomains(ctx, tx, a.ID, a.AuthorizedDomains); err != nil {
		return err
	}
	if err := insertWebLinks(ctx, tx, a.ID, a.WebLinks); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create agent: %w", err)
	}
	return nil
}

// Update rewrites the agent's mutable fields and replaces its domain and
// link sets. An empty avatarKey leaves the stored avatar untouched.
func (s *Store) Update(ctx context.Context, a *Agent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update agent: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE beezbuddy.agents
		SET name = $1,
		    persona = $2,
		    knowledge_base_type = $3,
		    avatar_key = CASE WHEN $4 = '' THEN avatar_key ELSE $4 END,
		    updated_at = NOW()
		WHERE id = $5 AND organization_id = $6
	`, a.Name, a.Persona, string(a.KnowledgeBaseType), a.AvatarKey, a.ID, a.OrganizationID)
	if err != nil {
		return fmt.Errorf("update agent: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update agent rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM beezbuddy.agent_authorized_domains WHERE agent_id = $1`, a.ID); err != nil {
		return fmt.Errorf("clear authorized domains: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM beezbuddy.agent_web_links WHERE agent_id = $1`, a.ID); err != nil {
		return fmt.Errorf("clear web links: %w", err)
	}
	if err := insertDomains(ctx, tx, a.ID, a.AuthorizedDomains); err != nil {
		return err
	}
	if err := insertWebLinks(ctx, tx, a.ID, a.WebLinks); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update agent: %w", err)
	}
	return nil
}

func insertDomains(ctx context.Context, tx *sql.Tx, agentID string, domains []string) error {
	for _, domain := range domains {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO beezbuddy.agent_authorized_domains (agent_id, domain)
			VALUES ($1, $2)
		`, agentID, domain)
		if err != nil {
			return fmt.Errorf("insert authorized domain: %w", err)
		}
	}
	return nil
}

func insertWebLinks(ctx context.Context, tx *sql.Tx, agentID string, links []WebLink) error {
	for _, link := range links {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO beezbuddy.agent_web_links (id, agent_id, url, is_spa)
			VALUES ($1, $2, $3, $4)
		`, uuid.New().String(), agentID, link.URL, link.IsSPA)
		if err != nil {
			return fmt.Errorf("insert web link: %w", err)
		}
	}
	return nil
}

// Get loads one agent with its domains and links, scoped to the
// organization.
func (s *Store) Get(ctx context.Context, agentID, organizationID string) (*Agent, error) {
	var a Agent
	var kbType string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, organization_id, name, persona, knowledge_base_type, avatar_key, created_at, updated_at
		FROM beezbuddy.agents
		WHERE id = $1 AND organization_id = $2
	`, agentID, organizationID).Scan(&a.ID, &a.OrganizationID, &a.Name, &a.Persona, &kbType, &a.AvatarKey, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	a.KnowledgeBaseType = KnowledgeBaseType(kbType)

	if a.AuthorizedDomains, err = s.domains(ctx, a.ID); err != nil {
		return nil, err
	}
	if a.WebLinks, err = s.webLinks(ctx, a.ID); err != nil {
		return nil, err
	}
	return &a, nil
}

// List returns all agents of the organization, without their domain and
// link sets.
func (s *Store) List(ctx context.Context, organizationID string) ([]Agent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, organization_id, name, persona, knowledge_base_type, avatar_key, created_at, updated_at
		FROM beezbuddy.agents
		WHERE organization_id = $1
		ORDER BY created_at
	`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []Agent
	for rows.Next() {
		var a Agent
		var kbType string
		if err := rows.Scan(&a.ID, &a.OrganizationID, &a.Name, &a.Persona, &kbType, &a.AvatarKey, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		a.KnowledgeBaseType = KnowledgeBaseType(kbType)
		agents = append(agents, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agents: %w", err)
	}
	return agents, nil
}

// Profile resolves the agent slice the answer pipeline needs, joining the
// owning organization for its display name. Returns (nil, nil) when the
// agent does not exist in the organization.
func (s *Store) Profile(ctx context.Context, agentID, organizationID string) (*chat.AgentProfile, error) {
	var p chat.AgentProfile
	err := s.db.QueryRowContext(ctx, `
		SELECT a.id, a.organization_id, o.name, a.name, a.persona
		FROM beezbuddy.agents a
		JOIN beezbuddy.organizations o ON o.id = a.organization_id
		WHERE a.id = $1 AND a.organization_id = $2
	`, agentID, organizationID).Scan(&p.ID, &p.OrganizationID, &p.OrganizationName, &p.Name, &p.Persona)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load agent profile: %w", err)
	}

	if p.AuthorizedDomains, err = s.domains(ctx, p.ID); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) domains(ctx context.Context, agentID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT domain FROM beezbuddy.agent_authorized_domains WHERE agent_id = $1
	`, agentID)
	if err != nil {
		return nil, fmt.Errorf("load authorized domains: %w", err)
	}
	defer rows.Close()

	var domains []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan authorized domain: %w", err)
		}
		domains = append(domains, d)
	}
	return domains, rows.Err()
}

func (s *Store) webLinks(ctx context.Context, agentID string) ([]WebLink, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT url, is_spa FROM beezbuddy.agent_web_links WHERE agent_id = $1
	`, agentID)
	if err != nil {
		return nil, fmt.Errorf("load web links: %w", err)
	}
	defer rows.Close()

	var links []WebLink
	for rows.Next() {
		var l WebLink
		if err := rows.Scan(&l.URL, &l.IsSPA); err != nil {
			return nil, fmt.Errorf("scan web link: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// AddDocuments records object keys of uploaded knowledge-base files.
func (s *Store) AddDocuments(ctx context.Context, agentID string, docs []Document) error {
	for i := range docs {
		if docs[i].ID == "" {
			docs[i].ID = uuid.New().String()
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO beezbuddy.agent_documents (id, agent_id, object_key, filename, created_at)
			VALUES ($1, $2, $3, $4, NOW())
		`, docs[i].ID, agentID, docs[i].ObjectKey, docs[i].Filename)
		if err != nil {
			return fmt.Errorf("insert agent document: %w", err)
		}
	}
	return nil
}

// DocumentsByAgent lists the stored knowledge-base files for one agent.
func (s *Store) DocumentsByAgent(ctx context.Context, agentID string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agent_id, object_key, filename, created_at
		FROM beezbuddy.agent_documents
		WHERE agent_id = $1
		ORDER BY created_at
	`, agentID)
	if err != nil {
		return nil, fmt.Errorf("list agent documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.AgentID, &d.ObjectKey, &d.Filename, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan agent document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}
