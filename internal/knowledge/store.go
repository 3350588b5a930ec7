package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// Scope pins every vector operation to one organization and one agent.
// Both fields are validated on every call; a query can never run without
// them.
type Scope struct {
	OrganizationID string
	AgentID        string
}

func (s Scope) validate() error {
	if s.OrganizationID == "" {
		return errors.New("organization id is required")
	}
	if s.AgentID == "" {
		return errors.New("agent id is required")
	}
	return nil
}

// Chunk is one embedded knowledge fragment stored in the vector table.
type Chunk struct {
	ID         string
	Text       string
	Metadata   map[string]any
	Similarity float64
}

// Searcher is the retrieval surface the answer pipeline depends on.
type Searcher interface {
	Search(ctx context.Context, scope Scope, embedding []float32, limit int) ([]Chunk, error)
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Search returns the top chunks for the question embedding, nearest first
// by cosine distance, restricted to the given scope.
func (s *Store) Search(ctx context.Context, scope Scope, embedding []float32, limit int) ([]Chunk, error) {
	if err := scope.validate(); err != nil {
		return nil, err
	}
	if len(embedding) == 0 {
		return nil, errors.New("embedding is required")
	}
	if limit <= 0 {
		limit = 4
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id,
			text,
			metadata,
			1 - (embedding <=> $3) AS similarity
		FROM ai.embeddings
		WHERE metadata->>'organizationId' = $1
		  AND metadata->>'agentId' = $2
		ORDER BY embedding <=> $3
		LIMIT $4
	`, scope.OrganizationID, scope.AgentID, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("search embeddings: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var chunk Chunk
		var metadataBytes []byte
		if err := rows.Scan(&chunk.ID, &chunk.Text, &metadataBytes, &chunk.Similarity); err != nil {
			return nil, fmt.Errorf("scan embedding chunk: %w", err)
		}
		if len(metadataBytes) > 0 {
			if err := json.Unmarshal(metadataBytes, &chunk.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embedding chunks: %w", err)
	}

	return chunks, nil
}

// IDsByAgent lists the ids of every chunk indexed for one agent. Used to
// build the replacement set on knowledge-base updates.
func (s *Store) IDsByAgent(ctx context.Context, scope Scope) ([]string, error) {
	if err := scope.validate(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id
		FROM ai.embeddings
		WHERE metadata->>'organizationId' = $1
		  AND metadata->>'agentId' = $2
	`, scope.OrganizationID, scope.AgentID)
	if err != nil {
		return nil, fmt.Errorf("list embedding ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan embedding id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embedding ids: %w", err)
	}

	return ids, nil
}

// DeleteByIDs removes specific vector rows. Returns the number of rows
// removed.
func (s *Store) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM ai.embeddings
		WHERE id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("delete embeddings: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted embeddings: %w", err)
	}
	return affected, nil
}

// DeleteByAgent removes every vector row indexed for one agent.
func (s *Store) DeleteByAgent(ctx context.Context, scope Scope) (int64, error) {
	if err := scope.validate(); err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM ai.embeddings
		WHERE metadata->>'organizationId' = $1
		  AND metadata->>'agentId' = $2
	`, scope.OrganizationID, scope.AgentID)
	if err != nil {
		return 0, fmt.Errorf("delete agent embeddings: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted agent embeddings: %w", err)
	}
	return affected, nil
}
