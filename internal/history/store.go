package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Turn is one question/answer pair in a conversation log.
type Turn struct {
	ID        string
	AgentID   string
	Question  string
	Answer    string
	CreatedAt time.Time
}

// ConversationStore persists authenticated dashboard conversations, keyed
// by user id.
type ConversationStore struct {
	db *sql.DB
}

func NewConversationStore(db *sql.DB) *ConversationStore {
	return &ConversationStore{db: db}
}

// Append records one completed turn. Append-only; rows are never updated.
func (s *ConversationStore) Append(ctx context.Context, userID, agentID, question, answer string) error {
	if userID == "" || agentID == "" {
		return errors.New("user id and agent id are required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO beezbuddy.conversations (id, user_id, agent_id, question, answer, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`, uuid.New().String(), userID, agentID, question, answer)
	if err != nil {
		return fmt.Errorf("append conversation turn: %w", err)
	}
	return nil
}

// Recent returns the most recent turns for a user/agent pair, newest first.
func (s *ConversationStore) Recent(ctx context.Context, userID, agentID string, limit int) ([]Turn, error) {
	if userID == "" || agentID == "" {
		return nil, errors.New("user id and agent id are required")
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agent_id, question, answer, created_at
		FROM beezbuddy.conversations
		WHERE user_id = $1 AND agent_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, userID, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch conversation turns: %w", err)
	}
	defer rows.Close()

	return scanTurns(rows)
}

// PublicConversationStore persists anonymous widget conversations, keyed by
// the widget's ephemeral session id plus the agent.
type PublicConversationStore struct {
	db *sql.DB
}

func NewPublicConversationStore(db *sql.DB) *PublicConversationStore {
	return &PublicConversationStore{db: db}
}

func (s *PublicConversationStore) Append(ctx context.Context, sessionID, agentID, question, answer string) error {
	if sessionID == "" || agentID == "" {
		return errors.New("session id and agent id are required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO beezbuddy.public_conversations (id, session_id, agent_id, question, answer, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`, uuid.New().String(), sessionID, agentID, question, answer)
	if err != nil {
		return fmt.Errorf("append public conversation turn: %w", err)
	}
	return nil
}

func (s *PublicConversationStore) Recent(ctx context.Context, sessionID, agentID string, limit int) ([]Turn, error) {
	if sessionID == "" || agentID == "" {
		return nil, errors.New("session id and agent id are required")
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agent_id, question, answer, created_at
		FROM beezbuddy.public_conversations
		WHERE session_id = $1 AND agent_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, sessionID, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch public conversation turns: %w", err)
	}
	defer rows.Close()

	return scanTurns(rows)
}

func scanTurns(rows *sql.Rows) ([]Turn, error) {
	var turns []Turn
	for rows.Next() {
		var turn Turn
		if err := rows.Scan(&turn.ID, &turn.AgentID, &turn.Question, &turn.Answer, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation turn: %w", err)
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation turns: %w", err)
	}
	return turns, nil
}
