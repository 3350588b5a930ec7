package agent

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/galoberlyn/beezbuddy-be/internal/knowledge"
	"github.com/galoberlyn/beezbuddy-be/internal/storage"
	"github.com/galoberlyn/beezbuddy-be/pkg/logging"
)

// Deleter removes an agent and everything derived from it: relational
// rows, vector rows, and stored objects. Relational rows go in one
// transaction; vector and object cleanup run after commit so a crash can
// only leave orphans, never a half-deleted agent.
type Deleter struct {
	db      *sql.DB
	vectors *knowledge.Store
	objects *storage.S3Client
	logger  logging.Logger
}

func NewDeleter(db *sql.DB, vectors *knowledge.Store, objects *storage.S3Client, logger logging.Logger) *Deleter {
	return &Deleter{db: db, vectors: vectors, objects: objects, logger: logger}
}

// Delete cascades an agent's removal within its organization scope.
func (d *Deleter) Delete(ctx context.Context, agentID, organizationID string) error {
	scope := knowledge.Scope{OrganizationID: organizationID, AgentID: agentID}

	var avatarKey string
	err := d.db.QueryRowContext(ctx, `
		SELECT avatar_key FROM beezbuddy.agents
		WHERE id = $1 AND organization_id = $2
	`, agentID, organizationID).Scan(&avatarKey)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load agent for delete: %w", err)
	}

	var objectKeys []string
	if avatarKey != "" {
		objectKeys = append(objectKeys, avatarKey)
	}
	docRows, err := d.db.QueryContext(ctx, `
		SELECT object_key FROM beezbuddy.agent_documents WHERE agent_id = $1
	`, agentID)
	if err != nil {
		return fmt.Errorf("load document keys: %w", err)
	}
	for docRows.Next() {
		var key string
		if err := docRows.Scan(&key); err != nil {
			docRows.Close()
			return fmt.Errorf("scan document key: %w", err)
		}
		objectKeys = append(objectKeys, key)
	}
	docRows.Close()
	if err := docRows.Err(); err != nil {
		return fmt.Errorf("iterate document keys: %w", err)
	}

	if err := d.deleteRelational(ctx, agentID, organizationID); err != nil {
		return err
	}

	// Past this point failures are logged with enough detail to clean up
	// by hand; the agent itself is already gone. Deleting by scope rather
	// than by a pre-listed id set catches rows indexed mid-delete.
	deleted, err := d.vectors.DeleteByAgent(ctx, scope)
	if err != nil {
		d.logger.WithError(err).WithFields(logging.Fields{
			"agent_id":        agentID,
			"organization_id": organizationID,
		}).Error("Agent deleted but embedding cleanup failed")
		return fmt.Errorf("delete embeddings: %w", err)
	}

	for _, key := range objectKeys {
		if err := d.objects.Delete(ctx, key); err != nil {
			d.logger.WithError(err).WithFields(logging.Fields{
				"agent_id":   agentID,
				"object_key": key,
			}).Warn("Agent deleted but object cleanup failed")
		}
	}

	d.logger.WithFields(logging.Fields{
		"agent_id":           agentID,
		"organization_id":    organizationID,
		"embeddings_deleted": deleted,
		"objects_deleted":    len(objectKeys),
	}).Info("Agent deleted")
	return nil
}

func (d *Deleter) deleteRelational(ctx context.Context, agentID, organizationID string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete agent: %w", err)
	}
	defer tx.Rollback()

	statements := []string{
		`DELETE FROM beezbuddy.agent_authorized_domains WHERE agent_id = $1`,
		`DELETE FROM beezbuddy.agent_web_links WHERE agent_id = $1`,
		`DELETE FROM beezbuddy.agent_documents WHERE agent_id = $1`,
		`DELETE FROM beezbuddy.conversations WHERE agent_id = $1`,
		`DELETE FROM beezbuddy.public_conversations WHERE agent_id = $1`,
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt, agentID); err != nil {
			return fmt.Errorf("cascade delete: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `
		DELETE FROM beezbuddy.agents WHERE id = $1 AND organization_id = $2
	`, agentID, organizationID)
	if err != nil {
		return fmt.Errorf("delete agent row: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete agent rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete agent: %w", err)
	}
	return nil
}
