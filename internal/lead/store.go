// Package lead qualifies conversations into CRM leads exactly once.
package lead

import (
	"context"
	"database/sql"
	"time"

	agenterrors "bikeshop-agent/internal/common/errors"
)

// Record is the persisted lead row. ConversationID is unique: one lead per
// conversation, enforced by the database as well as the state machine.
type Record struct {
	ID                int64     `json:"id"`
	ConversationID    string    `json:"conversationId"`
	CRMLeadID         string    `json:"crmLeadId"`
	Name              string    `json:"name,omitempty"`
	Email             string    `json:"email,omitempty"`
	Phone             string    `json:"phone,omitempty"`
	BudgetMax         float64   `json:"budgetMax,omitempty"`
	PreferredCategory string    `json:"preferredCategory,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS leads (
	id BIGSERIAL PRIMARY KEY,
	conversation_id TEXT NOT NULL UNIQUE,
	crm_lead_id TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	budget_max NUMERIC NOT NULL DEFAULT 0,
	preferred_category TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// EnsureSchema creates the leads table on startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTableSQL); err != nil {
		return agenterrors.NewLeadStoreFailedError(err)
	}
	return nil
}

const insertSQL = `
INSERT INTO leads (conversation_id, crm_lead_id, name, email, phone, budget_max, preferred_category)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (conversation_id) DO NOTHING
RETURNING id, created_at`

// Insert writes the lead row. A conflict on conversation_id means the lead
// already exists; that is reported as ok with duplicate=true, not an error.
func (s *Store) Insert(ctx context.Context, rec *Record) (duplicate bool, err error) {
	row := s.db.QueryRowContext(ctx, insertSQL,
		rec.ConversationID, rec.CRMLeadID, rec.Name, rec.Email, rec.Phone,
		rec.BudgetMax, rec.PreferredCategory)

	switch err := row.Scan(&rec.ID, &rec.CreatedAt); err {
	case nil:
		return false, nil
	case sql.ErrNoRows:
		return true, nil
	default:
		return false, agenterrors.NewLeadStoreFailedError(err)
	}
}

const listSQL = `
SELECT id, conversation_id, crm_lead_id, name, email, phone, budget_max, preferred_category, created_at
FROM leads
ORDER BY created_at DESC
LIMIT $1`

// ListRecent returns the newest leads for the operations endpoint.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, listSQL, limit)
	if err != nil {
		return nil, agenterrors.NewLeadStoreFailedError(err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.ConversationID, &rec.CRMLeadID, &rec.Name,
			&rec.Email, &rec.Phone, &rec.BudgetMax, &rec.PreferredCategory, &rec.CreatedAt); err != nil {
			return nil, agenterrors.NewLeadStoreFailedError(err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, agenterrors.NewLeadStoreFailedError(err)
	}
	return out, nil
}

const countSQL = `SELECT COUNT(*) FROM leads`

// Count returns the total number of leads, used by the analytics endpoint.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, countSQL).Scan(&n); err != nil {
		return 0, agenterrors.NewLeadStoreFailedError(err)
	}
	return n, nil
}
