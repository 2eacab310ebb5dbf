package lead

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	return db, mock
}

func TestStore_Insert(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	store := NewStore(db)

	rec := &Record{
		ConversationID:    "conv-1",
		CRMLeadID:         "crm-42",
		Name:              "Anna Schmidt",
		Email:             "anna@example.com",
		BudgetMax:         1600,
		PreferredCategory: "trail",
	}

	now := time.Now()
	mock.ExpectQuery("INSERT INTO leads").
		WithArgs("conv-1", "crm-42", "Anna Schmidt", "anna@example.com", "", 1600.0, "trail").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), now))

	dup, err := store.Insert(context.Background(), rec)
	require.NoError(t, err)
	assert.False(t, dup)
	assert.Equal(t, int64(7), rec.ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_InsertConflictIsDuplicateNotError(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	store := NewStore(db)

	// ON CONFLICT DO NOTHING yields no RETURNING row.
	mock.ExpectQuery("INSERT INTO leads").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}))

	dup, err := store.Insert(context.Background(), &Record{ConversationID: "conv-1", CRMLeadID: "crm-42"})
	require.NoError(t, err)
	assert.True(t, dup)
}

func TestStore_InsertFailure(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	store := NewStore(db)

	mock.ExpectQuery("INSERT INTO leads").
		WillReturnError(sql.ErrConnDone)

	_, err := store.Insert(context.Background(), &Record{ConversationID: "conv-1"})
	require.Error(t, err)
}

func TestStore_ListRecent(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	store := NewStore(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "conversation_id", "crm_lead_id", "name", "email", "phone",
		"budget_max", "preferred_category", "created_at",
	}).
		AddRow(int64(2), "conv-2", "crm-2", "Ben", "ben@example.com", "", 0.0, "", now).
		AddRow(int64(1), "conv-1", "crm-1", "Anna", "anna@example.com", "", 1600.0, "trail", now.Add(-time.Hour))

	mock.ExpectQuery("SELECT (.+) FROM leads").
		WithArgs(10).
		WillReturnRows(rows)

	leads, err := store.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, leads, 2)
	assert.Equal(t, "conv-2", leads[0].ConversationID)
	assert.Equal(t, "Anna", leads[1].Name)
}

func TestStore_Count(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	store := NewStore(db)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(5)))

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestStore_EnsureSchema(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	store := NewStore(db)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS leads").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
}
