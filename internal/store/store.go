package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"reimbursement-service/internal/models"
)

// Typed store errors so callers branch on the class instead of matching
// error strings.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// classify maps driver errors onto the store's typed errors.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

// CreateSyncLog appends one row to the sync audit trail.
func (s *Store) CreateSyncLog(ctx context.Context, entry *models.SyncLog) error {
	query := `
		INSERT INTO sync_logs (sync_type, start_date, end_date, status,
			records_processed, records_added, records_updated, error_message, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`

	return classify(s.db.GetContext(ctx, entry, query,
		entry.SyncType, entry.StartDate, entry.EndDate, entry.Status,
		entry.RecordsProcessed, entry.RecordsAdded, entry.RecordsUpdated,
		entry.ErrorMessage, entry.CompletedAt))
}

// GetRecentSyncLogs returns the newest audit entries.
func (s *Store) GetRecentSyncLogs(ctx context.Context, limit int) ([]models.SyncLog, error) {
	var logs []models.SyncLog
	err := s.db.SelectContext(ctx, &logs,
		"SELECT * FROM sync_logs ORDER BY created_at DESC LIMIT $1", limit)
	return logs, err
}
