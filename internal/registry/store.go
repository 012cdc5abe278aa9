package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

// Store persists domain records in SQLite.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new record in pending_dns state. Uniqueness of the active
// hostname and of the tenant's active domain is enforced by the database, so
// concurrent creates for the same hostname or tenant resolve to exactly one
// winner.
func (s *Store) Create(ctx context.Context, tenantID, hostname string) (*Record, error) {
	rec := &Record{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Hostname:  hostname,
		Status:    StatusPendingDNS,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO domains (id, tenant_id, hostname, status, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.TenantID, rec.Hostname, string(rec.Status), rec.CreatedAt,
	)
	if err != nil {
		return nil, mapCreateErr(err)
	}
	return rec, nil
}

func mapCreateErr(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		// The violated index names the column in the error message.
		if strings.Contains(sqliteErr.Error(), "tenant_id") {
			return ErrTenantHasDomain
		}
		return ErrDomainTaken
	}
	return fmt.Errorf("failed to create domain: %w", err)
}

// GetByID returns a record regardless of its status.
func (s *Store) GetByID(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, hostname, status, created_at, verified_at, removed_at
		FROM domains WHERE id = ?`, id)
	return scanRecord(row)
}

// FindActiveByTenant returns the tenant's non-removed record, or ErrNotFound.
func (s *Store) FindActiveByTenant(ctx context.Context, tenantID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, hostname, status, created_at, verified_at, removed_at
		FROM domains WHERE tenant_id = ? AND removed_at IS NULL`, tenantID)
	return scanRecord(row)
}

// MarkVerified transitions pending_dns to verified. Calling it on an already
// verified record returns the record unchanged.
func (s *Store) MarkVerified(ctx context.Context, id string) (*Record, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE domains SET status = ?, verified_at = ?
		WHERE id = ? AND status = ?`,
		string(StatusVerified), now, id, string(StatusPendingDNS),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to mark domain verified: %w", err)
	}

	affected, _ := res.RowsAffected()
	rec, getErr := s.GetByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	if affected == 0 && rec.Status == StatusRemoved {
		return nil, ErrRemoved
	}
	return rec, nil
}

// Remove transitions any non-removed record to removed. Removing an already
// removed record succeeds silently; only a missing id is an error.
func (s *Store) Remove(ctx context.Context, id string) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE domains SET status = ?, removed_at = ?
		WHERE id = ? AND removed_at IS NULL`,
		string(StatusRemoved), now, id,
	)
	if err != nil {
		return fmt.Errorf("failed to remove domain: %w", err)
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		if _, err := s.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// ListActive returns all non-removed records, oldest first.
func (s *Store) ListActive(ctx context.Context) ([]*Record, error) {
	return s.list(ctx, `
		SELECT id, tenant_id, hostname, status, created_at, verified_at, removed_at
		FROM domains WHERE removed_at IS NULL ORDER BY created_at`)
}

// List returns records matching the filter, newest first.
func (s *Store) List(ctx context.Context, filter Filter) ([]*Record, error) {
	query := `
		SELECT id, tenant_id, hostname, status, created_at, verified_at, removed_at
		FROM domains WHERE 1=1`
	args := []any{}

	if filter.TenantID != "" {
		query += " AND tenant_id = ?"
		args = append(args, filter.TenantID)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	return s.list(ctx, query, args...)
}

// CountByStatus returns the number of non-removed records per status.
func (s *Store) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM domains
		WHERE removed_at IS NULL GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count domains: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[Status(status)] = n
	}
	return counts, rows.Err()
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecordRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecordRow(row scanner) (*Record, error) {
	rec := &Record{}
	var status string
	var verifiedAt, removedAt sql.NullTime

	err := row.Scan(&rec.ID, &rec.TenantID, &rec.Hostname, &status,
		&rec.CreatedAt, &verifiedAt, &removedAt)
	if err != nil {
		return nil, err
	}

	rec.Status = Status(status)
	if verifiedAt.Valid {
		t := verifiedAt.Time
		rec.VerifiedAt = &t
	}
	if removedAt.Valid {
		t := removedAt.Time
		rec.RemovedAt = &t
	}
	return rec, nil
}

func scanRecord(row *sql.Row) (*Record, error) {
	rec, err := scanRecordRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}
