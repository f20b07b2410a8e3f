package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/julianbeese/immo_search/internal/domain"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Repository provides database access for snapshots, visit requests and
// the activity log
type Repository struct {
	db *sql.DB
}

// Stats summarizes what the database holds
type Stats struct {
	Snapshots     int
	Records       int
	VisitRequests int
	Activities    int
}

// New creates a new SQLite repository and runs migrations
func New(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return repo, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// DB returns the underlying database connection for custom queries
func (r *Repository) DB() *sql.DB {
	return r.db
}

func (r *Repository) migrate() error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return err
	}
	for _, e := range entries {
		migration, err := migrationsFS.ReadFile("migrations/" + e.Name())
		if err != nil {
			return err
		}
		if _, err := r.db.Exec(string(migration)); err != nil {
			return fmt.Errorf("%s: %w", e.Name(), err)
		}
	}
	return nil
}

// Snapshot methods

// SaveSnapshot replaces the stored record set of the snapshot's rent type
func (r *Repository) SaveSnapshot(ctx context.Context, snap *domain.ListingSnapshot) error {
	payload, err := json.Marshal(snap.Records)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	fetchedAt := snap.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO listing_snapshots (rent_type, payload, record_count, fetched_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(rent_type) DO UPDATE SET
			payload = excluded.payload,
			record_count = excluded.record_count,
			fetched_at = excluded.fetched_at
	`, string(snap.RentType), string(payload), len(snap.Records), fetchedAt.Unix())
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the stored record set of a rent type, or nil if
// none was saved yet
func (r *Repository) LoadSnapshot(ctx context.Context, rentType domain.RentType) (*domain.ListingSnapshot, error) {
	var payload string
	var fetchedAt int64
	err := r.db.QueryRowContext(ctx, `
		SELECT payload, fetched_at FROM listing_snapshots WHERE rent_type = ?
	`, string(rentType)).Scan(&payload, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	snap := &domain.ListingSnapshot{
		RentType:  rentType,
		FetchedAt: time.Unix(fetchedAt, 0),
	}
	if err := json.Unmarshal([]byte(payload), &snap.Records); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// VisitRequest methods

// SaveVisitRequest records a submitted visit request. A second request for
// the same property is ignored.
func (r *Repository) SaveVisitRequest(ctx context.Context, vr *domain.VisitRequest) error {
	if vr.CreatedAt.IsZero() {
		vr.CreatedAt = time.Now()
	}
	status := vr.Status
	if status == "" {
		status = domain.VisitStatusPending
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO visit_requests (id, property_id, message, status, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, vr.ID, vr.PropertyID, vr.Message, status, vr.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("save visit request: %w", err)
	}
	return nil
}

// ListVisitRequests returns every stored visit request, oldest first
func (r *Repository) ListVisitRequests(ctx context.Context) ([]domain.VisitRequest, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, property_id, message, status, created_at
		FROM visit_requests ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list visit requests: %w", err)
	}
	defer rows.Close()

	var requests []domain.VisitRequest
	for rows.Next() {
		var vr domain.VisitRequest
		var createdAt int64
		if err := rows.Scan(&vr.ID, &vr.PropertyID, &vr.Message, &vr.Status, &createdAt); err != nil {
			return nil, err
		}
		vr.CreatedAt = time.Unix(createdAt, 0)
		requests = append(requests, vr)
	}
	return requests, rows.Err()
}

// ActivityLog methods

// LogActivity records an activity
func (r *Repository) LogActivity(ctx context.Context, log *domain.ActivityLog) error {
	now := time.Now()
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO activity_log (action, entity_type, entity_id, details, error_msg, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, log.Action, nullableString(log.EntityType), nullableString(log.EntityID),
		nullableString(log.Details), nullableString(log.ErrorMsg), now.Unix())
	if err != nil {
		return err
	}

	id, _ := result.LastInsertId()
	log.ID = id
	log.CreatedAt = now
	return nil
}

// RecentActivity returns the latest activity entries, newest first
func (r *Repository) RecentActivity(ctx context.Context, limit int) ([]domain.ActivityLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, action, entity_type, entity_id, details, error_msg, created_at
		FROM activity_log ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []domain.ActivityLog
	for rows.Next() {
		var l domain.ActivityLog
		var entityType, entityID, details, errorMsg sql.NullString
		var createdAt int64
		if err := rows.Scan(&l.ID, &l.Action, &entityType, &entityID, &details, &errorMsg, &createdAt); err != nil {
			return nil, err
		}
		l.EntityType = entityType.String
		l.EntityID = entityID.String
		l.Details = details.String
		l.ErrorMsg = errorMsg.String
		l.CreatedAt = time.Unix(createdAt, 0)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// Stats returns row counts across all tables
func (r *Repository) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM listing_snapshots),
			(SELECT COALESCE(SUM(record_count), 0) FROM listing_snapshots),
			(SELECT COUNT(*) FROM visit_requests),
			(SELECT COUNT(*) FROM activity_log)
	`).Scan(&s.Snapshots, &s.Records, &s.VisitRequests, &s.Activities)
	if err != nil {
		return Stats{}, fmt.Errorf("query stats: %w", err)
	}
	return s, nil
}

// Helper functions

func nullableString(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}
