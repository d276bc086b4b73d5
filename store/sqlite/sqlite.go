/*
Package sqlite provides the SQLite-backed store for the leave management system.

PURPOSE:
  Persists the three source tables the statistics engine watches:

    profiles:       Employee records (role, department, active flag, API token)
    leave_types:    Leave type definitions
    leave_requests: Time-off requests with approval state

  Every exported mutating method fires the registered change hook exactly once
  per statement, regardless of how many rows the statement touched. The hook is
  how the statistics refresher learns that the snapshot is stale.

CHANGE HOOK:
  store.OnChange(func(table string) { refresher.Schedule() })

  The hook runs after the statement committed, outside the store's lock, and its
  cost is whatever the callback does. The refresher's Schedule is non-blocking,
  so the write path never waits on statistics work.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - stats/aggregate.go: Reads these tables to build the snapshot
  - stats/refresher.go: Consumes the change hook
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Roles recognized on profiles. The statistics endpoint gates on admin/hr.
const (
	RoleAdmin    = "admin"
	RoleHR       = "hr"
	RoleManager  = "manager"
	RoleEmployee = "employee"
)

// Leave request statuses.
const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
)

// ChangeListener is notified once per mutating statement with the table name.
type ChangeListener func(table string)

// Store implements persistence for all source tables.
type Store struct {
	db *sql.DB
	mu sync.RWMutex

	listenerMu sync.RWMutex
	listener   ChangeListener
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// OnChange registers the change hook. Only one listener is supported; the
// refresher fans out from there.
func (s *Store) OnChange(fn ChangeListener) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	s.listener = fn
}

// notify fires the change hook once. Called after a successful statement,
// never while holding s.mu.
func (s *Store) notify(table string) {
	s.listenerMu.RLock()
	fn := s.listener
	s.listenerMu.RUnlock()
	if fn != nil {
		fn(table)
	}
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Employee profiles (watched source table)
	CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		role TEXT NOT NULL DEFAULT 'employee',
		department TEXT NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		api_token TEXT UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_profiles_role
		ON profiles(role);
	CREATE INDEX IF NOT EXISTS idx_profiles_department
		ON profiles(department);
	CREATE INDEX IF NOT EXISTS idx_profiles_token
		ON profiles(api_token) WHERE api_token IS NOT NULL;

	-- Leave type definitions (watched source table)
	CREATE TABLE IF NOT EXISTS leave_types (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		default_days REAL NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	-- Leave requests (watched source table)
	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		leave_type_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		days REAL NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		reason TEXT,
		reviewed_by TEXT,
		reviewed_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_leave_requests_employee
		ON leave_requests(employee_id);
	CREATE INDEX IF NOT EXISTS idx_leave_requests_status
		ON leave_requests(status);
	-- Composite index for the current-year aggregation scan (hot path)
	CREATE INDEX IF NOT EXISTS idx_leave_requests_start_status
		ON leave_requests(start_date, status);
	CREATE INDEX IF NOT EXISTS idx_leave_requests_type
		ON leave_requests(leave_type_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// PROFILES
// =============================================================================

// Profile represents an employee record.
type Profile struct {
	ID         string
	Name       string
	Email      string
	Role       string
	Department string
	Active     bool
	APIToken   string
	CreatedAt  time.Time
}

// SaveProfile inserts or updates a profile. Fires the change hook once.
func (s *Store) SaveProfile(ctx context.Context, p Profile) error {
	s.mu.Lock()

	query := `
		INSERT INTO profiles (id, name, email, role, department, active, api_token, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			role = excluded.role,
			department = excluded.department,
			active = excluded.active,
			api_token = excluded.api_token
	`

	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.Name, p.Email, p.Role, p.Department, p.Active,
		nullString(p.APIToken),
		time.Now().UTC().Format(time.RFC3339),
	)
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	s.notify("profiles")
	return nil
}

// GetProfile retrieves a profile by ID.
func (s *Store) GetProfile(ctx context.Context, id string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryOneProfile(ctx,
		"SELECT id, name, email, role, department, active, api_token, created_at FROM profiles WHERE id = ?",
		id,
	)
}

// GetProfileByToken retrieves a profile by its API token. Used by the auth
// verifier; a missing token returns (nil, nil).
func (s *Store) GetProfileByToken(ctx context.Context, token string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryOneProfile(ctx,
		"SELECT id, name, email, role, department, active, api_token, created_at FROM profiles WHERE api_token = ?",
		token,
	)
}

func (s *Store) queryOneProfile(ctx context.Context, query string, args ...any) (*Profile, error) {
	var p Profile
	var email, token sql.NullString
	var createdAt string

	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&p.ID, &p.Name, &email, &p.Role, &p.Department, &p.Active, &token, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	p.Email = email.String
	p.APIToken = token.String
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &p, nil
}

// ListProfiles returns all profiles ordered by name.
func (s *Store) ListProfiles(ctx context.Context) ([]Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, email, role, department, active, api_token, created_at FROM profiles ORDER BY name",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		var p Profile
		var email, token sql.NullString
		var createdAt string
		if err := rows.Scan(&p.ID, &p.Name, &email, &p.Role, &p.Department, &p.Active, &token, &createdAt); err != nil {
			return nil, err
		}
		p.Email = email.String
		p.APIToken = token.String
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// DeleteProfile removes a profile. Fires the change hook once.
func (s *Store) DeleteProfile(ctx context.Context, id string) error {
	s.mu.Lock()
	_, err := s.db.ExecContext(ctx, "DELETE FROM profiles WHERE id = ?", id)
	s.mu.Unlock()

	if err != nil {
		return err
	}
	s.notify("profiles")
	return nil
}

// DeactivateProfiles marks the given profiles inactive in a single statement.
// A batch of K ids fires the change hook once, not K times.
func (s *Store) DeactivateProfiles(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE profiles SET active = FALSE WHERE id IN ("+placeholders+")",
		args...,
	)
	s.mu.Unlock()

	if err != nil {
		return 0, fmt.Errorf("failed to deactivate profiles: %w", err)
	}
	affected, _ := res.RowsAffected()
	s.notify("profiles")
	return affected, nil
}

// =============================================================================
// LEAVE TYPES
// =============================================================================

// LeaveType represents a leave type definition.
type LeaveType struct {
	ID          string
	Name        string
	DefaultDays float64
	CreatedAt   time.Time
}

// SaveLeaveType inserts or updates a leave type. Fires the change hook once.
func (s *Store) SaveLeaveType(ctx context.Context, lt LeaveType) error {
	s.mu.Lock()

	query := `
		INSERT INTO leave_types (id, name, default_days, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			default_days = excluded.default_days
	`

	_, err := s.db.ExecContext(ctx, query,
		lt.ID, lt.Name, lt.DefaultDays,
		time.Now().UTC().Format(time.RFC3339),
	)
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to save leave type: %w", err)
	}
	s.notify("leave_types")
	return nil
}

// GetLeaveType retrieves a leave type by ID.
func (s *Store) GetLeaveType(ctx context.Context, id string) (*LeaveType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var lt LeaveType
	var createdAt string

	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, default_days, created_at FROM leave_types WHERE id = ?",
		id,
	).Scan(&lt.ID, &lt.Name, &lt.DefaultDays, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	lt.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &lt, nil
}

// ListLeaveTypes returns all leave types ordered by name.
func (s *Store) ListLeaveTypes(ctx context.Context) ([]LeaveType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, default_days, created_at FROM leave_types ORDER BY name",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []LeaveType
	for rows.Next() {
		var lt LeaveType
		var createdAt string
		if err := rows.Scan(&lt.ID, &lt.Name, &lt.DefaultDays, &createdAt); err != nil {
			return nil, err
		}
		lt.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		types = append(types, lt)
	}
	return types, rows.Err()
}

// DeleteLeaveType removes a leave type. Fires the change hook once.
func (s *Store) DeleteLeaveType(ctx context.Context, id string) error {
	s.mu.Lock()
	_, err := s.db.ExecContext(ctx, "DELETE FROM leave_types WHERE id = ?", id)
	s.mu.Unlock()

	if err != nil {
		return err
	}
	s.notify("leave_types")
	return nil
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

// LeaveRequest represents a time-off request in storage.
type LeaveRequest struct {
	ID          string
	EmployeeID  string
	LeaveTypeID string
	StartDate   time.Time
	EndDate     time.Time
	Days        float64
	Status      string // pending, approved, rejected, cancelled
	Reason      string
	ReviewedBy  string
	ReviewedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SaveLeaveRequest inserts or updates a leave request. Fires the change hook once.
func (s *Store) SaveLeaveRequest(ctx context.Context, r LeaveRequest) error {
	s.mu.Lock()

	query := `
		INSERT INTO leave_requests (id, employee_id, leave_type_id, start_date, end_date,
			days, status, reason, reviewed_by, reviewed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			reviewed_by = excluded.reviewed_by,
			reviewed_at = excluded.reviewed_at,
			updated_at = excluded.updated_at
	`

	var reviewedAt *string
	if r.ReviewedAt != nil {
		t := r.ReviewedAt.Format(time.RFC3339)
		reviewedAt = &t
	}

	now := time.Now().UTC()
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := r.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}

	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.EmployeeID, r.LeaveTypeID,
		r.StartDate.Format(time.RFC3339), r.EndDate.Format(time.RFC3339),
		r.Days, r.Status, r.Reason, nullString(r.ReviewedBy), reviewedAt,
		createdAt.Format(time.RFC3339), updatedAt.Format(time.RFC3339),
	)
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to save leave request: %w", err)
	}
	s.notify("leave_requests")
	return nil
}

// UpdateLeaveRequestStatus transitions a request's status in a single statement.
// Fires the change hook once. Returns false if no row was updated.
func (s *Store) UpdateLeaveRequestStatus(ctx context.Context, id, status, reviewedBy string) (bool, error) {
	s.mu.Lock()

	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `
		UPDATE leave_requests
		SET status = ?, reviewed_by = ?, reviewed_at = ?, updated_at = ?
		WHERE id = ?`,
		status, nullString(reviewedBy), now, now, id,
	)
	s.mu.Unlock()

	if err != nil {
		return false, fmt.Errorf("failed to update leave request status: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return false, nil
	}
	s.notify("leave_requests")
	return true, nil
}

// GetLeaveRequest retrieves a request by ID.
func (s *Store) GetLeaveRequest(ctx context.Context, id string) (*LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, employee_id, leave_type_id, start_date, end_date, days, status,
			reason, reviewed_by, reviewed_at, created_at, updated_at
		FROM leave_requests WHERE id = ?
	`

	reqs, err := s.queryLeaveRequests(ctx, query, id)
	if err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return nil, nil
	}
	return &reqs[0], nil
}

// ListLeaveRequests returns all leave requests, newest first.
func (s *Store) ListLeaveRequests(ctx context.Context) ([]LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, employee_id, leave_type_id, start_date, end_date, days, status,
			reason, reviewed_by, reviewed_at, created_at, updated_at
		FROM leave_requests
		ORDER BY created_at DESC
	`

	return s.queryLeaveRequests(ctx, query)
}

// ListLeaveRequestsByEmployee returns an employee's requests, newest first.
func (s *Store) ListLeaveRequestsByEmployee(ctx context.Context, employeeID string) ([]LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, employee_id, leave_type_id, start_date, end_date, days, status,
			reason, reviewed_by, reviewed_at, created_at, updated_at
		FROM leave_requests
		WHERE employee_id = ?
		ORDER BY created_at DESC
	`

	return s.queryLeaveRequests(ctx, query, employeeID)
}

func (s *Store) queryLeaveRequests(ctx context.Context, query string, args ...any) ([]LeaveRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leave requests: %w", err)
	}
	defer rows.Close()

	var requests []LeaveRequest
	for rows.Next() {
		var r LeaveRequest
		var startDate, endDate, createdAt, updatedAt string
		var reason, reviewedBy, reviewedAt sql.NullString

		if err := rows.Scan(
			&r.ID, &r.EmployeeID, &r.LeaveTypeID, &startDate, &endDate, &r.Days,
			&r.Status, &reason, &reviewedBy, &reviewedAt, &createdAt, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan leave request: %w", err)
		}

		r.StartDate, _ = time.Parse(time.RFC3339, startDate)
		r.EndDate, _ = time.Parse(time.RFC3339, endDate)
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		r.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		r.Reason = reason.String
		r.ReviewedBy = reviewedBy.String
		if reviewedAt.Valid {
			t, _ := time.Parse(time.RFC3339, reviewedAt.String)
			r.ReviewedAt = &t
		}

		requests = append(requests, r)
	}

	return requests, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo). Fires the change hook once.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()

	tables := []string{"leave_requests", "leave_types", "profiles"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	s.mu.Unlock()

	s.notify("*")
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
