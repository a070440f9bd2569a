/*
Package sqlite provides the SQLite-backed persistence for the incentive service.

PURPOSE:
  Stores everything the service needs between restarts: scheme
  definitions, the merged performance records of the current upload, the
  join configuration used to build them, manager activity logs and a
  history of evaluation runs. In production, the same patterns apply to
  PostgreSQL with minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  incentive.RecordSource: merged records for batch evaluation
  incentive.SchemeSource: through Store.SchemeSource(factory)

KEY TABLES:
  schemes:         Scheme documents as JSON (versioned on every save)
  records:         Merged upload rows as JSON, in upload order (keys may repeat)
  join_config:     Key columns and manager columns of the current upload
  view_config:     Manager view categories and display columns
  message_logs:    Share messages sent by managers (month keyed)
  login_logs:      Manager logins
  evaluation_runs: Batch evaluation history

MONTHLY LOGS:
  message_logs carries a YYYYMM month_key. CleanupOldMonthLogs drops
  months outside the retention window; the API scheduler runs it.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging): readers don't block
  and there is a single writer at a time.

USAGE:
  store, err := sqlite.New("./data/incentive.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool with versioned migrations.

SEE ALSO:
  - factory/scheme.go: Scheme JSON format
  - ingest/: How records are built
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/incentive-engine/factory"
	"github.com/warp/incentive-engine/incentive"
	"github.com/warp/incentive-engine/ingest"
)

// MonthKeyLayout formats message_logs.month_key.
const MonthKeyLayout = "200601"

// Store implements the service's persistence using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection would get its own empty database.
		db.SetMaxOpenConns(1)
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

// Ping checks the connection (health endpoint).
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Scheme documents
	CREATE TABLE IF NOT EXISTS schemes (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		config_json TEXT NOT NULL,
		position INTEGER NOT NULL DEFAULT 0,
		version INTEGER DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Merged performance records of the current upload
	-- A key may repeat: an outer join emits one row per pairing.
	CREATE TABLE IF NOT EXISTS records (
		position INTEGER PRIMARY KEY,
		record_key TEXT NOT NULL,
		fields_json TEXT NOT NULL,
		loaded_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_records_key
		ON records(record_key, position);

	-- Join configuration of the current upload (single row)
	CREATE TABLE IF NOT EXISTS join_config (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		file_a_key TEXT,
		file_b_key TEXT,
		manager_columns_json TEXT,
		customer_name_column TEXT,
		customer_number_column TEXT,
		columns_json TEXT,
		created_at TEXT NOT NULL
	);

	-- Manager view: custom categories and display columns (single row)
	CREATE TABLE IF NOT EXISTS view_config (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		categories_json TEXT NOT NULL,
		display_columns_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Share messages sent by managers
	CREATE TABLE IF NOT EXISTS message_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		manager_code TEXT NOT NULL,
		manager_name TEXT,
		customer_number TEXT NOT NULL,
		customer_name TEXT,
		message_type INTEGER NOT NULL,
		sent_at TEXT NOT NULL,
		month_key TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_msg_manager ON message_logs(manager_code);
	CREATE INDEX IF NOT EXISTS idx_msg_month ON message_logs(month_key);
	CREATE INDEX IF NOT EXISTS idx_msg_customer ON message_logs(customer_number);

	-- Manager logins
	CREATE TABLE IF NOT EXISTS login_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		manager_code TEXT NOT NULL,
		manager_name TEXT,
		login_at TEXT NOT NULL,
		month_key TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_login_manager ON login_logs(manager_code);
	CREATE INDEX IF NOT EXISTS idx_login_month ON login_logs(month_key);

	-- Batch evaluation history
	CREATE TABLE IF NOT EXISTS evaluation_runs (
		id TEXT PRIMARY KEY,
		scope TEXT NOT NULL,
		scheme_version INTEGER NOT NULL,
		record_count INTEGER NOT NULL,
		dropped_count INTEGER NOT NULL,
		grand_total TEXT NOT NULL,
		started_at TEXT NOT NULL,
		duration_ms INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON evaluation_runs(started_at DESC);
	`

	if err := s.dropKeyedRecords(); err != nil {
		return err
	}
	_, err := s.db.Exec(schema)
	return err
}

// dropKeyedRecords removes a records table created with record_key as the
// primary key. Records only hold the current upload and are re-uploaded.
func (s *Store) dropKeyedRecords() error {
	var ddl string
	err := s.db.QueryRow("SELECT sql FROM sqlite_master WHERE type = 'table' AND name = 'records'").Scan(&ddl)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}
	if !strings.Contains(ddl, "record_key TEXT PRIMARY KEY") {
		return nil
	}
	_, err = s.db.Exec("DROP TABLE records")
	return err
}

// Reset clears all data (for demo scenarios).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"schemes", "records", "join_config", "view_config", "message_logs", "login_logs", "evaluation_runs"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// SCHEME STORE
// =============================================================================

// SchemeRecord is a stored scheme with its JSON document.
type SchemeRecord struct {
	ID         string
	Name       string
	Category   string
	ConfigJSON string
	Position   int
	Version    int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SaveScheme inserts or updates a scheme. Updates bump the version.
func (s *Store) SaveScheme(ctx context.Context, rec SchemeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO schemes (id, name, category, config_json, position, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			config_json = excluded.config_json,
			position = excluded.position,
			version = schemes.version + 1,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.Name, rec.Category, rec.ConfigJSON, rec.Position, now, now,
	)
	return err
}

// GetScheme retrieves a scheme by ID. Returns nil, nil when absent.
func (s *Store) GetScheme(ctx context.Context, id string) (*SchemeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var r SchemeRecord
	var createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, category, config_json, position, version, created_at, updated_at FROM schemes WHERE id = ?",
		id,
	).Scan(&r.ID, &r.Name, &r.Category, &r.ConfigJSON, &r.Position, &r.Version, &createdAt, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	r.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &r, nil
}

// ListSchemes returns all schemes in display order.
func (s *Store) ListSchemes(ctx context.Context) ([]SchemeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, category, config_json, position, version, created_at, updated_at FROM schemes ORDER BY position, created_at, id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schemes []SchemeRecord
	for rows.Next() {
		var r SchemeRecord
		var createdAt, updatedAt string
		if err := rows.Scan(&r.ID, &r.Name, &r.Category, &r.ConfigJSON, &r.Position, &r.Version, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		r.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		schemes = append(schemes, r)
	}
	return schemes, rows.Err()
}

// DeleteScheme removes a scheme. Reports whether a row was deleted.
func (s *Store) DeleteScheme(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM schemes WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// SchemeSource adapts the scheme table to incentive.SchemeSource.
func (s *Store) SchemeSource(f *factory.SchemeFactory) incentive.SchemeSource {
	return &schemeSource{store: s, factory: f}
}

type schemeSource struct {
	store   *Store
	factory *factory.SchemeFactory
}

// LoadSchemes parses every stored scheme. One bad document fails the load
// so a partial configuration is never published.
func (src *schemeSource) LoadSchemes(ctx context.Context) ([]incentive.SchemeDefinition, error) {
	recs, err := src.store.ListSchemes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list schemes: %w", err)
	}
	out := make([]incentive.SchemeDefinition, 0, len(recs))
	for _, r := range recs {
		sd, err := src.factory.ParseScheme(r.ConfigJSON)
		if err != nil {
			return nil, fmt.Errorf("stored scheme %s: %w", r.ID, err)
		}
		out = append(out, sd)
	}
	return out, nil
}

// =============================================================================
// RECORD STORE
// =============================================================================

// JoinConfig describes how the current records were merged.
type JoinConfig struct {
	KeyA                 string
	KeyB                 string
	ManagerColumns       []string
	CustomerNameColumn   string
	CustomerNumberColumn string
	Columns              []string
	CreatedAt            time.Time
}

// ReplaceRecords swaps the stored upload for a new one in one transaction.
func (s *Store) ReplaceRecords(ctx context.Context, records []incentive.Record, cfg JoinConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM records"); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO records (record_key, position, fields_json, loaded_at) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for i, r := range records {
		fields, err := json.Marshal(r.Fields)
		if err != nil {
			return fmt.Errorf("failed to encode record %s: %w", r.Key, err)
		}
		if _, err := stmt.ExecContext(ctx, r.Key, i, string(fields), now); err != nil {
			return fmt.Errorf("failed to insert record %s: %w", r.Key, err)
		}
	}

	managers, _ := json.Marshal(cfg.ManagerColumns)
	columns, _ := json.Marshal(cfg.Columns)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO join_config (id, file_a_key, file_b_key, manager_columns_json,
			customer_name_column, customer_number_column, columns_json, created_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			file_a_key = excluded.file_a_key,
			file_b_key = excluded.file_b_key,
			manager_columns_json = excluded.manager_columns_json,
			customer_name_column = excluded.customer_name_column,
			customer_number_column = excluded.customer_number_column,
			columns_json = excluded.columns_json,
			created_at = excluded.created_at
	`, cfg.KeyA, cfg.KeyB, string(managers), cfg.CustomerNameColumn, cfg.CustomerNumberColumn, string(columns), now)
	if err != nil {
		return fmt.Errorf("failed to save join config: %w", err)
	}

	return tx.Commit()
}

// GetRecord returns the first uploaded record with key. Returns nil, nil
// when absent.
func (s *Store) GetRecord(ctx context.Context, key string) (*incentive.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var fieldsJSON string
	err := s.db.QueryRowContext(ctx, "SELECT fields_json FROM records WHERE record_key = ? ORDER BY position LIMIT 1", key).Scan(&fieldsJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rec := incentive.Record{Key: key}
	if err := json.Unmarshal([]byte(fieldsJSON), &rec.Fields); err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", key, err)
	}
	return &rec, nil
}

// ListRecords returns all records in upload order.
func (s *Store) ListRecords(ctx context.Context) ([]incentive.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT record_key, fields_json FROM records ORDER BY position")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []incentive.Record
	for rows.Next() {
		var rec incentive.Record
		var fieldsJSON string
		if err := rows.Scan(&rec.Key, &fieldsJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(fieldsJSON), &rec.Fields); err != nil {
			return nil, fmt.Errorf("failed to decode record %s: %w", rec.Key, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LoadRecords implements incentive.RecordSource.
func (s *Store) LoadRecords(ctx context.Context) ([]incentive.Record, error) {
	return s.ListRecords(ctx)
}

// CountRecords returns the number of stored records.
func (s *Store) CountRecords(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records").Scan(&n)
	return n, err
}

// GetJoinConfig returns the current join configuration, or nil.
func (s *Store) GetJoinConfig(ctx context.Context) (*JoinConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cfg JoinConfig
	var managers, columns, createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT file_a_key, file_b_key, manager_columns_json, customer_name_column,
		       customer_number_column, columns_json, created_at
		FROM join_config WHERE id = 1
	`).Scan(&cfg.KeyA, &cfg.KeyB, &managers, &cfg.CustomerNameColumn, &cfg.CustomerNumberColumn, &columns, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	_ = json.Unmarshal([]byte(managers), &cfg.ManagerColumns)
	_ = json.Unmarshal([]byte(columns), &cfg.Columns)
	cfg.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &cfg, nil
}

// SaveView stores the manager view configuration.
func (s *Store) SaveView(ctx context.Context, v ingest.View) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	categories, err := json.Marshal(v.Categories)
	if err != nil {
		return fmt.Errorf("failed to encode categories: %w", err)
	}
	columns, err := json.Marshal(v.Columns)
	if err != nil {
		return fmt.Errorf("failed to encode display columns: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO view_config (id, categories_json, display_columns_json, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			categories_json = excluded.categories_json,
			display_columns_json = excluded.display_columns_json,
			updated_at = excluded.updated_at
	`, string(categories), string(columns), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save view config: %w", err)
	}
	return nil
}

// GetView returns the manager view configuration, or nil.
func (s *Store) GetView(ctx context.Context) (*ingest.View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var categories, columns string
	err := s.db.QueryRowContext(ctx,
		"SELECT categories_json, display_columns_json FROM view_config WHERE id = 1",
	).Scan(&categories, &columns)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var v ingest.View
	if err := json.Unmarshal([]byte(categories), &v.Categories); err != nil {
		return nil, fmt.Errorf("failed to decode categories: %w", err)
	}
	if err := json.Unmarshal([]byte(columns), &v.Columns); err != nil {
		return nil, fmt.Errorf("failed to decode display columns: %w", err)
	}
	return &v, nil
}

// =============================================================================
// MESSAGE LOGS
// =============================================================================

// MessageLog is one share message sent by a manager.
type MessageLog struct {
	ID             int64
	ManagerCode    string
	ManagerName    string
	CustomerNumber string
	CustomerName   string
	MessageType    int
	SentAt         time.Time
	MonthKey       string
}

// MessageStat counts messages of one type.
type MessageStat struct {
	Customers int `json:"customers"`
	Count     int `json:"count"`
}

// ManagerMessageSummary is one row of the admin message summary.
type ManagerMessageSummary struct {
	ManagerCode string `json:"manager_code"`
	ManagerName string `json:"manager_name"`
	MessageType int    `json:"message_type"`
	Customers   int    `json:"customers"`
	Count       int    `json:"count"`
}

// MonthKey returns the month_key for t.
func MonthKey(t time.Time) string {
	return t.Format(MonthKeyLayout)
}

// LogMessage records a sent message. SentAt defaults to now.
func (s *Store) LogMessage(ctx context.Context, m MessageLog) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.SentAt.IsZero() {
		m.SentAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO message_logs
			(manager_code, manager_name, customer_number, customer_name, message_type, sent_at, month_key)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, m.ManagerCode, m.ManagerName, m.CustomerNumber, m.CustomerName, m.MessageType,
		m.SentAt.UTC().Format(time.RFC3339), MonthKey(m.SentAt))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// MessagesForCustomer returns one manager/customer pair's logs for a month,
// newest first.
func (s *Store) MessagesForCustomer(ctx context.Context, managerCode, customerNumber, monthKey string) ([]MessageLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, manager_code, manager_name, customer_number, customer_name, message_type, sent_at, month_key
		FROM message_logs
		WHERE manager_code = ? AND customer_number = ? AND month_key = ?
		ORDER BY sent_at DESC, id DESC
	`, managerCode, customerNumber, monthKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []MessageLog
	for rows.Next() {
		var m MessageLog
		var name, custName sql.NullString
		var sentAt string
		if err := rows.Scan(&m.ID, &m.ManagerCode, &name, &m.CustomerNumber, &custName, &m.MessageType, &sentAt, &m.MonthKey); err != nil {
			return nil, err
		}
		m.ManagerName = name.String
		m.CustomerName = custName.String
		m.SentAt, _ = time.Parse(time.RFC3339, sentAt)
		logs = append(logs, m)
	}
	return logs, rows.Err()
}

// MessageSummary groups one manager's messages of a month by type.
func (s *Store) MessageSummary(ctx context.Context, managerCode, monthKey string) (map[int]MessageStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT message_type, COUNT(DISTINCT customer_number), COUNT(*)
		FROM message_logs
		WHERE manager_code = ? AND month_key = ?
		GROUP BY message_type
	`, managerCode, monthKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int]MessageStat)
	for rows.Next() {
		var typ int
		var st MessageStat
		if err := rows.Scan(&typ, &st.Customers, &st.Count); err != nil {
			return nil, err
		}
		out[typ] = st
	}
	return out, rows.Err()
}

// AllMessageSummary groups a month's messages by manager and type.
func (s *Store) AllMessageSummary(ctx context.Context, monthKey string) ([]ManagerMessageSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT manager_code, COALESCE(MAX(manager_name), ''), message_type,
		       COUNT(DISTINCT customer_number), COUNT(*)
		FROM message_logs
		WHERE month_key = ?
		GROUP BY manager_code, message_type
		ORDER BY manager_code, message_type
	`, monthKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ManagerMessageSummary
	for rows.Next() {
		var m ManagerMessageSummary
		if err := rows.Scan(&m.ManagerCode, &m.ManagerName, &m.MessageType, &m.Customers, &m.Count); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CleanupOldMonthLogs deletes message logs older than keepMonths months
// counted back from now (keepMonths=1 keeps only the current month).
func (s *Store) CleanupOldMonthLogs(ctx context.Context, now time.Time, keepMonths int) (int64, error) {
	if keepMonths < 1 {
		return 0, errors.New("keepMonths must be at least 1")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	cutoff := MonthKey(first.AddDate(0, -(keepMonths - 1), 0))

	res, err := s.db.ExecContext(ctx, "DELETE FROM message_logs WHERE month_key < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// =============================================================================
// LOGIN LOGS
// =============================================================================

// LoginLog is one manager login.
type LoginLog struct {
	ID          int64
	ManagerCode string
	ManagerName string
	LoginAt     time.Time
}

// LoginSummary is one row of the monthly login summary.
type LoginSummary struct {
	ManagerCode string    `json:"manager_code"`
	ManagerName string    `json:"manager_name"`
	Count       int       `json:"count"`
	LastLogin   time.Time `json:"last_login"`
}

// LogLogin records a login. at defaults to now.
func (s *Store) LogLogin(ctx context.Context, managerCode, managerName string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO login_logs (manager_code, manager_name, login_at, month_key) VALUES (?, ?, ?, ?)",
		managerCode, managerName, at.UTC().Format(time.RFC3339), MonthKey(at),
	)
	return err
}

// RecentLogins returns the latest logins, newest first.
func (s *Store) RecentLogins(ctx context.Context, limit int) ([]LoginLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, manager_code, manager_name, login_at FROM login_logs
		ORDER BY login_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LoginLog
	for rows.Next() {
		var l LoginLog
		var name sql.NullString
		var at string
		if err := rows.Scan(&l.ID, &l.ManagerCode, &name, &at); err != nil {
			return nil, err
		}
		l.ManagerName = name.String
		l.LoginAt, _ = time.Parse(time.RFC3339, at)
		out = append(out, l)
	}
	return out, rows.Err()
}

// LoginSummaryForMonth counts logins per manager for a month, most active first.
func (s *Store) LoginSummaryForMonth(ctx context.Context, monthKey string) ([]LoginSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT manager_code, COALESCE(MAX(manager_name), ''), COUNT(*), MAX(login_at)
		FROM login_logs
		WHERE month_key = ?
		GROUP BY manager_code
		ORDER BY COUNT(*) DESC, manager_code
	`, monthKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LoginSummary
	for rows.Next() {
		var l LoginSummary
		var last string
		if err := rows.Scan(&l.ManagerCode, &l.ManagerName, &l.Count, &last); err != nil {
			return nil, err
		}
		l.LastLogin, _ = time.Parse(time.RFC3339, last)
		out = append(out, l)
	}
	return out, rows.Err()
}

// =============================================================================
// EVALUATION RUNS
// =============================================================================

// EvaluationRun summarizes one batch evaluation.
type EvaluationRun struct {
	ID            string
	Scope         string // "all" or "manager:<code>"
	SchemeVersion uint64
	RecordCount   int
	DroppedCount  int
	GrandTotal    decimal.Decimal
	StartedAt     time.Time
	Duration      time.Duration
}

// SaveEvaluationRun stores a run. An empty ID gets a new UUID.
func (s *Store) SaveEvaluationRun(ctx context.Context, run EvaluationRun) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO evaluation_runs
			(id, scope, scheme_version, record_count, dropped_count, grand_total, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Scope, int64(run.SchemeVersion), run.RecordCount, run.DroppedCount,
		run.GrandTotal.String(), run.StartedAt.UTC().Format(time.RFC3339Nano), run.Duration.Milliseconds())
	if err != nil {
		return "", err
	}
	return run.ID, nil
}

// ListEvaluationRuns returns the latest runs, newest first.
func (s *Store) ListEvaluationRuns(ctx context.Context, limit int) ([]EvaluationRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scope, scheme_version, record_count, dropped_count, grand_total, started_at, duration_ms
		FROM evaluation_runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EvaluationRun
	for rows.Next() {
		var r EvaluationRun
		var version, durationMS int64
		var total, started string
		if err := rows.Scan(&r.ID, &r.Scope, &version, &r.RecordCount, &r.DroppedCount, &total, &started, &durationMS); err != nil {
			return nil, err
		}
		r.SchemeVersion = uint64(version)
		r.GrandTotal, _ = decimal.NewFromString(total)
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		r.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}
