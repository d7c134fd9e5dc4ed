package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"StratEngine/internal/domain/models"
	domrepo "StratEngine/internal/domain/repository"
)

// SQLiteAuditStore persists audit events and plans to a local SQLite file.
type SQLiteAuditStore struct {
	db *sql.DB
	mu sync.Mutex
}

var _ domrepo.AuditStore = (*SQLiteAuditStore)(nil)

// NewSQLiteAuditStore opens (or creates) the database. Call Init before use.
func NewSQLiteAuditStore(path string) (*SQLiteAuditStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single writer keeps :memory: databases on one connection
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	return &SQLiteAuditStore{db: db}, nil
}

func (s *SQLiteAuditStore) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS audit_events (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			at        INTEGER NOT NULL,
			kind      TEXT NOT NULL,
			symbol    TEXT NOT NULL,
			timeframe TEXT,
			payload   TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_at ON audit_events(at)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_symbol ON audit_events(symbol, kind)`,

		`CREATE TABLE IF NOT EXISTS trade_plans (
			id         TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL,
			symbol     TEXT NOT NULL,
			timeframe  TEXT,
			kind       TEXT,
			accept     INTEGER NOT NULL,
			body       TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_plans_symbol ON trade_plans(symbol, created_at)`,
	}
	for _, st := range stmts {
		if _, err := s.db.ExecContext(ctx, st); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *SQLiteAuditStore) Append(ctx context.Context, events []models.AuditEvent) error {
	if len(events) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO audit_events (at, kind, symbol, timeframe, payload) VALUES (?,?,?,?,?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, e := range events {
		if _, err := stmt.ExecContext(ctx, e.At.UnixMilli(), string(e.Kind), e.Symbol, string(e.Timeframe), string(e.Payload)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert audit event: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteAuditStore) StorePlans(ctx context.Context, plans []models.TradePlan) error {
	if len(plans) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, p := range plans {
		body, err := json.Marshal(p)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("marshal plan: %w", err)
		}
		_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO trade_plans
			(id, created_at, symbol, timeframe, kind, accept, body) VALUES (?,?,?,?,?,?,?)`,
			p.ID, p.CreatedAt.UnixMilli(), p.Symbol, string(p.Timeframe), string(p.Kind), boolToInt(p.Accept), string(body))
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert plan: %w", err)
		}
	}
	return tx.Commit()
}

// RecentPlans returns plans for symbol, newest first.
func (s *SQLiteAuditStore) RecentPlans(ctx context.Context, symbol string, limit int) ([]models.TradePlan, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT body FROM trade_plans WHERE symbol = ? ORDER BY created_at DESC, id DESC LIMIT ?`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query plans: %w", err)
	}
	defer rows.Close()

	out := make([]models.TradePlan, 0, limit)
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		var p models.TradePlan
		if err := json.Unmarshal([]byte(body), &p); err != nil {
			return nil, fmt.Errorf("decode plan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Purge removes events and plans older than before and returns the rows removed.
func (s *SQLiteAuditStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cut := before.UnixMilli()
	var total int64
	for _, q := range []string{
		`DELETE FROM audit_events WHERE at < ?`,
		`DELETE FROM trade_plans WHERE created_at < ?`,
	} {
		res, err := s.db.ExecContext(ctx, q, cut)
		if err != nil {
			return total, fmt.Errorf("purge: %w", err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// CountEvents returns the number of stored events of kind for symbol.
func (s *SQLiteAuditStore) CountEvents(ctx context.Context, symbol string, kind models.AuditKind) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_events WHERE symbol = ? AND kind = ?`, symbol, string(kind)).Scan(&n)
	return n, err
}

func (s *SQLiteAuditStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteAuditStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
