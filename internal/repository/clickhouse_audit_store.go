package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"StratEngine/internal/domain/models"
	domrepo "StratEngine/internal/domain/repository"
	pkgch "StratEngine/pkg/clickhouse"
	applogger "StratEngine/pkg/logger"
)

// ClickHouseAuditStore implements AuditStore backed by ClickHouse.
type ClickHouseAuditStore struct {
	ch       *pkgch.Client
	db       *sql.DB
	database string
	l        *applogger.Logger
}

var _ domrepo.AuditStore = (*ClickHouseAuditStore)(nil)

func NewClickHouseAuditStore(ch *pkgch.Client, database string, l *applogger.Logger) *ClickHouseAuditStore {
	if database == "" {
		database = "strat"
	}
	if l == nil {
		l = applogger.NewNop()
	}
	return &ClickHouseAuditStore{ch: ch, db: ch.DB(), database: database, l: l}
}

func (s *ClickHouseAuditStore) events() string { return s.database + ".audit_events" }
func (s *ClickHouseAuditStore) plans() string { return s.database + ".trade_plans" }

// Init creates the database and tables when missing.
func (s *ClickHouseAuditStore) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", s.database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            at        DateTime64(3, 'UTC'),
            kind      LowCardinality(String),
            symbol    LowCardinality(String),
            timeframe LowCardinality(String),
            payload   String
        ) ENGINE = MergeTree
        PARTITION BY toYYYYMM(at)
        ORDER BY (symbol, kind, at)`, s.events()),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            id         String,
            created_at DateTime64(3, 'UTC'),
            symbol     LowCardinality(String),
            timeframe  LowCardinality(String),
            kind       LowCardinality(String),
            accept     UInt8,
            body       String
        ) ENGINE = ReplacingMergeTree
        PARTITION BY toYYYYMM(created_at)
        ORDER BY (symbol, created_at, id)`, s.plans()),
	})
}

func (s *ClickHouseAuditStore) Append(ctx context.Context, events []models.AuditEvent) error {
	if len(events) == 0 {
		return nil
	}
	const chunkSize = 2000
	for start := 0; start < len(events); start += chunkSize {
		end := start + chunkSize
		if end > len(events) {
			end = len(events)
		}
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*5)
		for _, e := range events[start:end] {
			if e.Symbol == "" {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?)")
			args = append(args, e.At.UTC(), string(e.Kind), e.Symbol, string(e.Timeframe), string(e.Payload))
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (at, kind, symbol, timeframe, payload) VALUES %s", s.events(), strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse append events error", applogger.Int("rows", len(values)), applogger.Error(err))
			return fmt.Errorf("append events: %w", err)
		}
	}
	return nil
}

func (s *ClickHouseAuditStore) StorePlans(ctx context.Context, plans []models.TradePlan) error {
	if len(plans) == 0 {
		return nil
	}
	values := make([]string, 0, len(plans))
	args := make([]interface{}, 0, len(plans)*7)
	for _, p := range plans {
		body, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal plan: %w", err)
		}
		var accept uint8
		if p.Accept {
			accept = 1
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
		args = append(args, p.ID, p.CreatedAt.UTC(), p.Symbol, string(p.Timeframe), string(p.Kind), accept, string(body))
	}
	q := fmt.Sprintf("INSERT INTO %s (id, created_at, symbol, timeframe, kind, accept, body) VALUES %s", s.plans(), strings.Join(values, ","))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		s.l.Error("clickhouse store plans error", applogger.Int("rows", len(values)), applogger.Error(err))
		return fmt.Errorf("store plans: %w", err)
	}
	return nil
}

func (s *ClickHouseAuditStore) RecentPlans(ctx context.Context, symbol string, limit int) ([]models.TradePlan, error) {
	start := time.Now()
	if limit <= 0 {
		limit = 50
	}
	q := fmt.Sprintf(`
        SELECT body
        FROM %s FINAL
        WHERE symbol = ?
        ORDER BY created_at DESC, id DESC
        LIMIT ?
    `, s.plans())
	rows, err := s.db.QueryContext(ctx, q, symbol, limit)
	if err != nil {
		s.l.Error("clickhouse recent_plans query error", applogger.String("symbol", symbol), applogger.Error(err))
		return nil, fmt.Errorf("recent plans: %w", err)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.l.Debug("clickhouse recent_plans ok",
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

// Purge issues lightweight deletes. ClickHouse applies them asynchronously, so
// the affected row count is reported from a pre-count.
func (s *ClickHouseAuditStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	var total int64
	for _, tc := range []struct{ table, col string }{
		{s.events(), "at"},
		{s.plans(), "created_at"},
	} {
		var n uint64
		if err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT count() FROM %s WHERE %s < ?", tc.table, tc.col), before.UTC()).Scan(&n); err != nil {
			return total, fmt.Errorf("purge count: %w", err)
		}
		if n == 0 {
			continue
		}
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s < ?", tc.table, tc.col), before.UTC()); err != nil {
			return total, fmt.Errorf("purge: %w", err)
		}
		total += int64(n)
	}
	return total, nil
}

func (s *ClickHouseAuditStore) Health(ctx context.Context) error {
	return s.ch.Health(ctx)
}

func (s *ClickHouseAuditStore) Close() error {
	return nil // owned by pkg client
}
