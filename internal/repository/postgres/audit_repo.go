package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Драйвер Postgres
	"github.com/xela07ax/nft-agents-console/internal/audit"
	"github.com/xela07ax/nft-agents-console/internal/infra"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_logs (
	id          UUID PRIMARY KEY,
	trace_id    TEXT NOT NULL,
	kind        TEXT NOT NULL,
	action      TEXT NOT NULL,
	entity_id   TEXT NOT NULL DEFAULT '',
	actor_id    TEXT NOT NULL DEFAULT '',
	payload     JSONB,
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	duration_ms BIGINT NOT NULL DEFAULT 0,
	timestamp   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_logs_entity_idx ON audit_logs (entity_id, timestamp DESC);`

// Количество колонок в таблице audit_logs
const numFields = 11

type AuditRepo struct {
	db *sql.DB
}

func NewAuditRepo(cfg infra.DatabaseConfig) (*AuditRepo, error) {
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 15
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(max(cfg.MinConns, 1))
	db.SetConnMaxLifetime(5 * time.Minute)
	return &AuditRepo{db: db}, nil
}

func (r *AuditRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Migrate создает таблицу журнала, если ее нет.
func (r *AuditRepo) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate audit_logs: %w", err)
	}
	return nil
}

func (r *AuditRepo) Close() error {
	return r.db.Close()
}

func (r *AuditRepo) WriteBatch(ctx context.Context, events []audit.Event) error {
	if len(events) == 0 {
		return nil
	}
	query, vals, err := buildInsert(events)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, query, vals...); err != nil {
		return fmt.Errorf("insert audit batch: %w", err)
	}
	return nil
}

// buildInsert динамически строит запрос для пакетной вставки
func buildInsert(events []audit.Event) (string, []any, error) {
	var sb strings.Builder
	vals := make([]any, 0, len(events)*numFields)

	for i, e := range events {
		if i > 0 {
			sb.WriteString(",")
		}
		p := i * numFields
		sb.WriteString("(")
		for j := 1; j <= numFields; j++ {
			if j > 1 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", p+j)
		}
		sb.WriteString(")")

		payload, err := json.Marshal(e.Payload)
		if err != nil {
			return "", nil, fmt.Errorf("marshal payload of %s: %w", e.ID, err)
		}
		vals = append(vals,
			e.ID, e.TraceID, e.Kind, e.Action, e.EntityID, e.ActorID,
			payload, e.Status, e.Error, e.DurationMs, e.Timestamp,
		)
	}

	query := "INSERT INTO audit_logs (id, trace_id, kind, action, entity_id, actor_id, payload, status, error, duration_ms, timestamp) VALUES " +
		sb.String() + " ON CONFLICT (id) DO NOTHING"
	return query, vals, nil
}

// FetchEvents отдает события, новые первыми.
func (r *AuditRepo) FetchEvents(ctx context.Context, f audit.Filter) ([]audit.Event, error) {
	query, args := buildSelect(f)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit_logs: %w", err)
	}
	defer rows.Close()

	var out []audit.Event
	for rows.Next() {
		var (
			e       audit.Event
			payload []byte
		)
		if err := rows.Scan(&e.ID, &e.TraceID, &e.Kind, &e.Action, &e.EntityID, &e.ActorID,
			&payload, &e.Status, &e.Error, &e.DurationMs, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		if len(payload) > 0 && string(payload) != "null" {
			if err := json.Unmarshal(payload, &e.Payload); err != nil {
				return nil, fmt.Errorf("decode payload of %s: %w", e.ID, err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func buildSelect(f audit.Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if f.Kind != "" {
		args = append(args, f.Kind)
		where = append(where, fmt.Sprintf("kind = $%d", len(args)))
	}
	if f.EntityID != "" {
		args = append(args, f.EntityID)
		where = append(where, fmt.Sprintf("entity_id = $%d", len(args)))
	}

	query := "SELECT id, trace_id, kind, action, entity_id, actor_id, payload, status, error, duration_ms, timestamp FROM audit_logs"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return query, args
}
