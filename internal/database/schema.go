package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// tickets 以 document JSONB 保存完整票券文件，status/version 等欄位另外拉出來做條件更新與索引
const schema = `
CREATE TABLE IF NOT EXISTS tickets (
	id          UUID PRIMARY KEY,
	status      TEXT NOT NULL,
	version     INTEGER NOT NULL DEFAULT 1,
	seller_id   TEXT NOT NULL,
	buyer_id    TEXT,
	price       NUMERIC(12, 2) NOT NULL CHECK (price >= 0),
	currency    CHAR(3) NOT NULL,
	reserved_at TIMESTAMPTZ,
	document    JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_tickets_status_reserved_at ON tickets (status, reserved_at);

CREATE TABLE IF NOT EXISTS saga_events (
	id          UUID PRIMARY KEY,
	ticket_id   UUID NOT NULL,
	step        TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	actor_id    TEXT,
	detail      TEXT,
	occurred_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_saga_events_ticket_id ON saga_events (ticket_id, occurred_at);
`

// EnsureSchema 建立資料表 (可重複執行)
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}
