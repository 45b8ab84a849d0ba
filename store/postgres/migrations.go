package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the streampay store.
var Migrations = migrate.NewGroup("streampay")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_streampay_streams",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS streampay_streams (
    id                   TEXT PRIMARY KEY,
    asset                TEXT NOT NULL,
    status               TEXT NOT NULL DEFAULT 'active',
    payer                TEXT NOT NULL DEFAULT '',
    recipient            TEXT NOT NULL DEFAULT '',
    start_time           TIMESTAMPTZ,
    duration_ns          BIGINT NOT NULL CHECK (duration_ns > 0),
    accumulated_pause_ns BIGINT NOT NULL DEFAULT 0,
    pause_start          TIMESTAMPTZ,
    initial_amount       BIGINT NOT NULL CHECK (initial_amount >= 0),
    balance              BIGINT NOT NULL CHECK (balance >= 0),
    fee_paid             BIGINT NOT NULL DEFAULT 0,
    payee_withdrawn      BIGINT NOT NULL DEFAULT 0,
    payer_token_id       TEXT NOT NULL,
    payee_token_id       TEXT NOT NULL,
    version              BIGINT NOT NULL DEFAULT 1,
    metadata             JSONB NOT NULL DEFAULT '{}',
    created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_streampay_streams_payer ON streampay_streams (payer, created_at);
CREATE INDEX IF NOT EXISTS idx_streampay_streams_recipient ON streampay_streams (recipient, created_at);
CREATE INDEX IF NOT EXISTS idx_streampay_streams_status ON streampay_streams (status);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS streampay_streams`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_streampay_registry",
			Version: "20250101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS streampay_registry (
    id             TEXT PRIMARY KEY,
    fee_rate_bps   BIGINT NOT NULL CHECK (fee_rate_bps BETWEEN 1 AND 10000),
    admin_token_id TEXT NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS streampay_assets (
    asset       TEXT PRIMARY KEY,
    fee_reserve BIGINT NOT NULL DEFAULT 0 CHECK (fee_reserve >= 0),
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS streampay_assets;
DROP TABLE IF EXISTS streampay_registry;
`)
				return err
			},
		},
	)
}
