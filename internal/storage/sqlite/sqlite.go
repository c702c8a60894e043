// Package sqlite provides the durable implementations of the order and tip
// repositories.
//
// WAL mode is enabled on Open so that readers never block writers and vice
// versa: the settlement goroutine writes while HTTP handlers read.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	// Register the pure-Go SQLite driver.
	// modernc.org/sqlite avoids CGO, which keeps the Docker/Alpine build simple.
	_ "modernc.org/sqlite"
)

// schema is the DDL executed once on startup. Timestamps are RFC3339 TEXT,
// the SQLite idiom. Two of the tables are append-only audit trails:
// order_status_history gets one immutable row per transition, and tips rows
// are settled in place exactly once but never deleted.
const schema = `
CREATE TABLE IF NOT EXISTS orders (
    id                 TEXT PRIMARY KEY,
    customer_id        TEXT    NOT NULL,
    chef_id            TEXT    NOT NULL,
    delivery_person_id TEXT    NOT NULL DEFAULT '',
    -- Line items snapshotted at order time, as a JSON array.
    items              TEXT    NOT NULL,
    total_amount       REAL    NOT NULL,
    status             TEXT    NOT NULL,
    delivery_address   TEXT    NOT NULL DEFAULT '',
    penalty            REAL    NOT NULL DEFAULT 0,
    -- Optimistic-concurrency stamp; every UPDATE is guarded by it.
    version            INTEGER NOT NULL,
    created_at         TEXT    NOT NULL,
    status_changed_at  TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_customer ON orders(customer_id);
CREATE INDEX IF NOT EXISTS idx_orders_chef     ON orders(chef_id, status);

CREATE TABLE IF NOT EXISTS order_status_history (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    order_id    TEXT NOT NULL,
    from_status TEXT NOT NULL DEFAULT '',
    to_status   TEXT NOT NULL,
    actor       TEXT NOT NULL,
    penalty     REAL NOT NULL DEFAULT 0,
    changed_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_history_order ON order_status_history(order_id, changed_at);

CREATE TABLE IF NOT EXISTS tips (
    id             TEXT PRIMARY KEY,
    from_user_id   TEXT NOT NULL,
    recipient_id   TEXT NOT NULL,
    recipient_type TEXT NOT NULL,
    amount         REAL NOT NULL,
    message        TEXT NOT NULL DEFAULT '',
    order_id       TEXT NOT NULL,
    status         TEXT NOT NULL,
    -- External gateway reference; set only on completed rows.
    reference      TEXT NOT NULL DEFAULT '',
    created_at     TEXT NOT NULL,
    settled_at     TEXT
);

CREATE INDEX IF NOT EXISTS idx_tips_recipient ON tips(recipient_id, status, created_at);
CREATE INDEX IF NOT EXISTS idx_tips_sender    ON tips(from_user_id, status);
CREATE INDEX IF NOT EXISTS idx_tips_order     ON tips(order_id, recipient_type, status);
CREATE INDEX IF NOT EXISTS idx_tips_pending   ON tips(status, created_at);
`

// Open opens (or creates) the database at path and applies the schema.
//
//	db, err := sqlite.Open("./data/orders.db")
func Open(path string) (*sql.DB, error) {
	// WAL enables concurrent readers; busy_timeout waits for locks instead
	// of failing immediately.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// SQLite performs best with a single writer connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return db, nil
}

// timeLayout is fixed width, unlike RFC3339Nano which trims trailing
// zeros. The range queries on created_at compare TEXT lexicographically,
// so the stored form must sort exactly like the instants it encodes.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse time %q: %w", s, err)
	}
	return t, nil
}
