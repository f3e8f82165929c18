package sqlite

import (
	"context"

	"github.com/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS dialog_message (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	username TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_ts BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_dialog_message_user_id ON dialog_message (user_id);
CREATE INDEX IF NOT EXISTS idx_dialog_message_created_ts ON dialog_message (created_ts);

CREATE TABLE IF NOT EXISTS captured_contact (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	uid TEXT NOT NULL UNIQUE,
	user_id TEXT NOT NULL,
	username TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	payload TEXT NOT NULL DEFAULT '{}',
	created_ts BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_captured_contact_user_id ON captured_contact (user_id);

CREATE TABLE IF NOT EXISTS user_thread (
	user_id TEXT PRIMARY KEY,
	username TEXT NOT NULL DEFAULT '',
	thread_id TEXT NOT NULL,
	turn_count INTEGER NOT NULL DEFAULT 0,
	last_active_ts BIGINT NOT NULL,
	first_reminder_ts BIGINT NOT NULL DEFAULT 0,
	second_reminder_ts BIGINT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_user_thread_last_active_ts ON user_thread (last_active_ts);
`

// Migrate creates the schema. Statements are idempotent so this is safe to
// run on every startup.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "failed to apply schema")
	}
	return nil
}
