package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/AVas112/MainBot/store"
)

// UpsertUserThread inserts or refreshes a user's thread binding. New rows
// start with a zero turn count; each subsequent upsert counts one completed
// turn and resets the reminder ladder since the user is active again.
func (d *DB) UpsertUserThread(ctx context.Context, upsert *store.UserThread) (*store.UserThread, error) {
	fields := []string{"user_id", "username", "thread_id", "turn_count", "last_active_ts", "first_reminder_ts", "second_reminder_ts"}
	args := []any{upsert.UserID, upsert.Username, upsert.ThreadID, 0, upsert.LastActiveTs, 0, 0}

	stmt := `INSERT INTO user_thread (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		ON CONFLICT (user_id) DO UPDATE SET
			username = excluded.username,
			thread_id = excluded.thread_id,
			turn_count = user_thread.turn_count + 1,
			last_active_ts = excluded.last_active_ts,
			first_reminder_ts = 0,
			second_reminder_ts = 0
		RETURNING user_id, username, thread_id, turn_count, last_active_ts, first_reminder_ts, second_reminder_ts`

	thread := &store.UserThread{}
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(
		&thread.UserID, &thread.Username, &thread.ThreadID, &thread.TurnCount, &thread.LastActiveTs, &thread.FirstReminderTs, &thread.SecondReminderTs,
	); err != nil {
		return nil, fmt.Errorf("failed to upsert user_thread: %w", err)
	}

	return thread, nil
}

func (d *DB) GetUserThread(ctx context.Context, find *store.FindUserThread) (*store.UserThread, error) {
	list, err := d.ListUserThreads(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (d *DB) ListUserThreads(ctx context.Context, find *store.FindUserThread) ([]*store.UserThread, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.UserID != nil {
		where, args = append(where, "user_id = "+placeholder(len(args)+1)), append(args, *find.UserID)
	}
	if find.InactiveSince != nil {
		where, args = append(where, "last_active_ts <= "+placeholder(len(args)+1)), append(args, *find.InactiveSince)
	}

	query := `SELECT user_id, username, thread_id, turn_count, last_active_ts, first_reminder_ts, second_reminder_ts FROM user_thread WHERE ` + strings.Join(where, " AND ") + ` ORDER BY last_active_ts DESC`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list user_threads: %w", err)
	}
	defer rows.Close()

	list := make([]*store.UserThread, 0)
	for rows.Next() {
		t := &store.UserThread{}
		if err := rows.Scan(&t.UserID, &t.Username, &t.ThreadID, &t.TurnCount, &t.LastActiveTs, &t.FirstReminderTs, &t.SecondReminderTs); err != nil {
			return nil, fmt.Errorf("failed to scan user_thread: %w", err)
		}
		list = append(list, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user_threads: %w", err)
	}

	return list, nil
}

func (d *DB) UpdateUserThread(ctx context.Context, update *store.UpdateUserThread) error {
	set, args := []string{}, []any{}

	if update.FirstReminderTs != nil {
		set, args = append(set, "first_reminder_ts = "+placeholder(len(args)+1)), append(args, *update.FirstReminderTs)
	}
	if update.SecondReminderTs != nil {
		set, args = append(set, "second_reminder_ts = "+placeholder(len(args)+1)), append(args, *update.SecondReminderTs)
	}

	if len(set) == 0 {
		return fmt.Errorf("no fields to update")
	}

	args = append(args, update.UserID)
	stmt := `UPDATE user_thread SET ` + strings.Join(set, ", ") + ` WHERE user_id = ` + placeholder(len(args))
	result, err := d.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("failed to update user_thread: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}

	return nil
}
