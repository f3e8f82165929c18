package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/AVas112/MainBot/store"
)

func (d *DB) CreateDialogMessage(ctx context.Context, create *store.DialogMessage) (*store.DialogMessage, error) {
	fields := []string{"user_id", "username", "role", "content", "created_ts"}
	args := []any{create.UserID, create.Username, create.Role, create.Content, create.CreatedTs}

	stmt := `INSERT INTO dialog_message (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, fmt.Errorf("failed to create dialog_message: %w", err)
	}

	return create, nil
}

func (d *DB) ListDialogMessages(ctx context.Context, find *store.FindDialogMessage) ([]*store.DialogMessage, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.UserID != nil {
		where, args = append(where, "user_id = "+placeholder(len(args)+1)), append(args, *find.UserID)
	}
	if find.CreatedAfter != nil {
		where, args = append(where, "created_ts >= "+placeholder(len(args)+1)), append(args, *find.CreatedAfter)
	}

	query := `SELECT id, user_id, username, role, content, created_ts FROM dialog_message WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_ts ASC, id ASC`
	if find.Limit != nil {
		query += fmt.Sprintf(" LIMIT %d", *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list dialog_messages: %w", err)
	}
	defer rows.Close()

	list := make([]*store.DialogMessage, 0)
	for rows.Next() {
		m := &store.DialogMessage{}
		if err := rows.Scan(&m.ID, &m.UserID, &m.Username, &m.Role, &m.Content, &m.CreatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan dialog_message: %w", err)
		}
		list = append(list, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate dialog_messages: %w", err)
	}

	return list, nil
}
