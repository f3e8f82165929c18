package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/AVas112/MainBot/store"
)

func (d *DB) CreateCapturedContact(ctx context.Context, create *store.CapturedContact) (*store.CapturedContact, error) {
	fields := []string{"uid", "user_id", "username", "name", "phone", "email", "payload", "created_ts"}
	args := []any{create.UID, create.UserID, create.Username, create.Name, create.Phone, create.Email, create.Payload, create.CreatedTs}

	stmt := `INSERT INTO captured_contact (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, fmt.Errorf("failed to create captured_contact: %w", err)
	}

	return create, nil
}

func (d *DB) ListCapturedContacts(ctx context.Context, find *store.FindCapturedContact) ([]*store.CapturedContact, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.UserID != nil {
		where, args = append(where, "user_id = "+placeholder(len(args)+1)), append(args, *find.UserID)
	}
	if find.CreatedAfter != nil {
		where, args = append(where, "created_ts >= "+placeholder(len(args)+1)), append(args, *find.CreatedAfter)
	}

	query := `SELECT id, uid, user_id, username, name, phone, email, payload, created_ts FROM captured_contact WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_ts DESC`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list captured_contacts: %w", err)
	}
	defer rows.Close()

	list := make([]*store.CapturedContact, 0)
	for rows.Next() {
		c := &store.CapturedContact{}
		if err := rows.Scan(&c.ID, &c.UID, &c.UserID, &c.Username, &c.Name, &c.Phone, &c.Email, &c.Payload, &c.CreatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan captured_contact: %w", err)
		}
		list = append(list, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate captured_contacts: %w", err)
	}

	return list, nil
}
