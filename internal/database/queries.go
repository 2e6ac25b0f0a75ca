// internal/database/queries.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Error definitions
var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Setting is one row of the settings table.
type Setting struct {
	Key       string
	Value     string
	Type      string
	UpdatedAt time.Time
}

// GetSetting returns ErrNotFound when key has never been stored.
func (db *DB) GetSetting(ctx context.Context, key string) (string, error) {
	var value sql.NullString
	err := db.QueryRowContext(ctx,
		"SELECT value FROM settings WHERE key = ?",
		key,
	).Scan(&value)

	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return value.String, err
}

// UpdateSetting inserts or replaces a setting
func (db *DB) UpdateSetting(ctx context.Context, key, value, valueType string) error {
	if key == "" {
		return fmt.Errorf("%w: empty setting key", ErrInvalidInput)
	}
	if valueType == "" {
		valueType = "string"
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO settings (key, value, type, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
		value = excluded.value,
		type = excluded.type,
		updated_at = CURRENT_TIMESTAMP`,
		key, value, valueType,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSetting removes key. Deleting a missing key returns ErrNotFound.
func (db *DB) DeleteSetting(ctx context.Context, key string) error {
	result, err := db.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ListSettings returns every stored setting ordered by key.
func (db *DB) ListSettings(ctx context.Context) ([]Setting, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT key, COALESCE(value, ''), type, updated_at FROM settings ORDER BY key")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settings []Setting
	for rows.Next() {
		var s Setting
		if err := rows.Scan(&s.Key, &s.Value, &s.Type, &s.UpdatedAt); err != nil {
			return nil, err
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}
