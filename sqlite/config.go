package sqlite

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
)

// Config reads and writes queue policy values in the config table.
// It implements the queuectl.Config interface. Every Get goes to the
// database so that updates made by other processes take effect on the
// next read.
type Config struct {
	db *sql.DB
}

// Get returns the value for key, or def if the key is not set.
func (c *Config) Get(ctx context.Context, key, def string) (string, error) {
	var value string
	err := sq.Select("value").
		From("config").
		Where(sq.Eq{"key": key}).
		RunWith(c.db).
		QueryRowContext(ctx).
		Scan(&value)
	if err == sql.ErrNoRows {
		return def, nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// Set stores the value for key, overwriting any previous value.
func (c *Config) Set(ctx context.Context, key, value string) error {
	_, err := sq.Insert("config").
		Options("OR REPLACE").
		Columns("key", "value").
		Values(key, value).
		RunWith(c.db).
		ExecContext(ctx)
	return err
}

// All returns every key/value pair currently set.
func (c *Config) All(ctx context.Context) (map[string]string, error) {
	rows, err := sq.Select("key", "value").
		From("config").
		RunWith(c.db).
		QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		values[k] = v
	}
	return values, rows.Err()
}
