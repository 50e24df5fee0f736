package mysql

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
)

// Config reads and writes queue policy values in the queuectl_config
// table. It implements the queuectl.Config interface. The key column
// is called name because KEY is a reserved word in MySQL.
type Config struct {
	db *sql.DB
}

// Get returns the value for key, or def if the key is not set.
func (c *Config) Get(ctx context.Context, key, def string) (string, error) {
	var value string
	err := sq.Select("value").
		From("queuectl_config").
		Where(sq.Eq{"name": key}).
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
	_, err := sq.Insert("queuectl_config").
		Columns("name", "value").
		Values(key, value).
		Suffix("ON DUPLICATE KEY UPDATE value = VALUES(value)").
		RunWith(c.db).
		ExecContext(ctx)
	return err
}

// All returns every key/value pair currently set.
func (c *Config) All(ctx context.Context) (map[string]string, error) {
	rows, err := sq.Select("name", "value").
		From("queuectl_config").
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
