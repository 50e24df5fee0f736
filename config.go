package queuectl

import (
	"context"
	"strconv"
	"sync"
)

// Configuration keys recognized by the queue.
const (
	// KeyMaxRetries is the default attempts ceiling applied to jobs
	// enqueued without an explicit MaxRetries.
	KeyMaxRetries = "max_retries"
	// KeyBackoffBase is the base of the exponential backoff applied to
	// failed jobs.
	KeyBackoffBase = "backoff_base"
)

// Defaults used when a configuration key is not set.
const (
	DefaultMaxRetries  = 3
	DefaultBackoffBase = 2
)

// Config is a read-through key/value store for queue policy values.
// Implementations must not cache values: a concurrent Set takes effect
// on the next Get.
type Config interface {
	// Get returns the value for key, or def if the key is not set.
	// A missing key is not an error.
	Get(ctx context.Context, key, def string) (string, error)

	// Set stores the value for key, overwriting any previous value.
	Set(ctx context.Context, key, value string) error

	// All returns every key/value pair currently set.
	All(ctx context.Context) (map[string]string, error)
}

// IntSetting reads key from cfg and parses it as an integer. An unset
// key or an unparsable value resolves to def, never to an error; only
// a failure to reach the underlying store is reported.
func IntSetting(ctx context.Context, cfg Config, key string, def int) (int, error) {
	s, err := cfg.Get(ctx, key, strconv.Itoa(def))
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def, nil
	}
	return n, nil
}

// MapConfig is a simple in-memory Config implementation.
// It implements the Config interface. Do not use in production.
type MapConfig struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMapConfig creates a new MapConfig.
func NewMapConfig() *MapConfig {
	return &MapConfig{values: make(map[string]string)}
}

// Get returns the value for key, or def if the key is not set.
func (c *MapConfig) Get(_ context.Context, key, def string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, found := c.values[key]; found {
		return v, nil
	}
	return def, nil
}

// Set stores the value for key.
func (c *MapConfig) Set(_ context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

// All returns a copy of every key/value pair currently set.
func (c *MapConfig) All(_ context.Context) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	values := make(map[string]string, len(c.values))
	for k, v := range c.values {
		values[k] = v
	}
	return values, nil
}
