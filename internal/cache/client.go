// Package cache provides a Valkey-backed TTL cache fronting the two
// lookups the pipeline's scoring step performs on every event
// (weapon modifiers, action definitions) and the RCON pool's
// last-activity tracking (§4.7, §4.3).
//
// Grounded on the teacher's internal/valkey.Client, trimmed to the
// handful of commands this package actually issues.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"
)

// Config holds the Valkey connection settings.
type Config struct {
	Host     string
	Port     int
	Password string
	Database int
}

// Client wraps a valkey.Client.
type Client struct {
	raw    valkey.Client
	config Config
}

// NewClient dials Valkey at config.Host:config.Port.
func NewClient(config Config) (*Client, error) {
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)

	opts := valkey.ClientOption{
		InitAddress: []string{address},
		SelectDB:    config.Database,
	}
	if config.Password != "" {
		opts.Password = config.Password
	}

	raw, err := valkey.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("cache: dialing valkey: %w", err)
	}
	return &Client{raw: raw, config: config}, nil
}

// Ping checks reachability.
func (c *Client) Ping(ctx context.Context) error {
	return c.raw.Do(ctx, c.raw.B().Ping().Build()).Error()
}

// Set stores value under key with an optional TTL; expiration <= 0
// means no expiry.
func (c *Client) Set(ctx context.Context, key, value string, expiration time.Duration) error {
	var cmd valkey.Completed
	if expiration > 0 {
		cmd = c.raw.B().Set().Key(key).Value(value).Ex(expiration).Build()
	} else {
		cmd = c.raw.B().Set().Key(key).Value(value).Build()
	}
	return c.raw.Do(ctx, cmd).Error()
}

// Get retrieves a value; ok is false on a cache miss.
func (c *Client) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	result := c.raw.Do(ctx, c.raw.B().Get().Key(key).Build())
	if result.Error() != nil {
		if result.Error() == valkey.Nil {
			return "", false, nil
		}
		return "", false, result.Error()
	}
	value, err = result.ToString()
	return value, true, err
}

// Del deletes one or more keys.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.raw.Do(ctx, c.raw.B().Del().Key(keys...).Build()).Error()
}

// Close releases the underlying connection.
func (c *Client) Close() {
	if c.raw != nil {
		c.raw.Close()
	}
}
