package config

import (
	"context"
	"errors"

	"github.com/browsergrid/pilot/driver"
)

var ErrNotFound = errors.New("not found")

// IConfig is the source of runtime settings for the pilot client. All
// implementations apply the documented defaults for fields left unset.
type IConfig interface {
	// Client Settings
	ClientSettings() (driver.Settings, error)
	LogLevel() (string, error)

	// Artifact Settings
	ScreenshotDir() (string, error)
	RedisAddr() (string, error) // empty disables the Redis sink

	// Lifecycle & Status
	Status(ctx context.Context) error
	Close() error
}
