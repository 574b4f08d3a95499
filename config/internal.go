package config

import (
	"context"
	"sync"

	"github.com/browsergrid/pilot/driver"
)

var _ IConfig = (*InternalConfig)(nil)

// InternalConfig implements the configuration interface with in-memory storage
type InternalConfig struct {
	mu                  sync.RWMutex
	ClientSettingsValue driver.Settings
	LogLevelValue       string
	ScreenshotDirValue  string
	RedisAddrValue      string
}

// NewInternalConfig creates a new in-memory configuration
func NewInternalConfig() *InternalConfig {
	return &InternalConfig{
		LogLevelValue:      "info",
		ScreenshotDirValue: "screenshots",
	}
}

func (c *InternalConfig) ClientSettings() (driver.Settings, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ClientSettingsValue.WithDefaults(), nil
}

func (c *InternalConfig) SetClientSettings(settings driver.Settings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ClientSettingsValue = settings
}

// LogLevel returns the configured log level
func (c *InternalConfig) LogLevel() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.LogLevelValue, nil
}

func (c *InternalConfig) SetLogLevel(level string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.LogLevelValue = level
}

// ScreenshotDir returns the directory captured screenshots are saved to
func (c *InternalConfig) ScreenshotDir() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ScreenshotDirValue, nil
}

func (c *InternalConfig) SetScreenshotDir(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ScreenshotDirValue = dir
}

// RedisAddr returns the Redis address for the artifact sink, empty when disabled
func (c *InternalConfig) RedisAddr() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.RedisAddrValue, nil
}

func (c *InternalConfig) SetRedisAddr(addr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.RedisAddrValue = addr
}

func (c *InternalConfig) Close() error {
	return nil
}

func (c *InternalConfig) Status(ctx context.Context) error {
	return nil
}
