package config

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/browsergrid/pilot/driver"
)

var _ IConfig = (*DatabaseConfig)(nil)

// DatabaseConfig implements the configuration interface with PostgreSQL
// database-based storage. Values live in the "Settings" key/value table
// as JSON.
type DatabaseConfig struct {
	logger             *zap.Logger
	dbConnectionString string
}

// NewDatabaseConfig creates a new DatabaseConfig instance
func NewDatabaseConfig(dbConnectionString string, logger *zap.Logger) (*DatabaseConfig, error) {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	config := &DatabaseConfig{
		dbConnectionString: dbConnectionString,
		logger:             logger,
	}
	return config, nil
}

// Close closes any resources held by the config
func (c *DatabaseConfig) Close() error {
	return nil
}

// --- IConfig Implementation ---

func (c *DatabaseConfig) ClientSettings() (driver.Settings, error) {
	var settings driver.Settings
	var err error

	settings.URL, err = c.getSettingString("pilot_endpoint", "")
	if err != nil {
		return settings, err
	}
	settings.BearerToken, err = c.getSettingString("pilot_bearer_token", "")
	if err != nil {
		return settings, err
	}
	settings.NavigateTimeout, err = c.getSettingDuration("pilot_navigate_timeout", 0)
	if err != nil {
		return settings, err
	}
	settings.CommandTimeout, err = c.getSettingDuration("pilot_command_timeout", 0)
	if err != nil {
		return settings, err
	}
	settings.HeartbeatInterval, err = c.getSettingDuration("pilot_heartbeat_interval", 0)
	if err != nil {
		return settings, err
	}
	settings.CloseGrace, err = c.getSettingDuration("pilot_close_grace", 0)
	if err != nil {
		return settings, err
	}
	settings.MaxMessageBytes, err = c.getSettingInt64("pilot_max_message_bytes", 0)
	if err != nil {
		return settings, err
	}
	settings.ViewportWidth, err = c.getSettingInt("pilot_viewport_width", 0)
	if err != nil {
		return settings, err
	}
	settings.ViewportHeight, err = c.getSettingInt("pilot_viewport_height", 0)
	if err != nil {
		return settings, err
	}

	return settings.WithDefaults(), nil
}

func (c *DatabaseConfig) LogLevel() (string, error) {
	return c.getSettingString("pilot_log_level", "info")
}

func (c *DatabaseConfig) ScreenshotDir() (string, error) {
	return c.getSettingString("pilot_screenshot_dir", "screenshots")
}

func (c *DatabaseConfig) RedisAddr() (string, error) {
	return c.getSettingString("pilot_redis_addr", "")
}

func (c *DatabaseConfig) Status(ctx context.Context) error {
	db, err := sql.Open("postgres", c.dbConnectionString)
	if err != nil {
		c.logger.Error("DB connect failed", zap.Error(err))
		return err
	}
	defer db.Close()
	if err = db.PingContext(ctx); err != nil {
		c.logger.Error("DB ping failed", zap.Error(err))
		return err
	}
	return nil
}

// --- Database Helper Functions ---

func (c *DatabaseConfig) getSettingRaw(key string) ([]byte, error) {
	db, err := sql.Open("postgres", c.dbConnectionString)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	defer db.Close()
	var valueStr sql.NullString
	err = db.QueryRowContext(context.Background(), `SELECT value FROM "Settings" WHERE key = $1 LIMIT 1`, key).Scan(&valueStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query setting '%s': %w", key, err)
	}
	if !valueStr.Valid {
		return nil, ErrNotFound
	}
	return []byte(valueStr.String), nil
}

func (c *DatabaseConfig) getSettingJSON(key string) (interface{}, error) {
	raw, err := c.getSettingRaw(key)
	if err != nil {
		return nil, err
	}
	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("unmarshal setting '%s': %w", key, err)
	}
	return value, nil
}

func (c *DatabaseConfig) getSettingString(key string, defaultValue string) (string, error) {
	value, err := c.getSettingJSON(key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return defaultValue, nil
		}
		return defaultValue, err
	}
	switch v := value.(type) {
	case string:
		return v, nil
	default:
		return defaultValue, fmt.Errorf("setting '%s' is not a string: %T", key, value)
	}
}

func (c *DatabaseConfig) getSettingInt(key string, defaultValue int) (int, error) {
	value, err := c.getSettingJSON(key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return defaultValue, nil
		}
		return defaultValue, err
	}
	switch v := value.(type) {
	case float64:
		return int(v), nil
	default:
		return defaultValue, fmt.Errorf("setting '%s' is not a number: %T", key, value)
	}
}

func (c *DatabaseConfig) getSettingInt64(key string, defaultValue int64) (int64, error) {
	value, err := c.getSettingInt(key, int(defaultValue))
	return int64(value), err
}

func (c *DatabaseConfig) getSettingDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw, err := c.getSettingString(key, "")
	if err != nil {
		return defaultValue, err
	}
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return defaultValue, fmt.Errorf("parse setting '%s': %w", key, err)
	}
	return d, nil
}
