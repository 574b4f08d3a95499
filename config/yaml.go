package config

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/browsergrid/pilot/driver"
)

var _ IConfig = (*YamlConfig)(nil)

// YamlConfig implements the configuration interface with YAML file-based storage
type YamlConfig struct {
	mu            sync.RWMutex
	configPath    string
	logger        *zap.Logger
	watcher       *fsnotify.Watcher
	settings      driver.Settings
	logLevel      string
	screenshotDir string
	redisAddr     string
}

// YAML configuration structure matching the required format
type yamlConfig struct {
	Client struct {
		URL               string `yaml:"url"`
		BearerToken       string `yaml:"bearer_token"`
		NavigateTimeout   string `yaml:"navigate_timeout"`
		CommandTimeout    string `yaml:"command_timeout"`
		HeartbeatInterval string `yaml:"heartbeat_interval"`
		CloseGrace        string `yaml:"close_grace"`
		MaxMessageBytes   int64  `yaml:"max_message_bytes"`
		Viewport          struct {
			Width  int `yaml:"width"`
			Height int `yaml:"height"`
		} `yaml:"viewport"`
	} `yaml:"client"`

	LogLevel string `yaml:"log_level"`

	Artifacts struct {
		ScreenshotDir string `yaml:"screenshot_dir"`
		RedisAddr     string `yaml:"redis_addr"`
	} `yaml:"artifacts"`
}

// NewYamlConfig creates a new YAML-based configuration
func NewYamlConfig(configPath string, logger *zap.Logger) (*YamlConfig, error) {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}

	config := &YamlConfig{
		configPath:    configPath,
		logger:        logger,
		logLevel:      "info",
		screenshotDir: "screenshots",
	}

	if err := config.Update(); err != nil {
		return nil, err
	}
	return config, nil
}

// Update reloads configuration from the YAML file
func (c *YamlConfig) Update() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Debug("Updating configuration from YAML file", zap.String("path", c.configPath))

	data, err := os.ReadFile(c.configPath)
	if err != nil {
		c.logger.Error("Failed to read config file", zap.Error(err))
		return err
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		c.logger.Error("Failed to parse YAML", zap.Error(err))
		return err
	}

	navigateTimeout, err := parseDuration("client.navigate_timeout", yamlCfg.Client.NavigateTimeout)
	if err != nil {
		return err
	}
	commandTimeout, err := parseDuration("client.command_timeout", yamlCfg.Client.CommandTimeout)
	if err != nil {
		return err
	}
	heartbeatInterval, err := parseDuration("client.heartbeat_interval", yamlCfg.Client.HeartbeatInterval)
	if err != nil {
		return err
	}
	closeGrace, err := parseDuration("client.close_grace", yamlCfg.Client.CloseGrace)
	if err != nil {
		return err
	}

	c.settings = driver.Settings{
		URL:               yamlCfg.Client.URL,
		BearerToken:       yamlCfg.Client.BearerToken,
		NavigateTimeout:   navigateTimeout,
		CommandTimeout:    commandTimeout,
		HeartbeatInterval: heartbeatInterval,
		CloseGrace:        closeGrace,
		MaxMessageBytes:   yamlCfg.Client.MaxMessageBytes,
		ViewportWidth:     yamlCfg.Client.Viewport.Width,
		ViewportHeight:    yamlCfg.Client.Viewport.Height,
	}

	c.logLevel = yamlCfg.LogLevel
	if c.logLevel == "" {
		c.logLevel = "info"
	}
	c.screenshotDir = yamlCfg.Artifacts.ScreenshotDir
	if c.screenshotDir == "" {
		c.screenshotDir = "screenshots"
	}
	c.redisAddr = yamlCfg.Artifacts.RedisAddr

	return nil
}

// parseDuration parses an optional duration string, empty meaning unset.
func parseDuration(key, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

// Watch reloads the configuration whenever the file changes. The watcher
// is released by Close.
func (c *YamlConfig) Watch() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.watcher != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(c.configPath); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", c.configPath, err)
	}
	c.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				c.logger.Debug("Config file changed, reloading", zap.String("event", event.String()))
				if err := c.Update(); err != nil {
					c.logger.Error("Failed to reload config file", zap.Error(err))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				c.logger.Error("Config watcher error", zap.Error(err))
			}
		}
	}()

	return nil
}

// --- IConfig Implementation ---

func (c *YamlConfig) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.watcher != nil {
		err := c.watcher.Close()
		c.watcher = nil
		return err
	}
	return nil
}

func (c *YamlConfig) ClientSettings() (driver.Settings, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings.WithDefaults(), nil
}

func (c *YamlConfig) LogLevel() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logLevel, nil
}

func (c *YamlConfig) ScreenshotDir() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.screenshotDir, nil
}

func (c *YamlConfig) RedisAddr() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.redisAddr, nil
}

func (c *YamlConfig) Status(ctx context.Context) error {
	// Check if config file exists and is readable
	if _, err := os.Stat(c.configPath); err != nil {
		c.logger.Error("YAML config file status check failed", zap.String("path", c.configPath), zap.Error(err))
		return fmt.Errorf("config file error: %w", err)
	}
	return nil
}
