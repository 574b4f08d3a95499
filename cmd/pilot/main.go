package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/cenkalti/backoff.v1"

	"github.com/browsergrid/pilot/artifact"
	"github.com/browsergrid/pilot/config"
	"github.com/browsergrid/pilot/driver"
)

// Environment variable names
const (
	EnvURL         = "PILOT_URL"
	EnvToken       = "PILOT_TOKEN"
	EnvDatabaseURL = "PILOT_DATABASE_URL"
	EnvConfigYAML  = "PILOT_CONFIG_YAML"
)

const artifactTTL = 24 * time.Hour

func main() {
	loggerConfig := zap.NewProductionConfig()
	loggerConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := loggerConfig.Build()
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	endpoint := flag.String("url", "", "WebSocket endpoint of the browser session (ws:// or wss://)")
	token := flag.String("token", "", "Bearer token for the session handshake")
	configDB := flag.String("database-url", "", "PostgreSQL connection string for configuration")
	configYAML := flag.String("config-yaml", "", "Path to YAML configuration file")
	navigate := flag.String("navigate", "", "Page URL to open after connecting")
	screenshot := flag.String("screenshot", "", `Artifact name for a captured screenshot, "auto" generates one (empty skips capture)`)
	screenshotDir := flag.String("screenshot-dir", "", "Directory for file artifacts (overrides config)")
	redisAddr := flag.String("redis-addr", "", "Redis address for artifacts (overrides config)")
	flag.Parse()

	if *configDB != "" && *configYAML != "" {
		logger.Fatal("Cannot specify both database-url and config-yaml")
	}

	// Database connection from environment or flags (flag wins)
	dbURL := os.Getenv(EnvDatabaseURL)
	if *configDB != "" {
		dbURL = *configDB
	}

	// YAML config path from environment or flags (flag wins)
	yamlPath := os.Getenv(EnvConfigYAML)
	if *configYAML != "" {
		yamlPath = *configYAML
	}

	// Create config based on available sources
	var cfg config.IConfig
	if dbURL != "" {
		logger.Info("Loading configuration from database")
		cfg, err = config.NewDatabaseConfig(dbURL, logger)
		if err != nil {
			logger.Fatal("Failed to create database config", zap.Error(err))
		}
	} else if yamlPath != "" {
		logger.Info("Loading configuration from YAML file", zap.String("path", yamlPath))
		cfg, err = config.NewYamlConfig(yamlPath, logger)
		if err != nil {
			logger.Fatal("Failed to create YAML config", zap.Error(err))
		}
	} else {
		cfg = config.NewInternalConfig()
	}
	defer cfg.Close()

	// Update logger level based on configuration
	logLevel, err := cfg.LogLevel()
	if err != nil {
		logger.Warn("Failed to get log level from config, using default", zap.Error(err))
	} else {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(logLevel)); err != nil {
			logger.Warn("Invalid log level in config, using default", zap.String("level", logLevel), zap.Error(err))
		} else {
			loggerConfig.Level = zap.NewAtomicLevelAt(level)
			newLogger, err := loggerConfig.Build()
			if err != nil {
				logger.Warn("Failed to create logger with new level, keeping default", zap.Error(err))
			} else {
				logger.Info("Updating log level", zap.String("level", logLevel))
				logger = newLogger
			}
		}
	}

	statusCtx, statusCancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = cfg.Status(statusCtx)
	statusCancel()
	if err != nil {
		logger.Fatal("Configuration source is not usable", zap.Error(err))
	}

	settings, err := cfg.ClientSettings()
	if err != nil {
		logger.Fatal("Failed to load client settings", zap.Error(err))
	}
	if v := os.Getenv(EnvURL); v != "" {
		settings.URL = v
	}
	if *endpoint != "" {
		settings.URL = *endpoint
	}
	if v := os.Getenv(EnvToken); v != "" {
		settings.BearerToken = v
	}
	if *token != "" {
		settings.BearerToken = *token
	}
	if settings.URL == "" {
		logger.Fatal("No session endpoint specified (use -url or PILOT_URL)")
	}

	dir, err := cfg.ScreenshotDir()
	if err != nil {
		logger.Fatal("Failed to load screenshot directory", zap.Error(err))
	}
	if *screenshotDir != "" {
		dir = *screenshotDir
	}
	rAddr, err := cfg.RedisAddr()
	if err != nil {
		logger.Fatal("Failed to load Redis address", zap.Error(err))
	}
	if *redisAddr != "" {
		rAddr = *redisAddr
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handler for graceful shutdown
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalCh
		logger.Info("Received termination signal")
		cancel()
	}()

	if err := run(ctx, logger, settings, *navigate, *screenshot, dir, rAddr); err != nil {
		logger.Fatal("Run failed", zap.Error(err))
	}
	logger.Info("Pilot run completed")
}

func run(ctx context.Context, logger *zap.Logger, settings driver.Settings, navigate, screenshot, screenshotDir, redisAddr string) error {
	conn, err := driver.NewConn(settings, driver.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("create connection: %w", err)
	}

	// The connection never redials on its own; retry lives here.
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.MaxElapsedTime = 60 * time.Second
	err = backoff.Retry(func() error {
		dialCtx, dialCancel := context.WithTimeout(ctx, 15*time.Second)
		defer dialCancel()
		if err := conn.Connect(dialCtx); err != nil {
			logger.Warn("Connect attempt failed", zap.Error(err))
			return err
		}
		return nil
	}, backoff.WithContext(expBackoff, ctx))
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	logger.Info("Connected", zap.String("session_id", conn.SessionID()))

	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer closeCancel()
		if err := conn.Close(closeCtx); err != nil && !errors.Is(err, driver.ErrNotConnected) {
			logger.Warn("Close failed", zap.Error(err))
		}
	}()

	browser := driver.NewBrowser(conn, driver.WithBrowserLogger(logger))

	if navigate != "" {
		logger.Info("Navigating", zap.String("url", navigate))
		if err := browser.Navigate(ctx, navigate); err != nil {
			return fmt.Errorf("navigate: %w", err)
		}
	}

	if screenshot == "" {
		return nil
	}

	img, err := browser.CaptureScreenshot(ctx)
	if err != nil {
		return fmt.Errorf("capture screenshot: %w", err)
	}
	if img == nil {
		logger.Warn("Screenshot completed but the image is absent, nothing to save")
		return nil
	}

	name := screenshot
	if name == "auto" {
		name = "shot-" + uuid.NewString() + ".png"
	}

	var sink artifact.Sink
	if redisAddr != "" {
		redisSink, err := artifact.NewRedisSink(redisAddr, artifactTTL)
		if err != nil {
			return fmt.Errorf("redis sink: %w", err)
		}
		defer redisSink.Close()
		sink = redisSink
	} else {
		sink = &artifact.FileSink{Dir: screenshotDir}
	}

	location, err := sink.Save(ctx, name, img)
	if err != nil {
		return fmt.Errorf("save screenshot: %w", err)
	}
	logger.Info("Screenshot saved", zap.String("location", location))
	return nil
}
