package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/giantswarm/multibranch/internal/config"
	"github.com/giantswarm/multibranch/pkg/logging"
)

// Application represents the main application structure that bootstraps
// multibranch. It owns the loaded configuration and the services built
// from it.
//
// Example usage:
//
//	cfg := app.NewConfig(configPath, "", false)
//	application, err := app.NewApplication(ctx, cfg)
//	if err != nil {
//	    return fmt.Errorf("failed to create application: %w", err)
//	}
//	defer application.Close()
//	return application.Run(ctx)
type Application struct {
	config   *Config
	services *Services
}

// NewApplication loads the configuration, initializes logging and creates
// every service. Logging is first set up for the command line so that
// configuration errors are visible, then re-initialized with the level and
// format from config.yaml.
func NewApplication(ctx context.Context, cfg *Config) (*Application, error) {
	var logOutput io.Writer = os.Stderr
	if cfg.Silent {
		logOutput = io.Discard
	}
	logging.InitForCLI(logging.ParseLevel(cfg.LogLevel), logOutput)

	loaded, err := config.LoadConfig(cfg.ConfigPath)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to load configuration from %s", cfg.ConfigPath)
		return nil, fmt.Errorf("failed to load configuration from %s: %w", cfg.ConfigPath, err)
	}
	cfg.Config = &loaded

	level := loaded.Logging.Level
	if cfg.LogLevel != "" {
		level = cfg.LogLevel
	}
	logging.Init(logging.ParseLevel(level), logging.Format(loaded.Logging.Format), logOutput)

	services, err := InitializeServices(ctx, loaded)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
	}, nil
}

// Services returns the initialized services.
func (a *Application) Services() *Services {
	return a.services
}

// Run synchronizes every project in the background until ctx is canceled
// or the process is signaled.
func (a *Application) Run(ctx context.Context) error {
	return runServe(ctx, a.services)
}

// Close releases the services.
func (a *Application) Close() error {
	return a.services.Close()
}
