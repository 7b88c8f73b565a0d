package internal

import "fmt"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config      *Config
	projectPath string
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithProjectPath overrides the configured project directory.
func WithProjectPath(path string) Option {
	return func(a *application) {
		a.projectPath = path
	}
}

// resolveConfig applies opts and returns the effective configuration.
func resolveConfig(opts []Option) (*Config, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.projectPath != "" {
		app.config.Project.Path = app.projectPath
	}
	return app.config, nil
}
