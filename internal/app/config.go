package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// PagePath is the page document to evaluate. Optional when serving:
	// a served session receives its pages over the wire.
	PagePath string

	// ServeAddr is the WebSocket listen address. Empty disables serving.
	ServeAddr string

	// Watch re-evaluates the page whenever the file changes.
	Watch bool

	LogFormat string
	LogLevel  string
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.PagePath == "" && cfg.ServeAddr == "" {
		return nil, errors.New("a page path is required unless a serve address is configured")
	}
	if cfg.Watch && cfg.PagePath == "" {
		return nil, errors.New("watch mode requires a page path")
	}
	return &cfg, nil
}
