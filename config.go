package docview

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the preview engine.
type Config struct {
	// Row windowing for grids
	InitialRows     int     `json:"initial_rows" yaml:"initial_rows"`
	RowStep         int     `json:"row_step" yaml:"row_step"`
	ScrollThreshold float64 `json:"scroll_threshold" yaml:"scroll_threshold"` // distance from the bottom edge that triggers growth

	// Page rendering
	MinScale     float64 `json:"min_scale" yaml:"min_scale"`
	MaxScale     float64 `json:"max_scale" yaml:"max_scale"`
	DefaultScale float64 `json:"default_scale" yaml:"default_scale"`
	ZoomStep     float64 `json:"zoom_step" yaml:"zoom_step"` // multiplier applied by one zoom in/out

	// Legacy conversion service; an empty BaseURL disables the legacy path
	Conversion ConversionConfig `json:"conversion" yaml:"conversion"`

	// MaxUploadBytes caps accepted files. Zero means no limit.
	MaxUploadBytes int64 `json:"max_upload_bytes" yaml:"max_upload_bytes"`
}

// ConversionConfig configures the remote legacy-format conversion service.
type ConversionConfig struct {
	BaseURL        string `json:"base_url" yaml:"base_url"`
	APIKey         string `json:"api_key" yaml:"api_key"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// DefaultConfig returns a Config with sensible defaults. The conversion
// service is left unset.
func DefaultConfig() Config {
	return Config{
		InitialRows:     100,
		RowStep:         100,
		ScrollThreshold: 200,
		MinScale:        0.5,
		MaxScale:        3.0,
		DefaultScale:    1.0,
		ZoomStep:        1.25,
		Conversion: ConversionConfig{
			TimeoutSeconds: 60,
		},
		MaxUploadBytes: 50 << 20,
	}
}

// LoadConfig reads a JSON or YAML file (by extension) over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	case ".json":
		err = json.Unmarshal(data, &cfg)
	default:
		return cfg, fmt.Errorf("%w: unknown config format %q", ErrInvalidConfig, filepath.Ext(path))
	}
	if err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.InitialRows <= 0:
		return fmt.Errorf("%w: initial_rows must be positive", ErrInvalidConfig)
	case c.RowStep <= 0:
		return fmt.Errorf("%w: row_step must be positive", ErrInvalidConfig)
	case c.ScrollThreshold < 0:
		return fmt.Errorf("%w: scroll_threshold must not be negative", ErrInvalidConfig)
	case c.MinScale <= 0 || c.MaxScale < c.MinScale:
		return fmt.Errorf("%w: scale bounds [%v, %v]", ErrInvalidConfig, c.MinScale, c.MaxScale)
	case c.DefaultScale < c.MinScale || c.DefaultScale > c.MaxScale:
		return fmt.Errorf("%w: default_scale %v outside [%v, %v]", ErrInvalidConfig, c.DefaultScale, c.MinScale, c.MaxScale)
	case c.ZoomStep <= 1:
		return fmt.Errorf("%w: zoom_step must be greater than 1", ErrInvalidConfig)
	case c.Conversion.TimeoutSeconds < 0:
		return fmt.Errorf("%w: conversion.timeout_seconds must not be negative", ErrInvalidConfig)
	case c.MaxUploadBytes < 0:
		return fmt.Errorf("%w: max_upload_bytes must not be negative", ErrInvalidConfig)
	}
	return nil
}

// ApplyEnv overrides fields from DOCVIEW_* variables read through getenv.
// Unset variables leave the current value alone.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("DOCVIEW_CONVERT_URL"); v != "" {
		c.Conversion.BaseURL = v
	}
	if v := getenv("DOCVIEW_CONVERT_API_KEY"); v != "" {
		c.Conversion.APIKey = v
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"DOCVIEW_CONVERT_TIMEOUT", &c.Conversion.TimeoutSeconds},
		{"DOCVIEW_INITIAL_ROWS", &c.InitialRows},
		{"DOCVIEW_ROW_STEP", &c.RowStep},
	}
	for _, it := range ints {
		v := getenv(it.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidConfig, it.key, v)
		}
		*it.dst = n
	}

	if v := getenv("DOCVIEW_MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: DOCVIEW_MAX_UPLOAD_BYTES=%q", ErrInvalidConfig, v)
		}
		c.MaxUploadBytes = n
	}
	return c.Validate()
}
