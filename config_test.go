package docview

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig is invalid: %v", err)
	}
	if cfg.InitialRows != 100 || cfg.RowStep != 100 {
		t.Errorf("row window = %d/%d, want 100/100", cfg.InitialRows, cfg.RowStep)
	}
	if cfg.MinScale != 0.5 || cfg.MaxScale != 3.0 {
		t.Errorf("scale bounds = [%v, %v], want [0.5, 3]", cfg.MinScale, cfg.MaxScale)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero initial rows", func(c *Config) { c.InitialRows = 0 }},
		{"negative row step", func(c *Config) { c.RowStep = -1 }},
		{"negative threshold", func(c *Config) { c.ScrollThreshold = -5 }},
		{"inverted scale bounds", func(c *Config) { c.MinScale, c.MaxScale = 2, 1 }},
		{"default scale outside bounds", func(c *Config) { c.DefaultScale = 4 }},
		{"zoom step not enlarging", func(c *Config) { c.ZoomStep = 1 }},
		{"negative timeout", func(c *Config) { c.Conversion.TimeoutSeconds = -1 }},
		{"negative upload limit", func(c *Config) { c.MaxUploadBytes = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
			if _, err := New(cfg); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("New() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		file    string
		content string
	}{
		{"docview.yaml", "initial_rows: 50\nconversion:\n  base_url: http://convert:8080\n  timeout_seconds: 15\n"},
		{"docview.json", `{"initial_rows": 50, "conversion": {"base_url": "http://convert:8080", "timeout_seconds": 15}}`},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}

			cfg, err := LoadConfig(path)
			if err != nil {
				t.Fatalf("LoadConfig: %v", err)
			}
			if cfg.InitialRows != 50 {
				t.Errorf("InitialRows = %d, want 50", cfg.InitialRows)
			}
			if cfg.RowStep != 100 {
				t.Errorf("RowStep = %d, want default 100", cfg.RowStep)
			}
			if cfg.Conversion.BaseURL != "http://convert:8080" || cfg.Conversion.TimeoutSeconds != 15 {
				t.Errorf("Conversion = %+v", cfg.Conversion)
			}
		})
	}
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	toml := filepath.Join(dir, "docview.toml")
	os.WriteFile(toml, []byte("initial_rows = 5"), 0o644)
	if _, err := LoadConfig(toml); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("unknown extension: %v, want ErrInvalidConfig", err)
	}

	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("initial_rows: 0\n"), 0o644)
	if _, err := LoadConfig(bad); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("invalid values: %v, want ErrInvalidConfig", err)
	}
}

func TestConfigApplyEnv(t *testing.T) {
	env := map[string]string{
		"DOCVIEW_CONVERT_URL":      "http://convert.internal",
		"DOCVIEW_CONVERT_TIMEOUT":  "5",
		"DOCVIEW_INITIAL_ROWS":     "25",
		"DOCVIEW_MAX_UPLOAD_BYTES": "1048576",
	}
	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(func(k string) string { return env[k] }); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Conversion.BaseURL != "http://convert.internal" || cfg.Conversion.TimeoutSeconds != 5 {
		t.Errorf("Conversion = %+v", cfg.Conversion)
	}
	if cfg.InitialRows != 25 || cfg.RowStep != 100 {
		t.Errorf("rows = %d/%d, want 25/100", cfg.InitialRows, cfg.RowStep)
	}
	if cfg.MaxUploadBytes != 1<<20 {
		t.Errorf("MaxUploadBytes = %d", cfg.MaxUploadBytes)
	}

	bad := DefaultConfig()
	err := bad.ApplyEnv(func(k string) string {
		if k == "DOCVIEW_ROW_STEP" {
			return "lots"
		}
		return ""
	})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("non-numeric value: %v, want ErrInvalidConfig", err)
	}
}
