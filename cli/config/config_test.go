package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigPath(t *testing.T) {
	path := DefaultConfigPath()

	if path == "" {
		t.Error("DefaultConfigPath() returned empty string")
	}

	if filepath.Base(path) != "config.yaml" {
		t.Errorf("DefaultConfigPath() = %q, should end with config.yaml", path)
	}

	dir := filepath.Dir(path)
	if filepath.Base(dir) != ".warden" {
		t.Errorf("DefaultConfigPath() = %q, should be in .warden directory", path)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.yaml")

	if err != nil {
		t.Errorf("LoadConfig() error = %v, want nil for missing file", err)
	}
	if cfg == nil {
		t.Fatal("LoadConfig() returned nil config")
	}
	if cfg.BundleID != "" {
		t.Errorf("BundleID = %q, want empty", cfg.BundleID)
	}
}

func TestLoadConfigValid(t *testing.T) {
	content := `
bundle_id: com.example.app
team_id: TEAM42
environment: test
base_url: https://api.petal.test
default_model: petal-2
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write temp config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.BundleID != "com.example.app" {
		t.Errorf("BundleID = %q", cfg.BundleID)
	}
	if cfg.TeamID != "TEAM42" {
		t.Errorf("TeamID = %q", cfg.TeamID)
	}
	if cfg.Environment != "test" {
		t.Errorf("Environment = %q", cfg.Environment)
	}
	if cfg.BaseURL != "https://api.petal.test" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.DefaultModel != "petal-2" {
		t.Errorf("DefaultModel = %q", cfg.DefaultModel)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	content := `bundle_id: [not, a, string]`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write temp config: %v", err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Error("LoadConfig() should return error for invalid YAML")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	in := &Config{
		BundleID:     "com.example.app",
		Environment:  "production",
		DefaultModel: "petal-2",
	}
	if err := in.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	out, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if *out != *in {
		t.Errorf("round trip mismatch: got %+v, want %+v", out, in)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("config file mode = %v, want 0600", info.Mode().Perm())
	}
}
