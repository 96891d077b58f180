package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "tesseract", cfg.OCR.Engine)
	assert.Equal(t, "eng", cfg.OCR.Language)
	assert.Equal(t, 30*time.Second, cfg.OCR.Timeout)
	assert.Equal(t, 800, cfg.Preprocess.Width)
	assert.Equal(t, 1.5, cfg.Preprocess.Contrast)
	assert.Equal(t, 16_000_000, cfg.Preprocess.MaxPixels)
	assert.NotEmpty(t, cfg.Scratch.Dir)
	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "valid default config", modify: func(c *Config) {}},
		{name: "non-numeric port", modify: func(c *Config) { c.Server.Port = "http" }, wantErr: true},
		{name: "port out of range", modify: func(c *Config) { c.Server.Port = "70000" }, wantErr: true},
		{name: "missing database path", modify: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "unknown engine", modify: func(c *Config) { c.OCR.Engine = "easyocr" }, wantErr: true},
		{name: "vertex without project", modify: func(c *Config) { c.OCR.Engine = "vertex" }, wantErr: true},
		{
			name: "vertex with project",
			modify: func(c *Config) {
				c.OCR.Engine = "vertex"
				c.OCR.Vertex.ProjectID = "scaneats-prod"
			},
		},
		{name: "zero timeout", modify: func(c *Config) { c.OCR.Timeout = 0 }, wantErr: true},
		{name: "bad psm", modify: func(c *Config) { c.OCR.PSM = 14 }, wantErr: true},
		{name: "zero width", modify: func(c *Config) { c.Preprocess.Width = 0 }, wantErr: true},
		{name: "negative contrast", modify: func(c *Config) { c.Preprocess.Contrast = -1 }, wantErr: true},
		{name: "zero max pixels", modify: func(c *Config) { c.Preprocess.MaxPixels = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfigYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: "9090"
  debug: true
database:
  path: /var/lib/scaneats/scaneats.db
ocr:
  engine: vertex
  timeout: 45s
  vertex:
    project_id: scaneats-prod
    credentials_file: /etc/scaneats/sa.json
preprocess:
  width: 1024
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.True(t, cfg.Server.Debug)
	assert.Equal(t, "./static", cfg.Server.StaticDir, "defaults survive a partial file")
	assert.Equal(t, "/var/lib/scaneats/scaneats.db", cfg.Database.Path)
	assert.Equal(t, "vertex", cfg.OCR.Engine)
	assert.Equal(t, 45*time.Second, cfg.OCR.Timeout)
	assert.Equal(t, "scaneats-prod", cfg.OCR.Vertex.ProjectID)
	assert.Equal(t, "us-central1", cfg.OCR.Vertex.Location)
	assert.Equal(t, 1024, cfg.Preprocess.Width)
	assert.Equal(t, 1.5, cfg.Preprocess.Contrast)
}

func TestLoadConfigJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
  "server": {"port": "8081", "static_dir": "./web"},
  "database": {"path": "nutritional.db"},
  "ocr": {"language": "fra", "timeout": "10s"}
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "8081", cfg.Server.Port)
	assert.Equal(t, "./web", cfg.Server.StaticDir)
	assert.Equal(t, "fra", cfg.OCR.Language)
	assert.Equal(t, 10*time.Second, cfg.OCR.Timeout)
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("server: [unclosed"), 0o644))
	_, err = LoadConfig(bad)
	assert.ErrorContains(t, err, "failed to parse")

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("ocr:\n  engine: magic\n"), 0o644))
	_, err = LoadConfig(invalid)
	assert.ErrorContains(t, err, "ocr.engine")
}

func TestLoadFallsBackToDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Server.Port, cfg.Server.Port)

	cfg, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "tesseract", cfg.OCR.Engine)
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv(EnvConfigPath, "/etc/scaneats/config.yaml")
	assert.Equal(t, "/etc/scaneats/config.yaml", GetConfigPath())

	t.Setenv(EnvConfigPath, "")
	dir := t.TempDir()
	t.Chdir(dir)
	assert.Equal(t, "config.json", GetConfigPath())

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "config.json"), []byte("{}"), 0o644))
	assert.Equal(t, filepath.Join("config", "config.json"), GetConfigPath())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "config.yaml"), []byte("{}"), 0o644))
	assert.Equal(t, filepath.Join("config", "config.yaml"), GetConfigPath())
}
