// Package config loads the ScanEats configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable that overrides the config path.
const EnvConfigPath = "SCANEATS_CONFIG"

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	OCR        OCRConfig        `yaml:"ocr"`
	Preprocess PreprocessConfig `yaml:"preprocess"`
	Scratch    ScratchConfig    `yaml:"scratch"`
}

// ServerConfig configures the HTTP and websocket listener
type ServerConfig struct {
	Port      string `yaml:"port"`
	StaticDir string `yaml:"static_dir"`
	// Debug forces debug logging
	Debug bool `yaml:"debug"`
}

// DatabaseConfig points at the SQLite file
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// OCRConfig selects and tunes the recognition engine
type OCRConfig struct {
	// Engine is "tesseract" or "vertex"
	Engine   string        `yaml:"engine"`
	Language string        `yaml:"language"`
	Timeout  time.Duration `yaml:"timeout"`
	// PSM is the tesseract page segmentation mode
	PSM    int          `yaml:"psm"`
	Vertex VertexConfig `yaml:"vertex"`
}

// VertexConfig holds the Vertex AI project settings
type VertexConfig struct {
	ProjectID       string `yaml:"project_id"`
	Location        string `yaml:"location"`
	CredentialsFile string `yaml:"credentials_file"`
	Model           string `yaml:"model"`
}

// PreprocessConfig tunes the image passes run before recognition
type PreprocessConfig struct {
	Width    int     `yaml:"width"`
	Contrast float64 `yaml:"contrast"`
	// MaxPixels bounds both the decoded source and the resized output
	MaxPixels int `yaml:"max_pixels"`
}

// ScratchConfig locates per-scan temporary files
type ScratchConfig struct {
	// Dir defaults to a scaneats directory under the system temp dir
	Dir string `yaml:"dir"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:      "8080",
			StaticDir: "./static",
		},
		Database: DatabaseConfig{
			Path: "scaneats.db",
		},
		OCR: OCRConfig{
			Engine:   "tesseract",
			Language: "eng",
			Timeout:  30 * time.Second,
			PSM:      3,
			Vertex: VertexConfig{
				Location: "us-central1",
				Model:    "gemini-1.5-flash",
			},
		},
		Preprocess: PreprocessConfig{
			Width:     800,
			Contrast:  1.5,
			MaxPixels: 16_000_000,
		},
		Scratch: ScratchConfig{
			Dir: filepath.Join(os.TempDir(), "scaneats"),
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("server.port must be a number between 1 and 65535, got %q", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	switch c.OCR.Engine {
	case "tesseract":
	case "vertex":
		if c.OCR.Vertex.ProjectID == "" {
			return fmt.Errorf("ocr.vertex.project_id is required for the vertex engine")
		}
		if c.OCR.Vertex.Location == "" {
			return fmt.Errorf("ocr.vertex.location is required for the vertex engine")
		}
	default:
		return fmt.Errorf("ocr.engine must be tesseract or vertex, got %q", c.OCR.Engine)
	}
	if c.OCR.Language == "" {
		return fmt.Errorf("ocr.language is required")
	}
	if c.OCR.Timeout <= 0 {
		return fmt.Errorf("ocr.timeout must be positive")
	}
	if c.OCR.PSM < 0 || c.OCR.PSM > 13 {
		return fmt.Errorf("ocr.psm must be between 0 and 13")
	}
	if c.Preprocess.Width <= 0 {
		return fmt.Errorf("preprocess.width must be positive")
	}
	if c.Preprocess.Contrast <= 0 {
		return fmt.Errorf("preprocess.contrast must be positive")
	}
	if c.Preprocess.MaxPixels <= 0 {
		return fmt.Errorf("preprocess.max_pixels must be positive")
	}
	return nil
}

// LoadConfig reads path over the defaults and validates the result. JSON
// files are accepted as YAML.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return config, nil
}

// Load is LoadConfig with a fallback to the defaults when path is empty or
// names a missing file.
func Load(path string) (*Config, error) {
	if path == "" {
		return defaultsValidated()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return defaultsValidated()
	}
	return LoadConfig(path)
}

func defaultsValidated() (*Config, error) {
	config := DefaultConfig()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// GetConfigPath returns the path to the configuration file
func GetConfigPath() string {
	// First try environment variable
	if path := os.Getenv(EnvConfigPath); path != "" {
		return path
	}

	// Then try config directory
	for _, candidate := range []string{
		filepath.Join("config", "config.yaml"),
		filepath.Join("config", "config.json"),
	} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	// Finally, try current directory
	return "config.json"
}
