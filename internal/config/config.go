package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// DefaultPath is where the optional configuration file is looked up
const DefaultPath = "config.toml"

// Config holds the application configuration
type Config struct {
	Model ModelConfig `toml:"model"`
	Batch BatchConfig `toml:"batch"`
}

// ModelConfig holds the model server and decoding settings
type ModelConfig struct {
	Backend     string `toml:"backend"`
	URL         string `toml:"url"`
	Name        string `toml:"name"`
	Prompt      string `toml:"prompt"`
	MaxTokens   int    `toml:"max_tokens"`
	NumBeams    int    `toml:"num_beams"`
	SendSize    int    `toml:"send_size"`
	SendQuality int    `toml:"send_quality"`
	Timeout     string `toml:"timeout"`
}

// BatchConfig holds the input and output locations
type BatchConfig struct {
	InputDir   string   `toml:"input_dir"`
	OutputDir  string   `toml:"output_dir"`
	Extensions []string `toml:"extensions"`
	Suffix     string   `toml:"suffix"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Backend:     "ollama",
			URL:         "http://localhost:11434",
			Name:        "moondream",
			MaxTokens:   16,
			NumBeams:    4,
			SendSize:    768,
			SendQuality: 90,
			Timeout:     "5m",
		},
		Batch: BatchConfig{
			InputDir:   "persons",
			OutputDir:  "output_captions",
			Extensions: []string{"png", "jpg", "jpeg"},
			Suffix:     "_caption.txt",
		},
	}
}

// Load reads the configuration file at path on top of the defaults.
// A missing file is not an error; any other problem with it is.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("config file %s is a directory", path)
	}
	return LoadFromFile(path)
}

// LoadFromFile loads configuration from a TOML file; unset keys keep their defaults
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch strings.ToLower(c.Model.Backend) {
	case "ollama", "llamacpp":
	default:
		return fmt.Errorf("model.backend must be ollama or llamacpp, got %q", c.Model.Backend)
	}

	if c.Model.Name == "" {
		return fmt.Errorf("model.name cannot be empty")
	}

	if c.Model.MaxTokens < 1 {
		return fmt.Errorf("model.max_tokens must be positive")
	}

	if c.Model.NumBeams < 1 {
		return fmt.Errorf("model.num_beams must be positive")
	}

	if c.Model.SendSize < 0 {
		return fmt.Errorf("model.send_size cannot be negative")
	}

	if c.Model.SendQuality < 1 || c.Model.SendQuality > 100 {
		return fmt.Errorf("model.send_quality must be between 1 and 100")
	}

	if _, err := c.Model.RequestTimeout(); err != nil {
		return err
	}

	if c.Batch.InputDir == "" {
		return fmt.Errorf("batch.input_dir cannot be empty")
	}

	if c.Batch.OutputDir == "" {
		return fmt.Errorf("batch.output_dir cannot be empty")
	}

	if len(c.Batch.Extensions) == 0 {
		return fmt.Errorf("batch.extensions cannot be empty")
	}

	if c.Batch.Suffix == "" {
		return fmt.Errorf("batch.suffix cannot be empty")
	}

	return nil
}

// RequestTimeout parses the per-image timeout; empty means no timeout of our own
func (m ModelConfig) RequestTimeout() (time.Duration, error) {
	if m.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(m.Timeout)
	if err != nil {
		return 0, fmt.Errorf("model.timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("model.timeout cannot be negative")
	}
	return d, nil
}
