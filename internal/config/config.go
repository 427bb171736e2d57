package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/codebuildervaibhav/whisper-session/internal/types"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port int    `yaml:"port"`
		Host string `yaml:"host"`
	} `yaml:"server"`

	Worker struct {
		Command   string   `yaml:"command"`
		Args      []string `yaml:"args"`
		Dir       string   `yaml:"dir"`
		QueueSize int      `yaml:"queue_size"`
	} `yaml:"worker"`

	Defaults types.Settings `yaml:"defaults"`

	Pipeline struct {
		Workers int `yaml:"workers"`
	} `yaml:"pipeline"`

	Storage struct {
		TempDir   string `yaml:"temp_dir"`
		OutputDir string `yaml:"output_dir"`
		Database  string `yaml:"database"`
	} `yaml:"storage"`

	Cleanup struct {
		IntervalMinutes int `yaml:"interval_minutes"`
		MaxAgeHours     int `yaml:"max_age_hours"`
	} `yaml:"cleanup"`

	GoogleDrive struct {
		CredentialsFile string `yaml:"credentials_file"`
		TokenFile       string `yaml:"token_file"`
		FolderName      string `yaml:"folder_name"`
	} `yaml:"google_drive"`

	Completion struct {
		Enabled     bool    `yaml:"enabled"`
		URL         string  `yaml:"url"`
		Model       string  `yaml:"model"`
		Temperature float64 `yaml:"temperature"`
		APIKey      string  `yaml:"api_key"`
		TimeoutSecs int     `yaml:"timeout_seconds"`
	} `yaml:"completion"`

	Limits struct {
		MaxFileSizeMB int `yaml:"max_file_size_mb"`
	} `yaml:"limits"`
}

// Default returns the configuration used for any field the file leaves out
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 8080
	cfg.Worker.QueueSize = 8
	cfg.Defaults = types.Settings{
		Model:        "Xenova/whisper-tiny",
		Multilingual: false,
		Subtask:      "transcribe",
		Language:     "en",
	}
	cfg.Pipeline.Workers = 2
	cfg.Storage.TempDir = "temp"
	cfg.Storage.OutputDir = "outputs"
	cfg.Storage.Database = "transcripts.db"
	cfg.Cleanup.IntervalMinutes = 30
	cfg.Cleanup.MaxAgeHours = 24
	cfg.GoogleDrive.FolderName = "Transcripts"
	cfg.Completion.URL = "https://api.openai.com/v1/chat/completions"
	cfg.Completion.Model = "gpt-4o-mini"
	cfg.Completion.Temperature = 0.7
	cfg.Completion.TimeoutSecs = 60
	cfg.Limits.MaxFileSizeMB = 100
	return cfg
}

// Load reads the YAML file at path on top of the defaults. A missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	file, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %v", path, err)
		}
	}

	if cfg.Completion.APIKey == "" {
		cfg.Completion.APIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first setting that cannot work
func (c *Config) Validate() error {
	switch {
	case c.Worker.Command == "":
		return fmt.Errorf("worker.command is required")
	case c.Defaults.Model == "":
		return fmt.Errorf("defaults.model is required")
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	case c.Pipeline.Workers <= 0:
		return fmt.Errorf("pipeline.workers must be positive")
	case c.Cleanup.IntervalMinutes <= 0:
		return fmt.Errorf("cleanup.interval_minutes must be positive")
	case c.Limits.MaxFileSizeMB <= 0:
		return fmt.Errorf("limits.max_file_size_mb must be positive")
	case c.Completion.Enabled && c.Completion.APIKey == "":
		return fmt.Errorf("completion is enabled but no api key is set (completion.api_key or OPENAI_API_KEY)")
	}
	return nil
}
