// Package config provides neurod daemon configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all daemon configuration.
type Config struct {
	Port          string
	AllowedOrigin string
	DBPath        string
	WorkspaceDir  string
	ExportsDir    string

	OllamaHost string
	Model      string

	CommandTimeout time.Duration
	SandboxEnabled bool
	SandboxImage   string

	ConversationLog ConversationLogConfig
}

// ConversationLogConfig controls NDJSON conversation logging.
type ConversationLogConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	timeout := getEnvInt("COMMAND_TIMEOUT_SECONDS", 30)
	if timeout <= 0 {
		timeout = 30
	}
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8765"),
		AllowedOrigin:  getEnv("ALLOWED_ORIGIN", "*"),
		DBPath:         getEnv("DB_PATH", "./data/neuro.db"),
		WorkspaceDir:   getEnv("WORKSPACE_DIR", "./data/workspace"),
		ExportsDir:     getEnv("EXPORTS_DIR", "./data/exports"),
		OllamaHost:     getEnv("OLLAMA_HOST", "http://127.0.0.1:11434"),
		Model:          getEnv("MODEL", "qwen2.5:3b"),
		CommandTimeout: time.Duration(timeout) * time.Second,
		SandboxEnabled: getEnvBool("SANDBOX_ENABLED", false),
		SandboxImage:   getEnv("SANDBOX_IMAGE", "neurosurf-sandbox:latest"),
		ConversationLog: ConversationLogConfig{
			Enabled:   getEnvBool("CONVERSATION_LOG_ENABLED", true),
			Dir:       getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			QueueSize: queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.WorkspaceDir == "" {
		return fmt.Errorf("WORKSPACE_DIR cannot be empty")
	}
	if c.ExportsDir == "" {
		return fmt.Errorf("EXPORTS_DIR cannot be empty")
	}
	if c.Model == "" {
		return fmt.Errorf("MODEL cannot be empty")
	}
	if c.ConversationLog.Enabled && c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	return nil
}

// IsDevelopment returns true when no explicit origin restriction is set.
func (c *Config) IsDevelopment() bool {
	return c.AllowedOrigin == "*" ||
		strings.Contains(c.AllowedOrigin, "localhost") ||
		strings.Contains(c.AllowedOrigin, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}
