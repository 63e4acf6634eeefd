// Package config provides configuration loading and structs for the tutorly server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	EnvFile   string          `yaml:"env_file"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chat      ChatConfig      `yaml:"chat"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Auth      AuthConfig      `yaml:"auth"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	RequestTimeoutSecs int    `yaml:"request_timeout_secs"`
	MaxUploadBytes     int64  `yaml:"max_upload_bytes"`
}

// RequestTimeout returns the per-request timeout applied by the router.
func (s *ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSecs) * time.Second
}

// StorageConfig holds paths for the resource database and uploaded blobs.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	UploadDir    string `yaml:"upload_dir"`
}

// EmbeddingConfig selects the embedding provider.
// Provider is "openai" (any OpenAI-compatible endpoint) or "mock".
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	BaseURL    string `yaml:"base_url"`
	APIKeyEnv  string `yaml:"api_key_env"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	BatchSize  int    `yaml:"batch_size"`
	CacheSize  int    `yaml:"cache_size"`
}

// ChatConfig holds chat completion settings for the answerer.
type ChatConfig struct {
	BaseURL     string   `yaml:"base_url"`
	APIKeyEnv   string   `yaml:"api_key_env"`
	Model       string   `yaml:"model"`
	Temperature *float64 `yaml:"temperature"` // nil = 0.2; 0 is a valid setting
	MaxTokens   int      `yaml:"max_tokens"`
}

// TemperatureOrDefault returns the sampling temperature, defaulting to 0.2 when unset.
func (c *ChatConfig) TemperatureOrDefault() float64 {
	if c.Temperature == nil {
		return 0.2
	}
	return *c.Temperature
}

// RetrievalConfig selects how chunks are ranked.
// Strategy "inprocess" scores chunks in the service; "delegated" calls a Postgres similarity function.
// With "delegated", ingested chunks are also written to ResourcesTable and ChunksTable.
type RetrievalConfig struct {
	Strategy       string  `yaml:"strategy"`
	TopK           int     `yaml:"top_k"`
	SubstringBonus float64 `yaml:"substring_bonus"`
	MatchThreshold float64 `yaml:"match_threshold"`
	DatabaseURLEnv string  `yaml:"database_url_env"`
	Function       string  `yaml:"function"`
	ResourcesTable string  `yaml:"resources_table"`
	ChunksTable    string  `yaml:"chunks_table"`
}

// IngestConfig holds chunking and inbox settings.
type IngestConfig struct {
	ChunkSize    int      `yaml:"chunk_size"`
	ChunkOverlap *int     `yaml:"chunk_overlap"` // nil = 200; 0 disables overlap
	Extensions   []string `yaml:"extensions"`
	InboxDir     string   `yaml:"inbox_dir"`
	InboxOwner   string   `yaml:"inbox_owner"`
}

// ChunkOverlapOrDefault returns the chunk overlap, defaulting to 200 when unset.
func (c *IngestConfig) ChunkOverlapOrDefault() int {
	if c.ChunkOverlap == nil {
		return 200
	}
	return *c.ChunkOverlap
}

// AuthConfig selects the bearer token authenticator.
// Provider is "supabase" or "static"; Tokens maps token to user ID for "static".
type AuthConfig struct {
	Provider       string            `yaml:"provider"`
	SupabaseURL    string            `yaml:"supabase_url"`
	SupabaseKeyEnv string            `yaml:"supabase_key_env"`
	Tokens         map[string]string `yaml:"tokens"`
}

// Load reads and parses the config file at path, loads the dotenv file, expands paths,
// and applies defaults. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.EnvFile = expandPath(cfg.EnvFile, configDir)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.UploadDir = expandPath(cfg.Storage.UploadDir, configDir)
	if cfg.Ingest.InboxDir != "" {
		cfg.Ingest.InboxDir = expandPath(cfg.Ingest.InboxDir, configDir)
	}

	if err := loadEnvFile(cfg.EnvFile); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadEnvFile loads variables from a dotenv file without overriding the process environment.
// A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// Secret returns the value of the environment variable named by envName.
func Secret(envName string) (string, error) {
	if envName == "" {
		return "", fmt.Errorf("no environment variable configured")
	}
	v := strings.TrimSpace(os.Getenv(envName))
	if v == "" {
		return "", fmt.Errorf("environment variable %s is not set", envName)
	}
	return v, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
