package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
retrieval:
  strategy: delegated
  top_k: 3
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Retrieval.Strategy != StrategyDelegated || cfg.Retrieval.TopK != 3 {
		t.Errorf("unexpected retrieval config: %+v", cfg.Retrieval)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_explicitZeroesKept(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
chat:
  temperature: 0
ingest:
  chunk_overlap: 0
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Chat.Temperature == nil || cfg.Chat.TemperatureOrDefault() != 0 {
		t.Errorf("temperature: got %v, want explicit 0", cfg.Chat.Temperature)
	}
	if cfg.Ingest.ChunkOverlap == nil || cfg.Ingest.ChunkOverlapOrDefault() != 0 {
		t.Errorf("chunk_overlap: got %v, want explicit 0", cfg.Ingest.ChunkOverlap)
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
storage:
  database_path: "./data/db/resources.db"
  upload_dir: "./data/uploads"
ingest:
  inbox_dir: "./inbox"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "data", "db", "resources.db"); cfg.Storage.DatabasePath != want {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, want)
	}
	if want := filepath.Join(dir, "data", "uploads"); cfg.Storage.UploadDir != want {
		t.Errorf("upload_dir = %s, want %s", cfg.Storage.UploadDir, want)
	}
	if want := filepath.Join(dir, "inbox"); cfg.Ingest.InboxDir != want {
		t.Errorf("inbox_dir = %s, want %s", cfg.Ingest.InboxDir, want)
	}
	if want := filepath.Join(dir, ".env"); cfg.EnvFile != want {
		t.Errorf("env_file = %s, want %s", cfg.EnvFile, want)
	}
}

func TestLoad_envFile(t *testing.T) {
	dir := t.TempDir()
	const key = "TUTORLY_TEST_SECRET_FROM_DOTENV"
	t.Cleanup(func() { _ = os.Unsetenv(key) })
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(key+"=sk-test\n"), 0600); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("embedding:\n  api_key_env: "+key+"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Secret(cfg.Embedding.APIKeyEnv)
	if err != nil {
		t.Fatal(err)
	}
	if got != "sk-test" {
		t.Errorf("secret = %q, want sk-test", got)
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestSecret_unset(t *testing.T) {
	if _, err := Secret(""); err == nil {
		t.Error("expected error for empty env name")
	}
	if _, err := Secret("TUTORLY_TEST_DEFINITELY_UNSET"); err == nil {
		t.Error("expected error for unset variable")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Retrieval.TopK != 5 {
		t.Errorf("default top_k: got %d, want 5", cfg.Retrieval.TopK)
	}
	if cfg.Retrieval.SubstringBonus != 0.2 {
		t.Errorf("default substring_bonus: got %f, want 0.2", cfg.Retrieval.SubstringBonus)
	}
	if cfg.Retrieval.Strategy != StrategyInProcess {
		t.Errorf("default strategy: got %s", cfg.Retrieval.Strategy)
	}
	if cfg.Ingest.ChunkSize != 1000 || cfg.Ingest.ChunkOverlapOrDefault() != 200 {
		t.Errorf("default chunking: got %d/%d", cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlapOrDefault())
	}
	if cfg.Chat.TemperatureOrDefault() != 0.2 {
		t.Errorf("default temperature: got %v", cfg.Chat.TemperatureOrDefault())
	}
	if cfg.Retrieval.ResourcesTable != "resources" || cfg.Retrieval.ChunksTable != "chunks" {
		t.Errorf("default tables: got %s/%s", cfg.Retrieval.ResourcesTable, cfg.Retrieval.ChunksTable)
	}
	if cfg.Embedding.Dimensions != 1536 {
		t.Errorf("default dimensions: got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Chat.APIKeyEnv != cfg.Embedding.APIKeyEnv {
		t.Errorf("chat api_key_env should default to embedding's: got %q", cfg.Chat.APIKeyEnv)
	}
	if cfg.Server.RequestTimeout().Seconds() != 60 {
		t.Errorf("default request timeout: got %s", cfg.Server.RequestTimeout())
	}
}
