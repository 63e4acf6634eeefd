package config

// Retrieval strategies.
const (
	StrategyInProcess = "inprocess"
	StrategyDelegated = "delegated"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.EnvFile == "" {
		cfg.EnvFile = "./.env"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeoutSecs == 0 {
		cfg.Server.RequestTimeoutSecs = 60
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = 32 << 20
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/tutorly/data/db/resources.db"
	}
	if cfg.Storage.UploadDir == "" {
		cfg.Storage.UploadDir = "/usr/local/var/tutorly/data/uploads"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1536
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 64
	}
	if cfg.Chat.APIKeyEnv == "" {
		cfg.Chat.APIKeyEnv = cfg.Embedding.APIKeyEnv
	}
	if cfg.Chat.Model == "" {
		cfg.Chat.Model = "gpt-4o-mini"
	}
	if cfg.Chat.MaxTokens == 0 {
		cfg.Chat.MaxTokens = 1024
	}
	if cfg.Retrieval.Strategy == "" {
		cfg.Retrieval.Strategy = StrategyInProcess
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	// Negative disables the bonus; zero means unset.
	if cfg.Retrieval.SubstringBonus == 0 {
		cfg.Retrieval.SubstringBonus = 0.2
	}
	if cfg.Retrieval.MatchThreshold == 0 {
		cfg.Retrieval.MatchThreshold = 0.5
	}
	if cfg.Retrieval.DatabaseURLEnv == "" {
		cfg.Retrieval.DatabaseURLEnv = "SUPABASE_DB_URL"
	}
	if cfg.Retrieval.Function == "" {
		cfg.Retrieval.Function = "match_documents_filtered"
	}
	if cfg.Retrieval.ResourcesTable == "" {
		cfg.Retrieval.ResourcesTable = "resources"
	}
	if cfg.Retrieval.ChunksTable == "" {
		cfg.Retrieval.ChunksTable = "chunks"
	}
	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 1000
	}
	if cfg.Ingest.Extensions == nil {
		cfg.Ingest.Extensions = []string{".pdf", ".docx", ".xlsx", ".txt", ".md", ".csv"}
	}
	if cfg.Auth.Provider == "" {
		cfg.Auth.Provider = "supabase"
	}
	if cfg.Auth.SupabaseKeyEnv == "" {
		cfg.Auth.SupabaseKeyEnv = "SUPABASE_ANON_KEY"
	}
}
