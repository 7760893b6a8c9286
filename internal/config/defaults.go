package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5000
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/kotae/data/indexes/vector_db"
	}
	if cfg.VectorDB.Dimension == 0 {
		cfg.VectorDB.Dimension = 768
	}
	if cfg.VectorDB.NList == 0 {
		cfg.VectorDB.NList = 100
	}
	if cfg.VectorDB.NProbe == 0 {
		cfg.VectorDB.NProbe = 10
	}
	if cfg.VectorDB.IndexType == "" {
		cfg.VectorDB.IndexType = "ivfflat"
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "gpt2-medium"
	}
	if cfg.Generation.MaxTokens == 0 {
		cfg.Generation.MaxTokens = 200
	}
	if cfg.Generation.Temperature == 0 {
		cfg.Generation.Temperature = 0.6
	}
	if cfg.Generation.TopP == 0 {
		cfg.Generation.TopP = 0.85
	}
	if cfg.Query.DefaultK == 0 {
		cfg.Query.DefaultK = 3
	}
	if cfg.Query.DefaultThreshold == 0 {
		cfg.Query.DefaultThreshold = 0.5
	}
	if cfg.Query.ContextMaxLength == 0 {
		cfg.Query.ContextMaxLength = 2000
	}
	if cfg.Query.MinQuestionLength == 0 {
		cfg.Query.MinQuestionLength = 5
	}
	if cfg.History.Capacity == 0 {
		cfg.History.Capacity = 100
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".md", ".rst", ".pdf", ".docx", ".xlsx"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
