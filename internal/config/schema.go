package config

// Config holds distill configuration. The pipeline keys live at the top level
// of the config file; provider, scoring and server settings are nested.
type Config struct {
	// Per-call token budget for document text plus schema.
	MaxTokensPerRequest int `mapstructure:"max_tokens_per_request" yaml:"max_tokens_per_request"`
	// Token count above which document chunking activates.
	DocumentChunkThreshold int `mapstructure:"document_chunk_threshold" yaml:"document_chunk_threshold"`
	// Token count above which schema chunking activates.
	SchemaChunkThreshold int `mapstructure:"schema_chunk_threshold" yaml:"schema_chunk_threshold"`
	// Shared context tokens between adjacent document chunks.
	OverlapTokens int `mapstructure:"overlap_tokens" yaml:"overlap_tokens"`
	// Review-queue cutoff in [0,1].
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold" yaml:"confidence_threshold"`
	// Strategy boundary: schemas at or past these go hierarchical.
	SinglePassDepthThreshold  int `mapstructure:"single_pass_depth_threshold" yaml:"single_pass_depth_threshold"`
	SinglePassObjectThreshold int `mapstructure:"single_pass_object_threshold" yaml:"single_pass_object_threshold"`
	// Concurrency cap for outstanding LLM calls.
	MaxConcurrentCalls int `mapstructure:"max_concurrent_calls" yaml:"max_concurrent_calls"`
	// Request-level deadline; past it the engine merges what completed.
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds" yaml:"request_timeout_seconds"`

	LLM     LLMCfg     `mapstructure:"llm" yaml:"llm"`
	Scoring ScoringCfg `mapstructure:"scoring" yaml:"scoring"`
	Server  ServerCfg  `mapstructure:"server" yaml:"server"`
}

// LLMCfg configures the LLM provider.
type LLMCfg struct {
	Provider     string `mapstructure:"provider" yaml:"provider"` // "openai", "openrouter", "mock"
	Model        string `mapstructure:"model" yaml:"model"`
	APIKey       string `mapstructure:"api_key" yaml:"api_key"` // supports ${ENV_VAR} syntax
	MaxRetries   int    `mapstructure:"max_retries" yaml:"max_retries"`
	RetryDelayMS int    `mapstructure:"retry_delay_ms" yaml:"retry_delay_ms"`
	RateLimitRPM int    `mapstructure:"rate_limit_rpm" yaml:"rate_limit_rpm"`
}

// ScoringCfg holds confidence-scoring weights. The four component weights
// should sum to 1.
type ScoringCfg struct {
	FieldWeight        float64 `mapstructure:"field_weight" yaml:"field_weight"`
	CompletenessWeight float64 `mapstructure:"completeness_weight" yaml:"completeness_weight"`
	ConsistencyWeight  float64 `mapstructure:"consistency_weight" yaml:"consistency_weight"`
	SchemaValidWeight  float64 `mapstructure:"schema_valid_weight" yaml:"schema_valid_weight"`
	// RequiredFactor weights required fields in the per-field mean so missing
	// required fields dominate the penalty.
	RequiredFactor float64 `mapstructure:"required_factor" yaml:"required_factor"`
	// OptionalMissing is the score assigned to absent optional fields.
	OptionalMissing float64 `mapstructure:"optional_missing" yaml:"optional_missing"`
}

// ServerCfg configures the HTTP server.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxTokensPerRequest:       4000,
		DocumentChunkThreshold:    3000,
		SchemaChunkThreshold:      1000,
		OverlapTokens:             200,
		ConfidenceThreshold:       0.7,
		SinglePassDepthThreshold:  2,
		SinglePassObjectThreshold: 2,
		MaxConcurrentCalls:        5,
		RequestTimeoutSeconds:     120,
		LLM: LLMCfg{
			Provider:     "openai",
			Model:        "gpt-4o",
			APIKey:       "${OPENAI_API_KEY}",
			MaxRetries:   3,
			RetryDelayMS: 1000,
			RateLimitRPM: 150,
		},
		Scoring: ScoringCfg{
			FieldWeight:        0.5,
			CompletenessWeight: 0.2,
			ConsistencyWeight:  0.2,
			SchemaValidWeight:  0.1,
			RequiredFactor:     2.0,
			OptionalMissing:    0.5,
		},
		Server: ServerCfg{
			Host: "0.0.0.0",
			Port: 8080,
		},
	}
}
