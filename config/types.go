package config

// File is the top-level decoded shape of an agentflow configuration file.
// Every section is optional; callers typically run only part of it (e.g. a
// library embedding a single agent skips LLMs/Agents entirely and builds
// its own llm.Client).
type File struct {
	Version string                 `mapstructure:"version"`
	LLMs    map[string]LLMConfig   `mapstructure:"llms"`
	Tools   map[string]ToolConfig  `mapstructure:"tools"`
	Agents  map[string]AgentConfig `mapstructure:"agents"`
	RAG     map[string]RAGConfig   `mapstructure:"rag"`
	Server  ServerConfig           `mapstructure:"server"`
}

// LLMConfig describes one named llm.Client to construct, mirroring the
// union of llm.AnthropicConfig/OpenAIConfig/GeminiConfig/OllamaConfig.
// APIKeyEnv names an environment variable rather than embedding a secret
// directly in the file; expandEnvVars already resolves ${VAR} references
// inline, but APIKeyEnv is kept as a belt-and-braces path for files that
// intentionally avoid putting even a reference to the key inline.
type LLMConfig struct {
	Provider          string  `mapstructure:"provider"` // "anthropic" | "openai" | "gemini" | "ollama"
	APIKey            string  `mapstructure:"api_key"`
	APIKeyEnv         string  `mapstructure:"api_key_env"`
	BaseURL           string  `mapstructure:"base_url"`
	Model             string  `mapstructure:"model"`
	ContextWindow     int     `mapstructure:"context_window"`
	ReserveCompletion int     `mapstructure:"reserve_completion"`
	MaxTokens         int     `mapstructure:"max_tokens"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	Temperature       float64 `mapstructure:"temperature"`
}

// ToolConfig describes one named tool to register. Kind selects which
// constructor in the tool subpackages builds it ("function", "mcp",
// "plugin", "read_file", "write_file", ...); Params carries the
// constructor-specific settings (e.g. an mcptool.Config or a
// filetool.ReadFileConfig) as a loosely-typed map, decoded by the caller
// with mapstructure.Decode once it knows which struct Kind implies.
type ToolConfig struct {
	Kind   string                 `mapstructure:"kind"`
	Params map[string]interface{} `mapstructure:"params"`
}

// GuardrailConfig names a registered guardrail.Guardrail and the point in
// the chain (input/output) it runs at; the Guardrail itself (its Check
// function) is supplied in code; config only orders and enables it by name.
type GuardrailConfig struct {
	Name string `mapstructure:"name"`
	When string `mapstructure:"when"` // "input" | "output"
}

// HandoffConfig mirrors agent.Handoff.
type HandoffConfig struct {
	TargetAgent           string `mapstructure:"target_agent"`
	TransferReason        string `mapstructure:"transfer_reason"`
	PreserveContext       bool   `mapstructure:"preserve_context"`
	TransferSystemMessage bool   `mapstructure:"transfer_system_message"`
}

// ContextWindowConfig mirrors agent.ContextWindowConfig with plain values
// in place of agent's pointer fields (0/"" means unset at this layer).
type ContextWindowConfig struct {
	MaxTokens             int     `mapstructure:"max_tokens"`
	MaxMessages           int     `mapstructure:"max_messages"`
	PreserveSystemMessage bool    `mapstructure:"preserve_system_message"`
	MinRecentTurns        int     `mapstructure:"min_recent_turns"`
	Strategy              string  `mapstructure:"strategy"` // "oldest_first" | "middle_out" | "recent_turns_only"
	RecentTurnsN          int     `mapstructure:"recent_turns_n"`
	Headroom              float64 `mapstructure:"headroom"`
}

// AgentConfig describes one named agent: which LLM it runs on, which tools
// and handoffs it has available, and its completion/pruning settings.
type AgentConfig struct {
	LLM               string              `mapstructure:"llm"`
	SystemMessage     string              `mapstructure:"system_message"`
	Tools             []string            `mapstructure:"tools"`
	Handoffs          []HandoffConfig     `mapstructure:"handoffs"`
	Guardrails        []GuardrailConfig   `mapstructure:"guardrails"`
	ContextWindow     ContextWindowConfig `mapstructure:"context_window"`
	MaxSteps          int                 `mapstructure:"max_steps"`
	Temperature       float64             `mapstructure:"temperature"`
	TopP              float64             `mapstructure:"top_p"`
}

// RAGConfig describes one named retrieval pipeline: its document source,
// embedder, vector/keyword stores, and sync schedule.
type RAGConfig struct {
	Embedder          string `mapstructure:"embedder"` // "openai" | "ollama" | "cohere"
	EmbedderAPIKeyEnv string `mapstructure:"embedder_api_key_env"`
	EmbedderBaseURL   string `mapstructure:"embedder_base_url"`
	EmbedderModel     string `mapstructure:"embedder_model"`

	VectorStore           string `mapstructure:"vector_store"` // "chromem" | "qdrant" | "pinecone"
	VectorStorePath       string `mapstructure:"vector_store_path"`       // chromem persistence dir
	VectorStoreHost       string `mapstructure:"vector_store_host"` // qdrant/pinecone host
	VectorStorePort       int    `mapstructure:"vector_store_port"` // qdrant gRPC port
	VectorStoreIndexName  string `mapstructure:"vector_store_index_name"` // pinecone index
	VectorStoreAPIKeyEnv  string `mapstructure:"vector_store_api_key_env"`
	VectorStoreEnvironment string `mapstructure:"vector_store_environment"` // pinecone environment
	Collection            string `mapstructure:"collection"`

	KeywordStore    bool   `mapstructure:"keyword_store"`
	KeywordStoreDSN string `mapstructure:"keyword_store_dsn"`
	RegistryDSN     string `mapstructure:"registry_dsn"`

	Directories []string         `mapstructure:"directories"`
	SQLSources  []SQLSourceConfig `mapstructure:"sql_sources"`

	ChunkerStrategy string `mapstructure:"chunker_strategy"` // "simple" | "overlapping" | "semantic"
	ChunkSize       int    `mapstructure:"chunk_size"`
	ChunkOverlap    int    `mapstructure:"chunk_overlap"`

	Schedule      string     `mapstructure:"schedule"` // cron expression, empty disables scheduled sync
	HybridWeights [2]float64 `mapstructure:"hybrid_weights"` // [vector, keyword]
	RerankTopK    int        `mapstructure:"rerank_top_k"`
	UseHyDE       bool       `mapstructure:"use_hyde"`
	UseMultiQuery bool       `mapstructure:"use_multi_query"`
}

// SQLSourceConfig names one database/sql table a RAG pipeline indexes.
type SQLSourceConfig struct {
	Driver          string   `mapstructure:"driver"` // "sqlite" | "pgx"
	DSN             string   `mapstructure:"dsn"`
	Table           string   `mapstructure:"table"`
	Columns         []string `mapstructure:"columns"`
	IDColumn        string   `mapstructure:"id_column"`
	UpdatedColumn   string   `mapstructure:"updated_column"`
	WhereClause     string   `mapstructure:"where_clause"`
	MetadataColumns []string `mapstructure:"metadata_columns"`
	MaxRows         int      `mapstructure:"max_rows"`
}

// ServerConfig configures the optional HTTP/WS surface.
type ServerConfig struct {
	Addr         string `mapstructure:"addr"`
	JWTSecretEnv string `mapstructure:"jwt_secret_env"`
	EnableWS     bool   `mapstructure:"enable_ws"`
}
