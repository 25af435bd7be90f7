package rag

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/agentflowhq/agentflow/config"
	"github.com/agentflowhq/agentflow/llm"
	"github.com/agentflowhq/agentflow/rag/embedder"
	"github.com/agentflowhq/agentflow/rag/keywordstore"
	"github.com/agentflowhq/agentflow/rag/vectorstore"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Pipeline bundles everything one named RAG config builds: the sync
// engine that drives ingest/sync/refresh, the searcher that answers
// hybrid queries, the loaders discovered from config, and an optional
// Scheduler when a cron schedule was configured.
type Pipeline struct {
	Engine    *Engine
	Searcher  *Searcher
	Scheduler *Scheduler
	Loaders   []Loader
	Fusion    FusionStrategy
}

// NewPipeline builds a complete RAG pipeline from a named RAGConfig
// section: embedder, vector store, optional keyword store, registry,
// chunker and loaders (directory and/or SQL sources). Pass an llm.Client
// via WithHyDE/WithMultiQuery afterward to enable those search-time
// stages; they need an LLM and config alone doesn't carry one.
func NewPipeline(cfg config.RAGConfig) (*Pipeline, error) {
	emb, err := embedderFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("rag: build embedder: %w", err)
	}

	store, err := vectorStoreFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("rag: build vector store: %w", err)
	}

	var kwStore *keywordstore.Store
	if cfg.KeywordStore {
		dsn := cfg.KeywordStoreDSN
		if dsn == "" {
			dsn = ":memory:"
		}
		kwStore, err = keywordstore.Open(dsn)
		if err != nil {
			return nil, fmt.Errorf("rag: build keyword store: %w", err)
		}
	}

	registryDSN := cfg.RegistryDSN
	if registryDSN == "" {
		registryDSN = ":memory:"
	}
	registry, err := OpenRegistry(registryDSN)
	if err != nil {
		return nil, fmt.Errorf("rag: build registry: %w", err)
	}

	chunker, err := chunkerFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("rag: build chunker: %w", err)
	}

	loaders, err := loadersFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("rag: build loaders: %w", err)
	}

	collection := cfg.Collection
	if collection == "" {
		collection = "default"
	}

	engine, err := NewEngine(SyncEngineConfig{
		Registry:           registry,
		Chunker:            chunker,
		Embedder:           emb,
		Store:              store,
		KeywordStore:       kwStore,
		Collection:         collection,
		SkipEmptyDocuments: true,
		UseHints:           true,
		EnableVersioning:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("rag: build sync engine: %w", err)
	}

	searcher, err := NewSearcher(SearcherConfig{
		Store:        store,
		KeywordStore: kwStore,
		Embedder:     emb,
		Collection:   collection,
	})
	if err != nil {
		return nil, fmt.Errorf("rag: build searcher: %w", err)
	}

	return &Pipeline{
		Engine:   engine,
		Searcher: searcher,
		Loaders:  loaders,
		Fusion:   DefaultFusionStrategy(cfg),
	}, nil
}

// WithHyDE attaches hypothetical-document-embedding query rewriting,
// using client to generate the hypothetical document at search time.
func (p *Pipeline) WithHyDE(client llm.Client) *Pipeline {
	p.Searcher = p.Searcher.withHyDE(NewHyDE(client))
	return p
}

// WithMultiQuery attaches LLM-driven query expansion, generating
// numQueries variants of each search query before fusing their results.
func (p *Pipeline) WithMultiQuery(client llm.Client, numQueries int) *Pipeline {
	p.Searcher = p.Searcher.withMultiQuery(NewMultiQueryExpander(client, numQueries))
	return p
}

// WithReranker attaches a reranker, enabled by passing EnableRerank in
// SearchOptions at query time.
func (p *Pipeline) WithReranker(reranker Reranker) *Pipeline {
	p.Searcher = p.Searcher.withReranker(reranker)
	return p
}

// StartScheduler builds and starts a cron scheduler running Sync across
// every configured loader, per the RAGConfig's Schedule expression. A
// no-op if schedule is empty.
func (p *Pipeline) StartScheduler(schedule string) error {
	if schedule == "" {
		return nil
	}
	scheduler, err := NewScheduler(schedule, p.syncAllLoaders)
	if err != nil {
		return err
	}
	p.Scheduler = scheduler
	scheduler.Start()
	return nil
}

func (p *Pipeline) syncAllLoaders(ctx context.Context) (SyncStats, error) {
	var total SyncStats
	for _, loader := range p.Loaders {
		stats, err := p.Engine.Sync(ctx, loader)
		total.Added += stats.Added
		total.Updated += stats.Updated
		total.Deleted += stats.Deleted
		total.Unchanged += stats.Unchanged
		total.Failed += stats.Failed
		total.Errors = append(total.Errors, stats.Errors...)
		total.Duration += stats.Duration
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// DefaultFusionStrategy builds a FusionStrategy from a RAGConfig's
// [vector, keyword] weight pair, falling back to RRF(60) when both are
// zero.
func DefaultFusionStrategy(cfg config.RAGConfig) FusionStrategy {
	wv, wk := cfg.HybridWeights[0], cfg.HybridWeights[1]
	if wv == 0 && wk == 0 {
		return RRF(60)
	}
	return WeightedScore(wv, wk)
}

func embedderFromConfig(cfg config.RAGConfig) (embedder.Embedder, error) {
	return embedder.New(embedder.Config{
		Provider:  cfg.Embedder,
		APIKeyEnv: cfg.EmbedderAPIKeyEnv,
		BaseURL:   cfg.EmbedderBaseURL,
		Model:     cfg.EmbedderModel,
	})
}

func vectorStoreFromConfig(cfg config.RAGConfig) (vectorstore.Provider, error) {
	switch cfg.VectorStore {
	case "", "chromem":
		return vectorstore.NewChromemProvider(vectorstore.ChromemConfig{
			PersistPath: cfg.VectorStorePath,
		})
	case "qdrant":
		return vectorstore.NewQdrantProvider(vectorstore.QdrantConfig{
			Host:   cfg.VectorStoreHost,
			Port:   cfg.VectorStorePort,
			APIKey: os.Getenv(cfg.VectorStoreAPIKeyEnv),
		})
	case "pinecone":
		return vectorstore.NewPineconeProvider(vectorstore.PineconeConfig{
			APIKey:    os.Getenv(cfg.VectorStoreAPIKeyEnv),
			Host:      cfg.VectorStoreHost,
			IndexName: cfg.VectorStoreIndexName,
		})
	default:
		return nil, fmt.Errorf("unknown vector store %q", cfg.VectorStore)
	}
}

func chunkerFromConfig(cfg config.RAGConfig) (Chunker, error) {
	chunkerCfg := DefaultChunkerConfig()
	if cfg.ChunkerStrategy != "" {
		chunkerCfg.Strategy = ChunkerStrategy(cfg.ChunkerStrategy)
	}
	if cfg.ChunkSize > 0 {
		chunkerCfg.Size = cfg.ChunkSize
	}
	if cfg.ChunkOverlap > 0 {
		chunkerCfg.Overlap = cfg.ChunkOverlap
	}
	chunkerCfg.SetDefaults()
	return NewChunker(chunkerCfg)
}

func loadersFromConfig(cfg config.RAGConfig) ([]Loader, error) {
	var loaders []Loader

	for _, dir := range cfg.Directories {
		loader, err := NewDirectoryLoader(DefaultDirectorySourceConfig(dir))
		if err != nil {
			return nil, fmt.Errorf("directory loader for %q: %w", dir, err)
		}
		loaders = append(loaders, loader)
	}

	for _, sqlCfg := range cfg.SQLSources {
		db, err := sql.Open(sqlCfg.Driver, sqlCfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sql source %q: %w", sqlCfg.Table, err)
		}
		loader, err := NewSQLLoader(SQLLoaderConfig{
			DB:      db,
			Driver:  sqlCfg.Driver,
			MaxRows: sqlCfg.MaxRows,
			Tables: []SQLTableConfig{{
				Table:           sqlCfg.Table,
				Columns:         sqlCfg.Columns,
				IDColumn:        sqlCfg.IDColumn,
				UpdatedColumn:   sqlCfg.UpdatedColumn,
				WhereClause:     sqlCfg.WhereClause,
				MetadataColumns: sqlCfg.MetadataColumns,
			}},
		})
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("sql loader for %q: %w", sqlCfg.Table, err)
		}
		loaders = append(loaders, loader)
	}

	return loaders, nil
}
