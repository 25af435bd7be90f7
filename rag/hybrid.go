package rag

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/agentflowhq/agentflow/rag/embedder"
	"github.com/agentflowhq/agentflow/rag/keywordstore"
	"github.com/agentflowhq/agentflow/rag/vectorstore"
)

// FusionKind selects how vector and keyword result lists are combined.
type FusionKind string

const (
	// FusionRRF combines lists by reciprocal rank fusion.
	FusionRRF FusionKind = "rrf"
	// FusionWeightedScore combines min-max normalized scores by weight.
	FusionWeightedScore FusionKind = "weighted_score"
	// FusionVectorOnly passes through the vector list unchanged.
	FusionVectorOnly FusionKind = "vector_only"
	// FusionKeywordOnly passes through the keyword list unchanged.
	FusionKeywordOnly FusionKind = "keyword_only"
)

// FusionStrategy picks a FusionKind and carries its parameters. RRFConstant
// defaults to 60 and VectorWeight/KeywordWeight default to an even split
// when left zero.
type FusionStrategy struct {
	Kind          FusionKind
	RRFConstant   int
	VectorWeight  float64
	KeywordWeight float64
}

// RRF returns the reciprocal rank fusion strategy with constant c (spec
// default 60 when c <= 0).
func RRF(c int) FusionStrategy {
	if c <= 0 {
		c = 60
	}
	return FusionStrategy{Kind: FusionRRF, RRFConstant: c}
}

// WeightedScore returns the min-max normalized weighted sum strategy.
func WeightedScore(wv, wk float64) FusionStrategy {
	return FusionStrategy{Kind: FusionWeightedScore, VectorWeight: wv, KeywordWeight: wk}
}

// VectorOnly returns the vector-list-pass-through strategy.
func VectorOnly() FusionStrategy { return FusionStrategy{Kind: FusionVectorOnly} }

// KeywordOnly returns the keyword-list-pass-through strategy.
func KeywordOnly() FusionStrategy { return FusionStrategy{Kind: FusionKeywordOnly} }

// Reranker reorders a set of search results against the original query,
// typically with a cross-encoder model. The default zero value is unused;
// callers that don't configure one skip the rerank step entirely.
type Reranker interface {
	Rerank(ctx context.Context, query string, results []SearchResult) ([]SearchResult, error)
}

// SearchOptions controls a hybrid search call's optional stages.
type SearchOptions struct {
	Fusion           FusionStrategy
	EnableHyDE       bool
	EnableRerank     bool
	EnableMultiQuery bool
	RerankTopK       int
}

// Searcher runs hybrid (vector + keyword) search with optional HyDE query
// rewriting, multi-query expansion, score fusion and reranking.
type Searcher struct {
	store        vectorstore.Provider
	keywordStore *keywordstore.Store
	embedder     embedder.Embedder
	collection   string
	hyde         *HyDE
	multiQuery   *MultiQueryExpander
	reranker     Reranker
	metrics      *SearchMetrics
}

// SearcherConfig wires a Searcher's dependencies. Store and Embedder are
// required; the rest are optional and disable their corresponding
// SearchOptions flag when nil.
type SearcherConfig struct {
	Store        vectorstore.Provider
	KeywordStore *keywordstore.Store
	Embedder     embedder.Embedder
	Collection   string
	HyDE         *HyDE
	MultiQuery   *MultiQueryExpander
	Reranker     Reranker
	Metrics      *SearchMetrics
}

// NewSearcher builds a Searcher.
func NewSearcher(cfg SearcherConfig) (*Searcher, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("rag: searcher requires a vector store")
	}
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("rag: searcher requires an embedder")
	}
	if cfg.Collection == "" {
		cfg.Collection = "default"
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewSearchMetrics(cfg.Store.Name())
	}
	return &Searcher{
		store:        cfg.Store,
		keywordStore: cfg.KeywordStore,
		embedder:     cfg.Embedder,
		collection:   cfg.Collection,
		hyde:         cfg.HyDE,
		multiQuery:   cfg.MultiQuery,
		reranker:     cfg.Reranker,
		metrics:      cfg.Metrics,
	}, nil
}

// withHyDE returns a copy of s with HyDE query rewriting attached.
func (s *Searcher) withHyDE(hyde *HyDE) *Searcher {
	s.hyde = hyde
	return s
}

// withMultiQuery returns a copy of s with multi-query expansion attached.
func (s *Searcher) withMultiQuery(mq *MultiQueryExpander) *Searcher {
	s.multiQuery = mq
	return s
}

// withReranker returns a copy of s with a reranker attached.
func (s *Searcher) withReranker(reranker Reranker) *Searcher {
	s.reranker = reranker
	return s
}

// Search runs hybrid search for queryText, returning up to k fused
// results ordered best-first.
func (s *Searcher) Search(ctx context.Context, queryText string, k int, opts SearchOptions) ([]SearchResult, error) {
	start := time.Now()
	results, err := s.search(ctx, queryText, k, opts)
	s.metrics.RecordSearch(time.Since(start), len(results), &opts)
	return results, err
}

func (s *Searcher) search(ctx context.Context, queryText string, k int, opts SearchOptions) ([]SearchResult, error) {
	if k <= 0 {
		k = 10
	}

	embedQuery := queryText
	if opts.EnableHyDE && s.hyde != nil {
		hypothetical, err := s.hyde.GenerateHypotheticalDocument(ctx, queryText)
		if err == nil && hypothetical != "" {
			embedQuery = hypothetical
		}
	}

	queryVariants := []string{embedQuery}
	if opts.EnableMultiQuery && s.multiQuery != nil {
		if variants, err := s.multiQuery.ExpandQuery(ctx, embedQuery); err == nil {
			queryVariants = variants
		}
	}

	vectorSets := make([][]SearchResult, 0, len(queryVariants))
	for _, variant := range queryVariants {
		vec, err := s.embedder.Embed(ctx, variant)
		if err != nil {
			return nil, fmt.Errorf("rag: embed query: %w", err)
		}
		hits, err := s.store.Search(ctx, s.collection, vec, k)
		if err != nil {
			return nil, fmt.Errorf("rag: vector search: %w", err)
		}
		vectorSets = append(vectorSets, toSearchResults(hits))
	}
	vectorResults := CombineResults(vectorSets)

	var keywordResults []SearchResult
	if s.keywordStore != nil && opts.Fusion.Kind != FusionVectorOnly {
		hits, err := s.keywordStore.Search(ctx, queryText, k)
		if err != nil {
			return nil, fmt.Errorf("rag: keyword search: %w", err)
		}
		keywordResults = make([]SearchResult, len(hits))
		for i, h := range hits {
			keywordResults[i] = SearchResult{ID: h.ChunkID, DocID: h.DocID, Content: h.Content, Score: h.Score}
		}
	}

	fused := fuse(vectorResults, keywordResults, opts.Fusion)
	if len(fused) > k && opts.Fusion.Kind != "" && !opts.EnableRerank {
		fused = fused[:k]
	}

	if opts.EnableRerank && s.reranker != nil {
		rerankTopK := opts.RerankTopK
		if rerankTopK <= 0 || rerankTopK > len(fused) {
			rerankTopK = len(fused)
		}
		reranked, err := s.reranker.Rerank(ctx, queryText, fused[:rerankTopK])
		if err != nil {
			return nil, fmt.Errorf("rag: rerank: %w", err)
		}
		fused = reranked
		if len(fused) > k {
			fused = fused[:k]
		}
	}

	return fused, nil
}

func toSearchResults(hits []vectorstore.Result) []SearchResult {
	out := make([]SearchResult, len(hits))
	for i, h := range hits {
		out[i] = SearchResult{ID: h.ID, Content: h.Content, Score: h.Score, Metadata: h.Metadata}
		if docID, ok := h.Metadata["doc_id"].(string); ok {
			out[i].DocID = docID
		}
	}
	return out
}

// fuse combines vector and keyword result lists per strategy.Kind.
func fuse(vector, keyword []SearchResult, strategy FusionStrategy) []SearchResult {
	switch strategy.Kind {
	case FusionKeywordOnly:
		return sortedCopy(keyword)
	case FusionWeightedScore:
		return fuseWeighted(vector, keyword, strategy.VectorWeight, strategy.KeywordWeight)
	case FusionRRF:
		return fuseRRF(vector, keyword, strategy.RRFConstant)
	case FusionVectorOnly, "":
		return sortedCopy(vector)
	default:
		return sortedCopy(vector)
	}
}

func sortedCopy(results []SearchResult) []SearchResult {
	out := append([]SearchResult(nil), results...)
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// fuseRRF implements RRF(c): score(id) = Σ 1/(c + rank_i) over whichever
// of the vector/keyword lists the id appears in, higher is better.
func fuseRRF(vector, keyword []SearchResult, c int) []SearchResult {
	if c <= 0 {
		c = 60
	}
	scores := make(map[string]float64)
	byID := make(map[string]SearchResult)

	addRanks := func(list []SearchResult) {
		for rank, r := range list {
			scores[r.ID] += 1.0 / float64(c+rank+1)
			if _, ok := byID[r.ID]; !ok {
				byID[r.ID] = r
			}
		}
	}
	addRanks(vector)
	addRanks(keyword)

	out := make([]SearchResult, 0, len(scores))
	for id, score := range scores {
		r := byID[id]
		r.Score = float32(score)
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// fuseWeighted implements WeightedScore(wv, wk): each list is min-max
// normalized to [0,1], then combined as wv*sv + wk*sk. Ties are broken by
// the candidate's raw vector score.
func fuseWeighted(vector, keyword []SearchResult, wv, wk float64) []SearchResult {
	if wv == 0 && wk == 0 {
		wv, wk = 0.5, 0.5
	}

	vNorm := minMaxNormalize(vector)
	kNorm := minMaxNormalize(keyword)
	vRaw := make(map[string]float32)
	for _, r := range vector {
		vRaw[r.ID] = r.Score
	}

	byID := make(map[string]SearchResult)
	combined := make(map[string]float64)
	for id, s := range vNorm {
		combined[id] += wv * s
	}
	for id, s := range kNorm {
		combined[id] += wk * s
	}
	for _, r := range vector {
		byID[r.ID] = r
	}
	for _, r := range keyword {
		if _, ok := byID[r.ID]; !ok {
			byID[r.ID] = r
		}
	}

	out := make([]SearchResult, 0, len(combined))
	for id, score := range combined {
		r := byID[id]
		r.Score = float32(score)
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return vRaw[out[i].ID] > vRaw[out[j].ID]
	})
	return out
}

func minMaxNormalize(results []SearchResult) map[string]float64 {
	out := make(map[string]float64, len(results))
	if len(results) == 0 {
		return out
	}
	min, max := results[0].Score, results[0].Score
	for _, r := range results {
		if r.Score < min {
			min = r.Score
		}
		if r.Score > max {
			max = r.Score
		}
	}
	span := float64(max - min)
	for _, r := range results {
		if span == 0 {
			out[r.ID] = 1
			continue
		}
		out[r.ID] = float64(r.Score-min) / span
	}
	return out
}
