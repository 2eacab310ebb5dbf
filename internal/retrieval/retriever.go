// Package retrieval ranks catalog items against a free-text query by cosine
// similarity over the vector index.
package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"bikeshop-agent/internal/catalog"
	agenterrors "bikeshop-agent/internal/common/errors"
	"bikeshop-agent/internal/common/logger"
	"bikeshop-agent/internal/common/metrics"
	"bikeshop-agent/internal/index"
)

// Result is one ranked catalog item. Scores are clamped to [0,1] and are
// non-increasing in rank order; ties keep catalog insertion order.
type Result struct {
	Item  catalog.Item `json:"item"`
	Score float64      `json:"score"`
	Rank  int          `json:"rank"`
}

// Response carries the ranked results plus whether they came from a fresh
// index or a degraded (stale) one.
type Response struct {
	Results []Result `json:"results"`
	Fresh   bool     `json:"fresh"`
}

type Config struct {
	TopK           int
	MinScore       float64
	ExactScanLimit int
}

type Retriever struct {
	idx      *index.CatalogIndex
	embedder index.Embedder
	config   Config
	logger   logger.Logger
}

func NewRetriever(idx *index.CatalogIndex, embedder index.Embedder, cfg Config, log logger.Logger) *Retriever {
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	return &Retriever{
		idx:      idx,
		embedder: embedder,
		config:   cfg,
		logger:   log.WithFields(map[string]interface{}{"component": "retriever"}),
	}
}

// Search embeds the query with the index's own embedding function, scores
// every indexed item, applies hard filters, and returns the topK by
// descending score. Filters eliminating all candidates yields an empty
// result set, not an error.
func (r *Retriever) Search(ctx context.Context, query string, filters Filters, topK int) (*Response, error) {
	start := time.Now()
	if topK <= 0 {
		topK = r.config.TopK
	}

	state, ok := r.idx.Current()
	if !ok {
		return nil, agenterrors.NewRetrievalUnavailableError(fmt.Errorf("no vector index built yet"))
	}

	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	// Index vectors and the query vector must come from the same
	// embedding function. A dimension mismatch means they did not; this
	// is a programming error, not a degradable condition.
	if state.Index.Dim != 0 && len(queryVec) != state.Index.Dim {
		panic(fmt.Sprintf("embedding-space mismatch: query dim %d, index dim %d", len(queryVec), state.Index.Dim))
	}

	scored := make([]Result, 0, len(state.Index.Entries))
	for pos, entry := range state.Index.Entries {
		item, _, found := state.Snapshot.ItemByID(entry.ItemID)
		if !found {
			continue
		}
		if !filters.Matches(item.Category, item.PriceEUR) {
			continue
		}
		scored = append(scored, Result{
			Item:  item,
			Score: clampScore(cosineSimilarity(queryVec, entry.Vector)),
			Rank:  pos, // carries catalog order into the tie-break below
		})
	}

	// Stable sort: equal scores keep catalog insertion order.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	for i := range scored {
		scored[i].Rank = i + 1
	}

	freshness := "fresh"
	if !state.Fresh {
		freshness = "degraded"
	}
	metrics.RetrievalQueries.WithLabelValues(freshness).Inc()
	metrics.RetrievalDuration.Observe(time.Since(start).Seconds())

	r.logger.Debug("retrieval complete", map[string]interface{}{
		"query":   query,
		"results": len(scored),
		"fresh":   state.Fresh,
	})

	return &Response{Results: scored, Fresh: state.Fresh}, nil
}

// Categories exposes the current catalog category vocabulary for filter
// parsing and slot extraction.
func (r *Retriever) Categories() []string {
	state, ok := r.idx.Current()
	if !ok {
		return nil
	}
	return state.Snapshot.Categories()
}

// MinScore is the configured threshold separating good from poor matches.
func (r *Retriever) MinScore() float64 {
	return r.config.MinScore
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// clampScore forces raw cosine values into the documented [0,1] range.
func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
