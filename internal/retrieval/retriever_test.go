package retrieval

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bikeshop-agent/internal/catalog"
	"bikeshop-agent/internal/common/logger"
	"bikeshop-agent/internal/index"
)

// vectorEmbedder maps text to canned vectors by substring so tests control
// similarity ordering exactly.
type vectorEmbedder struct {
	byKeyword map[string][]float32
	fallback  []float32
	err       error
}

func (v *vectorEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if v.err != nil {
		return nil, v.err
	}
	for kw, vec := range v.byKeyword {
		if strings.Contains(text, kw) {
			return vec, nil
		}
	}
	return v.fallback, nil
}

func (v *vectorEmbedder) Model() string { return "fake-model" }

func scenarioCatalog() *catalog.Snapshot {
	return catalog.NewSnapshot([]catalog.Item{
		{ID: "bike-001", Name: "Trailblazer 500", Category: "trail", PriceEUR: 1499, Description: "Hardtail trail bike"},
		{ID: "bike-002", Name: "Kids Rider 20", Category: "kids", PriceEUR: 399, Description: "First bike for kids"},
		{ID: "bike-003", Name: "EcoRide E-City", Category: "electric", PriceEUR: 2399, Description: "Electric city bike"},
	})
}

func scenarioEmbedder() *vectorEmbedder {
	return &vectorEmbedder{
		byKeyword: map[string][]float32{
			"Trailblazer": {1, 0.2, 0},
			"Kids Rider":  {0.3, 1, 0},
			"EcoRide":     {0, 0.2, 1},
			"trail":       {1, 0, 0}, // query direction
		},
		fallback: []float32{0, 0, 1},
	}
}

func newTestRetriever(t *testing.T, embedder index.Embedder) (*Retriever, *index.CatalogIndex) {
	t.Helper()
	idx := index.NewCatalogIndex(embedder, t.TempDir(), logger.NewTestLogger(t))
	_, err := idx.EnsureFresh(context.Background(), scenarioCatalog())
	require.NoError(t, err)

	r := NewRetriever(idx, embedder, Config{TopK: 3, MinScore: 0.35}, logger.NewTestLogger(t))
	return r, idx
}

func TestSearch_RanksByScoreAndAppliesPriceFilter(t *testing.T) {
	r, _ := newTestRetriever(t, scenarioEmbedder())

	query := "cheap bike for trail riding under 1600"
	resp, err := r.Search(context.Background(), query, Filters{MaxPrice: 1600}, 3)
	require.NoError(t, err)
	require.True(t, resp.Fresh)

	// EcoRide is over budget; the trail bike wins on similarity.
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "Trailblazer 500", resp.Results[0].Item.Name)
	assert.GreaterOrEqual(t, resp.Results[0].Score, 0.5)
	assert.Equal(t, 1, resp.Results[0].Rank)
	assert.Equal(t, "Kids Rider 20", resp.Results[1].Item.Name)
	assert.Equal(t, 2, resp.Results[1].Rank)

	// Scores non-increasing and within [0,1].
	for i, res := range resp.Results {
		assert.GreaterOrEqual(t, res.Score, 0.0)
		assert.LessOrEqual(t, res.Score, 1.0)
		if i > 0 {
			assert.LessOrEqual(t, res.Score, resp.Results[i-1].Score)
		}
	}
}

func TestSearch_TieBreakKeepsCatalogOrder(t *testing.T) {
	// Every item embeds to the same vector: scores tie everywhere.
	embedder := &vectorEmbedder{fallback: []float32{1, 0, 0}}
	r, _ := newTestRetriever(t, embedder)

	resp, err := r.Search(context.Background(), "any bike", Filters{}, 3)
	require.NoError(t, err)
	require.Len(t, resp.Results, 3)

	assert.Equal(t, "Trailblazer 500", resp.Results[0].Item.Name)
	assert.Equal(t, "Kids Rider 20", resp.Results[1].Item.Name)
	assert.Equal(t, "EcoRide E-City", resp.Results[2].Item.Name)
}

func TestSearch_NegativeSimilarityClampsToZero(t *testing.T) {
	embedder := &vectorEmbedder{
		byKeyword: map[string][]float32{
			"opposite": {-1, 0, 0},
		},
		fallback: []float32{1, 0, 0},
	}
	r, _ := newTestRetriever(t, embedder)

	resp, err := r.Search(context.Background(), "opposite", Filters{}, 3)
	require.NoError(t, err)
	for _, res := range resp.Results {
		assert.Equal(t, 0.0, res.Score)
	}
}

func TestSearch_CategoryFilterEliminatingAllIsEmptyNotError(t *testing.T) {
	r, _ := newTestRetriever(t, scenarioEmbedder())

	resp, err := r.Search(context.Background(), "trail", Filters{Category: "cargo"}, 3)
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestSearch_TopKTruncates(t *testing.T) {
	embedder := &vectorEmbedder{fallback: []float32{1, 0, 0}}
	r, _ := newTestRetriever(t, embedder)

	resp, err := r.Search(context.Background(), "bike", Filters{}, 1)
	require.NoError(t, err)
	assert.Len(t, resp.Results, 1)
	assert.Equal(t, 1, resp.Results[0].Rank)
}

func TestSearch_NoIndexIsRetrievalUnavailable(t *testing.T) {
	embedder := scenarioEmbedder()
	idx := index.NewCatalogIndex(embedder, t.TempDir(), logger.NewTestLogger(t))
	r := NewRetriever(idx, embedder, Config{TopK: 3}, logger.NewTestLogger(t))

	_, err := r.Search(context.Background(), "trail", Filters{}, 3)
	require.Error(t, err)
}

func TestSearch_EmbedderFailurePropagates(t *testing.T) {
	good := scenarioEmbedder()
	idx := index.NewCatalogIndex(good, t.TempDir(), logger.NewTestLogger(t))
	_, err := idx.EnsureFresh(context.Background(), scenarioCatalog())
	require.NoError(t, err)

	bad := &vectorEmbedder{err: fmt.Errorf("backend down")}
	r := NewRetriever(idx, bad, Config{TopK: 3}, logger.NewTestLogger(t))

	_, err = r.Search(context.Background(), "trail", Filters{}, 3)
	require.Error(t, err)
}

func TestSearch_DimensionMismatchPanics(t *testing.T) {
	good := scenarioEmbedder()
	idx := index.NewCatalogIndex(good, t.TempDir(), logger.NewTestLogger(t))
	_, err := idx.EnsureFresh(context.Background(), scenarioCatalog())
	require.NoError(t, err)

	wrongDim := &vectorEmbedder{fallback: []float32{1, 0, 0, 0}}
	r := NewRetriever(idx, wrongDim, Config{TopK: 3}, logger.NewTestLogger(t))

	assert.Panics(t, func() {
		_, _ = r.Search(context.Background(), "trail", Filters{}, 3)
	})
}

func TestSearch_DegradedIndexSurfacesFreshFalse(t *testing.T) {
	embedder := scenarioEmbedder()
	idx := index.NewCatalogIndex(embedder, t.TempDir(), logger.NewTestLogger(t))
	_, err := idx.EnsureFresh(context.Background(), scenarioCatalog())
	require.NoError(t, err)

	// A rebuild against a changed catalog fails, leaving the old index
	// serving in degraded mode.
	embedder.err = fmt.Errorf("backend down")
	changed := catalog.NewSnapshot([]catalog.Item{
		{ID: "bike-009", Name: "Newcomer", Category: "city", PriceEUR: 500, Description: "fresh item"},
	})
	_, err = idx.EnsureFresh(context.Background(), changed)
	require.Error(t, err)

	embedder.err = nil
	r := NewRetriever(idx, embedder, Config{TopK: 3}, logger.NewTestLogger(t))
	resp, err := r.Search(context.Background(), "trail", Filters{}, 3)
	require.NoError(t, err)
	assert.False(t, resp.Fresh)
	assert.NotEmpty(t, resp.Results)
}
