package search

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fikse/fikse-agent/backend/internal/catalog"
	"github.com/fikse/fikse-agent/backend/internal/embedding"
	"github.com/fikse/fikse-agent/backend/internal/models"
	"github.com/fikse/fikse-agent/backend/internal/nlp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct {
	vector []float32
	err    error
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.vector, s.err
}

const engineTestCSV = `Type of Repairer,Type of category,Type of garment in category,Service,Description,Price,Estimated time in hours
Tailor,Clothing,Dress,Zipper replacement,Replace a broken zipper,150,1.5
Tailor,Clothing,Pants,Hemming,Shorten trouser legs,80,0.5
Tailor,Clothing,Jacket,Patch repair,Sew a patch over a hole in the fabric,90,1
Cobbler,Shoes,Boots,Sole replacement,Replace worn soles,300,2
Tailor,Clothing,Shirt,Button replacement,Sew new buttons,40,0.5
`

// Row vectors chosen so the stub query {1,0,0} ranks row 0 highest
var engineTestVectors = [][]float32{
	{1, 0, 0},
	{0, 1, 0},
	{0.8, 0.2, 0},
	{0, 0, 1},
	{0.5, 0.5, 0},
}

func newTestEngine(t *testing.T, embedder Embedder) *Engine {
	t.Helper()

	path := filepath.Join(t.TempDir(), "catalog.csv")
	require.NoError(t, os.WriteFile(path, []byte(engineTestCSV), 0o644))

	cat, err := catalog.Load(path)
	require.NoError(t, err)
	require.Equal(t, len(engineTestVectors), cat.Len())

	index := embedding.NewIndex()
	require.NoError(t, index.Build(engineTestVectors))

	normalizer := nlp.NewNormalizer(nil, logrus.New())

	return NewEngine(cat, index, normalizer, embedder, logrus.New())
}

func TestEngine_Search_BucketOrdering(t *testing.T) {
	engine := newTestEngine(t, &stubEmbedder{vector: []float32{1, 0, 0}})

	results, err := engine.Search(context.Background(), "zipper repair")
	require.NoError(t, err)
	require.Len(t, results, 5)

	// Keyword matches outrank pure semantic hits regardless of similarity
	assert.Equal(t, "Zipper replacement", results[0].Service)
	assert.Equal(t, models.MatchPartialService, results[0].MatchType)
	assert.Equal(t, "Patch repair", results[1].Service)
	assert.Equal(t, models.MatchPartialService, results[1].MatchType)

	for _, item := range results[2:] {
		assert.Equal(t, models.MatchSemantic, item.MatchType)
		assert.Equal(t, models.MatchSemanticOnly, item.MatchDetail)
	}

	// Within a bucket, similarity descends
	assert.GreaterOrEqual(t, results[0].SimilarityScore, results[1].SimilarityScore)
	assert.GreaterOrEqual(t, results[2].SimilarityScore, results[3].SimilarityScore)

	// Synthetic ids follow final positions
	assert.Equal(t, "service_1", results[0].ID)
	assert.Equal(t, "service_5", results[4].ID)
}

func TestEngine_Search_ExactServiceWins(t *testing.T) {
	engine := newTestEngine(t, &stubEmbedder{vector: []float32{1, 0, 0}})

	results, err := engine.Search(context.Background(), "hemming")
	require.NoError(t, err)
	require.NotEmpty(t, results)

	// The exact name match ranks first despite its low similarity score
	assert.Equal(t, "Hemming", results[0].Service)
	assert.Equal(t, models.MatchExactService, results[0].MatchType)
}

func TestEngine_Search_GeneralBucket(t *testing.T) {
	engine := newTestEngine(t, &stubEmbedder{vector: []float32{1, 0, 0}})

	results, err := engine.Search(context.Background(), "cobbler")
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, "Sole replacement", results[0].Service)
	assert.Equal(t, models.MatchGeneral, results[0].MatchType)
}

func TestEngine_Search_PriceFilter(t *testing.T) {
	engine := newTestEngine(t, &stubEmbedder{vector: []float32{1, 0, 0}})

	results, err := engine.Search(context.Background(), "zipper replacement 100")
	require.NoError(t, err)
	require.NotEmpty(t, results)

	// Only services within 50 of the target price remain
	for _, item := range results {
		assert.InDelta(t, 100, item.Price, 50.01, "service %s", item.Service)
	}

	// The filter removes rather than backfills
	assert.Less(t, len(results), 5)
}

func TestEngine_Search_IndexNotReady(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.csv")
	require.NoError(t, os.WriteFile(path, []byte(engineTestCSV), 0o644))

	cat, err := catalog.Load(path)
	require.NoError(t, err)

	engine := NewEngine(cat, embedding.NewIndex(), nlp.NewNormalizer(nil, logrus.New()),
		&stubEmbedder{vector: []float32{1, 0, 0}}, logrus.New())

	_, err = engine.Search(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrIndexNotReady)
}

func TestEngine_Search_EmbeddingFailureDegrades(t *testing.T) {
	engine := newTestEngine(t, &stubEmbedder{err: errors.New("ollama down")})

	results, err := engine.Search(context.Background(), "fix my dress")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestEngine_Debug(t *testing.T) {
	engine := newTestEngine(t, &stubEmbedder{vector: []float32{1, 0, 0}})

	result, err := engine.Debug(context.Background(), "zipper 120")
	require.NoError(t, err)

	assert.Equal(t, "zipper 120", result.QueryProcessing.Original)
	assert.Equal(t, []string{"zipper", "120"}, result.SearchTerms)
	require.NotNil(t, result.TargetPrice)
	assert.Equal(t, 120.0, *result.TargetPrice)
	assert.NotEmpty(t, result.SampleEntries)
	assert.LessOrEqual(t, len(result.SampleEntries), 5)
}

func TestFilterByPrice_Idempotent(t *testing.T) {
	items := []models.ServiceItem{
		{Service: "Zipper replacement", Price: 150},
		{Service: "Patch repair", Price: 90},
		{Service: "Full relining", Price: 300},
	}

	once := filterByPrice(items, 100)
	require.Len(t, once, 2)

	// A survivor is within tolerance by definition; filtering again must be
	// a no-op
	assert.Equal(t, once, filterByPrice(once, 100))
}

func TestExtractTerms(t *testing.T) {
	assert.Equal(t, []string{"fix", "zipper", "broken"}, extractTerms("fix my zipper is broken"))
	assert.Empty(t, extractTerms("a an it"))
}

func TestExtractPrice(t *testing.T) {
	price, ok := extractPrice("repair for 150 dollars")
	assert.True(t, ok)
	assert.Equal(t, 150.0, price)

	_, ok = extractPrice("repair my dress")
	assert.False(t, ok)

	// Single digits are selection numbers, not prices
	_, ok = extractPrice("option 1")
	assert.False(t, ok)
}
