package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/knowledged/internal/docstore"
)

func record(id, userID string, embedding []float32) docstore.Record {
	return docstore.Record{
		ID:        id,
		Content:   "content of " + id,
		Embedding: embedding,
		Metadata: docstore.Metadata{
			Type:      docstore.SourceTypeText,
			Source:    "user_input",
			Timestamp: time.Now(),
			UserID:    userID,
			WordCount: 3,
		},
	}
}

func seedStore(t *testing.T, records ...docstore.Record) docstore.Store {
	t.Helper()
	store := docstore.NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), records))
	return store
}

func TestSearchRanking(t *testing.T) {
	// Query along the x axis: r1 aligned, r2 diagonal, r3 orthogonal.
	store := seedStore(t,
		record("r1", "alice", []float32{1, 0}),
		record("r2", "alice", []float32{1, 1}),
		record("r3", "alice", []float32{0, 1}),
	)
	engine := NewEngine(store, DefaultSimilarityFloor, zap.NewNop())

	matches, err := engine.Search(context.Background(), []float32{1, 0}, "alice", 5)
	require.NoError(t, err)
	require.Len(t, matches, 2, "orthogonal record must be filtered by the floor")

	assert.Equal(t, "r1", matches[0].Record.ID)
	assert.InDelta(t, 1.0, matches[0].Similarity, 1e-6)
	assert.Equal(t, "r2", matches[1].Record.ID)
	assert.Greater(t, matches[0].Similarity, matches[1].Similarity)
}

func TestSearchZeroFloorHonored(t *testing.T) {
	// A configured floor of 0 must be used literally: it keeps weakly
	// positive matches that the stock 0.3 floor would drop, and still
	// filters negative ones.
	store := seedStore(t,
		record("weak", "alice", []float32{0.2, 0.98}),
		record("opposed", "alice", []float32{-1, 0}),
	)
	engine := NewEngine(store, 0, zap.NewNop())

	matches, err := engine.Search(context.Background(), []float32{1, 0}, "alice", 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "weak", matches[0].Record.ID)
	assert.Less(t, matches[0].Similarity, DefaultSimilarityFloor)
}

func TestSearchThreshold(t *testing.T) {
	// similarity 0.9-ish vs 0.2-ish: only the first survives the floor.
	store := seedStore(t,
		record("high", "alice", []float32{0.9, 0.436}),
		record("low", "alice", []float32{0.2, 0.98}),
	)
	engine := NewEngine(store, DefaultSimilarityFloor, zap.NewNop())

	matches, err := engine.Search(context.Background(), []float32{1, 0}, "alice", 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "high", matches[0].Record.ID)
	assert.Greater(t, matches[0].Similarity, 0.3)
}

func TestSearchTopKThenFilter(t *testing.T) {
	// Six records above the floor; k=5 truncates before filtering, so the
	// sixth-best never appears even though it would pass the floor.
	store := seedStore(t,
		record("a", "alice", []float32{1, 0}),
		record("b", "alice", []float32{1, 0.1}),
		record("c", "alice", []float32{1, 0.2}),
		record("d", "alice", []float32{1, 0.3}),
		record("e", "alice", []float32{1, 0.4}),
		record("f", "alice", []float32{1, 0.5}),
	)
	engine := NewEngine(store, DefaultSimilarityFloor, zap.NewNop())

	matches, err := engine.Search(context.Background(), []float32{1, 0}, "alice", 5)
	require.NoError(t, err)
	require.Len(t, matches, 5)
	for _, m := range matches {
		assert.NotEqual(t, "f", m.Record.ID)
		assert.Greater(t, m.Similarity, 0.3)
	}
}

func TestSearchOwnershipIsolation(t *testing.T) {
	store := seedStore(t,
		record("mine", "alice", []float32{1, 0}),
		record("theirs", "bob", []float32{1, 0}),
	)
	engine := NewEngine(store, DefaultSimilarityFloor, zap.NewNop())

	matches, err := engine.Search(context.Background(), []float32{1, 0}, "alice", 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "alice", matches[0].Record.Metadata.UserID)
}

func TestSearchEmptyKnowledgeBase(t *testing.T) {
	engine := NewEngine(docstore.NewMemoryStore(), DefaultSimilarityFloor, zap.NewNop())

	matches, err := engine.Search(context.Background(), []float32{1, 0}, "alice", 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSearchDimensionMismatchScoresZero(t *testing.T) {
	store := seedStore(t,
		record("stale", "alice", []float32{1, 0, 0}),
		record("fresh", "alice", []float32{1, 0}),
	)
	engine := NewEngine(store, DefaultSimilarityFloor, zap.NewNop())

	matches, err := engine.Search(context.Background(), []float32{1, 0}, "alice", 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "fresh", matches[0].Record.ID)
}

func TestSearchInvalidK(t *testing.T) {
	engine := NewEngine(docstore.NewMemoryStore(), DefaultSimilarityFloor, zap.NewNop())
	_, err := engine.Search(context.Background(), []float32{1, 0}, "alice", 0)
	assert.Error(t, err)
}
