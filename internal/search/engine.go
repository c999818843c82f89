// Package search ranks a user's stored chunk records against a query
// embedding using exhaustive cosine similarity. There is no index
// acceleration: retrieval sets are per-user and bounded by practical document
// volume, so an O(n·d) scan per query is a deliberate simplicity trade-off.
package search

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/knowledged/internal/docstore"
)

// DefaultSimilarityFloor filters near-orthogonal chunks so irrelevant context
// never reaches the model.
const DefaultSimilarityFloor = 0.3

// Match pairs a chunk record with its similarity score for one query.
type Match struct {
	Record     docstore.Record
	Similarity float64
}

// Engine performs linear-scan similarity search over one user's records.
type Engine struct {
	store   docstore.Store
	floor   float64
	logger  *zap.Logger
	metrics *Metrics
}

// NewEngine creates a search engine over store. The floor is taken as given,
// including a literal 0; callers wanting the stock policy pass
// DefaultSimilarityFloor.
func NewEngine(store docstore.Store, floor float64, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:   store,
		floor:   floor,
		logger:  logger,
		metrics: NewMetrics(logger),
	}
}

// Search scores every record owned by userID against queryEmbedding and
// returns the top k matches scoring above the similarity floor, best first.
//
// The floor is applied after truncation to k, never before; this is a fixed
// top-k-then-filter policy. An empty result means the knowledge base has
// nothing relevant — a normal state, not an error.
func (e *Engine) Search(ctx context.Context, queryEmbedding []float32, userID string, k int) ([]Match, error) {
	start := time.Now()
	var searchErr error
	var scanned int
	defer func() {
		e.metrics.RecordSearch(ctx, time.Since(start), scanned, searchErr)
	}()

	if k <= 0 {
		searchErr = fmt.Errorf("k must be positive, got %d", k)
		return nil, searchErr
	}

	records, err := e.store.ScanByUser(ctx, userID)
	if err != nil {
		searchErr = fmt.Errorf("scanning user records: %w", err)
		return nil, searchErr
	}
	scanned = len(records)
	if len(records) == 0 {
		return nil, nil
	}

	matches := make([]Match, 0, len(records))
	for _, r := range records {
		matches = append(matches, Match{
			Record:     r,
			Similarity: CosineSimilarity(queryEmbedding, r.Embedding),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	if len(matches) > k {
		matches = matches[:k]
	}

	filtered := matches[:0]
	for _, m := range matches {
		if m.Similarity > e.floor {
			filtered = append(filtered, m)
		}
	}

	e.logger.Debug("similarity search complete",
		zap.String("user_id", userID),
		zap.Int("scanned", scanned),
		zap.Int("matched", len(filtered)),
	)

	if len(filtered) == 0 {
		return nil, nil
	}
	return filtered, nil
}
