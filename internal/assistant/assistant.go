// Package assistant ties embedding, similarity search, prompt assembly, and
// generation together into the user-facing query operation.
package assistant

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/knowledged/internal/docstore"
	"github.com/fyrsmithlabs/knowledged/internal/embeddings"
	"github.com/fyrsmithlabs/knowledged/internal/generation"
	"github.com/fyrsmithlabs/knowledged/internal/prompt"
	"github.com/fyrsmithlabs/knowledged/internal/search"
)

// DefaultTopK is the number of chunks retrieved per query.
const DefaultTopK = 5

// NoKnowledgeAnswer is returned, without a model call, when nothing relevant
// exists in the knowledge base. Skipping generation on empty context saves
// cost and avoids hallucination.
const NoKnowledgeAnswer = "I don't have any relevant information in your knowledge base to answer this question. Please upload some documents or add content first."

// previewLimit bounds the source content preview shown to users.
const previewLimit = 300

// Source is a read-only projection of a chunk record for citation display.
// It is never persisted.
type Source struct {
	ID         string              `json:"id"`
	Title      string              `json:"title"`
	Content    string              `json:"content"`
	Type       docstore.SourceType `json:"type"`
	Similarity float64             `json:"similarity"`
}

// Answer is the result of one query: generated text plus cited sources.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// Searcher ranks stored chunks against a query embedding.
type Searcher interface {
	Search(ctx context.Context, queryEmbedding []float32, userID string, k int) ([]search.Match, error)
}

// Service answers questions from a user's knowledge base.
type Service struct {
	embedder  embeddings.Embedder
	searcher  Searcher
	builder   *prompt.Builder
	generator generation.Generator
	topK      int
	logger    *zap.Logger
}

// NewService creates the query orchestrator. A topK of 0 means DefaultTopK.
func NewService(embedder embeddings.Embedder, searcher Searcher, builder *prompt.Builder, generator generation.Generator, topK int, logger *zap.Logger) *Service {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		embedder:  embedder,
		searcher:  searcher,
		builder:   builder,
		generator: generator,
		topK:      topK,
		logger:    logger,
	}
}

// Query embeds the question, retrieves the user's most similar chunks, and
// generates a grounded answer with citations. An empty retrieval result
// short-circuits with NoKnowledgeAnswer and no model call.
func (s *Service) Query(ctx context.Context, text string, history []prompt.Message, userID string) (*Answer, error) {
	queryEmbedding, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	matches, err := s.searcher.Search(ctx, queryEmbedding, userID, s.topK)
	if err != nil {
		return nil, fmt.Errorf("searching knowledge base: %w", err)
	}

	if len(matches) == 0 {
		s.logger.Debug("query found no relevant chunks", zap.String("user_id", userID))
		return &Answer{Answer: NoKnowledgeAnswer, Sources: []Source{}}, nil
	}

	answer, err := s.generator.Generate(ctx, s.builder.Build(text, matches, history))
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	sources := make([]Source, 0, len(matches))
	for _, m := range matches {
		sources = append(sources, Source{
			ID:         m.Record.ID,
			Title:      titleFor(m.Record),
			Content:    preview(m.Record.Content),
			Type:       m.Record.Metadata.Type,
			Similarity: m.Similarity,
		})
	}

	s.logger.Info("query answered",
		zap.String("user_id", userID),
		zap.Int("sources", len(sources)),
	)

	return &Answer{Answer: answer, Sources: sources}, nil
}

// preview truncates content to previewLimit characters with an ellipsis.
func preview(content string) string {
	return truncate(content, previewLimit)
}

// truncate shortens s to at most limit runes, never splitting a multi-byte
// character, and appends an ellipsis when anything was cut.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}

// titleFor derives a display title from record metadata, falling back
// through a documented chain that ends in a generic label.
func titleFor(r docstore.Record) string {
	md := r.Metadata
	switch md.Type {
	case docstore.SourceTypeFile:
		if md.Source != "" {
			return md.Source
		}
		return "Uploaded File"
	case docstore.SourceTypeURL:
		if md.Title != "" {
			return md.Title
		}
		if md.Source != "" {
			return md.Source
		}
		return "Web Page"
	case docstore.SourceTypeText:
		words := strings.Fields(r.Content)
		if len(words) > 6 {
			words = words[:6]
		}
		title := strings.Join(words, " ")
		if utf8.RuneCountInString(title) > 40 {
			return truncate(title, 40)
		}
		if title != "" {
			return title
		}
	}
	return "Knowledge Base Entry"
}
