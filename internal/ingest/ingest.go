// Package ingest converts text, file, and URL sources into embedded chunk
// records. Chunking, embedding, and storage are shared across all three
// source kinds; file and URL ingestion enrich the generic records afterwards
// with a bounded-window metadata correction pass.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/knowledged/internal/chunker"
	"github.com/fyrsmithlabs/knowledged/internal/docstore"
	"github.com/fyrsmithlabs/knowledged/internal/embeddings"
)

var (
	// ErrValidation indicates input that is empty or too short to ingest.
	ErrValidation = errors.New("validation failed")
)

const (
	// MinTextLength is the minimum trimmed input length.
	MinTextLength = 10

	// DefaultCorrectionWindow bounds how far back the metadata correction
	// pass looks for records created by the generic text path.
	DefaultCorrectionWindow = 60 * time.Second
)

// FileSource is extracted file text plus its original-source metadata. Text
// extraction itself happens upstream; the pipeline never sees file bytes,
// and the raw upload is not persisted anywhere. A blob store would sit in
// front of this boundary.
type FileSource struct {
	FileName string
	MimeType string
	Size     int64
	Text     string
}

// URLSource is extracted web page text plus its original-source metadata.
type URLSource struct {
	URL         string
	Title       string
	Description string
	Domain      string
	Text        string
}

// Result summarizes one ingestion call.
type Result struct {
	DocumentsCreated int `json:"documentsCreated"`
	ChunksCreated    int `json:"chunksCreated"`
	TotalWords       int `json:"totalWords"`

	// Corrected counts records enriched by the metadata correction pass.
	// CorrectionFailed marks the tolerated degraded state where records
	// were durably stored but remain tagged as plain text.
	Corrected        int  `json:"corrected,omitempty"`
	CorrectionFailed bool `json:"correctionFailed,omitempty"`
}

// Config holds pipeline policy knobs.
type Config struct {
	MaxChunkSize     int
	CorrectionWindow time.Duration
}

// Pipeline orchestrates chunking, embedding, and storage.
//
// The pipeline holds no locks and runs no goroutines: concurrent ingestions
// for one user are not serialized, so two overlapping file/URL ingestions can
// race inside the correction window and mistag each other's records. This is
// an accepted trade-off, not a guaranteed protocol.
type Pipeline struct {
	store    docstore.Store
	embedder embeddings.Embedder
	config   Config
	logger   *zap.Logger
	now      func() time.Time
}

// NewPipeline creates an ingestion pipeline. Zero config fields fall back to
// the documented defaults.
func NewPipeline(store docstore.Store, embedder embeddings.Embedder, cfg Config, logger *zap.Logger) *Pipeline {
	if cfg.MaxChunkSize <= 0 {
		cfg.MaxChunkSize = chunker.DefaultMaxChunkSize
	}
	if cfg.CorrectionWindow <= 0 {
		cfg.CorrectionWindow = DefaultCorrectionWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		store:    store,
		embedder: embedder,
		config:   cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// IngestText runs the generic text pipeline: validate, chunk, embed, and
// persist one atomic batch. Any step failure aborts the whole call with no
// records becoming visible.
func (p *Pipeline) IngestText(ctx context.Context, text, userID string) (*Result, error) {
	return p.ingestText(ctx, text, userID)
}

// IngestFile ingests extracted file text, then corrects the fresh records
// with file-specific metadata. A correction failure leaves the records
// correctly stored but tagged as plain text; it never fails the call.
func (p *Pipeline) IngestFile(ctx context.Context, src FileSource, userID string) (*Result, error) {
	result, err := p.ingestText(ctx, src.Text, userID)
	if err != nil {
		return nil, err
	}

	corrected, err := p.correctRecentRecords(ctx, userID, docstore.MetadataPatch{
		Type:     docstore.SourceTypeFile,
		Source:   src.FileName,
		FileType: src.MimeType,
		FileSize: src.Size,
	})
	if err != nil {
		p.logger.Warn("file metadata correction failed",
			zap.String("user_id", userID),
			zap.String("file", src.FileName),
			zap.Error(err),
		)
		result.CorrectionFailed = true
		return result, nil
	}

	result.Corrected = corrected
	return result, nil
}

// IngestURL ingests extracted web page text, then corrects the fresh records
// with URL-specific metadata. Same failure policy as IngestFile.
func (p *Pipeline) IngestURL(ctx context.Context, src URLSource, userID string) (*Result, error) {
	result, err := p.ingestText(ctx, src.Text, userID)
	if err != nil {
		return nil, err
	}

	corrected, err := p.correctRecentRecords(ctx, userID, docstore.MetadataPatch{
		Type:        docstore.SourceTypeURL,
		Source:      src.URL,
		Title:       src.Title,
		Description: src.Description,
		Domain:      src.Domain,
		SourceURL:   src.URL,
	})
	if err != nil {
		p.logger.Warn("url metadata correction failed",
			zap.String("user_id", userID),
			zap.String("url", src.URL),
			zap.Error(err),
		)
		result.CorrectionFailed = true
		return result, nil
	}

	result.Corrected = corrected
	return result, nil
}

func (p *Pipeline) ingestText(ctx context.Context, text, userID string) (*Result, error) {
	clean := strings.TrimSpace(text)
	if len(clean) < MinTextLength {
		return nil, fmt.Errorf("%w: text must be at least %d characters long", ErrValidation, MinTextLength)
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID required", ErrValidation)
	}

	chunks := chunker.Split(clean, p.config.MaxChunkSize)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no chunks produced", ErrValidation)
	}

	vectors, err := p.embedder.EmbedDocuments(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embedding chunks: %w", err)
	}

	// One uuid per ingestion call keeps the id collision-resistant under
	// rapid concurrent ingestion while staying readable.
	batchID := uuid.NewString()
	createdAt := p.now()

	records := make([]docstore.Record, 0, len(chunks))
	for i, chunk := range chunks {
		records = append(records, docstore.Record{
			ID:        fmt.Sprintf("%s_text_%s_%d", userID, batchID, i),
			Content:   chunk,
			Embedding: vectors[i],
			Metadata: docstore.Metadata{
				Type:      docstore.SourceTypeText,
				Source:    "user_input",
				Timestamp: createdAt,
				UserID:    userID,
				WordCount: len(strings.Fields(chunk)),
			},
		})
	}

	if err := p.store.Put(ctx, records); err != nil {
		return nil, fmt.Errorf("storing records: %w", err)
	}

	p.logger.Info("ingested text",
		zap.String("user_id", userID),
		zap.Int("chunks", len(records)),
	)

	return &Result{
		DocumentsCreated: len(records),
		ChunksCreated:    len(records),
		TotalWords:       len(strings.Fields(clean)),
	}, nil
}

// correctRecentRecords patches records created within the trailing correction
// window whose type is still "text". The pass is idempotent: a record already
// corrected to file or url is never touched again, so a type transition
// happens at most once and never reverses.
func (p *Pipeline) correctRecentRecords(ctx context.Context, userID string, patch docstore.MetadataPatch) (int, error) {
	since := p.now().Add(-p.config.CorrectionWindow)

	records, err := p.store.ScanByUserSince(ctx, userID, since)
	if err != nil {
		return 0, fmt.Errorf("scanning recent records: %w", err)
	}

	corrected := 0
	for _, r := range records {
		if r.Metadata.Type != docstore.SourceTypeText {
			continue
		}
		if err := p.store.UpdateMetadata(ctx, r.ID, patch); err != nil {
			return corrected, fmt.Errorf("patching record %s: %w", r.ID, err)
		}
		corrected++
	}
	return corrected, nil
}
