// Package docstore persists chunk records and exposes the scans the
// retrieval pipeline needs. The store holds opaque records; similarity
// computation happens in the caller, never server-side.
package docstore

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrEmptyRecords indicates an empty or nil record batch.
	ErrEmptyRecords = errors.New("empty or nil records")

	// ErrInvalidRecord indicates a record missing required fields.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrRecordNotFound is returned when a record does not exist.
	ErrRecordNotFound = errors.New("record not found")

	// ErrStorage indicates a store read or write failure.
	ErrStorage = errors.New("storage failure")
)

// MaxBatchSize bounds a single atomic write. Larger ingestions are split
// into sub-batches inside one transaction.
const MaxBatchSize = 500

// SourceType categorizes where a chunk record's text came from.
type SourceType string

const (
	// SourceTypeText is raw text submitted directly by the user.
	SourceTypeText SourceType = "text"

	// SourceTypeFile is text extracted from an uploaded file.
	SourceTypeFile SourceType = "file"

	// SourceTypeURL is text extracted from a fetched web page.
	SourceTypeURL SourceType = "url"
)

// Metadata describes a chunk record's origin and ownership.
//
// Type starts as "text" for every record the ingestion pipeline creates and
// transitions at most once, to "file" or "url", during metadata correction.
// It never moves backwards.
type Metadata struct {
	Type      SourceType `json:"type"`
	Source    string     `json:"source"`
	Timestamp time.Time  `json:"timestamp"`
	UserID    string     `json:"userId"`
	WordCount int        `json:"wordCount"`

	// File enrichment, set by correction after file ingestion.
	FileType string `json:"fileType,omitempty"`
	FileSize int64  `json:"fileSize,omitempty"`

	// URL enrichment, set by correction after URL ingestion.
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Domain      string `json:"domain,omitempty"`
	SourceURL   string `json:"sourceUrl,omitempty"`
}

// Record is the atomic retrievable unit: one embedded chunk of text.
//
// Content is immutable after creation; only Metadata is ever updated.
// Embedding length is constant across all records in a store because a single
// embedding model serves the deployment.
type Record struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"embedding"`
	Metadata  Metadata  `json:"metadata"`
}

// Validate checks the fields every stored record must carry.
func (r Record) Validate() error {
	if r.ID == "" {
		return errors.New("record ID required")
	}
	if r.Content == "" {
		return errors.New("record content required")
	}
	if len(r.Embedding) == 0 {
		return errors.New("record embedding required")
	}
	if r.Metadata.UserID == "" {
		return errors.New("record owner required")
	}
	return nil
}

// MetadataPatch is a partial metadata update. Zero-valued fields are left
// untouched; Content and Embedding can never be patched.
type MetadataPatch struct {
	Type        SourceType
	Source      string
	FileType    string
	FileSize    int64
	Title       string
	Description string
	Domain      string
	SourceURL   string
}

// Apply overlays the patch's non-zero fields onto md.
func (p MetadataPatch) Apply(md *Metadata) {
	if p.Type != "" {
		md.Type = p.Type
	}
	if p.Source != "" {
		md.Source = p.Source
	}
	if p.FileType != "" {
		md.FileType = p.FileType
	}
	if p.FileSize != 0 {
		md.FileSize = p.FileSize
	}
	if p.Title != "" {
		md.Title = p.Title
	}
	if p.Description != "" {
		md.Description = p.Description
	}
	if p.Domain != "" {
		md.Domain = p.Domain
	}
	if p.SourceURL != "" {
		md.SourceURL = p.SourceURL
	}
}

// Store is the document store contract the retrieval core depends on.
//
// Implementations guarantee Put is atomic per call: either every record in
// the batch becomes durably visible or none does.
type Store interface {
	// Put writes a batch of records atomically.
	Put(ctx context.Context, records []Record) error

	// ScanByUser returns every record owned by userID.
	ScanByUser(ctx context.Context, userID string) ([]Record, error)

	// ScanByUserSince returns records owned by userID created at or after
	// since. Used by the metadata correction step.
	ScanByUserSince(ctx context.Context, userID string, since time.Time) ([]Record, error)

	// UpdateMetadata applies a partial metadata update to one record.
	UpdateMetadata(ctx context.Context, recordID string, patch MetadataPatch) error

	// Close releases store resources.
	Close() error
}
