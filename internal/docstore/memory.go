package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and ephemeral deployments.
// It is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// Put writes the batch all-or-nothing: validation runs before any insert.
func (s *MemoryStore) Put(_ context.Context, records []Record) error {
	if len(records) == 0 {
		return fmt.Errorf("%w: records cannot be empty", ErrEmptyRecords)
	}
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.records[r.ID] = r
	}
	return nil
}

// ScanByUser returns every record owned by userID, oldest first.
func (s *MemoryStore) ScanByUser(_ context.Context, userID string) ([]Record, error) {
	return s.scan(userID, time.Time{}), nil
}

// ScanByUserSince returns userID's records created at or after since.
func (s *MemoryStore) ScanByUserSince(_ context.Context, userID string, since time.Time) ([]Record, error) {
	return s.scan(userID, since), nil
}

func (s *MemoryStore) scan(userID string, since time.Time) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, r := range s.records {
		if r.Metadata.UserID != userID {
			continue
		}
		if !since.IsZero() && r.Metadata.Timestamp.Before(since) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Metadata.Timestamp.Before(out[j].Metadata.Timestamp)
	})
	return out
}

// UpdateMetadata applies patch to one record's metadata.
func (s *MemoryStore) UpdateMetadata(_ context.Context, recordID string, patch MetadataPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[recordID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, recordID)
	}
	patch.Apply(&r.Metadata)
	s.records[recordID] = r
	return nil
}

// Close is a no-op.
func (*MemoryStore) Close() error { return nil }
