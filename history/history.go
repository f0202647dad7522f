// Package history keeps the newest-first list of analysis records and the latest summary.
package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"yukti-backend/records"
	"yukti-backend/store"
)

// Schemas of the persisted values. Both started as bare JSON.
var (
	recordsSchema = store.Schema{Current: 2, Migrations: map[int]store.Migration{1: assignIDs}}
	summarySchema = store.Schema{Current: 1}
)

// Service is the single writer of the history and latest summary keys.
type Service struct {
	kv  store.KV
	mu  sync.Mutex
	now func() time.Time
}

func New(kv store.KV) *Service {
	return &Service{kv: kv, now: time.Now}
}

func (s *Service) load(ctx context.Context) ([]records.AnalysisRecord, error) {
	var list []records.AnalysisRecord
	if _, err := store.Load(ctx, s.kv, store.KeyHistory, recordsSchema, &list); err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if list == nil {
		list = []records.AnalysisRecord{}
	}
	return list, nil
}

// All returns every record, newest first.
func (s *Service) All(ctx context.Context) ([]records.AnalysisRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// RecentN returns at most n records, newest first. n <= 0 means all.
func (s *Service) RecentN(ctx context.Context, n int) ([]records.AnalysisRecord, error) {
	list, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(list) > n {
		list = list[:n]
	}
	return list, nil
}

// Append stores rec at the head of the history, assigning its id and timestamp.
func (s *Service) Append(ctx context.Context, rec records.AnalysisRecord) (records.AnalysisRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load(ctx)
	if err != nil {
		return rec, err
	}
	now := s.now().UTC()
	rec.ID = uuid.NewString()
	rec.Timestamp = &now
	rec.Normalize()

	list = append([]records.AnalysisRecord{rec}, list...)
	if err := store.Save(ctx, s.kv, store.KeyHistory, recordsSchema, list); err != nil {
		return rec, fmt.Errorf("save history: %w", err)
	}
	return rec, nil
}

// Delete removes the record at index (0 is the newest).
func (s *Service) Delete(ctx context.Context, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load(ctx)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(list) {
		return fmt.Errorf("history entry %d: %w", index, store.ErrNotFound)
	}
	list = append(list[:index], list[index+1:]...)
	if err := store.Save(ctx, s.kv, store.KeyHistory, recordsSchema, list); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}

// SaveSummary replaces the latest summary snapshot.
func (s *Service) SaveSummary(ctx context.Context, sum records.Summary, modelUsed string) (records.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	sum.IsSummary = true
	sum.GeneratedAt = &now
	sum.ModelUsed = modelUsed
	sum.Normalize()
	if err := store.Save(ctx, s.kv, store.KeyLatestSummary, summarySchema, sum); err != nil {
		return sum, fmt.Errorf("save summary: %w", err)
	}
	return sum, nil
}

// LatestSummary returns the last summary, or ok=false when none was generated.
func (s *Service) LatestSummary(ctx context.Context) (records.Summary, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sum records.Summary
	ok, err := store.Load(ctx, s.kv, store.KeyLatestSummary, summarySchema, &sum)
	if err != nil {
		return sum, false, fmt.Errorf("load summary: %w", err)
	}
	if ok {
		sum.Normalize()
	}
	return sum, ok, nil
}
