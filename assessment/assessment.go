// Package assessment persists the caregiver's questionnaire answers and their risk profile.
package assessment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"yukti-backend/risk"
	"yukti-backend/store"
)

var ErrInvalid = errors.New("invalid assessment")

var schema = store.Schema{Current: 1}

// Snapshot is the persisted form: the answers and the profile derived from them.
type Snapshot struct {
	Answers   map[string]string `json:"answers"`
	Scores    risk.Profile      `json:"scores"`
	UpdatedAt *time.Time        `json:"updatedAt,omitempty"`
}

type Service struct {
	kv    store.KV
	table risk.Table
	mu    sync.Mutex
	now   func() time.Time
}

func NewService(kv store.KV, table risk.Table) *Service {
	return &Service{kv: kv, table: table, now: time.Now}
}

// Get returns the stored snapshot rescored with the current table.
// Without stored answers it returns the profile of an empty questionnaire.
func (s *Service) Get(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var snap Snapshot
	if _, err := store.Load(ctx, s.kv, store.KeyAssessment, schema, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("load assessment: %w", err)
	}
	if snap.Answers == nil {
		snap.Answers = map[string]string{}
	}
	snap.Scores = s.table.Score(snap.Answers)
	return snap, nil
}

// Save merges answers into the stored ones and recomputes the profile.
func (s *Service) Save(ctx context.Context, answers map[string]string) (Snapshot, error) {
	if err := risk.Validate(answers); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var snap Snapshot
	if _, err := store.Load(ctx, s.kv, store.KeyAssessment, schema, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("load assessment: %w", err)
	}
	if snap.Answers == nil {
		snap.Answers = map[string]string{}
	}
	for q, a := range answers {
		snap.Answers[q] = a
	}
	now := s.now().UTC()
	snap.UpdatedAt = &now
	snap.Scores = s.table.Score(snap.Answers)
	if err := store.Save(ctx, s.kv, store.KeyAssessment, schema, snap); err != nil {
		return Snapshot{}, fmt.Errorf("save assessment: %w", err)
	}
	return snap, nil
}

// Reset clears the answers.
func (s *Service) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Delete(ctx, store.KeyAssessment)
}

// ClinicalContext returns the prompt context of a completed assessment.
// ok is false while questions remain unanswered.
func (s *Service) ClinicalContext(ctx context.Context) (string, bool, error) {
	snap, err := s.Get(ctx)
	if err != nil {
		return "", false, err
	}
	if !snap.Scores.Complete {
		return "", false, nil
	}
	return snap.Scores.Context(), true, nil
}
