package meds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"yukti-backend/records"
	"yukti-backend/store"
)

var (
	ErrDuplicate = errors.New("an active medication with this name already exists")
	ErrInvalid   = errors.New("invalid medication")
)

var schema = store.Schema{Current: 2, Migrations: map[int]store.Migration{1: defaultStatusAndType}}

// defaultStatusAndType upgrades lists saved before status and type existed.
func defaultStatusAndType(data json.RawMessage) (json.RawMessage, error) {
	var list []records.ActiveMedication
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].Status == "" {
			list[i].Status = records.StatusActive
		}
		if list[i].Type == "" {
			list[i].Type = records.TypeChronic
		}
	}
	return json.Marshal(list)
}

type Service struct {
	kv  store.KV
	mu  sync.Mutex
	now func() time.Time
}

func NewService(kv store.KV) *Service {
	return &Service{kv: kv, now: time.Now}
}

func (s *Service) load(ctx context.Context) ([]records.ActiveMedication, error) {
	var list []records.ActiveMedication
	if _, err := store.Load(ctx, s.kv, store.KeyActiveMeds, schema, &list); err != nil {
		return nil, fmt.Errorf("load medications: %w", err)
	}
	if list == nil {
		list = []records.ActiveMedication{}
	}
	return list, nil
}

func (s *Service) save(ctx context.Context, list []records.ActiveMedication) error {
	if err := store.Save(ctx, s.kv, store.KeyActiveMeds, schema, list); err != nil {
		return fmt.Errorf("save medications: %w", err)
	}
	return nil
}

// update runs fn inside the read-modify-write critical section.
func (s *Service) update(ctx context.Context, fn func([]records.ActiveMedication) ([]records.ActiveMedication, error)) ([]records.ActiveMedication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	list, err = fn(list)
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

// List returns every medication, archived ones included.
func (s *Service) List(ctx context.Context) ([]records.ActiveMedication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Active returns the non-archived medications.
func (s *Service) Active(ctx context.Context) ([]records.ActiveMedication, error) {
	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]records.ActiveMedication, 0, len(list))
	for _, m := range list {
		if m.IsActive() {
			out = append(out, m)
		}
	}
	return out, nil
}

// ApplyExtraction reconciles the medicines of one analysis into the stored list.
func (s *Service) ApplyExtraction(ctx context.Context, extracts []records.MedicineExtract) ([]records.ActiveMedication, error) {
	today := records.DateKey(s.now())
	return s.update(ctx, func(list []records.ActiveMedication) ([]records.ActiveMedication, error) {
		return Reconcile(list, extracts, today), nil
	})
}

// Add creates a manually entered medication.
func (s *Service) Add(ctx context.Context, m records.ActiveMedication) (records.ActiveMedication, error) {
	m, err := prepare(m)
	if err != nil {
		return m, err
	}
	m.Status = records.StatusActive
	if m.StartDate == "" {
		m.StartDate = records.DateKey(s.now())
	}
	_, err = s.update(ctx, func(list []records.ActiveMedication) ([]records.ActiveMedication, error) {
		if activeIndex(list, m.Name) >= 0 {
			return nil, fmt.Errorf("%s: %w", m.Name, ErrDuplicate)
		}
		return append(list, m), nil
	})
	return m, err
}

// Update replaces the editable fields of the active medication called name.
// Status and start date are kept.
func (s *Service) Update(ctx context.Context, name string, m records.ActiveMedication) (records.ActiveMedication, error) {
	m, err := prepare(m)
	if err != nil {
		return m, err
	}
	var updated records.ActiveMedication
	_, err = s.update(ctx, func(list []records.ActiveMedication) ([]records.ActiveMedication, error) {
		i := activeIndex(list, name)
		if i < 0 {
			return nil, fmt.Errorf("%s: %w", name, store.ErrNotFound)
		}
		if !records.SameName(name, m.Name) && activeIndex(list, m.Name) >= 0 {
			return nil, fmt.Errorf("%s: %w", m.Name, ErrDuplicate)
		}
		m.Status = list[i].Status
		m.StartDate = list[i].StartDate
		list[i] = m
		updated = m
		return list, nil
	})
	return updated, err
}

// Archive hides the active medication called name. Entries are never hard-deleted.
func (s *Service) Archive(ctx context.Context, name string) error {
	_, err := s.update(ctx, func(list []records.ActiveMedication) ([]records.ActiveMedication, error) {
		i := activeIndex(list, name)
		if i < 0 {
			return nil, fmt.Errorf("%s: %w", name, store.ErrNotFound)
		}
		list[i].Status = records.StatusArchived
		return list, nil
	})
	return err
}

// Restore reactivates an archived medication unless an active one has taken its name.
func (s *Service) Restore(ctx context.Context, name string) error {
	_, err := s.update(ctx, func(list []records.ActiveMedication) ([]records.ActiveMedication, error) {
		if activeIndex(list, name) >= 0 {
			return nil, fmt.Errorf("%s: %w", name, ErrDuplicate)
		}
		for i, m := range list {
			if records.SameName(m.Name, name) && m.Status == records.StatusArchived {
				list[i].Status = records.StatusActive
				return list, nil
			}
		}
		return nil, fmt.Errorf("%s: %w", name, store.ErrNotFound)
	})
	return err
}

func activeIndex(list []records.ActiveMedication, name string) int {
	for i, m := range list {
		if m.IsActive() && records.SameName(m.Name, name) {
			return i
		}
	}
	return -1
}

// prepare validates a manual entry and derives its timing from the slots.
func prepare(m records.ActiveMedication) (records.ActiveMedication, error) {
	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" {
		return m, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if m.Type == "" {
		m.Type = records.TypeChronic
	}
	if m.Type != records.TypeChronic && m.Type != records.TypeAcute {
		return m, fmt.Errorf("%w: type %q", ErrInvalid, m.Type)
	}
	if m.RelationToFood != "" && m.RelationToFood != records.BeforeFood && m.RelationToFood != records.AfterFood {
		return m, fmt.Errorf("%w: relationToFood %q", ErrInvalid, m.RelationToFood)
	}
	slots, err := orderSlots(m.Slots)
	if err != nil {
		return m, err
	}
	m.Slots = slots
	if strings.TrimSpace(m.Timing) == "" {
		m.Timing = Timing(slots, m.RelationToFood)
	}
	return m, nil
}

func orderSlots(in []string) ([]string, error) {
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		ok := false
		for _, valid := range records.Slots {
			if strings.EqualFold(s, valid) {
				seen[valid] = true
				ok = true
			}
		}
		if !ok {
			return nil, fmt.Errorf("%w: slot %q", ErrInvalid, s)
		}
	}
	var out []string
	for _, valid := range records.Slots {
		if seen[valid] {
			out = append(out, valid)
		}
	}
	return out, nil
}

// Timing renders slots and food relation as "Morning-Night (After Food)".
func Timing(slots []string, relation string) string {
	t := strings.Join(slots, "-")
	if relation == "" {
		return t
	}
	if t == "" {
		return relation
	}
	return t + " (" + relation + ")"
}
