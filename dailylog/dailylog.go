// Package dailylog records, per calendar date, the medicines taken, vitals and habits.
package dailylog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"yukti-backend/records"
	"yukti-backend/store"
)

// Adherence classifies one day against the number of active medications.
type Adherence string

const (
	Perfect Adherence = "Perfect"
	Partial Adherence = "Partial"
	Missed  Adherence = "Missed"
	NoData  Adherence = "NoData"
)

var (
	ErrInvalidDate  = errors.New("date must be YYYY-MM-DD")
	ErrRangeTooLong = fmt.Errorf("date range exceeds %d days", MaxCalendarDays)
)

// MaxCalendarDays bounds one Calendar request.
const MaxCalendarDays = 366

// Classify scores a log; a nil log means nothing was recorded that day.
func Classify(log *records.DailyLog, activeCount int) Adherence {
	if log == nil {
		return NoData
	}
	taken := len(log.MedsTaken)
	switch {
	case activeCount > 0 && taken >= activeCount:
		return Perfect
	case taken > 0:
		return Partial
	default:
		return Missed
	}
}

// Day is the calendar view of one date.
type Day struct {
	Date      string    `json:"date"`
	Adherence Adherence `json:"adherence"`
	Taken     int       `json:"taken"`
	HasVitals bool      `json:"hasVitals"`
}

// Wellness is the vitals and habits part of a log. Nil fields are left unchanged.
type Wellness struct {
	Vitals *records.Vitals `json:"vitals"`
	Habits *records.Habits `json:"habits"`
	Notes  *string         `json:"notes"`
}

type Service struct {
	kv  store.KV
	mu  sync.Mutex
	now func() time.Time
}

func NewService(kv store.KV) *Service {
	return &Service{kv: kv, now: time.Now}
}

// Today returns the date key of the current day.
func (s *Service) Today() string { return records.DateKey(s.now()) }

func validDate(date string) error {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return nil
}

// lookup returns the log of date, migrating a legacy taken-map when present.
// The log is nil when the date was never written.
func (s *Service) lookup(ctx context.Context, date string) (*records.DailyLog, error) {
	var log records.DailyLog
	ok, err := store.Load(ctx, s.kv, store.DailyLogKey(date), schema, &log)
	if err != nil {
		return nil, fmt.Errorf("load daily log %s: %w", date, err)
	}
	if ok {
		log.Date = date
		if log.MedsTaken == nil {
			log.MedsTaken = []string{}
		}
		return &log, nil
	}
	return s.migrateLegacy(ctx, date)
}

func (s *Service) migrateLegacy(ctx context.Context, date string) (*records.DailyLog, error) {
	raw, err := s.kv.Get(ctx, store.LegacyLogKey(date))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var taken map[string]bool
	if err := json.Unmarshal(raw, &taken); err != nil {
		return nil, fmt.Errorf("legacy log %s: %w", date, err)
	}
	log := &records.DailyLog{Date: date, MedsTaken: []string{}}
	for name, ok := range taken {
		if ok {
			log.MedsTaken = append(log.MedsTaken, name)
		}
	}
	sort.Strings(log.MedsTaken)
	if err := s.save(ctx, log); err != nil {
		return nil, err
	}
	if err := s.kv.Delete(ctx, store.LegacyLogKey(date)); err != nil {
		return nil, err
	}
	return log, nil
}

func (s *Service) save(ctx context.Context, log *records.DailyLog) error {
	if err := store.Save(ctx, s.kv, store.DailyLogKey(log.Date), schema, log); err != nil {
		return fmt.Errorf("save daily log %s: %w", log.Date, err)
	}
	return nil
}

// Get returns the log of date; an unwritten date yields an empty log that is not persisted.
func (s *Service) Get(ctx context.Context, date string) (records.DailyLog, error) {
	if err := validDate(date); err != nil {
		return records.DailyLog{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	log, err := s.lookup(ctx, date)
	if err != nil {
		return records.DailyLog{}, err
	}
	if log == nil {
		return records.DailyLog{Date: date, MedsTaken: []string{}}, nil
	}
	return *log, nil
}

func (s *Service) modify(ctx context.Context, date string, fn func(*records.DailyLog)) (records.DailyLog, error) {
	if err := validDate(date); err != nil {
		return records.DailyLog{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	log, err := s.lookup(ctx, date)
	if err != nil {
		return records.DailyLog{}, err
	}
	if log == nil {
		log = &records.DailyLog{Date: date, MedsTaken: []string{}}
	}
	fn(log)
	if err := s.save(ctx, log); err != nil {
		return records.DailyLog{}, err
	}
	return *log, nil
}

// ToggleMed flips whether name was taken on date.
func (s *Service) ToggleMed(ctx context.Context, date, name string) (records.DailyLog, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return records.DailyLog{}, errors.New("medication name is required")
	}
	return s.modify(ctx, date, func(log *records.DailyLog) {
		for i, n := range log.MedsTaken {
			if records.SameName(n, name) {
				log.MedsTaken = append(log.MedsTaken[:i], log.MedsTaken[i+1:]...)
				return
			}
		}
		log.MedsTaken = append(log.MedsTaken, name)
	})
}

// SaveWellness stores vitals, habits and notes for date.
func (s *Service) SaveWellness(ctx context.Context, date string, w Wellness) (records.DailyLog, error) {
	return s.modify(ctx, date, func(log *records.DailyLog) {
		if w.Vitals != nil {
			log.Vitals = *w.Vitals
		}
		if w.Habits != nil {
			h := *w.Habits
			log.Habits = &h
		}
		if w.Notes != nil {
			log.Notes = *w.Notes
		}
	})
}

// Range returns the logs recorded between from and to inclusive, oldest first.
func (s *Service) Range(ctx context.Context, from, to string) ([]records.DailyLog, error) {
	if err := validDate(from); err != nil {
		return nil, err
	}
	if err := validDate(to); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	dates := map[string]bool{}
	for _, prefix := range []string{store.PrefixDailyLog, store.PrefixLegacyLog} {
		keys, err := s.kv.Keys(ctx, prefix)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			d := strings.TrimPrefix(k, prefix)
			if d >= from && d <= to {
				dates[d] = true
			}
		}
	}
	sorted := make([]string, 0, len(dates))
	for d := range dates {
		sorted = append(sorted, d)
	}
	sort.Strings(sorted)

	out := make([]records.DailyLog, 0, len(sorted))
	for _, d := range sorted {
		log, err := s.lookup(ctx, d)
		if err != nil {
			return nil, err
		}
		if log != nil {
			out = append(out, *log)
		}
	}
	return out, nil
}

// Adherence classifies date against activeCount.
func (s *Service) Adherence(ctx context.Context, date string, activeCount int) (Adherence, error) {
	if err := validDate(date); err != nil {
		return NoData, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	log, err := s.lookup(ctx, date)
	if err != nil {
		return NoData, err
	}
	return Classify(log, activeCount), nil
}

// Calendar returns one Day per date between from and to inclusive.
func (s *Service) Calendar(ctx context.Context, from, to string, activeCount int) ([]Day, error) {
	logs, err := s.Range(ctx, from, to)
	if err != nil {
		return nil, err
	}
	byDate := make(map[string]*records.DailyLog, len(logs))
	for i := range logs {
		byDate[logs[i].Date] = &logs[i]
	}
	start, _ := time.Parse("2006-01-02", from)
	end, _ := time.Parse("2006-01-02", to)
	if end.Sub(start) > MaxCalendarDays*24*time.Hour {
		return nil, ErrRangeTooLong
	}
	days := []Day{}
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := records.DateKey(d)
		log := byDate[key]
		day := Day{Date: key, Adherence: Classify(log, activeCount)}
		if log != nil {
			day.Taken = len(log.MedsTaken)
			day.HasVitals = !log.Vitals.Empty()
		}
		days = append(days, day)
	}
	return days, nil
}
