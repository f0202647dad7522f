// Package store persists patient state as serialized values keyed by string.
//
// Every component depends on the KV interface rather than a concrete backend, so the
// in-memory store used in tests and the Redis or MySQL backends used in deployments are
// interchangeable.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = errors.New("store: key not found")

// KV is the key-value repository every persisted record goes through.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Keys lists the keys starting with prefix, in no particular order.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Persisted keys.
const (
	KeyAssessment    = "yukti_assessment_data_v2"
	KeyHistory       = "yukti_history"
	KeyLatestSummary = "yukti_latest_summary"
	KeyActiveMeds    = "yukti_active_meds"

	PrefixDailyLog  = "yukti_daily_log_"
	PrefixLegacyLog = "yukti_med_log_"
	PrefixQuota     = "yukti_quota_"
)

// DailyLogKey returns the key of the daily log for a YYYY-MM-DD date.
func DailyLogKey(date string) string { return PrefixDailyLog + date }

// LegacyLogKey returns the key older clients used for the taken-medicines map of a date.
func LegacyLogKey(date string) string { return PrefixLegacyLog + date }

// QuotaKey returns the key of the analysis counter for a YYYY-MM-DD date.
func QuotaKey(date string) string { return PrefixQuota + date }

// Reset removes every key holding patient data. Quota counters survive.
func Reset(ctx context.Context, kv KV) error {
	keys := []string{KeyAssessment, KeyHistory, KeyLatestSummary, KeyActiveMeds}
	for _, prefix := range []string{PrefixDailyLog, PrefixLegacyLog} {
		more, err := kv.Keys(ctx, prefix)
		if err != nil {
			return err
		}
		keys = append(keys, more...)
	}
	for _, k := range keys {
		if err := kv.Delete(ctx, k); err != nil {
			return err
		}
	}
	return nil
}
