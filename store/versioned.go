package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Migration upgrades the payload of version v to version v+1.
type Migration func(data json.RawMessage) (json.RawMessage, error)

// Schema describes the current version of a record and how to reach it.
// Values written before envelopes existed are treated as version 1.
type Schema struct {
	Current    int
	Migrations map[int]Migration
}

type envelope struct {
	Version *int            `json:"version"`
	Data    json.RawMessage `json:"data"`
}

// Migrate runs the migration chain from version to s.Current.
func (s Schema) Migrate(version int, data json.RawMessage) (json.RawMessage, error) {
	for v := version; v < s.Current; v++ {
		m, ok := s.Migrations[v]
		if !ok {
			continue
		}
		next, err := m(data)
		if err != nil {
			return nil, fmt.Errorf("migrate v%d->v%d: %w", v, v+1, err)
		}
		data = next
	}
	return data, nil
}

func decodeEnvelope(raw []byte) (int, json.RawMessage) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err == nil && env.Version != nil && env.Data != nil {
			return *env.Version, env.Data
		}
	}
	return 1, trimmed
}

// Load reads key, upgrades it to the current schema and decodes it into out.
// It returns false when the key is absent. An upgraded value is written back once.
func Load(ctx context.Context, kv KV, key string, s Schema, out any) (bool, error) {
	raw, err := kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	version, data := decodeEnvelope(raw)
	if version > s.Current {
		return false, fmt.Errorf("%s: stored version %d is newer than %d", key, version, s.Current)
	}
	data, err = s.Migrate(version, data)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("%s: decode: %w", key, err)
	}
	if version < s.Current {
		if err := kv.Set(ctx, key, encode(s.Current, data)); err != nil {
			return true, err
		}
	}
	return true, nil
}

// Save writes v under key wrapped in the current schema version.
func Save(ctx context.Context, kv KV, key string, s Schema, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%s: encode: %w", key, err)
	}
	return kv.Set(ctx, key, encode(s.Current, data))
}

func encode(version int, data json.RawMessage) []byte {
	b, _ := json.Marshal(envelope{Version: &version, Data: data})
	return b
}
