package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

const DefaultKey = "cyberpunk-todos"

var ErrFutureVersion = errors.New("persisted record is newer than this build")

// Migration reshapes the state of a record written at version N into the
// shape expected at N+1.
type Migration func(state json.RawMessage) (json.RawMessage, error)

type envelope struct {
	Version int             `json:"version"`
	State   json.RawMessage `json:"state"`
}

// Slot is one versioned record in a KV. Migrations is keyed by the version a
// rule migrates FROM; versions without a rule pass through unchanged.
type Slot struct {
	KV         KV
	Key        string
	Version    int
	Migrations map[int]Migration
}

func NewSlot(kv KV, key string, version int) *Slot {
	if key == "" {
		key = DefaultKey
	}
	return &Slot{KV: kv, Key: key, Version: version, Migrations: map[int]Migration{}}
}

func (s *Slot) Save(state any) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	b, err := json.MarshalIndent(envelope{Version: s.Version, State: raw}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if err := s.KV.Put(s.Key, b); err != nil {
		return fmt.Errorf("write %s: %w", s.Key, err)
	}
	return nil
}

// Load decodes the stored state into dst after migrating it to s.Version.
// found is false on first run.
func (s *Slot) Load(dst any) (found bool, err error) {
	b, ok, err := s.KV.Get(s.Key)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", s.Key, err)
	}
	if !ok || len(bytes.TrimSpace(b)) == 0 {
		return false, nil
	}

	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return false, fmt.Errorf("decode %s: %w", s.Key, err)
	}
	if env.Version > s.Version {
		return false, fmt.Errorf("%w: %s is v%d, expected <= v%d", ErrFutureVersion, s.Key, env.Version, s.Version)
	}

	state, err := s.migrate(env.Version, env.State)
	if err != nil {
		return false, err
	}
	if len(state) == 0 || bytes.Equal(bytes.TrimSpace(state), []byte("null")) {
		return false, nil
	}
	if err := json.Unmarshal(state, dst); err != nil {
		return false, fmt.Errorf("decode %s state: %w", s.Key, err)
	}
	return true, nil
}

func (s *Slot) migrate(from int, state json.RawMessage) (json.RawMessage, error) {
	for v := from; v < s.Version; v++ {
		m, ok := s.Migrations[v]
		if !ok {
			continue
		}
		next, err := m(state)
		if err != nil {
			return nil, fmt.Errorf("migrate %s v%d->v%d: %w", s.Key, v, v+1, err)
		}
		state = next
	}
	return state, nil
}
