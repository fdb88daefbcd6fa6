package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Items []string `json:"items"`
}

func TestFileKV_FirstRunNotFound(t *testing.T) {
	kv, err := NewFileKV(t.TempDir())
	require.NoError(t, err)

	b, ok, err := kv.Get("todos")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, b)
}

func TestFileKV_PutGetOverwrite(t *testing.T) {
	dir := t.TempDir()
	kv, err := NewFileKV(dir)
	require.NoError(t, err)

	require.NoError(t, kv.Put("todos", []byte("one")))
	require.NoError(t, kv.Put("todos", []byte("two")))

	b, ok, err := kv.Get("todos")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "two", string(b))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
	assert.Equal(t, "todos.json", entries[0].Name())
}

func TestFileKV_RejectsPathLikeKeys(t *testing.T) {
	kv, err := NewFileKV(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "../escape", "a/b", ".hidden"} {
		err := kv.Put(key, []byte("x"))
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}

func TestNewFileKV_RequiresDir(t *testing.T) {
	_, err := NewFileKV("  ")
	assert.Error(t, err)
}

func TestMemoryKV_CopiesValues(t *testing.T) {
	kv := NewMemoryKV()
	v := []byte("abc")
	require.NoError(t, kv.Put("k", v))
	v[0] = 'z'

	got, ok, err := kv.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", string(got))
}

func TestMemoryKV_FailPuts(t *testing.T) {
	kv := NewMemoryKV()
	boom := errors.New("quota exceeded")
	kv.FailPuts = boom

	assert.ErrorIs(t, kv.Put("k", []byte("x")), boom)
	_, ok, err := kv.Get("k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSlot_SaveLoadRoundTrip(t *testing.T) {
	kv, err := NewFileKV(t.TempDir())
	require.NoError(t, err)
	slot := NewSlot(kv, "todos", 1)

	require.NoError(t, slot.Save(sample{Items: []string{"a", "b"}}))

	var got sample
	found, err := slot.Load(&got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"a", "b"}, got.Items)

	raw, err := os.ReadFile(filepath.Join(kv.Dir(), "todos.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"version": 1`)
}

func TestSlot_DefaultKey(t *testing.T) {
	slot := NewSlot(NewMemoryKV(), "", 1)
	assert.Equal(t, DefaultKey, slot.Key)
}

func TestSlot_LoadFirstRun(t *testing.T) {
	slot := NewSlot(NewMemoryKV(), "todos", 1)
	var got sample
	found, err := slot.Load(&got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSlot_MigrationsRunInOrder(t *testing.T) {
	kv := NewMemoryKV()
	require.NoError(t, kv.Put("todos", []byte(`{"version":0,"state":{"items":["x"]}}`)))

	slot := NewSlot(kv, "todos", 3)
	var seen []int
	slot.Migrations[0] = func(state json.RawMessage) (json.RawMessage, error) {
		seen = append(seen, 0)
		return bytes.Replace(state, []byte(`"x"`), []byte(`"x","from0"`), 1), nil
	}
	// No rule for v1: passes through.
	slot.Migrations[2] = func(state json.RawMessage) (json.RawMessage, error) {
		seen = append(seen, 2)
		return bytes.Replace(state, []byte(`"from0"`), []byte(`"from0","from2"`), 1), nil
	}

	var got sample
	found, err := slot.Load(&got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []int{0, 2}, seen)
	assert.Equal(t, []string{"x", "from0", "from2"}, got.Items)
}

func TestSlot_MigrationErrorIsReported(t *testing.T) {
	kv := NewMemoryKV()
	require.NoError(t, kv.Put("todos", []byte(`{"version":0,"state":{}}`)))

	slot := NewSlot(kv, "todos", 1)
	slot.Migrations[0] = func(json.RawMessage) (json.RawMessage, error) {
		return nil, errors.New("bad shape")
	}

	var got sample
	_, err := slot.Load(&got)
	assert.ErrorContains(t, err, "v0->v1")
}

func TestSlot_RejectsFutureVersion(t *testing.T) {
	kv := NewMemoryKV()
	require.NoError(t, kv.Put("todos", []byte(`{"version":9,"state":{}}`)))

	var got sample
	_, err := NewSlot(kv, "todos", 1).Load(&got)
	assert.ErrorIs(t, err, ErrFutureVersion)
}

func TestSlot_CorruptRecord(t *testing.T) {
	kv := NewMemoryKV()
	require.NoError(t, kv.Put("todos", []byte(`not json`)))

	var got sample
	_, err := NewSlot(kv, "todos", 1).Load(&got)
	assert.Error(t, err)
}

func TestDump(t *testing.T) {
	kv := NewMemoryKV()
	require.NoError(t, kv.Put("todos", []byte(`{"version":1}`)))

	var buf bytes.Buffer
	require.NoError(t, Dump(kv, "todos", &buf))
	assert.Equal(t, `{"version":1}`, buf.String())

	assert.Error(t, Dump(kv, "missing", &buf))
}
