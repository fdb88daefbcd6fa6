// Package ops archives the persisted task record. An archive is a tar.gz
// holding manifest.json and the raw record, so a restore can check the
// schema version, digest and task count before touching the live slot.
package ops

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cybertodo/internal/clock"
	"cybertodo/internal/storage"
	"cybertodo/internal/task"
)

const (
	manifestName = "manifest.json"
	maxEntrySize = 64 << 20
)

var ErrBadArchive = errors.New("bad archive")

type Manifest struct {
	Key           string    `json:"key"`
	SchemaVersion int       `json:"schemaVersion"`
	TaskCount     int       `json:"taskCount"`
	SHA256        string    `json:"sha256"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (m Manifest) recordName() string { return m.Key + ".json" }

// Backup writes the record stored under key to a new archive at
// archivePath. The record is hydrated first, so a backup of a record this
// build cannot read fails instead of producing an archive that cannot be
// restored.
func Backup(kv storage.KV, key, archivePath string, now time.Time) (Manifest, error) {
	archivePath = filepath.Clean(strings.TrimSpace(archivePath))
	if archivePath == "" || archivePath == "." {
		return Manifest{}, fmt.Errorf("archive path is required")
	}

	raw, found, err := kv.Get(key)
	if err != nil {
		return Manifest{}, err
	}
	if !found {
		return Manifest{}, fmt.Errorf("no record under %q", key)
	}
	count, err := countTasks(raw, key)
	if err != nil {
		return Manifest{}, err
	}

	sum := sha256.Sum256(raw)
	m := Manifest{
		Key:           key,
		SchemaVersion: task.SchemaVersion,
		TaskCount:     count,
		SHA256:        hex.EncodeToString(sum[:]),
		CreatedAt:     now.UTC(),
	}
	mb, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return Manifest{}, err
	}

	if err := os.MkdirAll(filepath.Dir(archivePath), 0o755); err != nil {
		return Manifest{}, err
	}
	f, err := os.Create(archivePath)
	if err != nil {
		return Manifest{}, err
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	for _, e := range []struct {
		name string
		body []byte
	}{
		{manifestName, mb},
		{m.recordName(), raw},
	} {
		hdr := &tar.Header{
			Name:     e.name,
			Typeflag: tar.TypeReg,
			Mode:     0o644,
			Size:     int64(len(e.body)),
			ModTime:  m.CreatedAt,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return Manifest{}, err
		}
		if _, err := tw.Write(e.body); err != nil {
			return Manifest{}, err
		}
	}
	if err := tw.Close(); err != nil {
		return Manifest{}, err
	}
	if err := gz.Close(); err != nil {
		return Manifest{}, err
	}
	return m, f.Sync()
}

// ReadArchive returns the manifest and the verified record bytes.
func ReadArchive(archivePath string) (Manifest, []byte, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return Manifest{}, nil, err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return Manifest{}, nil, fmt.Errorf("%w: %w", ErrBadArchive, err)
	}
	defer gz.Close()

	entries := map[string][]byte{}
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Manifest{}, nil, fmt.Errorf("%w: %w", ErrBadArchive, err)
		}
		name, err := sanitizeEntryName(hdr.Name)
		if err != nil {
			return Manifest{}, nil, err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if hdr.Size > maxEntrySize {
			return Manifest{}, nil, fmt.Errorf("%w: entry %s too large", ErrBadArchive, name)
		}
		b, err := io.ReadAll(io.LimitReader(tr, maxEntrySize))
		if err != nil {
			return Manifest{}, nil, err
		}
		entries[name] = b
	}

	mb, ok := entries[manifestName]
	if !ok {
		return Manifest{}, nil, fmt.Errorf("%w: missing %s", ErrBadArchive, manifestName)
	}
	var m Manifest
	if err := json.Unmarshal(mb, &m); err != nil {
		return Manifest{}, nil, fmt.Errorf("%w: manifest: %w", ErrBadArchive, err)
	}
	if m.SchemaVersion > task.SchemaVersion {
		return Manifest{}, nil, fmt.Errorf("%w: schema version %d is newer than %d", ErrBadArchive, m.SchemaVersion, task.SchemaVersion)
	}
	raw, ok := entries[m.recordName()]
	if !ok {
		return Manifest{}, nil, fmt.Errorf("%w: missing %s", ErrBadArchive, m.recordName())
	}
	sum := sha256.Sum256(raw)
	if got := hex.EncodeToString(sum[:]); got != m.SHA256 {
		return Manifest{}, nil, fmt.Errorf("%w: digest mismatch: manifest=%s record=%s", ErrBadArchive, m.SHA256, got)
	}
	count, err := countTasks(raw, m.Key)
	if err != nil {
		return Manifest{}, nil, fmt.Errorf("%w: %w", ErrBadArchive, err)
	}
	if count != m.TaskCount {
		return Manifest{}, nil, fmt.Errorf("%w: manifest lists %d tasks, record holds %d", ErrBadArchive, m.TaskCount, count)
	}
	return m, raw, nil
}

// Restore verifies the archive and writes its record into kv under key, or
// under the archived key when key is empty. kv is untouched if verification
// fails.
func Restore(archivePath string, kv storage.KV, key string) (Manifest, error) {
	m, raw, err := ReadArchive(archivePath)
	if err != nil {
		return Manifest{}, err
	}
	if strings.TrimSpace(key) == "" {
		key = m.Key
	}
	if err := kv.Put(key, raw); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// DrillResult reports a backup that was restored and compared.
type DrillResult struct {
	Archive  string
	Manifest Manifest
}

// Drill backs up the record, restores it into a scratch store and checks
// that both stores export the same snapshot.
func Drill(kv storage.KV, key, workDir string, now time.Time) (DrillResult, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return DrillResult{}, err
	}
	archive := filepath.Join(workDir, "cybertodo-drill-"+now.UTC().Format("20060102T150405Z")+".tar.gz")

	m, err := Backup(kv, key, archive, now)
	if err != nil {
		return DrillResult{}, err
	}
	scratch := storage.NewMemoryKV()
	if _, err := Restore(archive, scratch, key); err != nil {
		return DrillResult{}, err
	}

	want, err := exportRecord(kv, key, now)
	if err != nil {
		return DrillResult{}, err
	}
	got, err := exportRecord(scratch, key, now)
	if err != nil {
		return DrillResult{}, err
	}
	if !bytes.Equal(want, got) {
		return DrillResult{}, fmt.Errorf("restored snapshot differs from source")
	}
	return DrillResult{Archive: archive, Manifest: m}, nil
}

func countTasks(raw []byte, key string) (int, error) {
	kv := storage.NewMemoryKV()
	if err := kv.Put(key, raw); err != nil {
		return 0, err
	}
	s, err := task.NewStore(task.NewSlot(kv, key))
	if err != nil {
		return 0, err
	}
	return s.Len(), nil
}

func exportRecord(kv storage.KV, key string, now time.Time) ([]byte, error) {
	s, err := task.NewStore(task.NewSlot(kv, key), task.WithClock(clock.NewFake(now)))
	if err != nil {
		return nil, err
	}
	return s.ExportSnapshot()
}

// Archive entries are flat file names.
func sanitizeEntryName(name string) (string, error) {
	clean := filepath.Clean(strings.TrimSpace(name))
	if clean == "." || clean == "" {
		return "", fmt.Errorf("%w: empty entry path", ErrBadArchive)
	}
	if filepath.IsAbs(clean) || strings.Contains(clean, "..") || strings.ContainsAny(clean, `/\`) {
		return "", fmt.Errorf("%w: invalid entry path %s", ErrBadArchive, name)
	}
	return clean, nil
}
