package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const tmpDirName = ".tmp"

// FileStore is the production Store: one JSON file per record in a flat
// directory. Writes go to a temp file first and are renamed into place, so a
// concurrent reader never observes a partially written record.
type FileStore struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

// NewFileStore creates the storage namespace (idempotently) and returns a
// store rooted at dir.
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("store directory is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve store directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(abs, tmpDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create store temp directory: %w", err)
	}
	return &FileStore{dir: abs, logger: logger, now: time.Now}, nil
}

// Dir returns the absolute storage directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Save writes payload verbatim under its derived record name. Two events for
// the same timestamp/type/id land on the same name; last write wins, which
// is an accepted risk rather than a correctness requirement.
func (s *FileStore) Save(ctx context.Context, payload json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	name := RecordName(ExtractMeta(payload, s.now))
	dst := filepath.Join(s.dir, name)

	tmp, err := os.CreateTemp(filepath.Join(s.dir, tmpDirName), "save-*")
	if err != nil {
		return fmt.Errorf("create temp record: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close record: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("publish record %s: %w", name, err)
	}
	return nil
}

// ListLatest returns up to limit payloads, newest first by record name.
// Corrupt records are skipped and logged; the listing still succeeds.
func (s *FileStore) ListLatest(ctx context.Context, limit int) ([]json.RawMessage, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	names, err := s.recordNames(ctx)
	if err != nil {
		return nil, err
	}
	if len(names) > limit {
		names = names[:limit]
	}

	items := make([]json.RawMessage, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		payload, ok := s.readRecord(name)
		if !ok {
			continue
		}
		items = append(items, payload)
	}
	return items, nil
}

// GetByID returns the newest record whose name matches the sanitized
// conversation id exactly, or ErrNotFound.
func (s *FileStore) GetByID(ctx context.Context, conversationID string) (json.RawMessage, error) {
	names, err := s.recordNames(ctx)
	if err != nil {
		return nil, err
	}

	safe := SanitizeID(conversationID)
	for _, name := range names {
		if !matchesConversation(name, safe) {
			continue
		}
		payload, ok := s.readRecord(name)
		if !ok {
			return nil, ErrNotFound
		}
		return payload, nil
	}
	return nil, ErrNotFound
}

// SaveAudio writes a decoded call recording beside the records as
// {sanitized_id}.mp3, with the same write-then-rename discipline. It returns
// the destination path.
func (s *FileStore) SaveAudio(ctx context.Context, conversationID string, audio []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dst := filepath.Join(s.dir, SanitizeID(conversationID)+".mp3")
	tmp, err := os.CreateTemp(filepath.Join(s.dir, tmpDirName), "audio-*")
	if err != nil {
		return "", fmt.Errorf("create temp audio: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(audio); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write audio: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("close audio: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("publish audio: %w", err)
	}
	return dst, nil
}

// recordNames returns record names sorted descending, i.e. newest first.
func (s *FileStore) recordNames(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list store directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !isRecordName(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

// readRecord reads and validates one record. Invalid records report false.
func (s *FileStore) readRecord(name string) (json.RawMessage, bool) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) && s.logger != nil {
			s.logger.Warn("failed to read record", "record", name, "error", err)
		}
		return nil, false
	}
	if !json.Valid(data) {
		if s.logger != nil {
			s.logger.Warn("skipping corrupt record", "record", name)
		}
		return nil, false
	}
	return data, true
}
