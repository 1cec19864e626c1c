package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

const journalName = "journal.json"

// File is a Store keeping one file per key inside a directory. Single-key
// writes go through a temp-file rename. Multi-key commits are journaled: the
// full set of pending values is written to a journal file first, then applied
// key by key, then the journal is removed. Open replays a leftover journal,
// so a crash between the per-key applies cannot leave a torn commit.
type File struct {
	dir string
}

// OpenFile opens (creating if needed) a file-backed store rooted at dir and
// replays any pending journal.
func OpenFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create kv dir %q: %w", dir, err)
	}
	f := &File{dir: dir}
	if err := f.replayJournal(); err != nil {
		return nil, err
	}
	return f, nil
}

// Get implements Store.
func (f *File) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read key %q: %w", key, err)
	}
	return data, nil
}

// Set implements Store.
func (f *File) Set(ctx context.Context, key string, value []byte) error {
	return f.writeFile(f.path(key), value)
}

// SetMulti implements Store.
func (f *File) SetMulti(ctx context.Context, values map[string][]byte) error {
	if len(values) == 0 {
		return nil
	}
	if len(values) == 1 {
		for key, value := range values {
			return f.Set(ctx, key, value)
		}
	}

	encoded, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode journal: %w", err)
	}
	journal := filepath.Join(f.dir, journalName)
	if err := f.writeFile(journal, encoded); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	for key, value := range values {
		if err := f.writeFile(f.path(key), value); err != nil {
			// Journal stays in place; the commit completes on next Open.
			return err
		}
	}
	if err := os.Remove(journal); err != nil {
		return fmt.Errorf("clear journal: %w", err)
	}
	return nil
}

// Delete implements Store.
func (f *File) Delete(ctx context.Context, key string) error {
	err := os.Remove(f.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete key %q: %w", key, err)
	}
	return nil
}

// Close implements Store.
func (f *File) Close() error { return nil }

func (f *File) path(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key))
}

func (f *File) writeFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write %q: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit %q: %w", path, err)
	}
	return nil
}

func (f *File) replayJournal() error {
	journal := filepath.Join(f.dir, journalName)
	data, err := os.ReadFile(journal)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}
	var values map[string][]byte
	if err := json.Unmarshal(data, &values); err != nil {
		// Torn journal write: none of the per-key applies happened yet.
		return os.Remove(journal)
	}
	for key, value := range values {
		if err := f.writeFile(f.path(key), value); err != nil {
			return fmt.Errorf("replay journal: %w", err)
		}
	}
	return os.Remove(journal)
}

var _ Store = (*File)(nil)
