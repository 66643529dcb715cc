package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/psantana5/opsim/pkg/sim"
)

// FileStore writes each slot as an indented JSON file. The default slot uses
// the configured path; other slots get "<name>-<slot><ext>" next to it.
type FileStore struct {
	path string
}

// NewFileStore creates a file store rooted at path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) slotPath(slot string) string {
	if slot == DefaultSlot {
		return s.path
	}
	ext := filepath.Ext(s.path)
	return strings.TrimSuffix(s.path, ext) + "-" + slot + ext
}

// Save writes the snapshot atomically by renaming a temp file into place
func (s *FileStore) Save(ctx context.Context, slot string, state *sim.State) error {
	data, err := json.MarshalIndent(state, "", "    ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal state")
	}

	path := s.slotPath(slotOrDefault(slot))
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "failed to create save directory")
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "failed to replace %s", path)
	}
	return nil
}

// Load reads the snapshot for slot
func (s *FileStore) Load(ctx context.Context, slot string) (*sim.State, error) {
	slot = slotOrDefault(slot)
	data, err := os.ReadFile(s.slotPath(slot))
	if os.IsNotExist(err) {
		return nil, notFound(slot)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read save file")
	}
	return decodeState(data)
}

// List reports the default slot and every sibling slot file
func (s *FileStore) List(ctx context.Context) ([]SlotInfo, error) {
	ext := filepath.Ext(s.path)
	prefix := strings.TrimSuffix(s.path, ext) + "-"
	matches, err := filepath.Glob(prefix + "*" + ext)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list save files")
	}

	candidates := map[string]string{DefaultSlot: s.path}
	for _, m := range matches {
		slot := strings.TrimSuffix(strings.TrimPrefix(m, prefix), ext)
		if slot != "" && !strings.HasSuffix(m, ".tmp") {
			candidates[slot] = m
		}
	}

	out := make([]SlotInfo, 0, len(candidates))
	for slot, path := range candidates {
		fi, err := os.Stat(path)
		if err != nil {
			continue
		}
		info := SlotInfo{Slot: slot, SavedAt: fi.ModTime()}
		if data, err := os.ReadFile(path); err == nil {
			if state, err := decodeState(data); err == nil {
				info.Version, info.Time = state.Version, state.Time
			}
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out, nil
}

// Delete removes the slot's file
func (s *FileStore) Delete(ctx context.Context, slot string) error {
	slot = slotOrDefault(slot)
	err := os.Remove(s.slotPath(slot))
	if os.IsNotExist(err) {
		return notFound(slot)
	}
	return err
}

// HealthCheck verifies the save directory exists
func (s *FileStore) HealthCheck() error {
	_, err := os.Stat(filepath.Dir(s.path))
	return err
}

// Close is a no-op
func (s *FileStore) Close() error { return nil }
