// Package state persists the local record of tracked instances.
// The state file is the single source of truth for what tila believes
// exists; the reconciler restores it after out-of-band changes.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/btree"
	"github.com/rs/zerolog"

	"github.com/yairfalse/tila/types"
)

const fileVersion = 1

// stateFile is the on-disk shape of the store
type stateFile struct {
	Version   int                    `json:"version"`
	Instances []types.InstanceRecord `json:"instances"`
}

// idEntry indexes a record position by provider instance id
type idEntry struct {
	id  string
	pos int
}

// Store owns the ordered collection of tracked instances. Listing
// preserves insertion order; lookups go through the indexes.
type Store struct {
	path    string
	records []types.InstanceRecord
	byName  map[string]int
	byID    *btree.BTreeG[idEntry]
	logger  zerolog.Logger
}

// Open loads the state file at path. A missing or unreadable file
// self-heals to an empty store, which is persisted immediately so the
// next run starts from valid state.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	s := &Store{path: path, logger: logger}
	s.reindex()

	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Str("path", path).Msg("state file unreadable, resetting to empty")
		}
		return s, s.Save()
	}

	var f stateFile
	if err := json.Unmarshal(data, &f); err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("state file corrupt, resetting to empty")
		return s, s.Save()
	}

	s.records = f.Instances
	s.reindex()
	return s, nil
}

// Path returns the location of the state file
func (s *Store) Path() string {
	return s.path
}

// Len returns the number of tracked records
func (s *Store) Len() int {
	return len(s.records)
}

// Records returns the tracked records in insertion order
func (s *Store) Records() []types.InstanceRecord {
	out := make([]types.InstanceRecord, len(s.records))
	copy(out, s.records)
	return out
}

// FindByName returns the first record with the given logical name
func (s *Store) FindByName(name string) (types.InstanceRecord, bool) {
	pos, ok := s.byName[name]
	if !ok {
		return types.InstanceRecord{}, false
	}
	return s.records[pos], true
}

// FindByID returns the record with the given provider instance id
func (s *Store) FindByID(instanceID string) (types.InstanceRecord, bool) {
	entry, ok := s.byID.Get(idEntry{id: instanceID})
	if !ok {
		return types.InstanceRecord{}, false
	}
	return s.records[entry.pos], true
}

// Upsert replaces the record with the same logical name, or appends a
// new one. The caller persists with Save afterward.
func (s *Store) Upsert(rec types.InstanceRecord) {
	if pos, ok := s.byName[rec.Name]; ok {
		s.records[pos] = rec
	} else {
		s.records = append(s.records, rec)
	}
	s.reindex()
}

// Remove drops the record with the given provider instance id
func (s *Store) Remove(instanceID string) bool {
	entry, ok := s.byID.Get(idEntry{id: instanceID})
	if !ok {
		return false
	}
	s.records = append(s.records[:entry.pos], s.records[entry.pos+1:]...)
	s.reindex()
	return true
}

// RemoveByName drops the first record with the given logical name.
// Needed for records that never received a provider id.
func (s *Store) RemoveByName(name string) bool {
	pos, ok := s.byName[name]
	if !ok {
		return false
	}
	s.records = append(s.records[:pos], s.records[pos+1:]...)
	s.reindex()
	return true
}

// SetStatus updates the observed status of the record with the given id
func (s *Store) SetStatus(instanceID string, status types.InstanceStatus) bool {
	entry, ok := s.byID.Get(idEntry{id: instanceID})
	if !ok {
		return false
	}
	s.records[entry.pos].Status = status
	return true
}

// Save atomically replaces the state file. The content is written to a
// temp file in the same directory and renamed over the target, so a
// crash mid-write cannot corrupt previously persisted state.
func (s *Store) Save() error {
	data, err := json.MarshalIndent(stateFile{Version: fileVersion, Instances: s.records}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".tila-state-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp state file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// reindex rebuilds the name and id indexes from the record slice.
// First match wins for duplicate names.
func (s *Store) reindex() {
	s.byName = make(map[string]int, len(s.records))
	s.byID = btree.NewG(2, func(a, b idEntry) bool { return a.id < b.id })
	for i, rec := range s.records {
		if _, ok := s.byName[rec.Name]; !ok {
			s.byName[rec.Name] = i
		}
		if rec.InstanceID != "" {
			s.byID.ReplaceOrInsert(idEntry{id: rec.InstanceID, pos: i})
		}
	}
}
