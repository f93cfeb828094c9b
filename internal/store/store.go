// Package store persists the engine's durable state as small
// human-readable JSON documents: the delivered-key set, the per-quantity
// hysteresis states, and the situation-report cache record. Every mutation
// is written through a full-file atomic replace, so a crash can lose at
// most the current run's additions, never corrupt what was already saved.
//
// The stores assume at most one concurrent invocation; concurrent runs
// would race on the files. That limitation is accepted for a cron-driven
// batch job and is not mitigated with locking.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/brandwacht/warnmelder/internal/domain"
)

// writeFileAtomic serializes v as indented JSON and replaces path in one
// rename, creating parent directories as needed.
func writeFileAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	_, werr := tmp.Write(data)
	// Sync before the rename so a power loss cannot publish an empty file.
	serr := tmp.Sync()
	cerr := tmp.Close()
	if werr != nil || serr != nil || cerr != nil {
		os.Remove(tmp.Name())
		if werr != nil {
			return fmt.Errorf("write state: %w", werr)
		}
		if serr != nil {
			return fmt.Errorf("sync state: %w", serr)
		}
		return fmt.Errorf("close state: %w", cerr)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}

// readFileJSON decodes path into v. A missing file is not an error; it
// reports found=false so callers start from an empty state.
func readFileJSON(path string, v any) (found bool, err error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read state: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode state %s: %w", filepath.Base(path), err)
	}
	return true, nil
}

// SeenStore is the durable set of delivered notification keys. Keys are
// never removed; unbounded growth is accepted for now.
//
// TODO: prune keys older than a calendar cutoff once entries carry a date.
type SeenStore struct {
	path string
	keys map[string]struct{}
}

// OpenSeen loads the delivered-key set from path. A missing file yields an
// empty set; a corrupt file is an error so a run never silently starts
// from scratch and redelivers everything.
func OpenSeen(path string) (*SeenStore, error) {
	var list []string
	if _, err := readFileJSON(path, &list); err != nil {
		return nil, err
	}
	keys := make(map[string]struct{}, len(list))
	for _, k := range list {
		keys[k] = struct{}{}
	}
	return &SeenStore{path: path, keys: keys}, nil
}

// Seen reports whether the key was already delivered, accepting both the
// current composite form and the legacy bare-identity form.
func (s *SeenStore) Seen(k domain.Key) bool {
	for _, variant := range k.Variants() {
		if _, ok := s.keys[variant]; ok {
			return true
		}
	}
	return false
}

// Commit adds the key in its current form and persists the whole set
// atomically before returning.
func (s *SeenStore) Commit(k domain.Key) error {
	s.keys[k.String()] = struct{}{}
	return s.save()
}

// Len returns the number of stored keys.
func (s *SeenStore) Len() int {
	return len(s.keys)
}

func (s *SeenStore) save() error {
	list := make([]string, 0, len(s.keys))
	for k := range s.keys {
		list = append(list, k)
	}
	sort.Strings(list)
	return writeFileAtomic(s.path, list)
}

// EdgeStore persists the hysteresis state per monitored quantity.
type EdgeStore struct {
	path   string
	states map[string]domain.EdgeState
}

// OpenEdges loads the hysteresis states from path. Missing file or
// missing entry both yield the initial armed state.
func OpenEdges(path string) (*EdgeStore, error) {
	states := map[string]domain.EdgeState{}
	if _, err := readFileJSON(path, &states); err != nil {
		return nil, err
	}
	return &EdgeStore{path: path, states: states}, nil
}

// Get returns the state for the named quantity, armed by default.
func (s *EdgeStore) Get(name string) domain.EdgeState {
	if st, ok := s.states[name]; ok {
		return st
	}
	return domain.NewEdgeState()
}

// Put stores the state and persists all states atomically.
func (s *EdgeStore) Put(name string, st domain.EdgeState) error {
	s.states[name] = st
	return writeFileAtomic(s.path, s.states)
}
