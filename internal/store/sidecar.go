// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package store

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// SidecarName is the bookkeeping file kept next to the store files
const SidecarName = "store.yaml"

// sidecarFile is the on-disk YAML shape of the sidecar
type sidecarFile struct {
	Stores map[string]int64 `yaml:"stores"`
}

// Sidecar tracks the last-write time (unix milliseconds) of each user's
// store file. Clients compare these ctimes to decide whether their cached
// items are still fresh.
type Sidecar struct {
	path string

	mu      sync.Mutex
	entries map[string]int64
}

// LoadSidecar reads the sidecar at path, returning an empty one if the
// file does not exist yet
func LoadSidecar(path string) (*Sidecar, error) {
	s := &Sidecar{
		path:    path,
		entries: make(map[string]int64),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read sidecar: %w", err)
	}

	var file sidecarFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse sidecar: %w", err)
	}
	if file.Stores != nil {
		s.entries = file.Stores
	}

	return s, nil
}

// CTime returns the recorded last-write time for a store, zero if unknown
func (s *Sidecar) CTime(storeUUID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[storeUUID]
}

// Touch records the current time as the last write for a store
func (s *Sidecar) Touch(storeUUID string) int64 {
	now := time.Now().UnixMilli()
	s.mu.Lock()
	s.entries[storeUUID] = now
	s.mu.Unlock()
	return now
}

// Set records an explicit last-write time for a store
func (s *Sidecar) Set(storeUUID string, ctime int64) {
	s.mu.Lock()
	s.entries[storeUUID] = ctime
	s.mu.Unlock()
}

// Delete removes the recorded entry for a store
func (s *Sidecar) Delete(storeUUID string) {
	s.mu.Lock()
	delete(s.entries, storeUUID)
	s.mu.Unlock()
}

// Entries returns a copy of all recorded ctimes
func (s *Sidecar) Entries() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

// Save writes the sidecar back to disk
func (s *Sidecar) Save() error {
	s.mu.Lock()
	file := sidecarFile{Stores: make(map[string]int64, len(s.entries))}
	for k, v := range s.entries {
		file.Stores[k] = v
	}
	s.mu.Unlock()

	data, err := yaml.Marshal(&file)
	if err != nil {
		return fmt.Errorf("failed to marshal sidecar: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write sidecar: %w", err)
	}
	return nil
}
