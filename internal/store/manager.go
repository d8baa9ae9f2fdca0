// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	dotegit "github.com/dotehq/dote/internal/git"
	"github.com/dotehq/dote/internal/item"
)

// Manager owns the store directory: it hands out per-user stores,
// persists them as {dir}/{uuid}.json, keeps the ctime sidecar current
// and, when versioning is enabled, commits every save to the store's
// git repository.
type Manager struct {
	dir        string
	versioning bool
	logger     *zap.Logger
	repo       *dotegit.Repository
	sidecar    *Sidecar

	stores    map[string]*Store
	storesMux sync.RWMutex

	saveWG sync.WaitGroup
}

// NewManager creates a manager rooted at dir
func NewManager(dir string, versioning bool, logger *zap.Logger) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	m := &Manager{
		dir:        dir,
		versioning: versioning,
		logger:     logger,
		stores:     make(map[string]*Store),
	}

	if versioning {
		repo, err := dotegit.OpenOrInit(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to open store repository: %w", err)
		}
		m.repo = repo
	}

	sidecar, err := LoadSidecar(filepath.Join(dir, SidecarName))
	if err != nil {
		return nil, err
	}
	m.sidecar = sidecar

	return m, nil
}

// Dir returns the store directory
func (m *Manager) Dir() string {
	return m.dir
}

// Repo returns the store's git repository, nil when versioning is off
func (m *Manager) Repo() *dotegit.Repository {
	return m.repo
}

// Sidecar returns the ctime sidecar
func (m *Manager) Sidecar() *Sidecar {
	return m.sidecar
}

// CTime returns the last persisted write time for a store in unix milliseconds
func (m *Manager) CTime(storeUUID string) int64 {
	return m.sidecar.CTime(storeUUID)
}

// StorePath returns the file path backing a store
func (m *Manager) StorePath(storeUUID string) string {
	return filepath.Join(m.dir, storeUUID+".json")
}

// GetStore opens or returns the cached store for a user
func (m *Manager) GetStore(storeUUID string) (*Store, error) {
	// Check cache first
	m.storesMux.RLock()
	if s, ok := m.stores[storeUUID]; ok {
		m.storesMux.RUnlock()
		return s, nil
	}
	m.storesMux.RUnlock()

	m.storesMux.Lock()
	defer m.storesMux.Unlock()

	// Double-check after acquiring write lock
	if s, ok := m.stores[storeUUID]; ok {
		return s, nil
	}

	s, err := m.loadStore(storeUUID)
	if err != nil {
		return nil, err
	}

	m.stores[storeUUID] = s
	return s, nil
}

// Reload discards the cached store and reads it back from disk, used
// after a sync rewrites the store file
func (m *Manager) Reload(storeUUID string) (*Store, error) {
	m.storesMux.Lock()
	defer m.storesMux.Unlock()

	s, err := m.loadStore(storeUUID)
	if err != nil {
		return nil, err
	}
	m.stores[storeUUID] = s
	return s, nil
}

// loadStore reads a store file. A missing file yields an empty store; a
// corrupt one is logged and also yields an empty store so a damaged file
// never locks a user out.
func (m *Manager) loadStore(storeUUID string) (*Store, error) {
	s := &Store{
		uuid: storeUUID,
		mgr:  m,
		coll: item.NewCollection(nil),
	}

	path := m.StorePath(storeUUID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}

	var items []*item.Item
	if err := json.Unmarshal(data, &items); err != nil {
		m.logger.Warn("store file is corrupt, starting empty",
			zap.String("store", storeUUID),
			zap.Error(err))
		return s, nil
	}

	s.coll = item.NewCollection(items)
	return s, nil
}

// scheduleSave persists a store in the background with the standard save
// commit message
func (m *Manager) scheduleSave(s *Store) {
	var formats dotegit.CommitMessageFormats
	m.schedulePersist(s, formats.SaveStore(s.uuid))
}

// scheduleRemoval persists a store after items were deleted, so the commit
// names the removal
func (m *Manager) scheduleRemoval(s *Store, count int) {
	var formats dotegit.CommitMessageFormats
	m.schedulePersist(s, formats.RemoveItems(s.uuid, count))
}

// schedulePersist writes a store in the background. Failures are logged,
// never surfaced to the mutation that triggered them.
func (m *Manager) schedulePersist(s *Store, commitMsg string) {
	items := s.snapshot()

	m.saveWG.Add(1)
	go func() {
		defer m.saveWG.Done()
		if err := m.persist(s.uuid, items, commitMsg); err != nil {
			m.logger.Error("failed to persist store",
				zap.String("store", s.uuid),
				zap.Error(err))
		}
	}()
}

// Flush waits for all in-flight saves to finish
func (m *Manager) Flush() {
	m.saveWG.Wait()
}

// persist writes the store file, updates the sidecar and commits the save
func (m *Manager) persist(storeUUID string, items []*item.Item, commitMsg string) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}

	path := m.StorePath(storeUUID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace store file: %w", err)
	}

	m.sidecar.Touch(storeUUID)
	if err := m.sidecar.Save(); err != nil {
		return err
	}

	if m.repo != nil {
		if err := m.repo.CommitAll(commitMsg); err != nil {
			return fmt.Errorf("failed to commit store: %w", err)
		}
	}

	return nil
}

// Persist synchronously writes a store's current contents, used by sync
// paths that need the file on disk before pushing
func (m *Manager) Persist(s *Store) error {
	var formats dotegit.CommitMessageFormats
	return m.persist(s.uuid, s.snapshot(), formats.SaveStore(s.uuid))
}
