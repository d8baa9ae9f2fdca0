// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package rebuild

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/dotehq/dote/internal/git"
	"github.com/dotehq/dote/internal/store"
)

// Options configures rebuild behavior
type Options struct {
	Force bool // Rewrite entries that already exist in the sidecar
}

// Result contains statistics from the rebuild operation
type Result struct {
	StoresProcessed int
	EntriesUpdated  int
	EntriesSkipped  int
	EntriesRemoved  int
	Errors          []string
}

// RebuildSidecar scans the store directory and rebuilds store.yaml from the
// item files on disk. Entries for missing files are dropped, entries for
// existing files are set to the file's modification time. Used as a recovery
// path when the sidecar is lost or drifts from the files it describes.
func RebuildSidecar(dir string, repo *git.Repository, logger *zap.Logger, opts Options) (*Result, error) {
	result := &Result{}

	sidecar, err := store.LoadSidecar(filepath.Join(dir, store.SidecarName))
	if err != nil {
		return nil, fmt.Errorf("failed to load sidecar: %w", err)
	}

	files, err := scanStoreDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan store directory: %w", err)
	}

	logger.Info("rebuilding sidecar",
		zap.String("dir", dir),
		zap.Int("store_files", len(files)))

	seen := make(map[string]bool, len(files))
	for _, path := range files {
		result.StoresProcessed++
		storeUUID := strings.TrimSuffix(filepath.Base(path), ".json")
		seen[storeUUID] = true

		info, err := os.Stat(path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", path, err))
			continue
		}

		if !opts.Force && sidecar.CTime(storeUUID) != 0 {
			result.EntriesSkipped++
			continue
		}

		sidecar.Set(storeUUID, info.ModTime().UnixMilli())
		result.EntriesUpdated++
	}

	// Drop entries whose store file no longer exists
	for storeUUID := range sidecar.Entries() {
		if !seen[storeUUID] {
			sidecar.Delete(storeUUID)
			result.EntriesRemoved++
		}
	}

	if err := sidecar.Save(); err != nil {
		return nil, fmt.Errorf("failed to save sidecar: %w", err)
	}

	if repo != nil {
		if dirty, err := repo.HasChanges(); err == nil && dirty {
			var formats git.CommitMessageFormats
			if err := repo.CommitAll(formats.RebuildSidecar()); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("commit: %v", err))
			}
		}
	}

	return result, nil
}

// scanStoreDir returns the store item files directly under dir
func scanStoreDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	return files, nil
}
