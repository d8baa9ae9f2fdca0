// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package git

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotehq/dote/internal/item"
)

func writeItems(t *testing.T, repo *Repository, name string, items []*item.Item) {
	t.Helper()
	data, err := json.Marshal(items)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(repo.Path, name), data, 0644))
}

func readItems(t *testing.T, repo *Repository, name string) []*item.Item {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(repo.Path, name))
	require.NoError(t, err)
	var items []*item.Item
	require.NoError(t, json.Unmarshal(data, &items))
	return items
}

// setupDivergence builds a repo whose main branch and origin/main share a
// base commit but have each moved on: local retitled the shared item, remote
// retitled it differently, added a linked second item, and added a whole new
// store file.
func setupDivergence(t *testing.T) *Repository {
	t.Helper()

	repo, err := InitRepository(filepath.Join(t.TempDir(), "store"))
	require.NoError(t, err)

	writeItems(t, repo, "user-a.json", []*item.Item{
		{ID: 1, UUID: "x", Title: "base", Children: []int{}, Parents: []int{}},
	})
	require.NoError(t, repo.CommitAll("base"))
	base, err := repo.GetLastCommit()
	require.NoError(t, err)

	// remote side
	writeItems(t, repo, "user-a.json", []*item.Item{
		{ID: 1, UUID: "x", Title: "remote", Children: []int{2}, Parents: []int{}},
		{ID: 2, UUID: "y", Title: "remote-only", Children: []int{}, Parents: []int{1}},
	})
	writeItems(t, repo, "user-b.json", []*item.Item{
		{ID: 1, UUID: "z", Title: "new store", Children: []int{}, Parents: []int{}},
	})
	require.NoError(t, repo.CommitAll("remote change"))
	remote, err := repo.GetLastCommit()
	require.NoError(t, err)
	require.NoError(t, repo.repo.Storer.SetReference(
		plumbing.NewHashReference("refs/remotes/origin/main", remote.Hash)))

	// rewind to base and build the local side
	worktree, err := repo.repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, worktree.Reset(&git.ResetOptions{Commit: base.Hash, Mode: git.HardReset}))

	writeItems(t, repo, "user-a.json", []*item.Item{
		{ID: 1, UUID: "x", Title: "local", Children: []int{}, Parents: []int{}},
	})
	require.NoError(t, repo.CommitAll("local change"))

	return repo
}

func TestResolveDivergenceUnionsStoreFiles(t *testing.T) {
	repo := setupDivergence(t)

	conflictFiles, err := repo.resolveDivergence()
	require.NoError(t, err)
	assert.Equal(t, []string{"user-a.json"}, conflictFiles)

	merged := readItems(t, repo, "user-a.json")
	require.Len(t, merged, 2)

	// shared item keeps the local version, remote-only item is appended
	assert.Equal(t, "local", merged[0].Title)
	assert.Equal(t, "y", merged[1].UUID)
	assert.Equal(t, 2, merged[1].ID)

	// the link from the appended item survived and was mirrored
	assert.Equal(t, []int{1}, merged[1].Parents)
	assert.Contains(t, merged[0].Children, 2)
}

func TestResolveDivergenceAdoptsRemoteOnlyStore(t *testing.T) {
	repo := setupDivergence(t)

	_, err := repo.resolveDivergence()
	require.NoError(t, err)

	adopted := readItems(t, repo, "user-b.json")
	require.Len(t, adopted, 1)
	assert.Equal(t, "z", adopted[0].UUID)
}

func TestResolveDivergenceCommitsMerge(t *testing.T) {
	repo := setupDivergence(t)

	_, err := repo.resolveDivergence()
	require.NoError(t, err)

	head, err := repo.GetLastCommit()
	require.NoError(t, err)
	assert.Equal(t, 2, head.NumParents())
	assert.Contains(t, head.Message, "Merge divergent store files")

	clean, err := repo.IsClean()
	require.NoError(t, err)
	assert.True(t, clean)
}

func TestResolveDivergenceLastWriteWinsOnCorruptSide(t *testing.T) {
	repo, err := InitRepository(filepath.Join(t.TempDir(), "store"))
	require.NoError(t, err)

	writeItems(t, repo, "user-a.json", []*item.Item{
		{ID: 1, UUID: "x", Title: "base", Children: []int{}, Parents: []int{}},
	})
	require.NoError(t, repo.CommitAll("base"))
	base, err := repo.GetLastCommit()
	require.NoError(t, err)

	// remote side is newer but corrupt
	require.NoError(t, os.WriteFile(filepath.Join(repo.Path, "user-a.json"), []byte("{not json"), 0644))
	require.NoError(t, repo.CommitAll("remote corruption"))
	remote, err := repo.GetLastCommit()
	require.NoError(t, err)
	require.NoError(t, repo.repo.Storer.SetReference(
		plumbing.NewHashReference("refs/remotes/origin/main", remote.Hash)))

	worktree, err := repo.repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, worktree.Reset(&git.ResetOptions{Commit: base.Hash, Mode: git.HardReset}))

	writeItems(t, repo, "user-a.json", []*item.Item{
		{ID: 1, UUID: "x", Title: "local survives", Children: []int{}, Parents: []int{}},
	})
	require.NoError(t, repo.CommitAll("local change"))

	_, err = repo.resolveDivergence()
	require.NoError(t, err)

	merged := readItems(t, repo, "user-a.json")
	require.Len(t, merged, 1)
	assert.Equal(t, "local survives", merged[0].Title)
}
