// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package git

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/dotehq/dote/internal/item"
	"github.com/dotehq/dote/internal/merge"
)

// resolveDivergence reconciles the local branch with origin after a pull was
// rejected for diverging. Store files present on both sides are merged with
// the union strategy so neither side's items are lost; a side that fails to
// parse falls back to last-write-wins on the commit timestamps. The result
// is committed with both heads as parents, making the follow-up push a
// fast-forward. Returns the paths that needed a content merge.
func (r *Repository) resolveDivergence() ([]string, error) {
	localRef, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get local HEAD: %w", err)
	}
	localCommit, err := r.repo.CommitObject(localRef.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to get local commit: %w", err)
	}

	remoteCommit, err := r.remoteHead()
	if err != nil {
		return nil, err
	}

	localTree, err := localCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get local tree: %w", err)
	}
	remoteTree, err := remoteCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get remote tree: %w", err)
	}

	var conflictFiles []string
	err = remoteTree.Files().ForEach(func(f *object.File) error {
		if !strings.HasSuffix(f.Name, ".json") {
			return nil
		}

		localFile, err := localTree.File(f.Name)
		if err == object.ErrFileNotFound {
			// remote-only store, adopt it wholesale
			contents, err := f.Contents()
			if err != nil {
				return err
			}
			return os.WriteFile(filepath.Join(r.Path, f.Name), []byte(contents), 0644)
		}
		if err != nil {
			return err
		}
		if localFile.Hash == f.Hash {
			return nil
		}

		merged, err := r.mergeStoreFile(localFile, f, localCommit, remoteCommit)
		if err != nil {
			return fmt.Errorf("failed to merge %s: %w", f.Name, err)
		}
		if err := os.WriteFile(filepath.Join(r.Path, f.Name), merged, 0644); err != nil {
			return err
		}
		conflictFiles = append(conflictFiles, f.Name)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := r.commitMerge(localRef.Hash(), remoteCommit.Hash); err != nil {
		return nil, err
	}
	return conflictFiles, nil
}

// mergeStoreFile merges one divergent store file. Both sides parsing as item
// arrays gets a uuid-keyed union; otherwise the newer commit's version wins.
func (r *Repository) mergeStoreFile(localFile, remoteFile *object.File, localCommit, remoteCommit *object.Commit) ([]byte, error) {
	localData, err := localFile.Contents()
	if err != nil {
		return nil, err
	}
	remoteData, err := remoteFile.Contents()
	if err != nil {
		return nil, err
	}

	ours := &merge.Snapshot{WrittenAt: localCommit.Committer.When}
	theirs := &merge.Snapshot{WrittenAt: remoteCommit.Committer.When}
	oursOK := json.Unmarshal([]byte(localData), &ours.Items) == nil
	theirsOK := json.Unmarshal([]byte(remoteData), &theirs.Items) == nil

	var strategy merge.Strategy = merge.NewUnionStrategy()
	if !oursOK || !theirsOK {
		// fall back to picking one side whole; a side that did not parse
		// gets the zero time so the parseable side always wins
		strategy = merge.NewLastWriteWinsStrategy()
		if !oursOK {
			ours.Items = []*item.Item{}
			ours.WrittenAt = time.Time{}
		}
		if !theirsOK {
			theirs.Items = []*item.Item{}
			theirs.WrittenAt = time.Time{}
		}
	}

	result, err := strategy.Merge(ours, theirs)
	if err != nil {
		return nil, err
	}
	return json.Marshal(result.Items)
}

// commitMerge commits the worktree with both heads as parents
func (r *Repository) commitMerge(local, remote plumbing.Hash) error {
	worktree, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	if _, err := worktree.Add("."); err != nil {
		return fmt.Errorf("failed to stage merge: %w", err)
	}

	opts := DefaultCommitOptions()
	_, err = worktree.Commit("chore: Merge divergent store files", &git.CommitOptions{
		Author: &object.Signature{
			Name:  opts.Author,
			Email: opts.Email,
			When:  time.Now(),
		},
		Parents: []plumbing.Hash{local, remote},
	})
	if err != nil {
		return fmt.Errorf("failed to commit merge: %w", err)
	}
	return nil
}

// remoteHead resolves origin's main (or master) branch commit
func (r *Repository) remoteHead() (*object.Commit, error) {
	for _, name := range []string{"refs/remotes/origin/main", "refs/remotes/origin/master"} {
		ref, err := r.repo.Reference(plumbing.ReferenceName(name), true)
		if err != nil {
			continue
		}
		commit, err := r.repo.CommitObject(ref.Hash())
		if err != nil {
			return nil, fmt.Errorf("failed to get remote commit: %w", err)
		}
		return commit, nil
	}
	return nil, fmt.Errorf("no remote tracking branch found")
}
