// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dotehq/dote/internal/crypto"
	"github.com/dotehq/dote/internal/database"
	"github.com/dotehq/dote/internal/git"
	"github.com/dotehq/dote/internal/locking"
)

// syncLockOwner identifies locks held by a manual sync, so they are
// distinguishable from the scheduler's
const syncLockOwner = "manual-sync"

// NewSyncTool creates the dote_sync tool definition
func NewSyncTool() mcp.Tool {
	return mcp.NewTool("dote_sync",
		mcp.WithDescription("Manually trigger git push/pull sync of the item store"),
		mcp.WithBoolean("force", mcp.Description("Force last-write-wins for conflicts")),
	)
}

// SyncHandler handles the dote_sync tool
func SyncHandler(ctx *ToolContext, storeUUID string) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(c context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		force := request.GetBool("force", false)

		repo := ctx.Stores.Repo()
		if repo == nil {
			return mcp.NewToolResultError("store versioning is disabled"), nil
		}

		st, err := ctx.userStore(storeUUID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to load store: %v", err)), nil
		}

		var remote database.DoteStoreRemote
		if err := ctx.DB.Where("store_path = ?", ctx.Stores.Dir()).First(&remote).Error; err != nil {
			return mcp.NewToolResultError("no remote configured for this store"), nil
		}

		if remote.PATTokenEncrypted == "" {
			return mcp.NewToolResultError("No PAT token configured. Sync requires remote repository access."), nil
		}

		pat, err := crypto.DecryptSecret(remote.PATTokenEncrypted, ctx.EncryptionKey)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to decrypt PAT: %v", err)), nil
		}

		if !repo.HasRemote("origin") {
			if err := repo.AddRemote("origin", remote.RemoteURL); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("failed to add remote: %v", err)), nil
			}
		}

		// The scheduler syncs the same repository, so flush and sync under
		// the shared store lock
		locker := locking.NewLocker(ctx.DB)
		var status *git.SyncStatus
		err = locking.RetryWithBackoff(locking.MaxRetries, locking.RetryDelay, func() error {
			return locker.WithLock(ctx.Stores.Dir(), syncLockOwner, func() error {
				if err := ctx.Stores.Persist(st); err != nil {
					return fmt.Errorf("failed to persist store: %w", err)
				}
				s, err := repo.Sync(pat, force)
				if err != nil {
					return err
				}
				status = s
				return nil
			})
		})
		if err != nil {
			var locked *locking.LockError
			var conflict *locking.ConflictError
			if errors.As(err, &locked) || errors.As(err, &conflict) {
				return mcp.NewToolResultError("store is locked by another sync, try again shortly"), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("sync failed: %v", err)), nil
		}

		if status.SyncSuccessful {
			ctx.DB.Model(&remote).Update("last_sync_at", time.Now())
			// Pulled changes may have rewritten the store file
			if _, err := ctx.Stores.Reload(storeUUID); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("sync succeeded but reload failed: %v", err)), nil
			}
		}

		result := fmt.Sprintf("Sync completed\n\nStatus:\n- Last sync: %s\n- Successful: %v\n",
			status.LastSync.Format(time.RFC3339),
			status.SyncSuccessful)
		if status.HasConflicts {
			result += fmt.Sprintf("- Conflicts: %d (resolved: %v)\n", len(status.ConflictFiles), force)
		}
		if status.Error != "" {
			result += fmt.Sprintf("- Note: %s\n", status.Error)
		}

		return mcp.NewToolResultText(result), nil
	}
}
