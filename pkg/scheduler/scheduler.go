// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package scheduler

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dotehq/dote/internal/crypto"
	"github.com/dotehq/dote/internal/database"
	"github.com/dotehq/dote/internal/git"
	"github.com/dotehq/dote/internal/locking"
)

// LockOwner identifies scheduler-held sync locks
const LockOwner = "scheduler"

// Scheduler handles periodic git sync of store repositories
type Scheduler struct {
	db            *gorm.DB
	locker        *locking.Locker
	logger        *zap.Logger
	interval      time.Duration
	encryptionKey []byte
	stopChan      chan bool
}

// NewScheduler creates a new scheduler
func NewScheduler(db *gorm.DB, logger *zap.Logger, intervalMinutes int, encryptionKey []byte) *Scheduler {
	return &Scheduler{
		db:            db,
		locker:        locking.NewLocker(db),
		logger:        logger,
		interval:      time.Duration(intervalMinutes) * time.Minute,
		encryptionKey: encryptionKey,
		stopChan:      make(chan bool),
	}
}

// Start begins the scheduler
func (s *Scheduler) Start() {
	ticker := time.NewTicker(s.interval)
	go func() {
		for {
			select {
			case <-ticker.C:
				s.syncAllStores()
			case <-s.stopChan:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.stopChan <- true
}

// syncAllStores syncs every store repository that has a remote with a PAT
func (s *Scheduler) syncAllStores() {
	var remotes []database.DoteStoreRemote
	if err := s.db.Where("pat_token_encrypted != ''").Find(&remotes).Error; err != nil {
		s.logger.Error("failed to fetch store remotes", zap.Error(err))
		return
	}

	for i := range remotes {
		remote := &remotes[i]
		if err := s.syncStore(remote); err != nil {
			s.logger.Warn("store sync failed",
				zap.String("store_path", remote.StorePath),
				zap.Error(err))
		}
	}
}

// syncStore syncs a single store repository under a sync lock so a
// concurrent manual sync cannot race the scheduler
func (s *Scheduler) syncStore(remote *database.DoteStoreRemote) error {
	pat, err := crypto.DecryptSecret(remote.PATTokenEncrypted, s.encryptionKey)
	if err != nil {
		return err
	}

	return s.locker.WithLock(remote.StorePath, LockOwner, func() error {
		repo, err := git.OpenRepository(remote.StorePath)
		if err != nil {
			return err
		}

		if !repo.HasRemote("origin") {
			if err := repo.AddRemote("origin", remote.RemoteURL); err != nil {
				return err
			}
		}

		status, err := repo.Sync(pat, true)
		if err != nil {
			return err
		}

		if status.SyncSuccessful {
			s.db.Model(remote).Update("last_sync_at", time.Now())
			s.logger.Info("store synced",
				zap.String("store_path", remote.StorePath),
				zap.Int("local_commits", status.LocalCommits),
				zap.Int("remote_commits", status.RemoteCommits))
		}
		return nil
	})
}
