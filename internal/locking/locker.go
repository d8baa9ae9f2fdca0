// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package locking

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// DefaultLockTTL is the default time-to-live for locks
const DefaultLockTTL = 5 * time.Minute

// MaxRetries is the default number of retries for lock acquisition
const MaxRetries = 3

// RetryDelay is the delay between retries
const RetryDelay = 100 * time.Millisecond

// Locker manages expiring locks on item stores
type Locker struct {
	db      *gorm.DB
	lockTTL time.Duration
	retries int
}

// NewLocker creates a new locker instance
func NewLocker(db *gorm.DB) *Locker {
	return &Locker{
		db:      db,
		lockTTL: DefaultLockTTL,
		retries: MaxRetries,
	}
}

// WithTTL sets a custom TTL for locks
func (l *Locker) WithTTL(ttl time.Duration) *Locker {
	l.lockTTL = ttl
	return l
}

// WithRetries sets a custom number of retries
func (l *Locker) WithRetries(retries int) *Locker {
	l.retries = retries
	return l
}

// Acquire attempts to acquire a lock on a store.
// Returns true if lock acquired, false if already held by another owner.
func (l *Locker) Acquire(storeUUID, owner string) (bool, error) {
	now := time.Now()
	expiresAt := now.Add(l.lockTTL)

	var existing StoreLock
	err := l.db.Where("store_uuid = ?", storeUUID).First(&existing).Error

	if err != nil {
		if err != gorm.ErrRecordNotFound {
			return false, fmt.Errorf("failed to query lock: %w", err)
		}
		// No lock exists, create one
		lock := StoreLock{
			StoreUUID: storeUUID,
			Version:   1,
			LockedBy:  owner,
			LockedAt:  now,
			ExpiresAt: expiresAt,
		}
		if err := l.db.Create(&lock).Error; err != nil {
			return false, err
		}
		return true, nil
	}

	// Lock exists - check if expired or owned by us
	if existing.IsExpired() || existing.LockedBy == owner {
		// Take over the lock; the version guard loses races to concurrent takers
		result := l.db.Model(&StoreLock{}).
			Where("store_uuid = ? AND version = ?", storeUUID, existing.Version).
			Updates(map[string]interface{}{
				"locked_by":  owner,
				"locked_at":  now,
				"expires_at": expiresAt,
				"version":    existing.Version + 1,
			})

		if result.Error != nil {
			return false, result.Error
		}
		if result.RowsAffected == 0 {
			// Someone else bumped the version between our read and update
			actual := existing.Version
			var current StoreLock
			if err := l.db.Where("store_uuid = ?", storeUUID).First(&current).Error; err == nil {
				actual = current.Version
			}
			return false, &ConflictError{
				StoreUUID:       storeUUID,
				ExpectedVersion: existing.Version,
				ActualVersion:   actual,
			}
		}
		return true, nil
	}

	// Locked by someone else and not expired
	return false, nil
}

// Release releases a lock held by the specified owner
func (l *Locker) Release(storeUUID, owner string) error {
	result := l.db.Where("store_uuid = ? AND locked_by = ?", storeUUID, owner).
		Delete(&StoreLock{})
	return result.Error
}

// ReleaseAll releases all locks held by an owner
func (l *Locker) ReleaseAll(owner string) error {
	result := l.db.Where("locked_by = ?", owner).Delete(&StoreLock{})
	return result.Error
}

// IsLocked checks if a store is currently locked
func (l *Locker) IsLocked(storeUUID string) (bool, string, error) {
	var lock StoreLock
	err := l.db.Where("store_uuid = ?", storeUUID).First(&lock).Error

	if err != nil {
		return false, "", nil // Not locked
	}

	if lock.IsExpired() {
		return false, "", nil // Expired
	}

	return true, lock.LockedBy, nil
}

// Extend extends the TTL of an existing lock
func (l *Locker) Extend(storeUUID, owner string) error {
	expiresAt := time.Now().Add(l.lockTTL)

	result := l.db.Model(&StoreLock{}).
		Where("store_uuid = ? AND locked_by = ?", storeUUID, owner).
		Update("expires_at", expiresAt)

	if result.RowsAffected == 0 {
		return &LockError{
			StoreUUID: storeUUID,
			LockedBy:  owner,
			Message:   "lock not found or owned by different owner",
		}
	}

	return result.Error
}

// CleanupExpired removes all expired locks
func (l *Locker) CleanupExpired() (int64, error) {
	result := l.db.Where("expires_at < ?", time.Now()).Delete(&StoreLock{})
	return result.RowsAffected, result.Error
}

// WithLock executes a function while holding a lock.
// Automatically releases the lock after execution.
func (l *Locker) WithLock(storeUUID, owner string, fn func() error) error {
	acquired, err := l.Acquire(storeUUID, owner)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return &LockError{
			StoreUUID: storeUUID,
			Message:   "failed to acquire lock",
		}
	}

	defer l.Release(storeUUID, owner) //nolint:errcheck

	return fn()
}

// RetryWithBackoff retries a function with exponential backoff. Only lock
// contention (ConflictError, LockError) is retried; other errors abort.
func RetryWithBackoff(maxRetries int, initialDelay time.Duration, fn func() error) error {
	var lastErr error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		var conflict *ConflictError
		var locked *LockError
		if !errors.As(err, &conflict) && !errors.As(err, &locked) {
			return err
		}
		time.Sleep(delay)
		delay *= 2 // Exponential backoff
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
