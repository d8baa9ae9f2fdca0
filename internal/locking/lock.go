// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package locking

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// StoreLock guards a user's item store against concurrent sync operations
type StoreLock struct {
	StoreUUID string    `gorm:"primaryKey" json:"store_uuid"`
	Version   int64     `gorm:"not null;default:1" json:"version"`
	LockedBy  string    `gorm:"not null" json:"locked_by"`
	LockedAt  time.Time `gorm:"not null" json:"locked_at"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
}

// TableName specifies the table name for StoreLock
func (StoreLock) TableName() string {
	return "store_locks"
}

// MigrateLocks runs migrations for the store_locks table
func MigrateLocks(db *gorm.DB) error {
	return db.AutoMigrate(&StoreLock{})
}

// IsExpired returns true if the lock has expired
func (l *StoreLock) IsExpired() bool {
	return time.Now().After(l.ExpiresAt)
}

// ConflictError represents a version conflict during update
type ConflictError struct {
	StoreUUID       string
	ExpectedVersion int64
	ActualVersion   int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("version conflict on %s: expected %d, got %d",
		e.StoreUUID, e.ExpectedVersion, e.ActualVersion)
}

// LockError represents a locking failure
type LockError struct {
	StoreUUID string
	LockedBy  string
	Message   string
}

func (e *LockError) Error() string {
	return e.Message
}
