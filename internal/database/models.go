// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package database

import (
	"time"

	"gorm.io/gorm"
)

// DoteUser represents a user in the system. UUID names the user's item file
// in the store directory; CTime is the last-modification timestamp (seconds)
// that clients use for cache invalidation.
type DoteUser struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	UUID         string         `gorm:"uniqueIndex;not null" json:"uuid"`
	Username     string         `gorm:"uniqueIndex;not null" json:"username"`
	Email        string         `json:"email"`
	PasswordHash string         `gorm:"type:text" json:"-"` // never expose in JSON
	CTime        int64          `json:"ctime"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// TableName specifies the table name for DoteUser
func (DoteUser) TableName() string {
	return "dote_users"
}

// DoteAuthToken represents authentication tokens for users
type DoteAuthToken struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"index;not null" json:"user_id"`
	AccessToken  string    `gorm:"type:text;not null" json:"access_token"`
	RefreshToken string    `gorm:"type:text" json:"refresh_token"`
	ExpiresAt    time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Foreign key relationship
	User DoteUser `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for DoteAuthToken
func (DoteAuthToken) TableName() string {
	return "dote_auth_tokens"
}

// DoteStoreRemote registers a remote for the store repository, so the
// scheduler can push the versioned item files off-box. The PAT is stored
// encrypted and never leaves the server.
type DoteStoreRemote struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	StorePath         string    `gorm:"uniqueIndex;not null" json:"store_path"`
	RemoteURL         string    `gorm:"not null" json:"remote_url"`
	Branch            string    `json:"branch"`
	PATTokenEncrypted string    `gorm:"type:text" json:"-"` // never expose in JSON
	LastSyncAt        time.Time `json:"last_sync_at"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TableName specifies the table name for DoteStoreRemote
func (DoteStoreRemote) TableName() string {
	return "dote_store_remotes"
}
