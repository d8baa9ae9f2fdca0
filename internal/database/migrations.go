// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package database

import (
	"strings"

	"gorm.io/gorm"
)

// Models returns all models for the system database (users, auth, remotes).
// Item data never lives here: it is persisted as per-user JSON files in the
// store directory.
func Models() []interface{} {
	return []interface{}{
		&DoteUser{},
		&DoteAuthToken{},
		&DoteStoreRemote{},
	}
}

// Migrate runs migrations for the system database
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

// CreateIndexes creates indexes for the system database
func CreateIndexes(db *gorm.DB) error {
	indexes := []struct {
		table   string
		columns []string
		name    string
	}{
		{
			table:   "dote_auth_tokens",
			columns: []string{"user_id", "expires_at"},
			name:    "idx_tokens_user_expires",
		},
	}

	for _, idx := range indexes {
		hasIndex := db.Migrator().HasIndex(idx.table, idx.name)
		if !hasIndex {
			sql := "CREATE INDEX IF NOT EXISTS " + idx.name + " ON " + idx.table + " (" + joinColumns(idx.columns) + ")"
			if err := db.Exec(sql).Error; err != nil {
				return err
			}
		}
	}

	return nil
}

// joinColumns joins column names for index creation
func joinColumns(columns []string) string {
	return strings.Join(columns, ", ")
}
