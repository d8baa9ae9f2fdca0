// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package database

import (
	"errors"

	"gorm.io/gorm"
)

// UpsertStoreRemote creates or updates the remote row for a store directory.
// An empty encrypted PAT leaves any previously stored token in place, so a
// remote can be re-registered without re-entering the token.
func UpsertStoreRemote(db *gorm.DB, storePath, url, branch, encryptedPAT string) (*DoteStoreRemote, error) {
	var remote DoteStoreRemote
	err := db.Where("store_path = ?", storePath).First(&remote).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		remote = DoteStoreRemote{
			StorePath:         storePath,
			RemoteURL:         url,
			Branch:            branch,
			PATTokenEncrypted: encryptedPAT,
		}
		if err := db.Create(&remote).Error; err != nil {
			return nil, err
		}
		return &remote, nil
	}

	remote.RemoteURL = url
	remote.Branch = branch
	if encryptedPAT != "" {
		remote.PATTokenEncrypted = encryptedPAT
	}
	if err := db.Save(&remote).Error; err != nil {
		return nil, err
	}
	return &remote, nil
}
