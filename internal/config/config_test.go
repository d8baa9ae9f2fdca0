// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFromPath(t *testing.T) {
	path := writeConfig(t, `{
		"server": {"host": "0.0.0.0", "port": 9090},
		"database": {"type": "sqlite", "sqlite_path": "/tmp/test.db"},
		"store": {"dir": "/tmp/store", "versioning": false}
	}`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/tmp/test.db", cfg.Database.SQLitePath)
	assert.Equal(t, "/tmp/store", cfg.Store.Dir)
	assert.False(t, cfg.Store.Versioning)
}

func TestLoadFromPathDefaults(t *testing.T) {
	path := writeConfig(t, `{}`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "password", cfg.Auth.Type)
	assert.True(t, cfg.Store.Versioning)
	assert.Equal(t, "main", cfg.Git.DefaultBranch)
	assert.Equal(t, 60, cfg.Git.SyncInterval)
	assert.Equal(t, 24, cfg.Security.TokenTTL)
}

func TestLoadFromPathMissingFile(t *testing.T) {
	_, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestValidateRejectsBadAuthType(t *testing.T) {
	path := writeConfig(t, `{"auth": {"type": "kerberos"}}`)
	_, err := LoadFromPath(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.type")
}

func TestValidateRejectsBadDatabaseType(t *testing.T) {
	path := writeConfig(t, `{"database": {"type": "mongodb"}}`)
	_, err := LoadFromPath(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.type")
}

func TestValidateRequiresPostgresDSN(t *testing.T) {
	path := writeConfig(t, `{"database": {"type": "postgres"}}`)
	_, err := LoadFromPath(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres_dsn")
}

func TestValidateRejectsBadPort(t *testing.T) {
	path := writeConfig(t, `{"server": {"port": 99999}}`)
	_, err := LoadFromPath(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}

func TestValidateSAMLRequiresMetadata(t *testing.T) {
	path := writeConfig(t, `{
		"auth": {"type": "saml"},
		"saml": {"entity_id": "dote", "acs_url": "https://dote.example/saml/acs"}
	}`)
	_, err := LoadFromPath(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "idp_metadata")
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, validate(cfg))
	assert.Equal(t, "password", cfg.Auth.Type)
	assert.NotEmpty(t, cfg.Store.Dir)
}
