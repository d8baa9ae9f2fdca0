// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package config

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	SAML     SAMLConfig     `mapstructure:"saml"`
	Store    StoreConfig    `mapstructure:"store"`
	Git      GitConfig      `mapstructure:"git"`
	Security SecurityConfig `mapstructure:"security"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	TLS  struct {
		Enabled  bool   `mapstructure:"enabled"`
		CertFile string `mapstructure:"cert_file"`
		KeyFile  string `mapstructure:"key_file"`
	} `mapstructure:"tls"`
}

// DatabaseConfig holds system database connection settings
type DatabaseConfig struct {
	Type        string `mapstructure:"type"` // "sqlite" or "postgres"
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// AuthConfig holds authentication type configuration
type AuthConfig struct {
	Type string `mapstructure:"type"` // "password" or "saml"
}

// SAMLConfig holds SAML authentication configuration
type SAMLConfig struct {
	EntityID    string `mapstructure:"entity_id"`
	ACSURL      string `mapstructure:"acs_url"`
	MetadataURL string `mapstructure:"metadata_url"`
	IDPMetadata string `mapstructure:"idp_metadata"`
	Certificate string `mapstructure:"certificate"`
	PrivateKey  string `mapstructure:"private_key"`
	Provider    string `mapstructure:"provider"` // "duo" or "okta"
}

// StoreConfig holds item store settings
type StoreConfig struct {
	Dir        string `mapstructure:"dir"`        // directory holding per-user item files
	Versioning bool   `mapstructure:"versioning"` // commit every save to the store's git repo
}

// GitConfig holds git-related configuration for the store repository
type GitConfig struct {
	DefaultBranch string `mapstructure:"default_branch"`
	SyncInterval  int    `mapstructure:"sync_interval_minutes"`
}

// SecurityConfig holds security-related settings
type SecurityConfig struct {
	EncryptionKey string `mapstructure:"encryption_key"` // for remote PAT encryption
	TokenTTL      int    `mapstructure:"token_ttl_hours"`
}
