// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"os/user"
	"strconv"
	"syscall"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dotehq/dote/internal/auth"
	"github.com/dotehq/dote/internal/config"
	"github.com/dotehq/dote/internal/crypto"
	"github.com/dotehq/dote/internal/database"
	"github.com/dotehq/dote/internal/locking"
	"github.com/dotehq/dote/internal/mcp"
	"github.com/dotehq/dote/internal/rebuild"
	"github.com/dotehq/dote/internal/server"
	"github.com/dotehq/dote/internal/store"
	"github.com/dotehq/dote/pkg/scheduler"
)

// Version is set at build time via ldflags
var Version string

func main() {
	stdioMode := flag.Bool("stdio", false, "Run as an MCP server over stdin/stdout (default: HTTP)")
	rebuildSidecar := flag.Bool("rebuild-sidecar", false, "Rebuild store.yaml from the store files and exit")
	forceRebuild := flag.Bool("force", false, "Overwrite existing sidecar entries (requires --rebuild-sidecar)")
	configPath := flag.String("config", "", "Path to config file")
	dbType := flag.String("db-type", "", "Database type (sqlite or postgres)")
	dbPath := flag.String("db-path", "", "Database path (for sqlite)")
	dbDSN := flag.String("db-dsn", "", "Database DSN (for postgres)")
	storeDir := flag.String("store-dir", "", "Directory holding per-user item files")
	port := flag.Int("port", 0, "Server port (HTTP mode only)")
	mcpUser := flag.String("user", "", "Username to serve in stdio mode (default: system user)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Dote Server\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Modes:\n")
		fmt.Fprintf(os.Stderr, "  %s                        Start HTTP server\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --stdio                Start MCP server (stdio)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --rebuild-sidecar      Rebuild the store sidecar and exit\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  DOTE_DB_TYPE         Database type (sqlite or postgres)\n")
		fmt.Fprintf(os.Stderr, "  DOTE_DB_PATH         SQLite database path\n")
		fmt.Fprintf(os.Stderr, "  DOTE_DB_DSN          PostgreSQL connection string\n")
		fmt.Fprintf(os.Stderr, "  DOTE_PORT            Server port (HTTP mode only)\n")
		fmt.Fprintf(os.Stderr, "  DOTE_STORE_DIR       Directory holding per-user item files\n")
		fmt.Fprintf(os.Stderr, "  DOTE_ENCRYPTION_KEY  Encryption key for remote PAT tokens\n")
		fmt.Fprintf(os.Stderr, "  DOTE_USER            Username for stdio mode\n")
	}

	flag.Parse()

	if *forceRebuild && !*rebuildSidecar {
		fmt.Fprintln(os.Stderr, "ERROR: --force can only be used with --rebuild-sidecar")
		os.Exit(1)
	}
	if *rebuildSidecar && *stdioMode {
		fmt.Fprintln(os.Stderr, "ERROR: --rebuild-sidecar and --stdio cannot be used together")
		os.Exit(1)
	}

	// Stdout is reserved for MCP JSON-RPC in stdio mode, so all logging
	// goes to stderr in every mode.
	logger, err := newLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg := loadConfig(logger, *configPath)
	applyEnvOverrides(cfg, logger)
	applyCLIOverrides(cfg, *dbType, *dbPath, *dbDSN, *storeDir, *port)

	db, err := database.Connect(&database.Config{
		Type:        cfg.Database.Type,
		SQLitePath:  cfg.Database.SQLitePath,
		PostgresDSN: cfg.Database.PostgresDSN,
		LogLevel:    gormlogger.Silent,
	})
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	if err := database.CreateIndexes(db); err != nil {
		logger.Warn("failed to create indexes", zap.Error(err))
	}
	if err := locking.MigrateLocks(db); err != nil {
		logger.Fatal("failed to migrate lock table", zap.Error(err))
	}

	stores, err := store.NewManager(cfg.Store.Dir, cfg.Store.Versioning, logger)
	if err != nil {
		logger.Fatal("failed to open item store", zap.Error(err))
	}

	if *rebuildSidecar {
		runRebuildMode(stores, logger, *forceRebuild)
		return
	}

	encryptionKey := getOrGenerateEncryptionKey(cfg, logger)

	if *stdioMode {
		runStdioMode(cfg, db, stores, logger, encryptionKey, *mcpUser)
		return
	}

	runHTTPMode(cfg, db, stores, logger, encryptionKey)
}

func newLogger() (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	return zcfg.Build()
}

func loadConfig(logger *zap.Logger, path string) *config.Config {
	if path != "" {
		cfg, err := config.LoadFromPath(path)
		if err != nil {
			logger.Warn("failed to load config, using defaults",
				zap.String("path", path), zap.Error(err))
			return config.DefaultConfig()
		}
		logger.Info("loaded configuration", zap.String("path", path))
		return cfg
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Warn("failed to load default config, using built-in defaults", zap.Error(err))
		return config.DefaultConfig()
	}
	return cfg
}

func applyEnvOverrides(cfg *config.Config, logger *zap.Logger) {
	if v := os.Getenv("DOTE_DB_TYPE"); v != "" {
		cfg.Database.Type = v
	}
	if v := os.Getenv("DOTE_DB_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("DOTE_DB_DSN"); v != "" {
		cfg.Database.PostgresDSN = v
	}
	if v := os.Getenv("DOTE_STORE_DIR"); v != "" {
		cfg.Store.Dir = v
	}
	if v := os.Getenv("DOTE_ENCRYPTION_KEY"); v != "" {
		cfg.Security.EncryptionKey = v
	}
	if v := os.Getenv("DOTE_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		} else {
			logger.Warn("ignoring invalid DOTE_PORT", zap.String("value", v))
		}
	}
}

func applyCLIOverrides(cfg *config.Config, dbType, dbPath, dbDSN, storeDir string, port int) {
	if dbType != "" {
		cfg.Database.Type = dbType
	}
	if dbPath != "" {
		cfg.Database.SQLitePath = dbPath
	}
	if dbDSN != "" {
		cfg.Database.PostgresDSN = dbDSN
	}
	if storeDir != "" {
		cfg.Store.Dir = storeDir
	}
	if port > 0 {
		cfg.Server.Port = port
	}
}

func getOrGenerateEncryptionKey(cfg *config.Config, logger *zap.Logger) []byte {
	if cfg.Security.EncryptionKey != "" {
		key, err := crypto.StringToKey(cfg.Security.EncryptionKey)
		if err != nil {
			logger.Fatal("invalid encryption key in configuration", zap.Error(err))
		}
		return key
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		logger.Fatal("failed to generate encryption key", zap.Error(err))
	}
	logger.Warn("no encryption key configured, generated a new one",
		zap.String("key", crypto.KeyToString(key)))
	logger.Warn("save this key (config security.encryption_key or DOTE_ENCRYPTION_KEY) to persist it across restarts")
	return key
}

// runRebuildMode regenerates the sidecar and exits
func runRebuildMode(stores *store.Manager, logger *zap.Logger, force bool) {
	result, err := rebuild.RebuildSidecar(stores.Dir(), stores.Repo(), logger, rebuild.Options{Force: force})
	if err != nil {
		logger.Fatal("sidecar rebuild failed", zap.Error(err))
	}

	logger.Info("sidecar rebuild completed",
		zap.Int("stores_processed", result.StoresProcessed),
		zap.Int("entries_updated", result.EntriesUpdated),
		zap.Int("entries_skipped", result.EntriesSkipped),
		zap.Int("entries_removed", result.EntriesRemoved))
	for _, e := range result.Errors {
		logger.Warn("rebuild warning", zap.String("detail", e))
	}
}

// runStdioMode serves MCP over stdin/stdout for a single user's store
func runStdioMode(cfg *config.Config, db *gorm.DB, stores *store.Manager, logger *zap.Logger, encryptionKey []byte, username string) {
	if username == "" {
		username = os.Getenv("DOTE_USER")
	}
	if username == "" {
		current, err := user.Current()
		if err != nil {
			logger.Fatal("cannot determine user for stdio mode", zap.Error(err))
		}
		username = current.Username
	}

	tokenManager := auth.NewTokenManager(db, cfg.Security.TokenTTL)
	passwordAuth := auth.NewPasswordAuthenticator(db, tokenManager)

	// Provision the user on first run so the MCP session always has a store
	dbUser, _, err := passwordAuth.FindOrCreateSSOUser(username, "")
	if err != nil {
		logger.Fatal("failed to resolve user", zap.String("username", username), zap.Error(err))
	}

	logger.Info("serving MCP session",
		zap.String("username", dbUser.Username),
		zap.String("store", dbUser.UUID))

	mcpServer, err := mcp.NewServer(cfg, db, stores, encryptionKey)
	if err != nil {
		logger.Fatal("failed to create MCP server", zap.Error(err))
	}
	if err := mcpServer.RegisterToolsForUser(dbUser.UUID); err != nil {
		logger.Fatal("failed to register tools", zap.Error(err))
	}

	if err := mcpServer.ServeStdio(); err != nil {
		logger.Fatal("MCP server error", zap.Error(err))
	}
	stores.Flush()
}

// runHTTPMode serves the HTTP API with the background sync scheduler
func runHTTPMode(cfg *config.Config, db *gorm.DB, stores *store.Manager, logger *zap.Logger, encryptionKey []byte) {
	srv, err := server.NewServer(cfg, db, stores, logger, encryptionKey)
	if err != nil {
		logger.Fatal("failed to create server", zap.Error(err))
	}

	if cfg.Git.SyncInterval > 0 {
		sched := scheduler.NewScheduler(db, logger, cfg.Git.SyncInterval, encryptionKey)
		sched.Start()
		defer sched.Stop()
		logger.Info("background sync scheduler started",
			zap.Int("interval_minutes", cfg.Git.SyncInterval))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}
