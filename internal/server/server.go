// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dotehq/dote/internal/auth"
	"github.com/dotehq/dote/internal/config"
	"github.com/dotehq/dote/internal/store"
)

// Server serves the item API: auth endpoints plus the per-user data
// surface backed by the store manager.
type Server struct {
	cfg           *config.Config
	db            *gorm.DB
	logger        *zap.Logger
	stores        *store.Manager
	encryptionKey []byte

	tokenManager   *auth.TokenManager
	passwordAuth   *auth.PasswordAuthenticator
	samlAuth       *auth.SAMLAuthenticator
	authMiddleware *auth.Middleware
	validate       *validator.Validate

	httpServer *http.Server
}

// NewServer wires the API server together. The encryption key guards PAT
// tokens stored during remote registration.
func NewServer(cfg *config.Config, db *gorm.DB, stores *store.Manager, logger *zap.Logger, encryptionKey []byte) (*Server, error) {
	tokenManager := auth.NewTokenManager(db, cfg.Security.TokenTTL)

	s := &Server{
		cfg:            cfg,
		db:             db,
		logger:         logger,
		stores:         stores,
		encryptionKey:  encryptionKey,
		tokenManager:   tokenManager,
		passwordAuth:   auth.NewPasswordAuthenticator(db, tokenManager),
		authMiddleware: auth.NewMiddleware(tokenManager),
		validate:       validator.New(),
	}

	if cfg.Auth.Type == "saml" {
		samlAuth, err := auth.NewSAMLAuthenticator(&auth.SAMLConfig{
			EntityID:    cfg.SAML.EntityID,
			ACSURL:      cfg.SAML.ACSURL,
			MetadataURL: cfg.SAML.MetadataURL,
			IDPMetadata: cfg.SAML.IDPMetadata,
			Certificate: cfg.SAML.Certificate,
			PrivateKey:  cfg.SAML.PrivateKey,
			Provider:    cfg.SAML.Provider,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to set up SAML: %w", err)
		}
		s.samlAuth = samlAuth
	}

	return s, nil
}

// TokenManager returns the server's token manager
func (s *Server) TokenManager() *auth.TokenManager {
	return s.tokenManager
}

// Routes builds the HTTP handler
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(s.logger))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/signup", s.handleSignup)

		if s.samlAuth != nil {
			r.Get("/saml/login", s.samlAuth.InitiateLogin)
			r.Post("/saml/acs", s.handleSAMLACS)
			r.Get("/saml/metadata", s.samlAuth.ServeMetadata)
		}

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware.RequireAuth)

			r.Get("/logout", s.handleLogout)
			r.Get("/userdata", s.handleUserdata)
			r.Post("/remote", s.handleRegisterRemote)

			r.Route("/data", func(r chi.Router) {
				r.Get("/all", s.handleAll)
				r.Post("/query", s.handleQuery)
				r.Get("/range", s.handleRange)
				r.Get("/recursive", s.handleRecursive)
				r.Get("/uuid/{uuid}", s.handleGetByUUID)
				r.Post("/create", s.handleCreate)
				r.Put("/modify", s.handleModify)
				r.Delete("/uuid/{uuid}", s.handleDelete)
			})
		})
	})

	return r
}

// Start runs the HTTP server until the context is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		var err error
		if s.cfg.Server.TLS.Enabled {
			err = s.httpServer.ListenAndServeTLS(s.cfg.Server.TLS.CertFile, s.cfg.Server.TLS.KeyFile)
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown stops the server and waits for pending store saves
func (s *Server) Shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
	}
	s.stores.Flush()
	return nil
}
