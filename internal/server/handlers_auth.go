// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dotehq/dote/internal/auth"
	"github.com/dotehq/dote/internal/database"
)

// credentialsRequest is the body of login and signup
type credentialsRequest struct {
	Username string `json:"username" validate:"required,min=1,max=64"`
	Password string `json:"password" validate:"required,min=1,max=256"`
	Email    string `json:"email" validate:"omitempty,email"`
}

// sessionResponse is returned by login, signup and the SAML ACS
type sessionResponse struct {
	Username string `json:"username"`
	UUID     string `json:"uuid"`
	CTime    int64  `json:"ctime"`
	Token    string `json:"token"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "username or password missing")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		s.badRequest(w, "username or password missing")
		return
	}

	user, token, err := s.passwordAuth.Authenticate(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.badRequest(w, "username or password incorrect")
			return
		}
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, sessionResponse{
		Username: user.Username,
		UUID:     user.UUID,
		CTime:    s.stores.CTime(user.UUID),
		Token:    token.AccessToken,
	})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "username or password missing")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		s.badRequest(w, "username or password missing")
		return
	}

	user, token, err := s.passwordAuth.Signup(req.Username, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			s.badRequest(w, "error signing up")
			return
		}
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, sessionResponse{
		Username: user.Username,
		UUID:     user.UUID,
		CTime:    s.stores.CTime(user.UUID),
		Token:    token.AccessToken,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.GetTokenFromContext(r.Context())
	if !ok {
		s.writeJSON(w, http.StatusUnauthorized, errorResponse{Message: "unauthorized"})
		return
	}

	if err := s.tokenManager.RevokeToken(token); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (s *Server) handleUserdata(w http.ResponseWriter, r *http.Request) {
	user, err := s.currentUser(r)
	if err != nil {
		s.writeJSON(w, http.StatusUnauthorized, errorResponse{Message: "unauthorized"})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"username": user.Username,
		"uuid":     user.UUID,
		"email":    user.Email,
		"ctime":    s.stores.CTime(user.UUID),
	})
}

func (s *Server) handleSAMLACS(w http.ResponseWriter, r *http.Request) {
	samlUser, err := s.samlAuth.HandleACS(w, r)
	if err != nil {
		s.badRequest(w, "SAML authentication failed")
		return
	}

	user, token, err := s.passwordAuth.FindOrCreateSSOUser(samlUser.Username, samlUser.Email)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, sessionResponse{
		Username: user.Username,
		UUID:     user.UUID,
		CTime:    s.stores.CTime(user.UUID),
		Token:    token.AccessToken,
	})
}

// currentUser resolves the authenticated user record for a request
func (s *Server) currentUser(r *http.Request) (*database.DoteUser, error) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		return nil, errors.New("no user in context")
	}

	var user database.DoteUser
	if err := s.db.First(&user, userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
