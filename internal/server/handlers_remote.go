// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package server

import (
	"encoding/json"
	"net/http"

	"github.com/dotehq/dote/internal/crypto"
	"github.com/dotehq/dote/internal/database"
)

// remoteRequest is the body of POST /api/remote
type remoteRequest struct {
	RemoteURL string `json:"remote_url" validate:"required,url"`
	Branch    string `json:"branch"`
	PAT       string `json:"pat_token"`
}

// handleRegisterRemote registers or updates the git remote used to sync the
// store repository. The PAT is encrypted before it touches the database and
// is never returned.
func (s *Server) handleRegisterRemote(w http.ResponseWriter, r *http.Request) {
	var req remoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "malformed body")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		s.badRequest(w, "remote_url must be a valid URL")
		return
	}

	if s.stores.Repo() == nil {
		s.badRequest(w, "store versioning is disabled")
		return
	}

	branch := req.Branch
	if branch == "" {
		branch = s.cfg.Git.DefaultBranch
	}

	encrypted := ""
	if req.PAT != "" {
		enc, err := crypto.EncryptSecret(req.PAT, s.encryptionKey)
		if err != nil {
			s.writeError(w, err)
			return
		}
		encrypted = enc
	}

	remote, err := database.UpsertStoreRemote(s.db, s.stores.Dir(), req.RemoteURL, branch, encrypted)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if repo := s.stores.Repo(); !repo.HasRemote("origin") {
		if err := repo.AddRemote("origin", req.RemoteURL); err != nil {
			s.writeError(w, err)
			return
		}
	}

	s.writeJSON(w, http.StatusOK, remote)
}
