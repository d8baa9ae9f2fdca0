// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dotehq/dote/internal/item"
	"github.com/dotehq/dote/internal/query"
	"github.com/dotehq/dote/internal/store"
)

// createRequest is the body of POST /api/data/create
type createRequest struct {
	Fields item.Fields `json:"fields"`
}

// modifyRequest is the body of PUT /api/data/modify
type modifyRequest struct {
	ID     int         `json:"id" validate:"required,min=1"`
	Fields item.Fields `json:"fields"`
}

// userStore resolves the authenticated user's item store
func (s *Server) userStore(r *http.Request) (*store.Store, error) {
	user, err := s.currentUser(r)
	if err != nil {
		return nil, err
	}
	return s.stores.GetStore(user.UUID)
}

func (s *Server) handleAll(w http.ResponseWriter, r *http.Request) {
	st, err := s.userStore(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"data": st.All()})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	st, err := s.userStore(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.badRequest(w, "unreadable body")
		return
	}

	criteria, err := query.ParseCriteria(body)
	if err != nil {
		s.writeError(w, err)
		return
	}

	result := st.Query(criteria)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"matches":  result.Matches,
		"adjacent": result.Adjacent,
	})
}

func (s *Server) handleRange(w http.ResponseWriter, r *http.Request) {
	st, err := s.userStore(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	first, err := strconv.Atoi(r.URL.Query().Get("first"))
	if err != nil {
		s.badRequest(w, "first must be an integer")
		return
	}
	last, err := strconv.Atoi(r.URL.Query().Get("last"))
	if err != nil {
		s.badRequest(w, "last must be an integer")
		return
	}

	items, ok := st.Range(first, last)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Message: "no items in range"})
		return
	}
	s.writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleRecursive(w http.ResponseWriter, r *http.Request) {
	st, err := s.userStore(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	q := r.URL.Query()

	var id int
	if uuid := q.Get("uuid"); uuid != "" {
		it, err := st.ByUUID(uuid)
		if err != nil {
			s.writeError(w, err)
			return
		}
		id = it.ID
	} else {
		id, err = strconv.Atoi(q.Get("id"))
		if err != nil {
			s.badRequest(w, "id must be an integer")
			return
		}
	}

	depth := 1
	if d := q.Get("depth"); d != "" {
		depth, err = strconv.Atoi(d)
		if err != nil {
			s.badRequest(w, "depth must be an integer")
			return
		}
	}

	s.writeJSON(w, http.StatusOK, st.Recursive(id, depth))
}

func (s *Server) handleGetByUUID(w http.ResponseWriter, r *http.Request) {
	st, err := s.userStore(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	it, err := st.ByUUID(chi.URLParam(r, "uuid"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, it)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	st, err := s.userStore(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "malformed body")
		return
	}
	if req.Fields.Type != nil && !item.IsValidType(*req.Fields.Type) {
		s.badRequest(w, "unknown item type")
		return
	}

	created, err := st.Create(req.Fields)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, created)
}

func (s *Server) handleModify(w http.ResponseWriter, r *http.Request) {
	st, err := s.userStore(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req modifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "malformed body")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		s.badRequest(w, "id is required")
		return
	}
	if req.Fields.Type != nil && !item.IsValidType(*req.Fields.Type) {
		s.badRequest(w, "unknown item type")
		return
	}

	modified, err := st.Modify(req.ID, req.Fields)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, modified)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	st, err := s.userStore(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	it, err := st.ByUUID(chi.URLParam(r, "uuid"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	if err := st.Remove(it.ID); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
