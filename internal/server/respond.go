// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/dotehq/dote/internal/item"
	"github.com/dotehq/dote/internal/query"
)

// errorResponse is the JSON body of every error reply
type errorResponse struct {
	Message string `json:"message"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

// writeError maps domain errors onto HTTP statuses: unknown items are
// 404, malformed criteria and bad input are 400, everything else is 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var nf *item.NotFoundError
	if errors.As(err, &nf) {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Message: nf.Error()})
		return
	}

	var ic *query.InvalidCriterionError
	if errors.As(err, &ic) {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Message: ic.Error()})
		return
	}

	s.logger.Error("internal error", zap.Error(err))
	s.writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "internal server error"})
}

func (s *Server) badRequest(w http.ResponseWriter, message string) {
	s.writeJSON(w, http.StatusBadRequest, errorResponse{Message: message})
}
