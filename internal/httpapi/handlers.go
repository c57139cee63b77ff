package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dshills/lfind/internal/apperrors"
	"github.com/dshills/lfind/internal/indexer"
	"github.com/dshills/lfind/internal/pipeline"
	"github.com/dshills/lfind/pkg/types"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes = 1 << 20

// errorResponse is the body of every non-2xx response
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var req types.IndexRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.app.IndexDirectory(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req types.SearchRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.app.SearchFiles(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.app.Status(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleTree serves GET /tree?directory=/abs&ext=pdf&ext=md&max_entries=50&include_empty_dirs=true
func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := types.TreeRequest{Directory: q.Get("directory")}

	for _, ext := range q["ext"] {
		for _, e := range strings.Split(ext, ",") {
			if e = strings.TrimSpace(e); e != "" {
				req.Extensions = append(req.Extensions, e)
			}
		}
	}
	if v := q.Get("max_entries"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "max_entries must be an integer", Kind: "contract"})
			return
		}
		req.MaxEntries = n
	}
	if v := q.Get("include_empty_dirs"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "include_empty_dirs must be a boolean", Kind: "contract"})
			return
		}
		req.IncludeEmptyDirs = &b
	}

	res, err := s.app.TreeFor(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleHistory serves GET /history, optionally ?session=<id>
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	entries := s.app.Pipeline.History()
	if session := r.URL.Query().Get("session"); session != "" {
		filtered := make([]pipeline.HistoryEntry, 0)
		for _, e := range entries {
			if e.SessionID == session {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	s.app.Pipeline.ClearHistory()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error(), Kind: "contract"})
		return false
	}
	return true
}

// statusFor maps an application error onto an HTTP status
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, indexer.ErrSyncInProgress):
		return http.StatusConflict, "busy"
	case apperrors.IsContract(err):
		return http.StatusBadRequest, "contract"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case apperrors.IsStore(err):
		return http.StatusInternalServerError, "store"
	default:
		return http.StatusInternalServerError, ""
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
