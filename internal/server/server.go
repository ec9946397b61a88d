// Package server exposes the ticker service over HTTP. It is a thin
// transport: parsing, status codes, and JSON shaping live here, all
// behavior lives in the service.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/user/tickerd/internal/ticker"
	"github.com/user/tickerd/internal/types"
)

// Server is a lightweight HTTP handler over the ticker service.
type Server struct {
	svc *ticker.Service
	mux *http.ServeMux
}

// NewServer creates a Server routing all endpoints to the given service.
func NewServer(svc *ticker.Service) *Server {
	s := &Server{
		svc: svc,
		mux: http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /feed", s.handleFeed)
	s.mux.HandleFunc("GET /feed/{category}", s.handleCategoryFeed)
	s.mux.HandleFunc("POST /refresh", s.handleRefresh)
	s.mux.HandleFunc("POST /items", s.handleCreateItem)
	s.mux.HandleFunc("GET /items/{id}", s.handleGetItem)
	s.mux.HandleFunc("PATCH /items/{id}", s.handleUpdateItem)
	s.mux.HandleFunc("POST /engagement", s.handleEngagement)
	s.mux.HandleFunc("GET /preferences", s.handleGetPreferences)
	s.mux.HandleFunc("PUT /preferences", s.handlePutPreferences)
	s.mux.HandleFunc("GET /stats", s.handleStats)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// parseFeedFilter builds a feed filter from query parameters. Validation
// of the parsed values happens in the composer.
func parseFeedFilter(r *http.Request) (types.FeedFilter, error) {
	q := r.URL.Query()
	var filter types.FeedFilter

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return filter, &types.ValidationError{Field: "limit", Reason: "must be an integer"}
		}
		filter.Limit = n
	}
	if v := q.Get("categories"); v != "" {
		for _, c := range strings.Split(v, ",") {
			filter.Categories = append(filter.Categories, types.Category(strings.TrimSpace(c)))
		}
	}
	if v := q.Get("priority_filter"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return filter, &types.ValidationError{Field: "priority_filter", Reason: "must be an integer"}
		}
		filter.PriorityThreshold = n
	}
	if v := q.Get("include_expired"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filter, &types.ValidationError{Field: "include_expired", Reason: "must be a boolean"}
		}
		filter.IncludeExpired = b
	}
	filter.SortBy = types.SortOrder(q.Get("sort_by"))
	return filter, nil
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFeedFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.serveFeed(w, r, filter)
}

func (s *Server) handleCategoryFeed(w http.ResponseWriter, r *http.Request) {
	category := types.Category(r.PathValue("category"))
	if !category.Valid() {
		writeError(w, http.StatusNotFound, "unknown category")
		return
	}
	filter, err := parseFeedFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.Categories = []types.Category{category}
	s.serveFeed(w, r, filter)
}

func (s *Server) serveFeed(w http.ResponseWriter, r *http.Request, filter types.FeedFilter) {
	userID := types.UserID(r.URL.Query().Get("user_id"))
	page, err := s.svc.GetFeed(r.Context(), filter, userID)
	if err != nil {
		var verr *types.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		slog.Error("feed read failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.TriggerRefresh(); err != nil {
		slog.Error("refresh trigger failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var draft types.ItemDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	item, err := s.svc.CreateItem(r.Context(), &draft)
	if err != nil {
		var verr *types.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		slog.Error("create item failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.svc.GetItem(r.Context(), types.ItemID(r.PathValue("id")))
	if err != nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var upd types.ItemUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	item, err := s.svc.UpdateItem(r.Context(), types.ItemID(r.PathValue("id")), &upd)
	if err != nil {
		var verr *types.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// engagementRequest is the JSON body for POST /engagement.
type engagementRequest struct {
	UserID   types.UserID   `json:"user_id"`
	ItemID   types.ItemID   `json:"item_id"`
	Action   types.Action   `json:"action"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (s *Server) handleEngagement(w http.ResponseWriter, r *http.Request) {
	var req engagementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := s.svc.TrackEngagement(r.Context(), req.UserID, req.ItemID, req.Action, req.Metadata); err != nil {
		var verr *types.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		slog.Error("track engagement failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	userID := types.UserID(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	prefs, err := s.svc.GetPreferences(r.Context(), userID)
	if err != nil {
		slog.Error("get preferences failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	var prefs types.Preferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if prefs.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if err := s.svc.PutPreferences(r.Context(), &prefs); err != nil {
		var verr *types.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		slog.Error("put preferences failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, &prefs)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Stats(r.Context())
	if err != nil {
		slog.Error("stats failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
