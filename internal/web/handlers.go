package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shuntaka9576/agentoast/internal/notify"
	"github.com/shuntaka9576/agentoast/internal/store"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiErrorResponse struct {
	Error apiError `json:"error"`
}

type notificationsResponse struct {
	Notifications []store.Notification `json:"notifications"`
	Unread        int                  `json:"unread"`
}

type muteRequest struct {
	Global *bool  `json:"global,omitempty"`
	Repo   string `json:"repo,omitempty"`
	Muted  bool   `json:"muted"`
}

type resultResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"time": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeRequest(r) {
		writeAPIError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}

	switch r.Method {
	case http.MethodGet:
		limit := 0
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a non-negative integer")
				return
			}
			limit = n
		}
		rows, err := s.store.List(limit)
		if err != nil {
			writeAPIError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list notifications")
			return
		}
		unread, err := s.store.UnreadCount()
		if err != nil {
			writeAPIError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to count unread")
			return
		}
		writeJSON(w, http.StatusOK, notificationsResponse{Notifications: rows, Unread: unread})

	case http.MethodDelete:
		if err := s.store.DeleteAll(); err != nil {
			writeAPIError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to clear notifications")
			return
		}
		s.bus.Publish(notify.RefreshRequested{})
		writeJSON(w, http.StatusOK, resultResponse{OK: true, Message: "notifications cleared"})

	default:
		writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	}
}

// handleNotificationByID routes /api/notifications/{id} and
// /api/notifications/{id}/read, plus the read-all shorthand.
func (s *Server) handleNotificationByID(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeRequest(r) {
		writeAPIError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}

	const prefix = "/api/notifications/"
	rest := strings.TrimPrefix(r.URL.Path, prefix)

	if rest == "read-all" {
		if r.Method != http.MethodPost {
			writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
			return
		}
		if err := s.store.MarkAllRead(); err != nil {
			writeAPIError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to mark notifications read")
			return
		}
		s.bus.Publish(notify.RefreshRequested{})
		writeJSON(w, http.StatusOK, resultResponse{OK: true, Message: "all notifications marked read"})
		return
	}

	idPart, action, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", "notification id is required")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		n, err := s.store.Get(id)
		if errors.Is(err, store.ErrNotFound) {
			writeAPIError(w, http.StatusNotFound, "NOT_FOUND", "notification not found")
			return
		}
		if err != nil {
			writeAPIError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to load notification")
			return
		}
		writeJSON(w, http.StatusOK, n)

	case action == "" && r.Method == http.MethodDelete:
		if err := s.store.Delete(id); err != nil {
			writeAPIError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to delete notification")
			return
		}
		s.bus.Publish(notify.RefreshRequested{})
		writeJSON(w, http.StatusOK, resultResponse{OK: true, Message: "notification deleted"})

	case action == "read" && r.Method == http.MethodPost:
		if err := s.store.MarkRead(id); err != nil {
			writeAPIError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to mark notification read")
			return
		}
		s.bus.Publish(notify.RefreshRequested{})
		writeJSON(w, http.StatusOK, resultResponse{OK: true, Message: "notification marked read"})

	default:
		writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	}
}

func (s *Server) handleMute(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeRequest(r) {
		writeAPIError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}

	switch r.Method {
	case http.MethodGet:
		state, err := s.store.LoadMuteState()
		if err != nil {
			writeAPIError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to load mute state")
			return
		}
		writeJSON(w, http.StatusOK, state)

	case http.MethodPost:
		var req muteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid mute payload")
			return
		}
		req.Repo = strings.TrimSpace(req.Repo)
		if req.Global == nil && req.Repo == "" {
			writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", "global or repo is required")
			return
		}

		var err error
		if req.Global != nil {
			err = s.svc.SetGlobalMute(req.Muted)
		} else {
			err = s.svc.SetRepoMute(req.Repo, req.Muted)
		}
		if err != nil {
			writeAPIError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to update mute state")
			return
		}
		if state, err := s.store.LoadMuteState(); err == nil {
			s.bus.Publish(notify.MuteChanged{State: state})
		}
		writeJSON(w, http.StatusOK, resultResponse{OK: true, Message: "mute state updated"})

	default:
		writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeAPIError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiErrorResponse{
		Error: apiError{
			Code:    code,
			Message: message,
		},
	})
}
