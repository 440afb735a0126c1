package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.chat.ConversationForBooking(r.Context(), mux.Vars(r)["id"], userFrom(r).ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

type sendMessageRequest struct {
	Body string `json:"body"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	msg, err := s.chat.Send(r.Context(), mux.Vars(r)["id"], userFrom(r).ID, req.Body)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// handleListMessages supports polling: ?since=RFC3339 returns only newer
// messages.
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since; expected RFC3339")
			return
		}
		since = parsed
	}

	messages, err := s.chat.ListSince(r.Context(), mux.Vars(r)["id"], userFrom(r).ID, since)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	unreadOnly := r.URL.Query().Get("unread") == "true"
	notifications, err := s.notifications.ListNotificationsByUser(r.Context(), userFrom(r).ID, unreadOnly)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": notifications})
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := s.notifications.MarkNotificationRead(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
}
