// Package api exposes HTTP handlers for the activity service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	jujuerrors "github.com/juju/errors"

	"example.com/shareactivities/internal/auth"
	"example.com/shareactivities/internal/chat"
	"example.com/shareactivities/internal/domain"
	"example.com/shareactivities/internal/logging"
)

// Handler coordinates HTTP requests with the domain and chat services.
type Handler struct {
	activities *domain.Service
	chat       *chat.Service
	websocket  http.Handler
	logger     *log.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the handler logger.
func WithLogger(logger *log.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithWebsocket mounts the chat websocket endpoint.
func WithWebsocket(ws http.Handler) Option {
	return func(h *Handler) {
		h.websocket = ws
	}
}

// NewHandler builds a Handler.
func NewHandler(activities *domain.Service, chatService *chat.Service, opts ...Option) *Handler {
	h := &Handler{activities: activities, chat: chatService, logger: logging.Discard()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/activities/", h.activityByID)
	mux.HandleFunc("/v1/families/", h.familyActivities)
	mux.HandleFunc("/v1/me/activities", h.personalActivities)
	mux.HandleFunc("/v1/rooms/", h.roomMessages)
	mux.HandleFunc("/healthz", healthz)
	if h.websocket != nil {
		mux.Handle("/ws/chat", h.requireScope(auth.ScopeChatWrite, h.websocket))
	}
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) activityByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/activities/"), "/")
	parts := strings.Split(rest, "/")
	if rest == "" || len(parts) > 2 {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing activity id")
		return
	}
	id := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.getActivity(w, r, id)
	case len(parts) == 1 && r.Method == http.MethodDelete:
		h.deleteActivity(w, r, id)
	case len(parts) == 2 && parts[1] == "status" && r.Method == http.MethodPatch:
		h.changeStatus(w, r, id)
	case len(parts) == 2 && parts[1] != "status":
		writeError(w, http.StatusNotFound, "not_found", "unknown resource")
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := h.authorize(w, r, auth.ScopeActivitiesRead, auth.ScopeActivitiesWrite); !ok {
		return
	}

	activity, err := h.activities.GetActivity(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrActivityNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "activity not found")
			return
		}
		h.logger.Error("get activity", "activity_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toActivityView(*activity))
}

func (h *Handler) deleteActivity(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := h.authorize(w, r, auth.ScopeActivitiesWrite); !ok {
		return
	}

	if err := h.activities.DeleteActivity(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrActivityNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "activity not found")
			return
		}
		h.logger.Error("delete activity", "activity_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) familyActivities(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/families/"), "/")
	familyID, tail, found := strings.Cut(rest, "/")
	if !found || tail != "activities" || familyID == "" {
		writeError(w, http.StatusNotFound, "not_found", "unknown resource")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if _, ok := h.authorize(w, r, auth.ScopeActivitiesRead, auth.ScopeActivitiesWrite); !ok {
		return
	}

	activities, err := h.activities.FamilyActivities(r.Context(), familyID)
	if err != nil {
		h.logger.Error("list family activities", "family_id", familyID, "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toActivitiesResponse(activities))
}

func (h *Handler) personalActivities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := h.authorize(w, r, auth.ScopeActivitiesRead, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}
	if claims.Email == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "token carries no email")
		return
	}

	activities, err := h.activities.PersonalActivities(r.Context(), claims.Email)
	if err != nil {
		h.logger.Error("list personal activities", "email", claims.Email, "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toActivitiesResponse(activities))
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := h.authorize(w, r, auth.ScopeActivitiesWrite); !ok {
		return
	}

	var req ChangeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	status, err := domain.ParseStatus(strings.TrimSpace(req.Status))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	activity, err := h.activities.ChangeStatus(r.Context(), id, status)
	if err != nil {
		if errors.Is(err, domain.ErrActivityNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "activity not found")
			return
		}
		h.logger.Error("change status", "activity_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toActivityView(*activity))
}

func (h *Handler) roomMessages(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/rooms/"), "/")
	roomID, tail, found := strings.Cut(rest, "/")
	if !found || tail != "messages" || roomID == "" {
		writeError(w, http.StatusNotFound, "not_found", "unknown resource")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if _, ok := h.authorize(w, r, auth.ScopeChatRead); !ok {
		return
	}

	msgs, err := h.chat.History(r.Context(), roomID)
	if err != nil {
		if jujuerrors.Is(err, jujuerrors.NotValid) {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}
		h.logger.Error("chat history", "room", roomID, "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	resp := MessagesResponse{Items: make([]MessageView, 0, len(msgs))}
	for _, m := range msgs {
		resp.Items = append(resp.Items, MessageView{
			ID:        m.ID,
			Content:   m.Content,
			SenderID:  m.SenderID,
			RoomID:    m.RoomID,
			CreatedAt: m.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// authorize requires any one of scopes.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, scopes ...string) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	for _, scope := range scopes {
		if claims.HasScope(scope) {
			return claims, true
		}
	}
	writeError(w, http.StatusForbidden, "forbidden", "scope "+scopes[0]+" required")
	return nil, false
}

func (h *Handler) requireScope(scope string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := h.authorize(w, r, scope); !ok {
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ChangeStatusRequest is the payload for PATCH /v1/activities/{id}/status.
type ChangeStatusRequest struct {
	Status string `json:"status"`
}

// ActivityView exposes full details about an activity.
type ActivityView struct {
	ActivityID  string     `json:"activity_id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Type        string     `json:"type,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	Status      string     `json:"status"`
	OwnerID     string     `json:"owner_id"`
	FamilyID    string     `json:"family_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	RecurOn     *time.Time `json:"recur_on,omitempty"`
}

// ActivitiesResponse packages an activity listing.
type ActivitiesResponse struct {
	Items []ActivityView `json:"items"`
}

// MessageView is one stored chat message.
type MessageView struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	SenderID  string    `json:"sender_id"`
	RoomID    string    `json:"room_id"`
	CreatedAt time.Time `json:"created_at"`
}

// MessagesResponse packages chat history.
type MessagesResponse struct {
	Items []MessageView `json:"items"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toActivityView(a domain.Activity) ActivityView {
	return ActivityView{
		ActivityID:  a.ID,
		Name:        a.Name,
		Description: a.Description,
		Type:        a.Type,
		Priority:    a.Priority,
		Status:      string(a.Status),
		OwnerID:     a.OwnerID,
		FamilyID:    a.FamilyID,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
		ExpiresAt:   a.ExpiresAt,
		RecurOn:     a.RecurOn,
	}
}

func toActivitiesResponse(activities []domain.Activity) ActivitiesResponse {
	resp := ActivitiesResponse{Items: make([]ActivityView, 0, len(activities))}
	for _, a := range activities {
		resp.Items = append(resp.Items, toActivityView(a))
	}
	return resp
}
