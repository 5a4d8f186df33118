package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pulsedesk/pulsedesk/internal/auth"
	"github.com/pulsedesk/pulsedesk/internal/core"
	"github.com/pulsedesk/pulsedesk/internal/feeds"
	"github.com/pulsedesk/pulsedesk/internal/store"
)

type APIHandler struct {
	store      store.Store
	controller *core.Controller
	modes      *core.ModeSelector
	tokens     *auth.Tokens
	news       *feeds.Client
	stocks     *feeds.Client
	logger     *zap.Logger
}

func NewAPIHandler(st store.Store, controller *core.Controller, modes *core.ModeSelector,
	tokens *auth.Tokens, news, stocks *feeds.Client, logger *zap.Logger) *APIHandler {
	return &APIHandler{
		store:      st,
		controller: controller,
		modes:      modes,
		tokens:     tokens,
		news:       news,
		stocks:     stocks,
		logger:     logger,
	}
}

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		clientID, err := h.tokens.Validate(tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), "clientID", clientID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type LoginRequest struct {
	ClientID string `json:"client_id"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.ClientID == "" {
		http.Error(w, "Client ID is required", http.StatusBadRequest)
		return
	}

	token, err := h.tokens.Generate(req.ClientID)
	if err != nil {
		h.logger.Error("failed to generate token", zap.String("client_id", req.ClientID), zap.Error(err))
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

func (h *APIHandler) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(h.store.ListSessions())
}

type CreateSessionRequest struct {
	Mode store.Mode `json:"mode,omitempty"`
}

func (h *APIHandler) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if r.Body != http.NoBody {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	sess, err := h.controller.NewSession(req.Mode)
	if err != nil {
		if errors.Is(err, core.ErrInvalidMode) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("failed to create session", zap.Error(err))
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(sess)
}

func (h *APIHandler) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	sess, err := h.controller.Transcript(sessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load session", zap.String("session_id", sessionID), zap.Error(err))
		http.Error(w, "Failed to load session", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(sess)
}

func (h *APIHandler) DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := h.store.DeleteSession(sessionID); err != nil {
		h.logger.Error("failed to delete session", zap.String("session_id", sessionID), zap.Error(err))
		http.Error(w, "Failed to delete session", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) ClearSessionsHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.store.ClearAll(); err != nil {
		h.logger.Error("failed to clear sessions", zap.Error(err))
		http.Error(w, "Failed to clear sessions", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type SetActiveSessionRequest struct {
	ID string `json:"id"` // empty clears the selection
}

func (h *APIHandler) SetActiveSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req SetActiveSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	h.store.SetActiveSession(req.ID)
	w.WriteHeader(http.StatusNoContent)
}

type PostMessageRequest struct {
	Content string     `json:"content"`
	Mode    store.Mode `json:"mode,omitempty"`
}

type PostMessageResponse struct {
	Session store.Session `json:"session"`
	Reply   store.Message `json:"reply"`
	Notice  string        `json:"notice,omitempty"`
}

func (h *APIHandler) PostMessageHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.controller.Send(r.Context(), sessionID, req.Mode, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrEmptyMessage), errors.Is(err, core.ErrInvalidMode):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, core.ErrSendInFlight):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			h.logger.Error("failed to send message", zap.String("session_id", sessionID), zap.Error(err))
			http.Error(w, "Failed to send message", http.StatusInternalServerError)
		}
		return
	}

	json.NewEncoder(w).Encode(PostMessageResponse{
		Session: result.Session,
		Reply:   result.Reply,
		Notice:  result.Notice,
	})
}

type ToggleModeRequest struct {
	Mode store.Mode `json:"mode"`
}

func (h *APIHandler) ToggleModeHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req ToggleModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	sess, err := h.modes.Toggle(sessionID, req.Mode)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrModeLocked):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, core.ErrInvalidMode):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, store.ErrSessionNotFound):
			http.Error(w, "Session not found", http.StatusNotFound)
		default:
			h.logger.Error("failed to toggle mode", zap.String("session_id", sessionID), zap.Error(err))
			http.Error(w, "Failed to toggle mode", http.StatusInternalServerError)
		}
		return
	}
	json.NewEncoder(w).Encode(sess)
}

func (h *APIHandler) NewsHandler(w http.ResponseWriter, r *http.Request) {
	h.proxyFeed(w, r, h.news)
}

func (h *APIHandler) StocksHandler(w http.ResponseWriter, r *http.Request) {
	h.proxyFeed(w, r, h.stocks)
}

func (h *APIHandler) proxyFeed(w http.ResponseWriter, r *http.Request, client *feeds.Client) {
	payload, err := client.Fetch(r.Context(), r.URL.Query())
	if err != nil {
		if errors.Is(err, feeds.ErrNotConfigured) {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(payload)
}
