package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/service"
	httpmw "github.com/cwrk-planet/chat-service/internal/transport/http/middleware"
	"github.com/cwrk-planet/chat-service/internal/translate"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	chatSvc *service.ChatService
	userSvc *service.UserService
}

func NewHandler(chat *service.ChatService, user *service.UserService) *Handler {
	return &Handler{chatSvc: chat, userSvc: user}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrEmptyMessage),
		errors.Is(err, domain.ErrMessageTooLong),
		errors.Is(err, domain.ErrMissingSender),
		errors.Is(err, domain.ErrUnknownLanguage):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrChatNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), op, slog.Any("err", err))
		writeJSON(w, status, ErrorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func viewerFromRequest(r *http.Request) domain.Viewer {
	return domain.Viewer{
		ID:   httpmw.UserIDFromCtx(r.Context()),
		Name: httpmw.UserNameFromCtx(r.Context()),
	}
}

// POST /messages
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	contacts := make([]domain.Contact, 0, len(req.Contacts))
	for _, c := range req.Contacts {
		contacts = append(contacts, domain.Contact{ID: c.ID, Name: c.Name})
	}
	res, err := h.chatSvc.Send(r.Context(), service.SendRequest{
		ChatID:    req.ChatID,
		ID:        req.ID,
		Sender:    viewerFromRequest(r),
		Contacts:  contacts,
		Text:      req.Text,
		Timestamp: req.Timestamp,
	})
	if err != nil {
		writeError(w, r, "handler.SendMessage", err)
		return
	}
	writeJSON(w, http.StatusCreated, SendMessageResponse{
		ChatID:    res.ChatID,
		MessageID: res.MessageID,
		Timestamp: res.Timestamp,
	})
}

// GET /chats/{id}
func (h *Handler) GetChat(w http.ResponseWriter, r *http.Request) {
	chat, err := h.chatSvc.Chat(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "handler.GetChat", err)
		return
	}
	members := chat.Members
	if members == nil {
		members = map[string]string{}
	}
	writeJSON(w, http.StatusOK, ChatResponse{
		ID:          chat.ID,
		Members:     members,
		LastMessage: chat.LastMessage,
		SenderID:    chat.SenderID,
		Timestamp:   chat.Timestamp,
	})
}

// GET /me/chatrooms
func (h *Handler) GetChatrooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.userSvc.Chatrooms(r.Context(), httpmw.UserIDFromCtx(r.Context()))
	if err != nil {
		writeError(w, r, "handler.GetChatrooms", err)
		return
	}
	writeJSON(w, http.StatusOK, ChatroomsResponse{Chatrooms: rooms})
}

// GET /me/language
func (h *Handler) GetLanguage(w http.ResponseWriter, r *http.Request) {
	lang, err := h.userSvc.Language(r.Context(), httpmw.UserIDFromCtx(r.Context()))
	if err != nil {
		writeError(w, r, "handler.GetLanguage", err)
		return
	}
	writeJSON(w, http.StatusOK, LanguageResponse{Language: lang, Name: translate.LanguageName(lang)})
}

// PUT /me/language
func (h *Handler) PutLanguage(w http.ResponseWriter, r *http.Request) {
	var req LanguageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}
	code, err := h.userSvc.SetLanguage(r.Context(), httpmw.UserIDFromCtx(r.Context()), req.Language)
	if err != nil {
		writeError(w, r, "handler.PutLanguage", err)
		return
	}
	writeJSON(w, http.StatusOK, LanguageResponse{Language: code, Name: translate.LanguageName(code)})
}

// PUT /me/push-token
func (h *Handler) PutPushToken(w http.ResponseWriter, r *http.Request) {
	var req PushTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}
	if err := h.userSvc.SetPushToken(r.Context(), httpmw.UserIDFromCtx(r.Context()), req.Token); err != nil {
		writeError(w, r, "handler.PutPushToken", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
