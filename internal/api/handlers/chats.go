// chats.go — обработчики /api/v1/chats endpoints.
// Чаты с дедупликацией по множеству участников, сообщения,
// удаление «у себя» и «у всех».
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/procheck/backend/internal/api/errors"
	"github.com/procheck/backend/internal/api/middleware"
	"github.com/procheck/backend/internal/domain/model"
	"github.com/procheck/backend/internal/service"
)

// chatResponse — представление чата в API.
type chatResponse struct {
	ID             string                `json:"id"`
	Title          string                `json:"title"`
	ParticipantIDs []string              `json:"participantIds"`
	Messages       []chatMessageResponse `json:"messages"`
	CreatedAt      time.Time             `json:"createdAt"`
}

// chatMessageResponse — сообщение чата в API.
type chatMessageResponse struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"authorId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// mapChat конвертирует доменную модель чата в ответ API.
// Список deleted_for наружу не отдаётся.
func mapChat(c *model.Chat) chatResponse {
	messages := make([]chatMessageResponse, len(c.Messages))
	for i, m := range c.Messages {
		messages[i] = chatMessageResponse{
			ID:        m.ID,
			AuthorID:  m.AuthorID,
			Text:      m.Text,
			CreatedAt: m.CreatedAt,
		}
	}
	return chatResponse{
		ID:             c.ID,
		Title:          c.Title,
		ParticipantIDs: c.ParticipantIDs,
		Messages:       messages,
		CreatedAt:      c.CreatedAt,
	}
}

// CreateChat — POST /api/v1/chats.
// Возвращает существующий чат при совпадении множества участников.
// Вызывающий всегда включается в участники.
func (h *APIHandler) CreateChat(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromContext(r.Context())

	var req struct {
		ParticipantIDs []string `json:"participantIds"`
		Title          string   `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	participants := append(req.ParticipantIDs, caller.ID)

	chat, err := h.chats.GetOrCreate(r.Context(), participants, req.Title)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка создания чата")
		return
	}

	writeJSON(w, http.StatusOK, mapChat(chat))
}

// ListChats — GET /api/v1/chats. Чаты, видимые вызывающему.
func (h *APIHandler) ListChats(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromContext(r.Context())

	chats, err := h.chats.List(r.Context(), caller.ID)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения списка чатов")
		return
	}

	items := make([]chatResponse, len(chats))
	for i, c := range chats {
		items[i] = mapChat(c)
	}
	writeJSON(w, http.StatusOK, items)
}

// GetChat — GET /api/v1/chats/{id}.
func (h *APIHandler) GetChat(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromContext(r.Context())

	chat, err := h.chats.Get(r.Context(), chi.URLParam(r, "id"), caller.ID)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения чата")
		return
	}
	writeJSON(w, http.StatusOK, mapChat(chat))
}

// DeleteChat — DELETE /api/v1/chats/{id}?scope=self|all.
// scope=self (по умолчанию) скрывает чат у вызывающего,
// scope=all удаляет чат у всех участников.
func (h *APIHandler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromContext(r.Context())

	scope := service.DeleteScope(r.URL.Query().Get("scope"))
	if scope == "" {
		scope = service.DeleteScopeSelf
	}

	if err := h.chats.Delete(r.Context(), chi.URLParam(r, "id"), caller.ID, scope); err != nil {
		h.writeServiceError(w, err, "Ошибка удаления чата")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddChatMessage — POST /api/v1/chats/{id}/messages.
// Отправка в скрытый у себя чат снимает скрытие у автора.
func (h *APIHandler) AddChatMessage(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromContext(r.Context())

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	msg, err := h.chats.AddMessage(r.Context(), chi.URLParam(r, "id"), caller.ID, req.Text)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка отправки сообщения")
		return
	}

	writeJSON(w, http.StatusCreated, chatMessageResponse{
		ID:        msg.ID,
		AuthorID:  msg.AuthorID,
		Text:      msg.Text,
		CreatedAt: msg.CreatedAt,
	})
}

// UpdateChatMessage — PUT /api/v1/chats/{id}/messages/{messageId}.
// Доступ: автор сообщения.
func (h *APIHandler) UpdateChatMessage(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromContext(r.Context())

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	err := h.chats.UpdateMessage(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "messageId"), caller.ID, req.Text)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка обновления сообщения")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteChatMessage — DELETE /api/v1/chats/{id}/messages/{messageId}.
// Доступ: автор сообщения.
func (h *APIHandler) DeleteChatMessage(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromContext(r.Context())

	err := h.chats.DeleteMessage(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "messageId"), caller.ID)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка удаления сообщения")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
