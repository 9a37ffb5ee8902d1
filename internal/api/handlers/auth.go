// auth.go — обработчики /api/v1/auth endpoints.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	apierrors "github.com/procheck/backend/internal/api/errors"
	"github.com/procheck/backend/internal/api/middleware"
)

// loginResponse — ответ успешного входа.
type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      userResponse `json:"user"`
}

// Login — POST /api/v1/auth/login. Публичный endpoint.
// Неизвестный логин и неверный пароль неразличимы в ответе.
func (h *APIHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	result, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка входа")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User:      mapUser(result.User),
	})
}

// Logout — POST /api/v1/auth/logout.
// Токен без серверного состояния: клиент просто перестаёт его слать.
// Endpoint существует для симметрии клиентского API и всегда успешен.
func (h *APIHandler) Logout(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// Me — GET /api/v1/auth/me. Возвращает текущего пользователя.
func (h *APIHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		apierrors.Unauthorized(w, "Отсутствует пользователь в контексте")
		return
	}
	writeJSON(w, http.StatusOK, mapUser(user))
}
