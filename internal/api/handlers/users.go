// users.go — обработчики /api/v1/users endpoints.
// Создание администратором, список, профиль, смена пароля, удаление.
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

// userResponse — представление пользователя в API.
// Хэш пароля наружу не отдаётся никогда.
type userResponse struct {
	ID          string          `json:"id"`
	Username    string          `json:"username"`
	Role        string          `json:"role"`
	FullName    string          `json:"fullName"`
	Profile     profileResponse `json:"profile"`
	LastLoginAt *time.Time      `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// profileResponse — профиль пользователя в API.
type profileResponse struct {
	AvatarURI      *string `json:"avatarUri,omitempty"`
	Specialization *string `json:"specialization,omitempty"`
	WorkHours      *string `json:"workHours,omitempty"`
	Phone          *string `json:"phone,omitempty"`
	Email          *string `json:"email,omitempty"`
}

// profileRequest — профиль во входных запросах.
type profileRequest struct {
	AvatarURI      *string `json:"avatarUri"`
	Specialization *string `json:"specialization"`
	WorkHours      *string `json:"workHours"`
	Phone          *string `json:"phone"`
	Email          *string `json:"email"`
}

func (p profileRequest) toModel() model.Profile {
	return model.Profile{
		AvatarURI:      p.AvatarURI,
		Specialization: p.Specialization,
		WorkHours:      p.WorkHours,
		Phone:          p.Phone,
		Email:          p.Email,
	}
}

// mapUser конвертирует доменную модель пользователя в ответ API.
func mapUser(u *model.User) userResponse {
	return userResponse{
		ID:       u.ID,
		Username: u.Username,
		Role:     string(u.Role),
		FullName: u.FullName,
		Profile: profileResponse{
			AvatarURI:      u.Profile.AvatarURI,
			Specialization: u.Profile.Specialization,
			WorkHours:      u.Profile.WorkHours,
			Phone:          u.Profile.Phone,
			Email:          u.Profile.Email,
		},
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// CreateUser — POST /api/v1/users.
// Создаёт пользователя и заводит приветственный чат с администратором.
// Доступ: admin.
func (h *APIHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromContext(r.Context())

	var req struct {
		Username string         `json:"username"`
		Password string         `json:"password"`
		Role     string         `json:"role"`
		FullName string         `json:"fullName"`
		Profile  profileRequest `json:"profile"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	user, err := h.users.Create(r.Context(), caller.ID, service.CreateUserInput{
		Username: req.Username,
		Password: req.Password,
		Role:     model.Role(req.Role),
		FullName: req.FullName,
		Profile:  req.Profile.toModel(),
	})
	if err != nil {
		h.writeServiceError(w, err, "Ошибка создания пользователя")
		return
	}

	writeJSON(w, http.StatusCreated, mapUser(user))
}

// ListUsers — GET /api/v1/users?role=&limit=&offset=.
// Список нужен всем ролям: заказчик выбирает участников чата,
// старший инспектор — инспектора для назначения.
func (h *APIHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := paginationFromQuery(r.URL.Query())

	var role *string
	if raw := r.URL.Query().Get("role"); raw != "" {
		role = &raw
	}

	users, total, err := h.users.List(r.Context(), role, limit, offset)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения списка пользователей")
		return
	}

	items := make([]userResponse, len(users))
	for i, u := range users {
		items[i] = mapUser(u)
	}
	writeJSON(w, http.StatusOK, newListResponse(items, total, limit, offset))
}

// GetUser — GET /api/v1/users/{id}.
func (h *APIHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения пользователя")
		return
	}
	writeJSON(w, http.StatusOK, mapUser(user))
}

// UpdateUser — PUT /api/v1/users/{id}.
// Обновляет полное имя и профиль. Доступ: сам пользователь или admin.
func (h *APIHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req struct {
		FullName string         `json:"fullName"`
		Profile  profileRequest `json:"profile"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), caller.ID, caller.Role, id, req.FullName, req.Profile.toModel())
	if err != nil {
		h.writeServiceError(w, err, "Ошибка обновления профиля")
		return
	}

	if h.jwtAuth != nil {
		h.jwtAuth.Invalidate(id)
	}
	writeJSON(w, http.StatusOK, mapUser(user))
}

// ChangePassword — PUT /api/v1/users/{id}/password.
// Доступ: только сам пользователь, после проверки текущего пароля.
func (h *APIHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if caller.ID != id {
		apierrors.Forbidden(w, "Пароль может сменить только владелец аккаунта")
		return
	}

	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	if err := h.users.ChangePassword(r.Context(), id, req.CurrentPassword, req.NewPassword); err != nil {
		h.writeServiceError(w, err, "Ошибка смены пароля")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteUser — DELETE /api/v1/users/{id}.
// Доступ: admin. Собственный аккаунт удалить нельзя.
func (h *APIHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := h.users.Delete(r.Context(), caller.ID, id); err != nil {
		h.writeServiceError(w, err, "Ошибка удаления пользователя")
		return
	}

	if h.jwtAuth != nil {
		h.jwtAuth.Invalidate(id)
	}
	w.WriteHeader(http.StatusNoContent)
}
