// handler.go — основной обработчик API ProCheck.
// Объединяет доменные обработчики и делегирует запросы в сервисный слой.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	apierrors "github.com/procheck/backend/internal/api/errors"
	"github.com/procheck/backend/internal/api/middleware"
	"github.com/procheck/backend/internal/service"
)

// APIHandler — основной обработчик API ProCheck.
// Делегирует запросы в сервисный слой.
type APIHandler struct {
	health          *HealthHandler
	auth            *service.AuthService
	users           *service.UserService
	templates       *service.TemplateService
	inspections     *service.InspectionService
	reports         *service.ReportService
	chats           *service.ChatService
	accountRequests *service.AccountRequestService
	jwtAuth         *middleware.JWTAuth
	logger          *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
// jwtAuth нужен для инвалидации кэша пользователей после мутаций
// (может быть nil в тестах без middleware).
func NewAPIHandler(
	health *HealthHandler,
	auth *service.AuthService,
	users *service.UserService,
	templates *service.TemplateService,
	inspections *service.InspectionService,
	reports *service.ReportService,
	chats *service.ChatService,
	accountRequests *service.AccountRequestService,
	jwtAuth *middleware.JWTAuth,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:          health,
		auth:            auth,
		users:           users,
		templates:       templates,
		inspections:     inspections,
		reports:         reports,
		chats:           chats,
		accountRequests: accountRequests,
		jwtAuth:         jwtAuth,
		logger:          logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive — liveness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// actorFromContext формирует Actor сервисного слоя из пользователя в контексте.
func (h *APIHandler) actorFromContext(r *http.Request) (service.Actor, bool) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		return service.Actor{}, false
	}
	return service.Actor{ID: user.ID, Role: user.Role}, true
}

// writeServiceError транслирует ошибку сервисного слоя в HTTP-ответ.
// Неизвестные ошибки логируются и возвращаются как 500.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, err.Error())
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, err.Error())
	case errors.Is(err, service.ErrInvalidState):
		apierrors.InvalidState(w, err.Error())
	case errors.Is(err, service.ErrForbidden):
		apierrors.Forbidden(w, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		apierrors.InvalidCredentials(w, "Неверный логин или пароль")
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	default:
		h.logger.Error(logMsg, slog.String("error", err.Error()))
		apierrors.InternalError(w, logMsg)
	}
}

// paginationFromQuery извлекает и нормализует limit/offset из query string.
func paginationFromQuery(q url.Values) (int, int) {
	limit := 100
	offset := 0

	if raw := q.Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			limit = v
		}
	}
	if raw := q.Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			offset = v
		}
	}

	if limit < 1 {
		limit = 1
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// listResponse — стандартная обёртка списочных ответов.
type listResponse[T any] struct {
	Items   []T  `json:"items"`
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

func newListResponse[T any](items []T, total, limit, offset int) listResponse[T] {
	return listResponse[T]{
		Items:   items,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	}
}
