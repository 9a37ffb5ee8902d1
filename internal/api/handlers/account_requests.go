// account_requests.go — обработчики /api/v1/account-requests endpoints.
// Подача заявки публична, решения принимает администратор.
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

// accountRequestResponse — представление заявки в API.
// Хэш пароля наружу не отдаётся.
type accountRequestResponse struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Role        string     `json:"role"`
	Purpose     string     `json:"purpose"`
	Status      string     `json:"status"`
	ReviewedBy  *string    `json:"reviewedBy,omitempty"`
	ReviewedAt  *time.Time `json:"reviewedAt,omitempty"`
	RequestedAt time.Time  `json:"requestedAt"`
}

// mapAccountRequest конвертирует доменную модель заявки в ответ API.
func mapAccountRequest(ar *model.AccountRequest) accountRequestResponse {
	return accountRequestResponse{
		ID:          ar.ID,
		Username:    ar.Username,
		Role:        string(ar.Role),
		Purpose:     ar.Purpose,
		Status:      string(ar.Status),
		ReviewedBy:  ar.ReviewedBy,
		ReviewedAt:  ar.ReviewedAt,
		RequestedAt: ar.RequestedAt,
	}
}

// SubmitAccountRequest — POST /api/v1/account-requests. Публичный endpoint.
func (h *APIHandler) SubmitAccountRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Role     string `json:"role"`
		Purpose  string `json:"purpose"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	ar, err := h.accountRequests.Submit(r.Context(), service.SubmitInput{
		Username: req.Username,
		Password: req.Password,
		Role:     model.Role(req.Role),
		Purpose:  req.Purpose,
	})
	if err != nil {
		h.writeServiceError(w, err, "Ошибка подачи заявки")
		return
	}

	writeJSON(w, http.StatusCreated, mapAccountRequest(ar))
}

// ListAccountRequests — GET /api/v1/account-requests?status=.
// Доступ: admin.
func (h *APIHandler) ListAccountRequests(w http.ResponseWriter, r *http.Request) {
	limit, offset := paginationFromQuery(r.URL.Query())

	var status *model.RequestStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := model.RequestStatus(raw)
		status = &s
	}

	requests, total, err := h.accountRequests.List(r.Context(), status, limit, offset)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения списка заявок")
		return
	}

	items := make([]accountRequestResponse, len(requests))
	for i, ar := range requests {
		items[i] = mapAccountRequest(ar)
	}
	writeJSON(w, http.StatusOK, newListResponse(items, total, limit, offset))
}

// GetAccountRequest — GET /api/v1/account-requests/{id}.
// Доступ: admin.
func (h *APIHandler) GetAccountRequest(w http.ResponseWriter, r *http.Request) {
	ar, err := h.accountRequests.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения заявки")
		return
	}
	writeJSON(w, http.StatusOK, mapAccountRequest(ar))
}

// ApproveAccountRequest — POST /api/v1/account-requests/{id}/approve.
// Создаёт пользователя и приветственный чат. Доступ: admin.
func (h *APIHandler) ApproveAccountRequest(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromContext(r.Context())

	user, err := h.accountRequests.Approve(r.Context(), caller.ID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err, "Ошибка одобрения заявки")
		return
	}

	writeJSON(w, http.StatusCreated, mapUser(user))
}

// RejectAccountRequest — POST /api/v1/account-requests/{id}/reject.
// Доступ: admin.
func (h *APIHandler) RejectAccountRequest(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromContext(r.Context())

	ar, err := h.accountRequests.Reject(r.Context(), caller.ID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err, "Ошибка отклонения заявки")
		return
	}

	writeJSON(w, http.StatusOK, mapAccountRequest(ar))
}
