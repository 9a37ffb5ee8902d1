// reports.go — обработчики /api/v1/reports endpoints.
// Создание отчёта назначенным инспектором (завершает проверку),
// чтение, фиксация и удаление.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/procheck/backend/internal/api/errors"
	"github.com/procheck/backend/internal/domain/model"
)

// reportResponse — представление отчёта в API.
type reportResponse struct {
	ID            string    `json:"id"`
	InspectionID  string    `json:"inspectionId"`
	CreatedBy     string    `json:"createdBy"`
	CustomerID    string    `json:"customerId"`
	DocumentRef   string    `json:"documentRef"`
	EditableUntil time.Time `json:"editableUntil"`
	Locked        bool      `json:"locked"`
	CreatedAt     time.Time `json:"createdAt"`
}

// mapReport конвертирует доменную модель отчёта в ответ API.
func mapReport(rep *model.Report) reportResponse {
	return reportResponse{
		ID:            rep.ID,
		InspectionID:  rep.InspectionID,
		CreatedBy:     rep.CreatedBy,
		CustomerID:    rep.CustomerID,
		DocumentRef:   rep.DocumentRef,
		EditableUntil: rep.EditableUntil,
		Locked:        rep.Locked,
		CreatedAt:     rep.CreatedAt,
	}
}

// CreateReport — POST /api/v1/inspections/{id}/report.
// Создаёт отчёт и атомарно завершает проверку. Пустое body — документ
// рендерится из данных проверки. Доступ: назначенный инспектор.
func (h *APIHandler) CreateReport(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFromContext(r)
	if !ok {
		apierrors.Unauthorized(w, "Отсутствует пользователь в контексте")
		return
	}

	// Пустое тело запроса допустимо: документ сгенерируется из проверки
	var req struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	rep, err := h.reports.Create(r.Context(), actor, chi.URLParam(r, "id"), req.Body)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка создания отчёта")
		return
	}

	writeJSON(w, http.StatusCreated, mapReport(rep))
}

// ListReports — GET /api/v1/reports.
// Видимость по роли: admin и seniorInspector — все, заказчик — свои,
// инспектор — созданные им.
func (h *APIHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFromContext(r)
	if !ok {
		apierrors.Unauthorized(w, "Отсутствует пользователь в контексте")
		return
	}

	limit, offset := paginationFromQuery(r.URL.Query())

	reports, err := h.reports.List(r.Context(), actor, limit, offset)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения списка отчётов")
		return
	}

	items := make([]reportResponse, len(reports))
	for i, rep := range reports {
		items[i] = mapReport(rep)
	}
	writeJSON(w, http.StatusOK, items)
}

// GetReport — GET /api/v1/reports/{id}.
func (h *APIHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFromContext(r)
	if !ok {
		apierrors.Unauthorized(w, "Отсутствует пользователь в контексте")
		return
	}

	rep, err := h.reports.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения отчёта")
		return
	}
	writeJSON(w, http.StatusOK, mapReport(rep))
}

// GetReportByInspection — GET /api/v1/inspections/{id}/report.
func (h *APIHandler) GetReportByInspection(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFromContext(r)
	if !ok {
		apierrors.Unauthorized(w, "Отсутствует пользователь в контексте")
		return
	}

	rep, err := h.reports.GetByInspection(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения отчёта")
		return
	}
	writeJSON(w, http.StatusOK, mapReport(rep))
}

// GetReportDocument — GET /api/v1/reports/{id}/document.
// Возвращает текст документа из хранилища.
func (h *APIHandler) GetReportDocument(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFromContext(r)
	if !ok {
		apierrors.Unauthorized(w, "Отсутствует пользователь в контексте")
		return
	}

	text, err := h.reports.Document(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err, "Ошибка чтения документа отчёта")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}

// LockReport — POST /api/v1/reports/{id}/lock.
// Идемпотентная фиксация отчёта. Доступ: admin или seniorInspector.
func (h *APIHandler) LockReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.reports.Lock(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err, "Ошибка фиксации отчёта")
		return
	}
	writeJSON(w, http.StatusOK, mapReport(rep))
}

// DeleteReport — DELETE /api/v1/reports/{id}.
// Удаляет отчёт и снимает ссылку с проверки. Доступ: admin.
func (h *APIHandler) DeleteReport(w http.ResponseWriter, r *http.Request) {
	if err := h.reports.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, err, "Ошибка удаления отчёта")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
