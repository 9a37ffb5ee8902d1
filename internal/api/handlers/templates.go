// templates.go — обработчики /api/v1/templates endpoints.
// Шаблоны чек-листов: создаёт и правит старший инспектор,
// читают все аутентифицированные роли.
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

// templateResponse — представление шаблона в API.
type templateResponse struct {
	ID          string                 `json:"id"`
	Title       string                 `json:"title"`
	Description *string                `json:"description,omitempty"`
	Items       []templateItemResponse `json:"items"`
	CreatedBy   string                 `json:"createdBy"`
	CreatedAt   time.Time              `json:"createdAt"`
	UpdatedAt   time.Time              `json:"updatedAt"`
}

// templateItemResponse — пункт шаблона в API.
type templateItemResponse struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// templateRequest — входные данные создания и обновления шаблона.
type templateRequest struct {
	Title       string   `json:"title"`
	Description *string  `json:"description"`
	ItemTexts   []string `json:"itemTexts"`
}

func (req templateRequest) toInput() service.TemplateInput {
	return service.TemplateInput{
		Title:       req.Title,
		Description: req.Description,
		ItemTexts:   req.ItemTexts,
	}
}

// mapTemplate конвертирует доменную модель шаблона в ответ API.
func mapTemplate(tpl *model.Template) templateResponse {
	items := make([]templateItemResponse, len(tpl.Items))
	for i, item := range tpl.Items {
		items[i] = templateItemResponse{ID: item.ID, Text: item.Text}
	}
	return templateResponse{
		ID:          tpl.ID,
		Title:       tpl.Title,
		Description: tpl.Description,
		Items:       items,
		CreatedBy:   tpl.CreatedBy,
		CreatedAt:   tpl.CreatedAt,
		UpdatedAt:   tpl.UpdatedAt,
	}
}

// CreateTemplate — POST /api/v1/templates.
// Доступ: seniorInspector.
func (h *APIHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromContext(r.Context())

	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	tpl, err := h.templates.Create(r.Context(), caller.ID, req.toInput())
	if err != nil {
		h.writeServiceError(w, err, "Ошибка создания шаблона")
		return
	}

	writeJSON(w, http.StatusCreated, mapTemplate(tpl))
}

// ListTemplates — GET /api/v1/templates.
func (h *APIHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	limit, offset := paginationFromQuery(r.URL.Query())

	templates, total, err := h.templates.List(r.Context(), limit, offset)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения списка шаблонов")
		return
	}

	items := make([]templateResponse, len(templates))
	for i, tpl := range templates {
		items[i] = mapTemplate(tpl)
	}
	writeJSON(w, http.StatusOK, newListResponse(items, total, limit, offset))
}

// GetTemplate — GET /api/v1/templates/{id}.
func (h *APIHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := h.templates.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения шаблона")
		return
	}
	writeJSON(w, http.StatusOK, mapTemplate(tpl))
}

// UpdateTemplate — PUT /api/v1/templates/{id}.
// Полная замена пунктов. Уже созданные проверки не затрагиваются.
// Доступ: seniorInspector.
func (h *APIHandler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	tpl, err := h.templates.Update(r.Context(), chi.URLParam(r, "id"), req.toInput())
	if err != nil {
		h.writeServiceError(w, err, "Ошибка обновления шаблона")
		return
	}
	writeJSON(w, http.StatusOK, mapTemplate(tpl))
}

// DeleteTemplate — DELETE /api/v1/templates/{id}.
// Доступ: seniorInspector.
func (h *APIHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := h.templates.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, err, "Ошибка удаления шаблона")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
