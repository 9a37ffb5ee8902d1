// inspections.go — обработчики /api/v1/inspections endpoints.
// Жизненный цикл проверки: создание заказчиком, назначение, выполнение,
// пункты чек-листа, фото, выборки.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/procheck/backend/internal/api/errors"
	"github.com/procheck/backend/internal/domain/model"
	"github.com/procheck/backend/internal/service"
)

// inspectionResponse — представление проверки в API.
type inspectionResponse struct {
	ID                  string              `json:"id"`
	Title               string              `json:"title"`
	Type                string              `json:"type"`
	CustomerID          string              `json:"customerId"`
	TemplateID          *string             `json:"templateId,omitempty"`
	Enterprise          enterpriseResponse  `json:"enterprise"`
	PlanDate            time.Time           `json:"planDate"`
	ReportDueDate       time.Time           `json:"reportDueDate"`
	Status              string              `json:"status"`
	CheckItems          []checkItemResponse `json:"checkItems"`
	AssignedInspectorID *string             `json:"assignedInspectorId,omitempty"`
	ApprovedByID        *string             `json:"approvedById,omitempty"`
	ApprovedAt          *time.Time          `json:"approvedAt,omitempty"`
	ReportID            *string             `json:"reportId,omitempty"`
	Photos              []string            `json:"photos"`
	CreatedAt           time.Time           `json:"createdAt"`
	UpdatedAt           time.Time           `json:"updatedAt"`
}

// enterpriseResponse — сведения о предприятии в API.
type enterpriseResponse struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// checkItemResponse — пункт чек-листа в API.
type checkItemResponse struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Status string `json:"status"`
}

// mapInspection конвертирует доменную модель проверки в ответ API.
func mapInspection(ins *model.Inspection) inspectionResponse {
	items := make([]checkItemResponse, len(ins.CheckItems))
	for i, item := range ins.CheckItems {
		items[i] = checkItemResponse{
			ID:     item.ID,
			Text:   item.Text,
			Status: string(item.Status),
		}
	}
	photos := ins.Photos
	if photos == nil {
		photos = []string{}
	}
	return inspectionResponse{
		ID:         ins.ID,
		Title:      ins.Title,
		Type:       ins.Type,
		CustomerID: ins.CustomerID,
		TemplateID: ins.TemplateID,
		Enterprise: enterpriseResponse{
			Name:    ins.Enterprise.Name,
			Address: ins.Enterprise.Address,
		},
		PlanDate:            ins.PlanDate,
		ReportDueDate:       ins.ReportDueDate,
		Status:              string(ins.Status),
		CheckItems:          items,
		AssignedInspectorID: ins.AssignedInspectorID,
		ApprovedByID:        ins.ApprovedByID,
		ApprovedAt:          ins.ApprovedAt,
		ReportID:            ins.ReportID,
		Photos:              photos,
		CreatedAt:           ins.CreatedAt,
		UpdatedAt:           ins.UpdatedAt,
	}
}

// inspectionDetailsRequest — основные поля проверки во входных запросах.
type inspectionDetailsRequest struct {
	Title      string `json:"title"`
	Type       string `json:"type"`
	Enterprise struct {
		Name    string `json:"name"`
		Address string `json:"address"`
	} `json:"enterprise"`
	PlanDate      time.Time `json:"planDate"`
	ReportDueDate time.Time `json:"reportDueDate"`
}

// CreateInspection — POST /api/v1/inspections.
// Пункты штампуются из шаблона либо задаются вручную через itemTexts.
// Доступ: customer.
func (h *APIHandler) CreateInspection(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFromContext(r)
	if !ok {
		apierrors.Unauthorized(w, "Отсутствует пользователь в контексте")
		return
	}

	var req struct {
		inspectionDetailsRequest
		TemplateID *string  `json:"templateId"`
		ItemTexts  []string `json:"itemTexts"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	ins, err := h.inspections.Create(r.Context(), actor, service.CreateInspectionInput{
		Title: req.Title,
		Type:  req.Type,
		Enterprise: model.Enterprise{
			Name:    req.Enterprise.Name,
			Address: req.Enterprise.Address,
		},
		PlanDate:      req.PlanDate,
		ReportDueDate: req.ReportDueDate,
		TemplateID:    req.TemplateID,
		ItemTexts:     req.ItemTexts,
	})
	if err != nil {
		h.writeServiceError(w, err, "Ошибка создания проверки")
		return
	}

	writeJSON(w, http.StatusCreated, mapInspection(ins))
}

// ListInspections — GET /api/v1/inspections.
// Фильтры: status (можно несколько), active, customerId, assignedInspectorId;
// сортировка sortBy=plan_date|report_due_date|created_at, sortDesc.
// Заказчик и инспектор видят только свои проверки.
func (h *APIHandler) ListInspections(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFromContext(r)
	if !ok {
		apierrors.Unauthorized(w, "Отсутствует пользователь в контексте")
		return
	}

	q := r.URL.Query()
	limit, offset := paginationFromQuery(q)

	input := service.ListInput{
		ActiveOnly: q.Get("active") == "true",
		SortBy:     q.Get("sortBy"),
		SortDesc:   q.Get("sortDesc") == "true",
	}
	for _, raw := range q["status"] {
		input.Statuses = append(input.Statuses, model.InspectionStatus(raw))
	}
	if raw := q.Get("customerId"); raw != "" {
		input.CustomerID = &raw
	}
	if raw := q.Get("assignedInspectorId"); raw != "" {
		input.AssignedInspectorID = &raw
	}

	// Ограничение видимости по роли
	switch actor.Role {
	case model.RoleCustomer:
		input.CustomerID = &actor.ID
	case model.RoleInspector:
		input.AssignedInspectorID = &actor.ID
	}

	list, total, err := h.inspections.List(r.Context(), input, limit, offset)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения списка проверок")
		return
	}

	items := make([]inspectionResponse, len(list))
	for i, ins := range list {
		items[i] = mapInspection(ins)
	}
	writeJSON(w, http.StatusOK, newListResponse(items, total, limit, offset))
}

// GetInspection — GET /api/v1/inspections/{id}.
// Заказчик видит свои, инспектор — назначенные ему, остальные роли — все.
func (h *APIHandler) GetInspection(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFromContext(r)
	if !ok {
		apierrors.Unauthorized(w, "Отсутствует пользователь в контексте")
		return
	}

	ins, err := h.inspections.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения проверки")
		return
	}

	switch actor.Role {
	case model.RoleCustomer:
		if ins.CustomerID != actor.ID {
			apierrors.Forbidden(w, "Проверка принадлежит другому заказчику")
			return
		}
	case model.RoleInspector:
		if ins.AssignedInspectorID == nil || *ins.AssignedInspectorID != actor.ID {
			apierrors.Forbidden(w, "Проверка назначена другому инспектору")
			return
		}
	}

	writeJSON(w, http.StatusOK, mapInspection(ins))
}

// UpdateInspection — PUT /api/v1/inspections/{id}.
// Основные поля, до назначения инспектора. Доступ: заказчик-владелец.
func (h *APIHandler) UpdateInspection(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFromContext(r)
	if !ok {
		apierrors.Unauthorized(w, "Отсутствует пользователь в контексте")
		return
	}

	var req inspectionDetailsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	ins, err := h.inspections.UpdateDetails(r.Context(), actor, chi.URLParam(r, "id"), service.UpdateDetailsInput{
		Title: req.Title,
		Type:  req.Type,
		Enterprise: model.Enterprise{
			Name:    req.Enterprise.Name,
			Address: req.Enterprise.Address,
		},
		PlanDate:      req.PlanDate,
		ReportDueDate: req.ReportDueDate,
	})
	if err != nil {
		h.writeServiceError(w, err, "Ошибка обновления проверки")
		return
	}
	writeJSON(w, http.StatusOK, mapInspection(ins))
}

// AssignInspection — POST /api/v1/inspections/{id}/assign.
// «ожидает утверждения» → «назначена». Доступ: seniorInspector.
func (h *APIHandler) AssignInspection(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFromContext(r)
	if !ok {
		apierrors.Unauthorized(w, "Отсутствует пользователь в контексте")
		return
	}

	var req struct {
		InspectorID string     `json:"inspectorId"`
		PlanDate    *time.Time `json:"planDate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}
	if req.InspectorID == "" {
		apierrors.ValidationError(w, "Необходимо указать inspectorId")
		return
	}

	ins, err := h.inspections.Assign(r.Context(), actor, chi.URLParam(r, "id"), req.InspectorID, req.PlanDate)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка назначения проверки")
		return
	}
	writeJSON(w, http.StatusOK, mapInspection(ins))
}

// CancelInspection — POST /api/v1/inspections/{id}/cancel.
// Любой нетерминальный статус → «отменена». Доступ: seniorInspector.
func (h *APIHandler) CancelInspection(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFromContext(r)
	if !ok {
		apierrors.Unauthorized(w, "Отсутствует пользователь в контексте")
		return
	}

	ins, err := h.inspections.Cancel(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err, "Ошибка отмены проверки")
		return
	}
	writeJSON(w, http.StatusOK, mapInspection(ins))
}

// StartInspection — POST /api/v1/inspections/{id}/start.
// «назначена» → «выполняется». Доступ: назначенный инспектор.
func (h *APIHandler) StartInspection(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFromContext(r)
	if !ok {
		apierrors.Unauthorized(w, "Отсутствует пользователь в контексте")
		return
	}

	ins, err := h.inspections.Start(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err, "Ошибка запуска проверки")
		return
	}
	writeJSON(w, http.StatusOK, mapInspection(ins))
}

// UpdateCheckItems — PUT /api/v1/inspections/{id}/check-items.
// Полная замена состава чек-листа до назначения.
// Доступ: заказчик-владелец.
func (h *APIHandler) UpdateCheckItems(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFromContext(r)
	if !ok {
		apierrors.Unauthorized(w, "Отсутствует пользователь в контексте")
		return
	}

	var req struct {
		ItemTexts []string `json:"itemTexts"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	ins, err := h.inspections.UpdateCheckItems(r.Context(), actor, chi.URLParam(r, "id"), req.ItemTexts)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка обновления чек-листа")
		return
	}
	writeJSON(w, http.StatusOK, mapInspection(ins))
}

// UpdateCheckItemStatus — PATCH /api/v1/inspections/{id}/check-items/{itemId}.
// Статус одного пункта. Доступ: назначенный инспектор.
func (h *APIHandler) UpdateCheckItemStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFromContext(r)
	if !ok {
		apierrors.Unauthorized(w, "Отсутствует пользователь в контексте")
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	ins, err := h.inspections.UpdateCheckItemStatus(
		r.Context(), actor,
		chi.URLParam(r, "id"), chi.URLParam(r, "itemId"),
		model.CheckItemStatus(req.Status),
	)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка обновления статуса пункта")
		return
	}
	writeJSON(w, http.StatusOK, mapInspection(ins))
}

// UpdatePhotos — PUT /api/v1/inspections/{id}/photos.
// Полная замена ссылок на фото. Доступ: назначенный инспектор.
func (h *APIHandler) UpdatePhotos(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFromContext(r)
	if !ok {
		apierrors.Unauthorized(w, "Отсутствует пользователь в контексте")
		return
	}

	var req struct {
		Photos []string `json:"photos"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	ins, err := h.inspections.UpdatePhotos(r.Context(), actor, chi.URLParam(r, "id"), req.Photos)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка обновления фото")
		return
	}
	writeJSON(w, http.StatusOK, mapInspection(ins))
}
