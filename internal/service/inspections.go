// inspections.go — сервис жизненного цикла проверок.
// Переходы статусов валидируются машиной состояний (пакет lifecycle),
// роль и личность актора проверяются здесь.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/procheck/backend/internal/domain/lifecycle"
	"github.com/procheck/backend/internal/domain/model"
	"github.com/procheck/backend/internal/repository"
)

// Actor — вызывающий операцию пользователь.
type Actor struct {
	// ID — id пользователя
	ID string
	// Role — роль пользователя
	Role model.Role
}

// InspectionService — сервис проверок.
type InspectionService struct {
	inspectionRepo repository.InspectionRepository
	templateRepo   repository.TemplateRepository
	userRepo       repository.UserRepository
	logger         *slog.Logger
}

// NewInspectionService создаёт сервис проверок.
func NewInspectionService(
	inspectionRepo repository.InspectionRepository,
	templateRepo repository.TemplateRepository,
	userRepo repository.UserRepository,
	logger *slog.Logger,
) *InspectionService {
	return &InspectionService{
		inspectionRepo: inspectionRepo,
		templateRepo:   templateRepo,
		userRepo:       userRepo,
		logger:         logger.With(slog.String("component", "inspection_service")),
	}
}

// CreateInspectionInput — параметры создания проверки заказчиком.
type CreateInspectionInput struct {
	Title         string
	Type          string
	Enterprise    model.Enterprise
	PlanDate      time.Time
	ReportDueDate time.Time
	// TemplateID — шаблон для штамповки пунктов (опционально)
	TemplateID *string
	// ItemTexts — пункты, заданные вручную; игнорируются при наличии шаблона
	ItemTexts []string
}

// Create создаёт проверку от имени заказчика. Пункты штампуются из
// шаблона (свежие id, статус «не проверено») либо задаются вручную.
// Начальный статус — «ожидает утверждения».
func (s *InspectionService) Create(ctx context.Context, actor Actor, input CreateInspectionInput) (*model.Inspection, error) {
	if actor.Role != model.RoleCustomer {
		return nil, ErrForbidden
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("%w: название проверки не может быть пустым", ErrValidation)
	}
	if strings.TrimSpace(input.Enterprise.Name) == "" {
		return nil, fmt.Errorf("%w: название предприятия не может быть пустым", ErrValidation)
	}

	var items []model.CheckItem
	switch {
	case input.TemplateID != nil:
		tpl, err := s.templateRepo.GetByID(ctx, *input.TemplateID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: шаблон не найден", ErrNotFound)
			}
			return nil, err
		}
		// Штамп: пункты копируются со свежими id, связь с шаблоном
		// остаётся только как provenance
		items = make([]model.CheckItem, len(tpl.Items))
		for i, ti := range tpl.Items {
			items[i] = model.CheckItem{
				ID:     uuid.New().String(),
				Text:   ti.Text,
				Status: model.CheckUnverified,
			}
		}
	default:
		items = make([]model.CheckItem, len(input.ItemTexts))
		for i, text := range input.ItemTexts {
			if strings.TrimSpace(text) == "" {
				return nil, fmt.Errorf("%w: пункт чек-листа не может быть пустым", ErrValidation)
			}
			items[i] = model.CheckItem{
				ID:     uuid.New().String(),
				Text:   text,
				Status: model.CheckUnverified,
			}
		}
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: чек-лист не может быть пустым", ErrValidation)
	}

	ins := &model.Inspection{
		ID:            uuid.New().String(),
		Title:         input.Title,
		Type:          input.Type,
		CustomerID:    actor.ID,
		TemplateID:    input.TemplateID,
		Enterprise:    input.Enterprise,
		PlanDate:      input.PlanDate,
		ReportDueDate: input.ReportDueDate,
		Status:        model.StatusPendingApproval,
		CheckItems:    items,
	}
	if err := s.inspectionRepo.Create(ctx, ins); err != nil {
		return nil, err
	}

	s.logger.Info("Проверка создана",
		slog.String("inspection_id", ins.ID),
		slog.String("customer_id", actor.ID),
		slog.Int("items", len(items)),
	)
	return ins, nil
}

// get загружает проверку, транслируя ErrNotFound.
func (s *InspectionService) get(ctx context.Context, id string) (*model.Inspection, error) {
	ins, err := s.inspectionRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return ins, nil
}

// checkActor проверяет требование машины состояний к актору.
func checkActor(req lifecycle.RequiredActor, actor Actor, ins *model.Inspection) error {
	if actor.Role != req.Role {
		return ErrForbidden
	}
	if req.MustBeAssigned {
		if ins.AssignedInspectorID == nil || *ins.AssignedInspectorID != actor.ID {
			return ErrForbidden
		}
	}
	if req.MustBeOwner && ins.CustomerID != actor.ID {
		return ErrForbidden
	}
	return nil
}

// transition применяет переход статуса с проверкой машины состояний
// и требования к актору. mutate вызывается перед записью для
// сопутствующих полей.
func (s *InspectionService) transition(ctx context.Context, actor Actor, id string, to model.InspectionStatus, mutate func(*model.Inspection)) (*model.Inspection, error) {
	ins, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	req, ok := lifecycle.ActorFor(to)
	if !ok {
		return nil, fmt.Errorf("%w: переход в статус %q не поддерживается", ErrInvalidState, to)
	}
	if err := checkActor(req, actor, ins); err != nil {
		return nil, err
	}
	if !lifecycle.Allowed(ins.Status, to) {
		return nil, fmt.Errorf("%w: переход %q → %q недопустим", ErrInvalidState, ins.Status, to)
	}

	from := ins.Status
	ins.Status = to
	if mutate != nil {
		mutate(ins)
	}
	if err := s.inspectionRepo.Update(ctx, ins); err != nil {
		return nil, err
	}

	s.logger.Info("Статус проверки изменён",
		slog.String("inspection_id", ins.ID),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
		slog.String("actor_id", actor.ID),
	)
	return ins, nil
}

// Assign утверждает проверку и назначает инспектора: «ожидает
// утверждения» → «назначена». Возможен перенос плановой даты.
func (s *InspectionService) Assign(ctx context.Context, actor Actor, id, inspectorID string, planDate *time.Time) (*model.Inspection, error) {
	inspector, err := s.userRepo.GetByID(ctx, inspectorID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: инспектор не найден", ErrNotFound)
		}
		return nil, err
	}
	if inspector.Role != model.RoleInspector {
		return nil, fmt.Errorf("%w: пользователь %q не инспектор", ErrValidation, inspectorID)
	}

	now := time.Now().UTC()
	return s.transition(ctx, actor, id, model.StatusAssigned, func(ins *model.Inspection) {
		ins.AssignedInspectorID = &inspectorID
		ins.ApprovedByID = &actor.ID
		ins.ApprovedAt = &now
		if planDate != nil {
			ins.PlanDate = *planDate
		}
	})
}

// Cancel отменяет проверку из любого нетерминального статуса.
func (s *InspectionService) Cancel(ctx context.Context, actor Actor, id string) (*model.Inspection, error) {
	now := time.Now().UTC()
	return s.transition(ctx, actor, id, model.StatusCancelled, func(ins *model.Inspection) {
		ins.ApprovedByID = &actor.ID
		ins.ApprovedAt = &now
	})
}

// Start переводит проверку в работу: «назначена» → «выполняется».
func (s *InspectionService) Start(ctx context.Context, actor Actor, id string) (*model.Inspection, error) {
	return s.transition(ctx, actor, id, model.StatusInProgress, nil)
}

// complete переводит проверку в «завершена» и привязывает отчёт.
// Вызывается только сервисом отчётов внутри транзакции создания отчёта;
// проверка прав и статуса выполнена вызывающим.
func completeWithReport(ins *model.Inspection, reportID string) {
	ins.Status = model.StatusCompleted
	ins.ReportID = &reportID
}

// UpdateCheckItems заменяет состав чек-листа. Разрешено владельцу-заказчику
// до назначения инспектора.
func (s *InspectionService) UpdateCheckItems(ctx context.Context, actor Actor, id string, itemTexts []string) (*model.Inspection, error) {
	ins, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != model.RoleCustomer || ins.CustomerID != actor.ID {
		return nil, ErrForbidden
	}
	if !lifecycle.CanEditCheckItems(ins.Status) {
		return nil, fmt.Errorf("%w: состав чек-листа фиксируется после назначения", ErrInvalidState)
	}
	if len(itemTexts) == 0 {
		return nil, fmt.Errorf("%w: чек-лист не может быть пустым", ErrValidation)
	}

	items := make([]model.CheckItem, len(itemTexts))
	for i, text := range itemTexts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("%w: пункт чек-листа не может быть пустым", ErrValidation)
		}
		items[i] = model.CheckItem{
			ID:     uuid.New().String(),
			Text:   text,
			Status: model.CheckUnverified,
		}
	}

	if err := s.inspectionRepo.ReplaceCheckItems(ctx, id, items); err != nil {
		return nil, err
	}
	ins.CheckItems = items
	return ins, nil
}

// UpdateCheckItemStatus выставляет статус одного пункта чек-листа.
// Разрешено назначенному инспектору, пока проверка назначена или
// выполняется. Статус самой проверки не меняется.
func (s *InspectionService) UpdateCheckItemStatus(ctx context.Context, actor Actor, id, itemID string, status model.CheckItemStatus) (*model.Inspection, error) {
	if !model.IsValidCheckItemStatus(status) {
		return nil, fmt.Errorf("%w: недопустимый статус пункта %q", ErrValidation, status)
	}

	ins, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != model.RoleInspector || ins.AssignedInspectorID == nil || *ins.AssignedInspectorID != actor.ID {
		return nil, ErrForbidden
	}
	if !lifecycle.CanEditCheckItemStatus(ins.Status) {
		return nil, fmt.Errorf("%w: статусы пунктов выставляются в статусах «назначена» и «выполняется»", ErrInvalidState)
	}

	if err := s.inspectionRepo.UpdateCheckItemStatus(ctx, id, itemID, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: пункт чек-листа не найден", ErrNotFound)
		}
		return nil, err
	}
	return s.get(ctx, id)
}

// UpdatePhotos заменяет список ссылок на фото. Разрешено назначенному
// инспектору в любом нетерминальном статусе.
func (s *InspectionService) UpdatePhotos(ctx context.Context, actor Actor, id string, photos []string) (*model.Inspection, error) {
	ins, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != model.RoleInspector || ins.AssignedInspectorID == nil || *ins.AssignedInspectorID != actor.ID {
		return nil, ErrForbidden
	}
	if !lifecycle.CanEditPhotos(ins.Status) {
		return nil, fmt.Errorf("%w: завершённая или отменённая проверка неизменяема", ErrInvalidState)
	}

	if err := s.inspectionRepo.ReplacePhotos(ctx, id, photos); err != nil {
		return nil, err
	}
	ins.Photos = photos
	return ins, nil
}

// UpdateDetailsInput — редактируемые заказчиком поля проверки.
type UpdateDetailsInput struct {
	Title         string
	Type          string
	Enterprise    model.Enterprise
	PlanDate      time.Time
	ReportDueDate time.Time
}

// UpdateDetails обновляет основные поля проверки. Разрешено
// владельцу-заказчику до назначения инспектора.
func (s *InspectionService) UpdateDetails(ctx context.Context, actor Actor, id string, input UpdateDetailsInput) (*model.Inspection, error) {
	ins, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != model.RoleCustomer || ins.CustomerID != actor.ID {
		return nil, ErrForbidden
	}
	if ins.Status != model.StatusPendingApproval && ins.Status != model.StatusDraft {
		return nil, fmt.Errorf("%w: поля проверки фиксируются после назначения", ErrInvalidState)
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("%w: название проверки не может быть пустым", ErrValidation)
	}

	ins.Title = input.Title
	ins.Type = input.Type
	ins.Enterprise = input.Enterprise
	ins.PlanDate = input.PlanDate
	ins.ReportDueDate = input.ReportDueDate

	if err := s.inspectionRepo.Update(ctx, ins); err != nil {
		return nil, err
	}
	return ins, nil
}

// Get возвращает проверку по id.
func (s *InspectionService) Get(ctx context.Context, id string) (*model.Inspection, error) {
	return s.get(ctx, id)
}

// ListInput — параметры выборки проверок.
type ListInput struct {
	// CustomerID — только проверки этого заказчика
	CustomerID *string
	// AssignedInspectorID — только проверки этого инспектора
	AssignedInspectorID *string
	// Statuses — только перечисленные статусы
	Statuses []model.InspectionStatus
	// ActiveOnly — только активные (не завершённые и не отменённые)
	ActiveOnly bool
	// SortBy — plan_date, report_due_date или created_at
	SortBy string
	// SortDesc — по убыванию
	SortDesc bool
}

// List возвращает проверки по фильтру. Выборки — производные,
// состояние не изменяют.
func (s *InspectionService) List(ctx context.Context, input ListInput, limit, offset int) ([]*model.Inspection, int, error) {
	for _, st := range input.Statuses {
		if !model.IsValidInspectionStatus(st) {
			return nil, 0, fmt.Errorf("%w: недопустимый статус %q", ErrValidation, st)
		}
	}

	statuses := input.Statuses
	if input.ActiveOnly {
		statuses = []model.InspectionStatus{
			model.StatusDraft,
			model.StatusPendingApproval,
			model.StatusApproved,
			model.StatusAssigned,
			model.StatusInProgress,
		}
	}

	filter := repository.InspectionFilter{
		CustomerID:          input.CustomerID,
		AssignedInspectorID: input.AssignedInspectorID,
		Statuses:            statuses,
		SortBy:              input.SortBy,
		SortDesc:            input.SortDesc,
	}

	list, err := s.inspectionRepo.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.inspectionRepo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}
