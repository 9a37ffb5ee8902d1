// templates.go — сервис шаблонов чек-листов.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/procheck/backend/internal/domain/model"
	"github.com/procheck/backend/internal/repository"
)

// TemplateService — сервис шаблонов чек-листов.
type TemplateService struct {
	templateRepo repository.TemplateRepository
	logger       *slog.Logger
}

// NewTemplateService создаёт сервис шаблонов.
func NewTemplateService(templateRepo repository.TemplateRepository, logger *slog.Logger) *TemplateService {
	return &TemplateService{
		templateRepo: templateRepo,
		logger:       logger.With(slog.String("component", "template_service")),
	}
}

// TemplateInput — параметры создания и обновления шаблона.
type TemplateInput struct {
	Title       string
	Description *string
	// ItemTexts — формулировки пунктов в нужном порядке
	ItemTexts []string
}

// validate проверяет входные данные шаблона.
func (in TemplateInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: название шаблона не может быть пустым", ErrValidation)
	}
	if len(in.ItemTexts) == 0 {
		return fmt.Errorf("%w: шаблон должен содержать хотя бы один пункт", ErrValidation)
	}
	for _, text := range in.ItemTexts {
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("%w: пункт шаблона не может быть пустым", ErrValidation)
		}
	}
	return nil
}

// makeItems создаёт пункты шаблона со свежими id.
func makeItems(texts []string) []model.CheckItemTemplate {
	items := make([]model.CheckItemTemplate, len(texts))
	for i, text := range texts {
		items[i] = model.CheckItemTemplate{
			ID:   uuid.New().String(),
			Text: text,
		}
	}
	return items
}

// Create создаёт шаблон от имени старшего инспектора.
func (s *TemplateService) Create(ctx context.Context, createdBy string, input TemplateInput) (*model.Template, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	tpl := &model.Template{
		ID:          uuid.New().String(),
		Title:       input.Title,
		Description: input.Description,
		Items:       makeItems(input.ItemTexts),
		CreatedBy:   createdBy,
	}
	if err := s.templateRepo.Create(ctx, tpl); err != nil {
		return nil, err
	}

	s.logger.Info("Шаблон создан",
		slog.String("template_id", tpl.ID),
		slog.Int("items", len(tpl.Items)),
	)
	return tpl, nil
}

// Get возвращает шаблон по id.
func (s *TemplateService) Get(ctx context.Context, id string) (*model.Template, error) {
	tpl, err := s.templateRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return tpl, nil
}

// List возвращает шаблоны.
func (s *TemplateService) List(ctx context.Context, limit, offset int) ([]*model.Template, int, error) {
	templates, err := s.templateRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.templateRepo.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return templates, total, nil
}

// Update обновляет шаблон, включая полную замену пунктов.
// Уже созданные проверки не затрагиваются: пункты штампуются при создании.
func (s *TemplateService) Update(ctx context.Context, id string, input TemplateInput) (*model.Template, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	tpl, err := s.templateRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	tpl.Title = input.Title
	tpl.Description = input.Description
	tpl.Items = makeItems(input.ItemTexts)

	if err := s.templateRepo.Update(ctx, tpl); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return tpl, nil
}

// Delete удаляет шаблон. Проверки, созданные по нему, не затрагиваются.
func (s *TemplateService) Delete(ctx context.Context, id string) error {
	if err := s.templateRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	s.logger.Info("Шаблон удалён", slog.String("template_id", id))
	return nil
}
