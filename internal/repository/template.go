package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/procheck/backend/internal/domain/model"
)

// TemplateRepository — интерфейс CRUD для шаблонов чек-листов.
// Пункты шаблона хранятся в template_items с сохранением порядка.
type TemplateRepository interface {
	// Create создаёт шаблон вместе с пунктами.
	Create(ctx context.Context, t *model.Template) error
	// GetByID возвращает шаблон с пунктами.
	GetByID(ctx context.Context, id string) (*model.Template, error)
	// List возвращает шаблоны с пунктами.
	List(ctx context.Context, limit, offset int) ([]*model.Template, error)
	// Update обновляет шаблон и полностью заменяет пункты.
	Update(ctx context.Context, t *model.Template) error
	// Delete удаляет шаблон (пункты — каскадно).
	Delete(ctx context.Context, id string) error
	// Count возвращает количество шаблонов.
	Count(ctx context.Context) (int, error)
}

// templateRepo — реализация TemplateRepository.
type templateRepo struct {
	db DBTX
}

// NewTemplateRepository создаёт репозиторий шаблонов.
func NewTemplateRepository(db DBTX) TemplateRepository {
	return &templateRepo{db: db}
}

func (r *templateRepo) Create(ctx context.Context, t *model.Template) error {
	query := `
		INSERT INTO templates (id, title, description, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		t.ID, t.Title, t.Description, t.CreatedBy,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания шаблона: %w", err)
	}

	return r.insertItems(ctx, t.ID, t.Items)
}

func (r *templateRepo) insertItems(ctx context.Context, templateID string, items []model.CheckItemTemplate) error {
	for i, item := range items {
		_, err := r.db.Exec(ctx,
			`INSERT INTO template_items (id, template_id, text, position) VALUES ($1, $2, $3, $4)`,
			item.ID, templateID, item.Text, i)
		if err != nil {
			return fmt.Errorf("ошибка создания пункта шаблона: %w", err)
		}
	}
	return nil
}

func (r *templateRepo) loadItems(ctx context.Context, templateID string) ([]model.CheckItemTemplate, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, text FROM template_items WHERE template_id = $1 ORDER BY position`,
		templateID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пунктов шаблона: %w", err)
	}
	defer rows.Close()

	var items []model.CheckItemTemplate
	for rows.Next() {
		var item model.CheckItemTemplate
		if err := rows.Scan(&item.ID, &item.Text); err != nil {
			return nil, fmt.Errorf("ошибка сканирования пункта шаблона: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *templateRepo) GetByID(ctx context.Context, id string) (*model.Template, error) {
	query := `
		SELECT id, title, description, created_by, created_at, updated_at
		FROM templates
		WHERE id = $1`

	t := &model.Template{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.Title, &t.Description, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения шаблона: %w", err)
	}

	t.Items, err = r.loadItems(ctx, id)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *templateRepo) List(ctx context.Context, limit, offset int) ([]*model.Template, error) {
	query := `
		SELECT id, title, description, created_by, created_at, updated_at
		FROM templates
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка шаблонов: %w", err)
	}
	defer rows.Close()

	var result []*model.Template
	for rows.Next() {
		t := &model.Template{}
		if err := rows.Scan(
			&t.ID, &t.Title, &t.Description, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования шаблона: %w", err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, t := range result {
		t.Items, err = r.loadItems(ctx, t.ID)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (r *templateRepo) Update(ctx context.Context, t *model.Template) error {
	query := `
		UPDATE templates
		SET title = $2, description = $3, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query, t.ID, t.Title, t.Description).Scan(&t.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка обновления шаблона: %w", err)
	}

	// Пункты заменяются целиком
	if _, err := r.db.Exec(ctx,
		`DELETE FROM template_items WHERE template_id = $1`, t.ID); err != nil {
		return fmt.Errorf("ошибка очистки пунктов шаблона: %w", err)
	}
	return r.insertItems(ctx, t.ID, t.Items)
}

func (r *templateRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления шаблона: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *templateRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM templates`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта шаблонов: %w", err)
	}
	return count, nil
}
