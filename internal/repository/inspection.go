package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/procheck/backend/internal/domain/model"
)

// InspectionFilter — параметры фильтрации и сортировки списка проверок.
type InspectionFilter struct {
	// CustomerID — только проверки этого заказчика
	CustomerID *string
	// AssignedInspectorID — только проверки, назначенные этому инспектору
	AssignedInspectorID *string
	// Statuses — только проверки в перечисленных статусах
	Statuses []model.InspectionStatus
	// SortBy — поле сортировки: plan_date, report_due_date, created_at
	SortBy string
	// SortDesc — сортировка по убыванию
	SortDesc bool
}

// InspectionRepository — интерфейс доступа к проверкам.
// Пункты чек-листа и фото хранятся в дочерних таблицах с сохранением порядка.
type InspectionRepository interface {
	// Create создаёт проверку вместе с пунктами и фото.
	Create(ctx context.Context, ins *model.Inspection) error
	// GetByID возвращает проверку с пунктами и фото.
	GetByID(ctx context.Context, id string) (*model.Inspection, error)
	// List возвращает проверки по фильтру.
	List(ctx context.Context, filter InspectionFilter, limit, offset int) ([]*model.Inspection, error)
	// Update обновляет основные поля проверки (без пунктов и фото).
	Update(ctx context.Context, ins *model.Inspection) error
	// ReplaceCheckItems полностью заменяет пункты чек-листа.
	ReplaceCheckItems(ctx context.Context, inspectionID string, items []model.CheckItem) error
	// UpdateCheckItemStatus меняет статус одного пункта.
	UpdateCheckItemStatus(ctx context.Context, inspectionID, itemID string, status model.CheckItemStatus) error
	// ReplacePhotos полностью заменяет список фото.
	ReplacePhotos(ctx context.Context, inspectionID string, photos []string) error
	// Delete удаляет проверку (пункты и фото — каскадно).
	Delete(ctx context.Context, id string) error
	// Count возвращает количество проверок по фильтру.
	Count(ctx context.Context, filter InspectionFilter) (int, error)
}

// inspectionRepo — реализация InspectionRepository.
type inspectionRepo struct {
	db DBTX
}

// NewInspectionRepository создаёт репозиторий проверок.
func NewInspectionRepository(db DBTX) InspectionRepository {
	return &inspectionRepo{db: db}
}

const inspectionColumns = `id, title, type, customer_id, template_id,
	enterprise_name, enterprise_address, plan_date, report_due_date, status,
	assigned_inspector_id, approved_by_id, approved_at, report_id,
	created_at, updated_at`

func scanInspection(row pgx.Row) (*model.Inspection, error) {
	ins := &model.Inspection{}
	err := row.Scan(
		&ins.ID, &ins.Title, &ins.Type, &ins.CustomerID, &ins.TemplateID,
		&ins.Enterprise.Name, &ins.Enterprise.Address,
		&ins.PlanDate, &ins.ReportDueDate, &ins.Status,
		&ins.AssignedInspectorID, &ins.ApprovedByID, &ins.ApprovedAt, &ins.ReportID,
		&ins.CreatedAt, &ins.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return ins, nil
}

func (r *inspectionRepo) Create(ctx context.Context, ins *model.Inspection) error {
	query := `
		INSERT INTO inspections (id, title, type, customer_id, template_id,
			enterprise_name, enterprise_address, plan_date, report_due_date, status,
			assigned_inspector_id, approved_by_id, approved_at, report_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		ins.ID, ins.Title, ins.Type, ins.CustomerID, ins.TemplateID,
		ins.Enterprise.Name, ins.Enterprise.Address,
		ins.PlanDate, ins.ReportDueDate, ins.Status,
		ins.AssignedInspectorID, ins.ApprovedByID, ins.ApprovedAt, ins.ReportID,
	).Scan(&ins.CreatedAt, &ins.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания проверки: %w", err)
	}

	if err := r.insertCheckItems(ctx, ins.ID, ins.CheckItems); err != nil {
		return err
	}
	return r.insertPhotos(ctx, ins.ID, ins.Photos)
}

func (r *inspectionRepo) insertCheckItems(ctx context.Context, inspectionID string, items []model.CheckItem) error {
	for i, item := range items {
		_, err := r.db.Exec(ctx,
			`INSERT INTO check_items (id, inspection_id, text, status, position)
			 VALUES ($1, $2, $3, $4, $5)`,
			item.ID, inspectionID, item.Text, item.Status, i)
		if err != nil {
			return fmt.Errorf("ошибка создания пункта чек-листа: %w", err)
		}
	}
	return nil
}

func (r *inspectionRepo) insertPhotos(ctx context.Context, inspectionID string, photos []string) error {
	for i, ref := range photos {
		_, err := r.db.Exec(ctx,
			`INSERT INTO inspection_photos (inspection_id, photo_ref, position) VALUES ($1, $2, $3)`,
			inspectionID, ref, i)
		if err != nil {
			return fmt.Errorf("ошибка сохранения фото: %w", err)
		}
	}
	return nil
}

func (r *inspectionRepo) loadChildren(ctx context.Context, ins *model.Inspection) error {
	rows, err := r.db.Query(ctx,
		`SELECT id, text, status FROM check_items WHERE inspection_id = $1 ORDER BY position`,
		ins.ID)
	if err != nil {
		return fmt.Errorf("ошибка получения пунктов чек-листа: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item model.CheckItem
		if err := rows.Scan(&item.ID, &item.Text, &item.Status); err != nil {
			return fmt.Errorf("ошибка сканирования пункта чек-листа: %w", err)
		}
		ins.CheckItems = append(ins.CheckItems, item)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	photoRows, err := r.db.Query(ctx,
		`SELECT photo_ref FROM inspection_photos WHERE inspection_id = $1 ORDER BY position`,
		ins.ID)
	if err != nil {
		return fmt.Errorf("ошибка получения фото: %w", err)
	}
	defer photoRows.Close()

	for photoRows.Next() {
		var ref string
		if err := photoRows.Scan(&ref); err != nil {
			return fmt.Errorf("ошибка сканирования фото: %w", err)
		}
		ins.Photos = append(ins.Photos, ref)
	}
	return photoRows.Err()
}

func (r *inspectionRepo) GetByID(ctx context.Context, id string) (*model.Inspection, error) {
	query := `SELECT ` + inspectionColumns + ` FROM inspections WHERE id = $1`

	ins, err := scanInspection(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения проверки: %w", err)
	}

	if err := r.loadChildren(ctx, ins); err != nil {
		return nil, err
	}
	return ins, nil
}

// buildWhere собирает условия WHERE по фильтру. Возвращает SQL-фрагмент,
// аргументы и номер следующего placeholder.
func buildWhere(filter InspectionFilter) (string, []any, int) {
	var conditions []string
	var args []any
	argNum := 1

	if filter.CustomerID != nil {
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", argNum))
		args = append(args, *filter.CustomerID)
		argNum++
	}
	if filter.AssignedInspectorID != nil {
		conditions = append(conditions, fmt.Sprintf("assigned_inspector_id = $%d", argNum))
		args = append(args, *filter.AssignedInspectorID)
		argNum++
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			placeholders[i] = fmt.Sprintf("$%d", argNum)
			args = append(args, s)
			argNum++
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ", ")))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	return where, args, argNum
}

// sortColumn отображает имя поля сортировки на столбец.
// Неизвестные значения сводятся к created_at.
func sortColumn(sortBy string) string {
	switch sortBy {
	case "plan_date", "report_due_date", "created_at":
		return sortBy
	}
	return "created_at"
}

func (r *inspectionRepo) List(ctx context.Context, filter InspectionFilter, limit, offset int) ([]*model.Inspection, error) {
	where, args, argNum := buildWhere(filter)

	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}

	query := fmt.Sprintf(`
		SELECT `+inspectionColumns+`
		FROM inspections
		%s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d`, where, sortColumn(filter.SortBy), direction, argNum, argNum+1)

	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка проверок: %w", err)
	}
	defer rows.Close()

	var result []*model.Inspection
	for rows.Next() {
		ins, err := scanInspection(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования проверки: %w", err)
		}
		result = append(result, ins)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, ins := range result {
		if err := r.loadChildren(ctx, ins); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (r *inspectionRepo) Update(ctx context.Context, ins *model.Inspection) error {
	query := `
		UPDATE inspections
		SET title = $2, type = $3, template_id = $4,
			enterprise_name = $5, enterprise_address = $6,
			plan_date = $7, report_due_date = $8, status = $9,
			assigned_inspector_id = $10, approved_by_id = $11, approved_at = $12,
			report_id = $13, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		ins.ID, ins.Title, ins.Type, ins.TemplateID,
		ins.Enterprise.Name, ins.Enterprise.Address,
		ins.PlanDate, ins.ReportDueDate, ins.Status,
		ins.AssignedInspectorID, ins.ApprovedByID, ins.ApprovedAt,
		ins.ReportID,
	).Scan(&ins.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка обновления проверки: %w", err)
	}
	return nil
}

func (r *inspectionRepo) ReplaceCheckItems(ctx context.Context, inspectionID string, items []model.CheckItem) error {
	if _, err := r.db.Exec(ctx,
		`DELETE FROM check_items WHERE inspection_id = $1`, inspectionID); err != nil {
		return fmt.Errorf("ошибка очистки пунктов чек-листа: %w", err)
	}
	if err := r.insertCheckItems(ctx, inspectionID, items); err != nil {
		return err
	}

	_, err := r.db.Exec(ctx,
		`UPDATE inspections SET updated_at = now() WHERE id = $1`, inspectionID)
	if err != nil {
		return fmt.Errorf("ошибка обновления проверки: %w", err)
	}
	return nil
}

func (r *inspectionRepo) UpdateCheckItemStatus(ctx context.Context, inspectionID, itemID string, status model.CheckItemStatus) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE check_items SET status = $3 WHERE inspection_id = $1 AND id = $2`,
		inspectionID, itemID, status)
	if err != nil {
		return fmt.Errorf("ошибка обновления статуса пункта: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	_, err = r.db.Exec(ctx,
		`UPDATE inspections SET updated_at = now() WHERE id = $1`, inspectionID)
	if err != nil {
		return fmt.Errorf("ошибка обновления проверки: %w", err)
	}
	return nil
}

func (r *inspectionRepo) ReplacePhotos(ctx context.Context, inspectionID string, photos []string) error {
	if _, err := r.db.Exec(ctx,
		`DELETE FROM inspection_photos WHERE inspection_id = $1`, inspectionID); err != nil {
		return fmt.Errorf("ошибка очистки фото: %w", err)
	}
	if err := r.insertPhotos(ctx, inspectionID, photos); err != nil {
		return err
	}

	_, err := r.db.Exec(ctx,
		`UPDATE inspections SET updated_at = now() WHERE id = $1`, inspectionID)
	if err != nil {
		return fmt.Errorf("ошибка обновления проверки: %w", err)
	}
	return nil
}

func (r *inspectionRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM inspections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления проверки: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *inspectionRepo) Count(ctx context.Context, filter InspectionFilter) (int, error) {
	where, args, _ := buildWhere(filter)

	var count int
	err := r.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM inspections %s`, where), args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта проверок: %w", err)
	}
	return count, nil
}
