package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/procheck/backend/internal/domain/model"
)

// ReportRepository — интерфейс доступа к отчётам.
// На одну проверку допускается только один отчёт (unique index).
type ReportRepository interface {
	// Create создаёт отчёт.
	Create(ctx context.Context, rep *model.Report) error
	// GetByID возвращает отчёт по UUID.
	GetByID(ctx context.Context, id string) (*model.Report, error)
	// GetByInspectionID возвращает отчёт по ID проверки.
	GetByInspectionID(ctx context.Context, inspectionID string) (*model.Report, error)
	// List возвращает отчёты с фильтрацией по заказчику и автору.
	List(ctx context.Context, customerID, createdBy *string, limit, offset int) ([]*model.Report, error)
	// SetLocked выставляет признак блокировки.
	SetLocked(ctx context.Context, id string, locked bool) error
	// Delete удаляет отчёт.
	Delete(ctx context.Context, id string) error
}

// reportRepo — реализация ReportRepository.
type reportRepo struct {
	db DBTX
}

// NewReportRepository создаёт репозиторий отчётов.
func NewReportRepository(db DBTX) ReportRepository {
	return &reportRepo{db: db}
}

const reportColumns = `id, inspection_id, created_by, customer_id,
	document_ref, editable_until, locked, created_at`

func scanReport(row pgx.Row) (*model.Report, error) {
	rep := &model.Report{}
	err := row.Scan(
		&rep.ID, &rep.InspectionID, &rep.CreatedBy, &rep.CustomerID,
		&rep.DocumentRef, &rep.EditableUntil, &rep.Locked, &rep.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rep, nil
}

func (r *reportRepo) Create(ctx context.Context, rep *model.Report) error {
	query := `
		INSERT INTO reports (id, inspection_id, created_by, customer_id,
			document_ref, editable_until, locked)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		rep.ID, rep.InspectionID, rep.CreatedBy, rep.CustomerID,
		rep.DocumentRef, rep.EditableUntil, rep.Locked,
	).Scan(&rep.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: отчёт по проверке уже существует", ErrConflict)
		}
		return fmt.Errorf("ошибка создания отчёта: %w", err)
	}
	return nil
}

func (r *reportRepo) GetByID(ctx context.Context, id string) (*model.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`

	rep, err := scanReport(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения отчёта: %w", err)
	}
	return rep, nil
}

func (r *reportRepo) GetByInspectionID(ctx context.Context, inspectionID string) (*model.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE inspection_id = $1`

	rep, err := scanReport(r.db.QueryRow(ctx, query, inspectionID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения отчёта по проверке: %w", err)
	}
	return rep, nil
}

func (r *reportRepo) List(ctx context.Context, customerID, createdBy *string, limit, offset int) ([]*model.Report, error) {
	var conditions []string
	var args []any
	argNum := 1

	if customerID != nil {
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", argNum))
		args = append(args, *customerID)
		argNum++
	}
	if createdBy != nil {
		conditions = append(conditions, fmt.Sprintf("created_by = $%d", argNum))
		args = append(args, *createdBy)
		argNum++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT `+reportColumns+`
		FROM reports
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, where, argNum, argNum+1)

	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка отчётов: %w", err)
	}
	defer rows.Close()

	var result []*model.Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования отчёта: %w", err)
		}
		result = append(result, rep)
	}
	return result, rows.Err()
}

func (r *reportRepo) SetLocked(ctx context.Context, id string, locked bool) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE reports SET locked = $2 WHERE id = $1`, id, locked)
	if err != nil {
		return fmt.Errorf("ошибка блокировки отчёта: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *reportRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM reports WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления отчёта: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
