package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/procheck/backend/internal/domain/model"
)

// AccountRequestRepository — интерфейс доступа к заявкам на создание аккаунта.
type AccountRequestRepository interface {
	// Create создаёт заявку. ErrConflict, если по логину уже есть
	// необработанная заявка.
	Create(ctx context.Context, ar *model.AccountRequest) error
	// GetByID возвращает заявку по UUID.
	GetByID(ctx context.Context, id string) (*model.AccountRequest, error)
	// GetPendingByUsername возвращает необработанную заявку по логину
	// (без учёта регистра).
	GetPendingByUsername(ctx context.Context, username string) (*model.AccountRequest, error)
	// List возвращает заявки с фильтрацией по статусу.
	List(ctx context.Context, status *model.RequestStatus, limit, offset int) ([]*model.AccountRequest, error)
	// UpdateReview фиксирует решение администратора по заявке.
	UpdateReview(ctx context.Context, id string, status model.RequestStatus, reviewedBy string, reviewedAt time.Time) error
	// Count возвращает количество заявок с фильтрацией по статусу.
	Count(ctx context.Context, status *model.RequestStatus) (int, error)
}

// accountRequestRepo — реализация AccountRequestRepository.
type accountRequestRepo struct {
	db DBTX
}

// NewAccountRequestRepository создаёт репозиторий заявок.
func NewAccountRequestRepository(db DBTX) AccountRequestRepository {
	return &accountRequestRepo{db: db}
}

const accountRequestColumns = `id, username, password_hash, role, purpose,
	status, reviewed_by, reviewed_at, requested_at`

func scanAccountRequest(row pgx.Row) (*model.AccountRequest, error) {
	ar := &model.AccountRequest{}
	err := row.Scan(
		&ar.ID, &ar.Username, &ar.PasswordHash, &ar.Role, &ar.Purpose,
		&ar.Status, &ar.ReviewedBy, &ar.ReviewedAt, &ar.RequestedAt,
	)
	if err != nil {
		return nil, err
	}
	return ar, nil
}

func (r *accountRequestRepo) Create(ctx context.Context, ar *model.AccountRequest) error {
	query := `
		INSERT INTO account_requests (id, username, password_hash, role, purpose, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING requested_at`

	err := r.db.QueryRow(ctx, query,
		ar.ID, ar.Username, ar.PasswordHash, ar.Role, ar.Purpose, ar.Status,
	).Scan(&ar.RequestedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: заявка с таким логином уже подана", ErrConflict)
		}
		return fmt.Errorf("ошибка создания заявки: %w", err)
	}
	return nil
}

func (r *accountRequestRepo) GetByID(ctx context.Context, id string) (*model.AccountRequest, error) {
	query := `SELECT ` + accountRequestColumns + ` FROM account_requests WHERE id = $1`

	ar, err := scanAccountRequest(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения заявки: %w", err)
	}
	return ar, nil
}

func (r *accountRequestRepo) GetPendingByUsername(ctx context.Context, username string) (*model.AccountRequest, error) {
	query := `
		SELECT ` + accountRequestColumns + `
		FROM account_requests
		WHERE lower(username) = lower($1) AND status = $2
		LIMIT 1`

	ar, err := scanAccountRequest(r.db.QueryRow(ctx, query, username, model.RequestPending))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка поиска заявки по логину: %w", err)
	}
	return ar, nil
}

func (r *accountRequestRepo) List(ctx context.Context, status *model.RequestStatus, limit, offset int) ([]*model.AccountRequest, error) {
	where := ""
	args := []any{}
	argNum := 1

	if status != nil {
		where = fmt.Sprintf("WHERE status = $%d", argNum)
		args = append(args, *status)
		argNum++
	}

	query := fmt.Sprintf(`
		SELECT `+accountRequestColumns+`
		FROM account_requests
		%s
		ORDER BY requested_at DESC
		LIMIT $%d OFFSET $%d`, where, argNum, argNum+1)

	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка заявок: %w", err)
	}
	defer rows.Close()

	var result []*model.AccountRequest
	for rows.Next() {
		ar, err := scanAccountRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования заявки: %w", err)
		}
		result = append(result, ar)
	}
	return result, rows.Err()
}

func (r *accountRequestRepo) UpdateReview(ctx context.Context, id string, status model.RequestStatus, reviewedBy string, reviewedAt time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE account_requests
		 SET status = $2, reviewed_by = $3, reviewed_at = $4
		 WHERE id = $1`,
		id, status, reviewedBy, reviewedAt)
	if err != nil {
		return fmt.Errorf("ошибка обновления заявки: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *accountRequestRepo) Count(ctx context.Context, status *model.RequestStatus) (int, error) {
	where := ""
	args := []any{}
	if status != nil {
		where = "WHERE status = $1"
		args = append(args, *status)
	}

	var count int
	err := r.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM account_requests %s`, where), args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта заявок: %w", err)
	}
	return count, nil
}
