package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/procheck/backend/internal/domain/model"
)

// UserRepository — интерфейс CRUD для таблицы users.
type UserRepository interface {
	// Create создаёт нового пользователя.
	Create(ctx context.Context, u *model.User) error
	// GetByID возвращает пользователя по UUID.
	GetByID(ctx context.Context, id string) (*model.User, error)
	// GetByUsername возвращает пользователя по логину (без учёта регистра).
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	// List возвращает пользователей с фильтрацией по роли.
	List(ctx context.Context, role *string, limit, offset int) ([]*model.User, error)
	// Update обновляет профиль и роль пользователя.
	Update(ctx context.Context, u *model.User) error
	// UpdatePasswordHash заменяет хэш пароля.
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
	// UpdateLastLogin фиксирует время последнего входа.
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	// Delete удаляет пользователя. ErrConflict, если на пользователя
	// ссылаются проверки, отчёты, шаблоны или сообщения.
	Delete(ctx context.Context, id string) error
	// Count возвращает количество пользователей с фильтрацией по роли.
	Count(ctx context.Context, role *string) (int, error)
}

// userRepo — реализация UserRepository.
type userRepo struct {
	db DBTX
}

// NewUserRepository создаёт репозиторий пользователей.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepo{db: db}
}

const userColumns = `id, username, password_hash, role, full_name,
	avatar_uri, specialization, work_hours, phone, email,
	last_login_at, created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(
		&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.FullName,
		&u.Profile.AvatarURI, &u.Profile.Specialization, &u.Profile.WorkHours,
		&u.Profile.Phone, &u.Profile.Email,
		&u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *userRepo) Create(ctx context.Context, u *model.User) error {
	query := `
		INSERT INTO users (id, username, password_hash, role, full_name,
			avatar_uri, specialization, work_hours, phone, email)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		u.ID, u.Username, u.PasswordHash, u.Role, u.FullName,
		u.Profile.AvatarURI, u.Profile.Specialization, u.Profile.WorkHours,
		u.Profile.Phone, u.Profile.Email,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: логин уже занят", ErrConflict)
		}
		return fmt.Errorf("ошибка создания пользователя: %w", err)
	}
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return u, nil
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(username) = lower($1)`

	u, err := scanUser(r.db.QueryRow(ctx, query, username))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя по логину: %w", err)
	}
	return u, nil
}

func (r *userRepo) List(ctx context.Context, role *string, limit, offset int) ([]*model.User, error) {
	where := ""
	args := []any{}
	argNum := 1

	if role != nil {
		where = fmt.Sprintf("WHERE role = $%d", argNum)
		args = append(args, *role)
		argNum++
	}

	query := fmt.Sprintf(`
		SELECT `+userColumns+`
		FROM users
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, where, argNum, argNum+1)

	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка пользователей: %w", err)
	}
	defer rows.Close()

	var result []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования пользователя: %w", err)
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

func (r *userRepo) Update(ctx context.Context, u *model.User) error {
	query := `
		UPDATE users
		SET username = $2, role = $3, full_name = $4,
			avatar_uri = $5, specialization = $6, work_hours = $7,
			phone = $8, email = $9,
			updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		u.ID, u.Username, u.Role, u.FullName,
		u.Profile.AvatarURI, u.Profile.Specialization, u.Profile.WorkHours,
		u.Profile.Phone, u.Profile.Email,
	).Scan(&u.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrNotFound
		}
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: логин уже занят", ErrConflict)
		}
		return fmt.Errorf("ошибка обновления пользователя: %w", err)
	}
	return nil
}

func (r *userRepo) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`,
		id, passwordHash)
	if err != nil {
		return fmt.Errorf("ошибка смены пароля: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepo) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET last_login_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("ошибка обновления времени входа: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: на пользователя ссылаются другие записи", ErrConflict)
		}
		return fmt.Errorf("ошибка удаления пользователя: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepo) Count(ctx context.Context, role *string) (int, error) {
	where := ""
	args := []any{}
	if role != nil {
		where = "WHERE role = $1"
		args = append(args, *role)
	}

	var count int
	err := r.db.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM users %s`, where), args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта пользователей: %w", err)
	}
	return count, nil
}
