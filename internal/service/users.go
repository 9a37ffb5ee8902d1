// users.go — сервис управления пользователями.
// Создание администратором (с приветственным чатом), профили, смена пароля.
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

// welcomeMessageCreated — приветственное сообщение при создании
// пользователя администратором.
const welcomeMessageCreated = "Добро пожаловать в ProCheck! Вы можете обратиться ко мне за помощью в этом чате."

// UserService — сервис управления пользователями.
type UserService struct {
	userRepo repository.UserRepository
	chatSvc  *ChatService
	logger   *slog.Logger
}

// NewUserService создаёт сервис пользователей.
func NewUserService(userRepo repository.UserRepository, chatSvc *ChatService, logger *slog.Logger) *UserService {
	return &UserService{
		userRepo: userRepo,
		chatSvc:  chatSvc,
		logger:   logger.With(slog.String("component", "user_service")),
	}
}

// CreateUserInput — параметры создания пользователя администратором.
type CreateUserInput struct {
	Username string
	Password string
	Role     model.Role
	FullName string
	Profile  model.Profile
}

// Create создаёт пользователя и заводит приветственный чат с
// администратором. Ошибка провизии чата логируется и не ломает создание.
func (s *UserService) Create(ctx context.Context, adminID string, input CreateUserInput) (*model.User, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" {
		return nil, fmt.Errorf("%w: логин не может быть пустым", ErrValidation)
	}
	if !model.IsValidRole(input.Role) {
		return nil, fmt.Errorf("%w: недопустимая роль %q", ErrValidation, input.Role)
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	fullName := strings.TrimSpace(input.FullName)
	if fullName == "" {
		fullName = username
	}

	user := &model.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: hash,
		Role:         input.Role,
		FullName:     fullName,
		Profile:      input.Profile,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: логин %q уже занят", ErrConflict, username)
		}
		return nil, err
	}

	s.logger.Info("Пользователь создан",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)

	if err := s.chatSvc.ProvisionWelcome(ctx, adminID, user.ID, user.FullName, welcomeMessageCreated); err != nil {
		s.logger.Warn("Не удалось создать приветственный чат",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	return user, nil
}

// Get возвращает пользователя по id.
func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

// List возвращает пользователей с фильтрацией по роли.
func (s *UserService) List(ctx context.Context, role *string, limit, offset int) ([]*model.User, int, error) {
	if role != nil && !model.IsValidRole(model.Role(*role)) {
		return nil, 0, fmt.Errorf("%w: недопустимая роль %q", ErrValidation, *role)
	}

	users, err := s.userRepo.List(ctx, role, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.userRepo.Count(ctx, role)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// UpdateProfile обновляет полное имя и профиль пользователя.
// Разрешено самому пользователю и администратору.
func (s *UserService) UpdateProfile(ctx context.Context, callerID string, callerRole model.Role, userID, fullName string, profile model.Profile) (*model.User, error) {
	if callerID != userID && callerRole != model.RoleAdmin {
		return nil, ErrForbidden
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if fullName != "" {
		user.FullName = fullName
	}
	user.Profile = profile

	if err := s.userRepo.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

// ChangePassword меняет пароль пользователя. Разрешено только самому
// пользователю после проверки текущего пароля.
func (s *UserService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	if err := compareHashAndPassword(user.PasswordHash, currentPassword); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.userRepo.UpdatePasswordHash(ctx, userID, hash)
}

// Delete удаляет пользователя. Администратор не может удалить сам себя.
// Пользователь со связанными проверками, отчётами или сообщениями
// не удаляется — конфликт.
func (s *UserService) Delete(ctx context.Context, callerID, userID string) error {
	if callerID == userID {
		return fmt.Errorf("%w: нельзя удалить собственный аккаунт", ErrValidation)
	}

	if err := s.userRepo.Delete(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		if errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("%w: у пользователя есть связанные проверки, отчёты или сообщения", ErrConflict)
		}
		return err
	}

	s.logger.Info("Пользователь удалён", slog.String("user_id", userID))
	return nil
}
