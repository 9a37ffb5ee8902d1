// account_requests.go — сервис заявок на создание аккаунта.
// Подача неаутентифицированным пользователем, решение администратора.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/procheck/backend/internal/domain/model"
	"github.com/procheck/backend/internal/repository"
)

// welcomeMessageApproved — приветственное сообщение при одобрении заявки.
const welcomeMessageApproved = "Добро пожаловать в ProCheck! Ваш аккаунт был создан. Вы можете обратиться ко мне за помощью в этом чате."

// AccountRequestService — сервис заявок на создание аккаунта.
type AccountRequestService struct {
	requestRepo repository.AccountRequestRepository
	userRepo    repository.UserRepository
	chatSvc     *ChatService
	txRunner    TxRunner
	logger      *slog.Logger

	// Фабрики репозиториев для транзакционных участков
	txUserRepo    func(tx pgx.Tx) repository.UserRepository
	txRequestRepo func(tx pgx.Tx) repository.AccountRequestRepository
}

// NewAccountRequestService создаёт сервис заявок.
func NewAccountRequestService(
	requestRepo repository.AccountRequestRepository,
	userRepo repository.UserRepository,
	chatSvc *ChatService,
	txRunner TxRunner,
	logger *slog.Logger,
) *AccountRequestService {
	return &AccountRequestService{
		requestRepo: requestRepo,
		userRepo:    userRepo,
		chatSvc:     chatSvc,
		txRunner:    txRunner,
		logger:      logger.With(slog.String("component", "account_request_service")),
		txUserRepo: func(tx pgx.Tx) repository.UserRepository {
			return repository.NewUserRepository(tx)
		},
		txRequestRepo: func(tx pgx.Tx) repository.AccountRequestRepository {
			return repository.NewAccountRequestRepository(tx)
		},
	}
}

// SubmitInput — параметры подачи заявки.
type SubmitInput struct {
	Username string
	Password string
	Role     model.Role
	Purpose  string
}

// Submit подаёт заявку на создание аккаунта. Конфликт, если логин уже
// занят пользователем или необработанной заявкой. Пароль хранится
// только в виде хэша.
func (s *AccountRequestService) Submit(ctx context.Context, input SubmitInput) (*model.AccountRequest, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" {
		return nil, fmt.Errorf("%w: логин не может быть пустым", ErrValidation)
	}
	if !model.IsValidRole(input.Role) {
		return nil, fmt.Errorf("%w: недопустимая роль %q", ErrValidation, input.Role)
	}
	// Аккаунт администратора через заявку не выдаётся
	if input.Role == model.RoleAdmin {
		return nil, fmt.Errorf("%w: роль admin недоступна для заявки", ErrValidation)
	}

	if _, err := s.userRepo.GetByUsername(ctx, username); err == nil {
		return nil, fmt.Errorf("%w: логин %q уже занят", ErrConflict, username)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	if _, err := s.requestRepo.GetPendingByUsername(ctx, username); err == nil {
		return nil, fmt.Errorf("%w: заявка с логином %q уже подана", ErrConflict, username)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	ar := &model.AccountRequest{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: hash,
		Role:         input.Role,
		Purpose:      input.Purpose,
		Status:       model.RequestPending,
	}
	if err := s.requestRepo.Create(ctx, ar); err != nil {
		return nil, err
	}

	s.logger.Info("Заявка на аккаунт подана",
		slog.String("request_id", ar.ID),
		slog.String("role", string(ar.Role)),
	)
	return ar, nil
}

// Get возвращает заявку по id.
func (s *AccountRequestService) Get(ctx context.Context, id string) (*model.AccountRequest, error) {
	ar, err := s.requestRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return ar, nil
}

// List возвращает заявки с фильтрацией по статусу.
func (s *AccountRequestService) List(ctx context.Context, status *model.RequestStatus, limit, offset int) ([]*model.AccountRequest, int, error) {
	list, err := s.requestRepo.List(ctx, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.requestRepo.Count(ctx, status)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// getPending загружает заявку и требует статус pending.
func (s *AccountRequestService) getPending(ctx context.Context, id string) (*model.AccountRequest, error) {
	ar, err := s.requestRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if ar.Status != model.RequestPending {
		return nil, fmt.Errorf("%w: заявка уже обработана", ErrInvalidState)
	}
	return ar, nil
}

// Approve одобряет заявку: создаёт пользователя (полное имя — логин,
// хэш пароля переносится из заявки), помечает заявку одобренной и
// заводит приветственный чат с администратором. Создание пользователя
// и решение по заявке выполняются в одной транзакции.
func (s *AccountRequestService) Approve(ctx context.Context, adminID, requestID string) (*model.User, error) {
	ar, err := s.getPending(ctx, requestID)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		ID:           uuid.New().String(),
		Username:     ar.Username,
		PasswordHash: ar.PasswordHash,
		Role:         ar.Role,
		FullName:     ar.Username,
	}

	now := time.Now().UTC()
	err = s.txRunner.RunInTx(ctx, func(tx pgx.Tx) error {
		if err := s.txUserRepo(tx).Create(ctx, user); err != nil {
			return err
		}
		return s.txRequestRepo(tx).UpdateReview(ctx, requestID, model.RequestApproved, adminID, now)
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: логин %q уже занят", ErrConflict, ar.Username)
		}
		return nil, err
	}

	s.logger.Info("Заявка одобрена",
		slog.String("request_id", requestID),
		slog.String("user_id", user.ID),
		slog.String("admin_id", adminID),
	)

	if err := s.chatSvc.ProvisionWelcome(ctx, adminID, user.ID, user.Username, welcomeMessageApproved); err != nil {
		s.logger.Warn("Не удалось создать приветственный чат",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	return user, nil
}

// Reject отклоняет заявку с фиксацией администратора и времени решения.
func (s *AccountRequestService) Reject(ctx context.Context, adminID, requestID string) (*model.AccountRequest, error) {
	ar, err := s.getPending(ctx, requestID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.requestRepo.UpdateReview(ctx, requestID, model.RequestRejected, adminID, now); err != nil {
		return nil, err
	}
	ar.Status = model.RequestRejected
	ar.ReviewedBy = &adminID
	ar.ReviewedAt = &now

	s.logger.Info("Заявка отклонена",
		slog.String("request_id", requestID),
		slog.String("admin_id", adminID),
	)
	return ar, nil
}
