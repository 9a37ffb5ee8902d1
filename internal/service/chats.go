// chats.go — сервис чатов.
// Создание с дедупликацией по множеству участников, сообщения,
// скрытие «только у меня» и жёсткое удаление.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/procheck/backend/internal/domain/model"
	"github.com/procheck/backend/internal/repository"
)

// DeleteScope — область удаления чата.
type DeleteScope string

// Области удаления чата.
const (
	// DeleteScopeSelf — скрыть чат только у себя.
	DeleteScopeSelf DeleteScope = "self"
	// DeleteScopeAll — удалить чат у всех участников.
	DeleteScopeAll DeleteScope = "all"
)

// DefaultChatTitle — название чата, если не задано при создании.
const DefaultChatTitle = "Новый чат"

// ChatService — сервис чатов.
type ChatService struct {
	chatRepo repository.ChatRepository
	logger   *slog.Logger
}

// NewChatService создаёт сервис чатов.
func NewChatService(chatRepo repository.ChatRepository, logger *slog.Logger) *ChatService {
	return &ChatService{
		chatRepo: chatRepo,
		logger:   logger.With(slog.String("component", "chat_service")),
	}
}

// normalizeParticipants убирает дубликаты и сортирует список участников.
func normalizeParticipants(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	var result []string
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			result = append(result, id)
		}
	}
	sort.Strings(result)
	return result
}

// GetOrCreate возвращает чат с данным множеством участников, создавая
// его при отсутствии. Повторный вызов с тем же множеством (в любом
// порядке) возвращает существующий чат.
func (s *ChatService) GetOrCreate(ctx context.Context, participantIDs []string, title string) (*model.Chat, error) {
	participants := normalizeParticipants(participantIDs)
	if len(participants) < 2 {
		return nil, fmt.Errorf("%w: в чате должно быть не менее двух участников", ErrValidation)
	}

	existing, err := s.chatRepo.FindByParticipants(ctx, participants)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	if title == "" {
		title = DefaultChatTitle
	}

	chat := &model.Chat{
		ID:             uuid.New().String(),
		Title:          title,
		ParticipantIDs: participants,
	}
	if err := s.chatRepo.Create(ctx, chat); err != nil {
		return nil, err
	}

	s.logger.Info("Чат создан",
		slog.String("chat_id", chat.ID),
		slog.Int("participants", len(participants)),
	)
	return chat, nil
}

// Get возвращает чат, если он виден пользователю.
func (s *ChatService) Get(ctx context.Context, chatID, userID string) (*model.Chat, error) {
	chat, err := s.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !chat.VisibleTo(userID) {
		return nil, ErrNotFound
	}
	return chat, nil
}

// List возвращает чаты, видимые пользователю: он участник и не скрыл чат.
func (s *ChatService) List(ctx context.Context, userID string) ([]*model.Chat, error) {
	chats, err := s.chatRepo.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}

	visible := make([]*model.Chat, 0, len(chats))
	for _, c := range chats {
		if c.VisibleTo(userID) {
			visible = append(visible, c)
		}
	}
	return visible, nil
}

// AddMessage добавляет сообщение в чат. Автор должен быть участником.
// Отправка сообщения в скрытый у себя чат снимает скрытие у автора.
func (s *ChatService) AddMessage(ctx context.Context, chatID, authorID, text string) (*model.ChatMessage, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: текст сообщения не может быть пустым", ErrValidation)
	}

	chat, err := s.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	participant := false
	for _, id := range chat.ParticipantIDs {
		if id == authorID {
			participant = true
			break
		}
	}
	if !participant {
		return nil, ErrForbidden
	}

	msg := &model.ChatMessage{
		ID:       uuid.New().String(),
		ChatID:   chatID,
		AuthorID: authorID,
		Text:     text,
	}
	if err := s.chatRepo.AddMessage(ctx, msg); err != nil {
		return nil, err
	}

	// Автор снова видит чат, даже если скрывал его
	if err := s.chatRepo.UnhideForUser(ctx, chatID, authorID); err != nil {
		return nil, err
	}

	return msg, nil
}

// UpdateMessage меняет текст сообщения. Разрешено только автору.
func (s *ChatService) UpdateMessage(ctx context.Context, chatID, messageID, callerID, text string) error {
	if text == "" {
		return fmt.Errorf("%w: текст сообщения не может быть пустым", ErrValidation)
	}

	if err := s.requireAuthor(ctx, chatID, messageID, callerID); err != nil {
		return err
	}

	if err := s.chatRepo.UpdateMessage(ctx, chatID, messageID, text); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// DeleteMessage удаляет сообщение. Разрешено только автору.
func (s *ChatService) DeleteMessage(ctx context.Context, chatID, messageID, callerID string) error {
	if err := s.requireAuthor(ctx, chatID, messageID, callerID); err != nil {
		return err
	}

	if err := s.chatRepo.DeleteMessage(ctx, chatID, messageID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// requireAuthor проверяет, что вызывающий — автор сообщения.
func (s *ChatService) requireAuthor(ctx context.Context, chatID, messageID, callerID string) error {
	chat, err := s.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	for _, msg := range chat.Messages {
		if msg.ID == messageID {
			if msg.AuthorID != callerID {
				return ErrForbidden
			}
			return nil
		}
	}
	return ErrNotFound
}

// Delete удаляет чат. scope=self — идемпотентно скрывает чат у
// вызывающего; scope=all — жёстко удаляет чат у всех участников.
func (s *ChatService) Delete(ctx context.Context, chatID, userID string, scope DeleteScope) error {
	chat, err := s.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	participant := false
	for _, id := range chat.ParticipantIDs {
		if id == userID {
			participant = true
			break
		}
	}
	if !participant {
		return ErrForbidden
	}

	switch scope {
	case DeleteScopeSelf:
		return s.chatRepo.HideForUser(ctx, chatID, userID)
	case DeleteScopeAll:
		s.logger.Info("Чат удалён у всех участников",
			slog.String("chat_id", chatID),
			slog.String("user_id", userID),
		)
		return s.chatRepo.Delete(ctx, chatID)
	}
	return fmt.Errorf("%w: недопустимая область удаления %q", ErrValidation, scope)
}

// ProvisionWelcome создаёт чат администратора с новым пользователем
// и отправляет приветственное сообщение от имени администратора.
// Ошибка провизии не должна ломать создание пользователя — вызывающие
// логируют её и продолжают.
func (s *ChatService) ProvisionWelcome(ctx context.Context, adminID, userID, userDisplayName, messageText string) error {
	chat, err := s.GetOrCreate(ctx, []string{adminID, userID},
		fmt.Sprintf("Чат с администратором (%s)", userDisplayName))
	if err != nil {
		return err
	}
	_, err = s.AddMessage(ctx, chat.ID, adminID, messageText)
	return err
}
