package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/procheck/backend/internal/domain/model"
)

// ChatRepository — интерфейс доступа к чатам.
// Участники, сообщения и отметки скрытия хранятся в дочерних таблицах.
type ChatRepository interface {
	// Create создаёт чат вместе с участниками.
	Create(ctx context.Context, c *model.Chat) error
	// GetByID возвращает чат с участниками, сообщениями и отметками скрытия.
	GetByID(ctx context.Context, id string) (*model.Chat, error)
	// FindByParticipants возвращает чат с точно таким множеством участников.
	FindByParticipants(ctx context.Context, participantIDs []string) (*model.Chat, error)
	// ListByParticipant возвращает чаты, в которых состоит пользователь.
	ListByParticipant(ctx context.Context, userID string) ([]*model.Chat, error)
	// AddMessage добавляет сообщение в чат.
	AddMessage(ctx context.Context, msg *model.ChatMessage) error
	// UpdateMessage меняет текст сообщения.
	UpdateMessage(ctx context.Context, chatID, messageID, text string) error
	// DeleteMessage удаляет сообщение.
	DeleteMessage(ctx context.Context, chatID, messageID string) error
	// HideForUser скрывает чат у пользователя (идемпотентно).
	HideForUser(ctx context.Context, chatID, userID string) error
	// UnhideForUser снимает отметку скрытия у пользователя.
	UnhideForUser(ctx context.Context, chatID, userID string) error
	// Delete удаляет чат у всех (каскадно).
	Delete(ctx context.Context, id string) error
}

// chatRepo — реализация ChatRepository.
type chatRepo struct {
	db DBTX
}

// NewChatRepository создаёт репозиторий чатов.
func NewChatRepository(db DBTX) ChatRepository {
	return &chatRepo{db: db}
}

func (r *chatRepo) Create(ctx context.Context, c *model.Chat) error {
	query := `
		INSERT INTO chats (id, title)
		VALUES ($1, $2)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query, c.ID, c.Title).Scan(&c.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания чата: %w", err)
	}

	for _, userID := range c.ParticipantIDs {
		_, err := r.db.Exec(ctx,
			`INSERT INTO chat_participants (chat_id, user_id) VALUES ($1, $2)`,
			c.ID, userID)
		if err != nil {
			return fmt.Errorf("ошибка добавления участника чата: %w", err)
		}
	}
	return nil
}

func (r *chatRepo) loadChildren(ctx context.Context, c *model.Chat) error {
	rows, err := r.db.Query(ctx,
		`SELECT user_id FROM chat_participants WHERE chat_id = $1 ORDER BY user_id`,
		c.ID)
	if err != nil {
		return fmt.Errorf("ошибка получения участников чата: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return fmt.Errorf("ошибка сканирования участника: %w", err)
		}
		c.ParticipantIDs = append(c.ParticipantIDs, userID)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	msgRows, err := r.db.Query(ctx,
		`SELECT id, chat_id, author_id, text, created_at
		 FROM chat_messages
		 WHERE chat_id = $1
		 ORDER BY created_at, id`,
		c.ID)
	if err != nil {
		return fmt.Errorf("ошибка получения сообщений чата: %w", err)
	}
	defer msgRows.Close()

	for msgRows.Next() {
		var msg model.ChatMessage
		if err := msgRows.Scan(&msg.ID, &msg.ChatID, &msg.AuthorID, &msg.Text, &msg.CreatedAt); err != nil {
			return fmt.Errorf("ошибка сканирования сообщения: %w", err)
		}
		c.Messages = append(c.Messages, msg)
	}
	if err := msgRows.Err(); err != nil {
		return err
	}

	delRows, err := r.db.Query(ctx,
		`SELECT user_id FROM chat_deleted_for WHERE chat_id = $1`, c.ID)
	if err != nil {
		return fmt.Errorf("ошибка получения отметок скрытия: %w", err)
	}
	defer delRows.Close()

	for delRows.Next() {
		var userID string
		if err := delRows.Scan(&userID); err != nil {
			return fmt.Errorf("ошибка сканирования отметки скрытия: %w", err)
		}
		c.DeletedFor = append(c.DeletedFor, userID)
	}
	return delRows.Err()
}

func (r *chatRepo) GetByID(ctx context.Context, id string) (*model.Chat, error) {
	query := `SELECT id, title, created_at FROM chats WHERE id = $1`

	c := &model.Chat{}
	err := r.db.QueryRow(ctx, query, id).Scan(&c.ID, &c.Title, &c.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения чата: %w", err)
	}

	if err := r.loadChildren(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *chatRepo) FindByParticipants(ctx context.Context, participantIDs []string) (*model.Chat, error) {
	// Чат с точно таким множеством участников: все перечисленные состоят
	// в чате и других участников нет.
	query := `
		SELECT c.id
		FROM chats c
		JOIN chat_participants p ON p.chat_id = c.id
		GROUP BY c.id
		HAVING COUNT(*) FILTER (WHERE p.user_id = ANY($1)) = $2
		   AND COUNT(*) = $2
		LIMIT 1`

	var id string
	err := r.db.QueryRow(ctx, query, participantIDs, len(participantIDs)).Scan(&id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка поиска чата по участникам: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *chatRepo) ListByParticipant(ctx context.Context, userID string) ([]*model.Chat, error) {
	query := `
		SELECT c.id, c.title, c.created_at
		FROM chats c
		JOIN chat_participants p ON p.chat_id = c.id
		WHERE p.user_id = $1
		ORDER BY c.created_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка чатов: %w", err)
	}
	defer rows.Close()

	var result []*model.Chat
	for rows.Next() {
		c := &model.Chat{}
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования чата: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, c := range result {
		if err := r.loadChildren(ctx, c); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (r *chatRepo) AddMessage(ctx context.Context, msg *model.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (id, chat_id, author_id, text)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		msg.ID, msg.ChatID, msg.AuthorID, msg.Text,
	).Scan(&msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка добавления сообщения: %w", err)
	}
	return nil
}

func (r *chatRepo) UpdateMessage(ctx context.Context, chatID, messageID, text string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE chat_messages SET text = $3 WHERE chat_id = $1 AND id = $2`,
		chatID, messageID, text)
	if err != nil {
		return fmt.Errorf("ошибка обновления сообщения: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *chatRepo) DeleteMessage(ctx context.Context, chatID, messageID string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM chat_messages WHERE chat_id = $1 AND id = $2`,
		chatID, messageID)
	if err != nil {
		return fmt.Errorf("ошибка удаления сообщения: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *chatRepo) HideForUser(ctx context.Context, chatID, userID string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO chat_deleted_for (chat_id, user_id)
		 VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`,
		chatID, userID)
	if err != nil {
		return fmt.Errorf("ошибка скрытия чата: %w", err)
	}
	return nil
}

func (r *chatRepo) UnhideForUser(ctx context.Context, chatID, userID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM chat_deleted_for WHERE chat_id = $1 AND user_id = $2`,
		chatID, userID)
	if err != nil {
		return fmt.Errorf("ошибка снятия скрытия чата: %w", err)
	}
	return nil
}

func (r *chatRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM chats WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления чата: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
