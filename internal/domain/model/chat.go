package model

import "time"

// ChatMessage — сообщение в чате.
// Хранится в таблице chat_messages.
type ChatMessage struct {
	// ID — UUID сообщения
	ID string
	// ChatID — ID чата
	ChatID string
	// AuthorID — ID автора
	AuthorID string
	// Text — текст сообщения
	Text string
	// CreatedAt — время отправки
	CreatedAt time.Time
}

// Chat — переписка между пользователями.
// Уникальность — по множеству участников: повторное создание чата
// с тем же набором участников возвращает существующий.
// Хранится в таблицах chats, chat_participants, chat_messages, chat_deleted_for.
type Chat struct {
	// ID — UUID записи
	ID string
	// Title — название чата
	Title string
	// ParticipantIDs — множество участников (не менее двух)
	ParticipantIDs []string
	// Messages — сообщения в порядке отправки
	Messages []ChatMessage
	// DeletedFor — пользователи, скрывшие чат у себя (soft-hide)
	DeletedFor []string
	// CreatedAt — время создания записи
	CreatedAt time.Time
}

// VisibleTo сообщает, виден ли чат пользователю: он участник
// и не скрыл чат у себя.
func (c *Chat) VisibleTo(userID string) bool {
	participant := false
	for _, id := range c.ParticipantIDs {
		if id == userID {
			participant = true
			break
		}
	}
	if !participant {
		return false
	}
	for _, id := range c.DeletedFor {
		if id == userID {
			return false
		}
	}
	return true
}
