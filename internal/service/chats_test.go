package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func newChatSvc() (*ChatService, *fakeChatRepo) {
	repo := newFakeChatRepo()
	return NewChatService(repo, testLogger()), repo
}

func TestGetOrCreate_Dedup(t *testing.T) {
	svc, _ := newChatSvc()
	ctx := context.Background()

	chat, err := svc.GetOrCreate(ctx, []string{"alice", "bob"}, "")
	if err != nil {
		t.Fatalf("GetOrCreate() ошибка: %v", err)
	}
	if chat.Title != DefaultChatTitle {
		t.Errorf("Title = %q, хотели %q", chat.Title, DefaultChatTitle)
	}

	// То же множество в другом порядке — тот же чат
	again, err := svc.GetOrCreate(ctx, []string{"bob", "alice"}, "другое название")
	if err != nil {
		t.Fatalf("повторный GetOrCreate() ошибка: %v", err)
	}
	if again.ID != chat.ID {
		t.Errorf("создан новый чат %q вместо возврата %q", again.ID, chat.ID)
	}

	// Дубликаты участников сводятся к множеству
	dup, err := svc.GetOrCreate(ctx, []string{"alice", "bob", "alice"}, "")
	if err != nil {
		t.Fatalf("GetOrCreate() с дубликатами ошибка: %v", err)
	}
	if dup.ID != chat.ID {
		t.Errorf("дубликаты участников дали новый чат %q", dup.ID)
	}

	// Другое множество — другой чат
	other, err := svc.GetOrCreate(ctx, []string{"alice", "bob", "carol"}, "")
	if err != nil {
		t.Fatalf("GetOrCreate() ошибка: %v", err)
	}
	if other.ID == chat.ID {
		t.Error("надмножество участников вернуло тот же чат")
	}

	// Меньше двух участников
	if _, err := svc.GetOrCreate(ctx, []string{"alice", "alice"}, ""); !errors.Is(err, ErrValidation) {
		t.Errorf("GetOrCreate() с одним участником = %v, хотели ErrValidation", err)
	}
}

func TestAddMessage_UnhidesForAuthor(t *testing.T) {
	svc, repo := newChatSvc()
	ctx := context.Background()

	chat, err := svc.GetOrCreate(ctx, []string{"alice", "bob"}, "")
	if err != nil {
		t.Fatalf("GetOrCreate() ошибка: %v", err)
	}

	// alice скрывает чат у себя
	if err := svc.Delete(ctx, chat.ID, "alice", DeleteScopeSelf); err != nil {
		t.Fatalf("Delete(self) ошибка: %v", err)
	}
	if _, err := svc.Get(ctx, chat.ID, "alice"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() скрытого = %v, хотели ErrNotFound", err)
	}

	// Отправка сообщения снимает скрытие у автора
	if _, err := svc.AddMessage(ctx, chat.ID, "alice", "я вернулась"); err != nil {
		t.Fatalf("AddMessage() ошибка: %v", err)
	}
	got, err := svc.Get(ctx, chat.ID, "alice")
	if err != nil {
		t.Fatalf("Get() после сообщения = %v", err)
	}
	if len(got.Messages) != 1 || got.Messages[0].Text != "я вернулась" {
		t.Errorf("Messages = %+v", got.Messages)
	}

	// Не участник — запрещено
	if _, err := svc.AddMessage(ctx, chat.ID, "mallory", "привет"); !errors.Is(err, ErrForbidden) {
		t.Errorf("AddMessage() не участником = %v, хотели ErrForbidden", err)
	}
	// Пустой текст
	if _, err := svc.AddMessage(ctx, chat.ID, "alice", ""); !errors.Is(err, ErrValidation) {
		t.Errorf("AddMessage() пустым текстом = %v, хотели ErrValidation", err)
	}

	_ = repo
}

func TestMessages_AuthorOnly(t *testing.T) {
	svc, _ := newChatSvc()
	ctx := context.Background()

	chat, err := svc.GetOrCreate(ctx, []string{"alice", "bob"}, "")
	if err != nil {
		t.Fatalf("GetOrCreate() ошибка: %v", err)
	}
	msg, err := svc.AddMessage(ctx, chat.ID, "alice", "исходный текст")
	if err != nil {
		t.Fatalf("AddMessage() ошибка: %v", err)
	}

	// Правка чужого сообщения запрещена
	if err := svc.UpdateMessage(ctx, chat.ID, msg.ID, "bob", "взлом"); !errors.Is(err, ErrForbidden) {
		t.Errorf("UpdateMessage() не автором = %v, хотели ErrForbidden", err)
	}
	if err := svc.DeleteMessage(ctx, chat.ID, msg.ID, "bob"); !errors.Is(err, ErrForbidden) {
		t.Errorf("DeleteMessage() не автором = %v, хотели ErrForbidden", err)
	}

	if err := svc.UpdateMessage(ctx, chat.ID, msg.ID, "alice", "поправлено"); err != nil {
		t.Fatalf("UpdateMessage() ошибка: %v", err)
	}
	got, _ := svc.Get(ctx, chat.ID, "alice")
	if got.Messages[0].Text != "поправлено" {
		t.Errorf("текст = %q", got.Messages[0].Text)
	}

	if err := svc.DeleteMessage(ctx, chat.ID, msg.ID, "alice"); err != nil {
		t.Fatalf("DeleteMessage() ошибка: %v", err)
	}
	if err := svc.DeleteMessage(ctx, chat.ID, msg.ID, "alice"); !errors.Is(err, ErrNotFound) {
		t.Errorf("повторный DeleteMessage() = %v, хотели ErrNotFound", err)
	}
}

func TestDeleteChat_Scopes(t *testing.T) {
	svc, _ := newChatSvc()
	ctx := context.Background()

	chat, err := svc.GetOrCreate(ctx, []string{"alice", "bob"}, "")
	if err != nil {
		t.Fatalf("GetOrCreate() ошибка: %v", err)
	}

	// self идемпотентно
	for i := 0; i < 2; i++ {
		if err := svc.Delete(ctx, chat.ID, "alice", DeleteScopeSelf); err != nil {
			t.Fatalf("Delete(self) итерация %d: %v", i, err)
		}
	}
	// bob по-прежнему видит чат
	if _, err := svc.Get(ctx, chat.ID, "bob"); err != nil {
		t.Errorf("Get() вторым участником = %v", err)
	}

	// Не участник не может удалять
	if err := svc.Delete(ctx, chat.ID, "mallory", DeleteScopeAll); !errors.Is(err, ErrForbidden) {
		t.Errorf("Delete(all) не участником = %v, хотели ErrForbidden", err)
	}

	// Недопустимая область
	if err := svc.Delete(ctx, chat.ID, "bob", "everything"); !errors.Is(err, ErrValidation) {
		t.Errorf("Delete() с мусорной областью = %v, хотели ErrValidation", err)
	}

	// all удаляет у всех
	if err := svc.Delete(ctx, chat.ID, "bob", DeleteScopeAll); err != nil {
		t.Fatalf("Delete(all) ошибка: %v", err)
	}
	if _, err := svc.Get(ctx, chat.ID, "bob"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() после удаления у всех = %v, хотели ErrNotFound", err)
	}

	if err := svc.Delete(ctx, uuid.New().String(), "bob", DeleteScopeAll); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() несуществующего = %v, хотели ErrNotFound", err)
	}
}

func TestListChats_ExcludesHidden(t *testing.T) {
	svc, _ := newChatSvc()
	ctx := context.Background()

	c1, _ := svc.GetOrCreate(ctx, []string{"alice", "bob"}, "")
	c2, _ := svc.GetOrCreate(ctx, []string{"alice", "carol"}, "")
	if _, err := svc.GetOrCreate(ctx, []string{"bob", "carol"}, ""); err != nil {
		t.Fatalf("GetOrCreate() ошибка: %v", err)
	}

	if err := svc.Delete(ctx, c1.ID, "alice", DeleteScopeSelf); err != nil {
		t.Fatalf("Delete(self) ошибка: %v", err)
	}

	chats, err := svc.List(ctx, "alice")
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}
	if len(chats) != 1 || chats[0].ID != c2.ID {
		t.Errorf("List() вернул %d чатов, хотели только %q", len(chats), c2.ID)
	}
}
