package repository

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/procheck/backend/internal/config"
	"github.com/procheck/backend/internal/database"
	"github.com/procheck/backend/internal/domain/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// setupTestDB запускает PostgreSQL контейнер, применяет миграции.
// Возвращает pgxpool.Pool и функцию очистки.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("procheck_test"),
		postgres.WithUsername("procheck"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	// Настраиваем env для config.Load()
	os.Setenv("PC_DB_HOST", host)
	os.Setenv("PC_DB_PORT", port.Port())
	os.Setenv("PC_DB_NAME", "procheck_test")
	os.Setenv("PC_DB_USER", "procheck")
	os.Setenv("PC_DB_PASSWORD", "test-password")
	os.Setenv("PC_DB_SSL_MODE", "disable")
	os.Setenv("PC_JWT_SECRET", "test-secret-0123456789")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	// Применяем миграции
	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}

	// Подключаемся
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	return pool
}

// createTestUser создаёт пользователя с заданной ролью.
func createTestUser(t *testing.T, pool *pgxpool.Pool, username string, role model.Role) *model.User {
	t.Helper()

	u := &model.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: "$2a$10$bcrypt-hash-placeholder",
		Role:         role,
		FullName:     username,
	}
	if err := NewUserRepository(pool).Create(context.Background(), u); err != nil {
		t.Fatalf("Создание пользователя %q: %v", username, err)
	}
	return u
}

// --- Тесты UserRepository ---

func TestUserCRUD(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewUserRepository(pool)

	phone := "+7 900 000-00-00"
	u := &model.User{
		ID:           uuid.New().String(),
		Username:     "ivanov",
		PasswordHash: "$2a$10$hash",
		Role:         model.RoleInspector,
		FullName:     "Иванов Иван",
		Profile:      model.Profile{Phone: &phone},
	}

	// Create
	if err := repo.Create(ctx, u); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	if u.CreatedAt.IsZero() {
		t.Error("CreatedAt не установлен")
	}

	// GetByID
	got, err := repo.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if got.Username != "ivanov" {
		t.Errorf("Username = %q, хотели %q", got.Username, "ivanov")
	}
	if got.Profile.Phone == nil || *got.Profile.Phone != phone {
		t.Errorf("Profile.Phone = %v, хотели %q", got.Profile.Phone, phone)
	}
	if got.LastLoginAt != nil {
		t.Error("LastLoginAt должен быть nil до первого входа")
	}

	// GetByUsername — без учёта регистра
	got, err = repo.GetByUsername(ctx, "IVANOV")
	if err != nil {
		t.Fatalf("GetByUsername() ошибка: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("GetByUsername() вернул id %q, хотели %q", got.ID, u.ID)
	}

	// Конфликт логина (другой регистр)
	dup := &model.User{
		ID:           uuid.New().String(),
		Username:     "Ivanov",
		PasswordHash: "$2a$10$hash",
		Role:         model.RoleCustomer,
		FullName:     "Другой Иванов",
	}
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Errorf("Create() с занятым логином = %v, хотели ErrConflict", err)
	}

	// UpdateLastLogin
	now := time.Now().UTC().Truncate(time.Second)
	if err := repo.UpdateLastLogin(ctx, u.ID, now); err != nil {
		t.Fatalf("UpdateLastLogin() ошибка: %v", err)
	}
	got, _ = repo.GetByID(ctx, u.ID)
	if got.LastLoginAt == nil || !got.LastLoginAt.Equal(now) {
		t.Errorf("LastLoginAt = %v, хотели %v", got.LastLoginAt, now)
	}

	// List по роли
	role := string(model.RoleInspector)
	list, err := repo.List(ctx, &role, 10, 0)
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("List() вернул %d записей, хотели 1", len(list))
	}

	// Delete
	if err := repo.Delete(ctx, u.ID); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	if _, err := repo.GetByID(ctx, u.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() после удаления = %v, хотели ErrNotFound", err)
	}
}

func TestUserDelete_Referenced(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewUserRepository(pool)

	// Заказчик с проверкой не удаляется
	customer := createTestUser(t, pool, "del-customer", model.RoleCustomer)
	ins := &model.Inspection{
		ID:            uuid.New().String(),
		Title:         "t",
		Type:          "плановая",
		CustomerID:    customer.ID,
		Enterprise:    model.Enterprise{Name: "n", Address: "a"},
		PlanDate:      time.Now(),
		ReportDueDate: time.Now(),
		Status:        model.StatusPendingApproval,
		CheckItems: []model.CheckItem{
			{ID: uuid.New().String(), Text: "x", Status: model.CheckUnverified},
		},
	}
	if err := NewInspectionRepository(pool).Create(ctx, ins); err != nil {
		t.Fatalf("создание проверки: %v", err)
	}
	if err := repo.Delete(ctx, customer.ID); !errors.Is(err, ErrConflict) {
		t.Errorf("Delete() заказчика с проверкой = %v, хотели ErrConflict", err)
	}
	if _, err := repo.GetByID(ctx, customer.ID); err != nil {
		t.Errorf("пользователь пропал после неудачного удаления: %v", err)
	}

	// Автор сообщения в чате тоже не удаляется
	author := createTestUser(t, pool, "del-author", model.RoleAdmin)
	other := createTestUser(t, pool, "del-other", model.RoleInspector)
	chatRepo := NewChatRepository(pool)
	chat := &model.Chat{
		ID:             uuid.New().String(),
		Title:          "Новый чат",
		ParticipantIDs: []string{author.ID, other.ID},
	}
	if err := chatRepo.Create(ctx, chat); err != nil {
		t.Fatalf("создание чата: %v", err)
	}
	msg := &model.ChatMessage{
		ID:       uuid.New().String(),
		ChatID:   chat.ID,
		AuthorID: author.ID,
		Text:     "привет",
	}
	if err := chatRepo.AddMessage(ctx, msg); err != nil {
		t.Fatalf("добавление сообщения: %v", err)
	}
	if err := repo.Delete(ctx, author.ID); !errors.Is(err, ErrConflict) {
		t.Errorf("Delete() автора сообщений = %v, хотели ErrConflict", err)
	}

	// Пользователь без связей удаляется
	if err := repo.Delete(ctx, other.ID); err != nil {
		t.Errorf("Delete() участника без сообщений = %v", err)
	}
}

// --- Тесты TemplateRepository ---

func TestTemplateCRUD(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewTemplateRepository(pool)

	senior := createTestUser(t, pool, "senior", model.RoleSeniorInspector)

	tpl := &model.Template{
		ID:        uuid.New().String(),
		Title:     "Пожарная безопасность",
		CreatedBy: senior.ID,
		Items: []model.CheckItemTemplate{
			{ID: uuid.New().String(), Text: "Огнетушители в наличии"},
			{ID: uuid.New().String(), Text: "Пути эвакуации свободны"},
			{ID: uuid.New().String(), Text: "План эвакуации на стене"},
		},
	}

	if err := repo.Create(ctx, tpl); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}

	got, err := repo.GetByID(ctx, tpl.ID)
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if len(got.Items) != 3 {
		t.Fatalf("GetByID() вернул %d пунктов, хотели 3", len(got.Items))
	}
	// Порядок пунктов сохраняется
	if got.Items[0].Text != "Огнетушители в наличии" || got.Items[2].Text != "План эвакуации на стене" {
		t.Errorf("Порядок пунктов нарушен: %+v", got.Items)
	}

	// Update заменяет пункты целиком
	tpl.Items = tpl.Items[:1]
	tpl.Title = "Пожарная безопасность v2"
	if err := repo.Update(ctx, tpl); err != nil {
		t.Fatalf("Update() ошибка: %v", err)
	}
	got, _ = repo.GetByID(ctx, tpl.ID)
	if got.Title != "Пожарная безопасность v2" {
		t.Errorf("Title = %q после обновления", got.Title)
	}
	if len(got.Items) != 1 {
		t.Errorf("после Update() %d пунктов, хотели 1", len(got.Items))
	}

	// Delete — пункты удаляются каскадно
	if err := repo.Delete(ctx, tpl.ID); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	var n int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM template_items`).Scan(&n); err != nil {
		t.Fatalf("подсчёт template_items: %v", err)
	}
	if n != 0 {
		t.Errorf("после удаления шаблона осталось %d пунктов", n)
	}
}

// --- Тесты InspectionRepository ---

func TestInspectionCRUD(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewInspectionRepository(pool)

	customer := createTestUser(t, pool, "customer", model.RoleCustomer)

	ins := &model.Inspection{
		ID:         uuid.New().String(),
		Title:      "Проверка склада",
		Type:       "плановая",
		CustomerID: customer.ID,
		Enterprise: model.Enterprise{
			Name:    "ООО Ромашка",
			Address: "г. Москва, ул. Ленина, 1",
		},
		PlanDate:      time.Now().AddDate(0, 0, 7),
		ReportDueDate: time.Now().AddDate(0, 0, 14),
		Status:        model.StatusPendingApproval,
		CheckItems: []model.CheckItem{
			{ID: uuid.New().String(), Text: "Пункт 1", Status: model.CheckUnverified},
			{ID: uuid.New().String(), Text: "Пункт 2", Status: model.CheckUnverified},
		},
		Photos: []string{"photo://a", "photo://b"},
	}

	if err := repo.Create(ctx, ins); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}

	got, err := repo.GetByID(ctx, ins.ID)
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if got.Status != model.StatusPendingApproval {
		t.Errorf("Status = %q, хотели %q", got.Status, model.StatusPendingApproval)
	}
	if len(got.CheckItems) != 2 || got.CheckItems[0].Text != "Пункт 1" {
		t.Errorf("CheckItems = %+v", got.CheckItems)
	}
	if len(got.Photos) != 2 || got.Photos[1] != "photo://b" {
		t.Errorf("Photos = %v", got.Photos)
	}
	if got.AssignedInspectorID != nil || got.ReportID != nil {
		t.Error("AssignedInspectorID и ReportID должны быть nil при создании")
	}

	// UpdateCheckItemStatus
	itemID := ins.CheckItems[0].ID
	if err := repo.UpdateCheckItemStatus(ctx, ins.ID, itemID, model.CheckCompliant); err != nil {
		t.Fatalf("UpdateCheckItemStatus() ошибка: %v", err)
	}
	got, _ = repo.GetByID(ctx, ins.ID)
	if got.CheckItems[0].Status != model.CheckCompliant {
		t.Errorf("статус пункта = %q, хотели %q", got.CheckItems[0].Status, model.CheckCompliant)
	}
	if err := repo.UpdateCheckItemStatus(ctx, ins.ID, uuid.New().String(), model.CheckCompliant); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateCheckItemStatus() с чужим id = %v, хотели ErrNotFound", err)
	}

	// ReplaceCheckItems сохраняет порядок
	newItems := []model.CheckItem{
		{ID: uuid.New().String(), Text: "Новый 1", Status: model.CheckUnverified},
		{ID: uuid.New().String(), Text: "Новый 2", Status: model.CheckUnverified},
		{ID: uuid.New().String(), Text: "Новый 3", Status: model.CheckUnverified},
	}
	if err := repo.ReplaceCheckItems(ctx, ins.ID, newItems); err != nil {
		t.Fatalf("ReplaceCheckItems() ошибка: %v", err)
	}
	got, _ = repo.GetByID(ctx, ins.ID)
	if len(got.CheckItems) != 3 || got.CheckItems[2].Text != "Новый 3" {
		t.Errorf("после ReplaceCheckItems: %+v", got.CheckItems)
	}

	// ReplacePhotos
	if err := repo.ReplacePhotos(ctx, ins.ID, []string{"photo://c"}); err != nil {
		t.Fatalf("ReplacePhotos() ошибка: %v", err)
	}
	got, _ = repo.GetByID(ctx, ins.ID)
	if len(got.Photos) != 1 || got.Photos[0] != "photo://c" {
		t.Errorf("после ReplacePhotos: %v", got.Photos)
	}

	// Update основных полей
	inspector := createTestUser(t, pool, "inspector", model.RoleInspector)
	senior := createTestUser(t, pool, "senior2", model.RoleSeniorInspector)
	now := time.Now().UTC()
	ins.Status = model.StatusAssigned
	ins.AssignedInspectorID = &inspector.ID
	ins.ApprovedByID = &senior.ID
	ins.ApprovedAt = &now
	if err := repo.Update(ctx, ins); err != nil {
		t.Fatalf("Update() ошибка: %v", err)
	}
	got, _ = repo.GetByID(ctx, ins.ID)
	if got.Status != model.StatusAssigned || got.AssignedInspectorID == nil {
		t.Errorf("после Update: status=%q inspector=%v", got.Status, got.AssignedInspectorID)
	}
}

func TestInspectionList_Filter(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewInspectionRepository(pool)

	customer1 := createTestUser(t, pool, "customer1", model.RoleCustomer)
	customer2 := createTestUser(t, pool, "customer2", model.RoleCustomer)
	inspector := createTestUser(t, pool, "inspector1", model.RoleInspector)

	mk := func(customerID string, status model.InspectionStatus, assigned *string) {
		t.Helper()
		ins := &model.Inspection{
			ID:                  uuid.New().String(),
			Title:               "t",
			Type:                "плановая",
			CustomerID:          customerID,
			Enterprise:          model.Enterprise{Name: "n", Address: "a"},
			PlanDate:            time.Now(),
			ReportDueDate:       time.Now(),
			Status:              status,
			AssignedInspectorID: assigned,
			CheckItems: []model.CheckItem{
				{ID: uuid.New().String(), Text: "x", Status: model.CheckUnverified},
			},
		}
		if err := repo.Create(ctx, ins); err != nil {
			t.Fatalf("создание проверки: %v", err)
		}
	}

	mk(customer1.ID, model.StatusPendingApproval, nil)
	mk(customer1.ID, model.StatusAssigned, &inspector.ID)
	mk(customer2.ID, model.StatusInProgress, &inspector.ID)
	mk(customer2.ID, model.StatusCancelled, nil)

	cases := []struct {
		name   string
		filter InspectionFilter
		want   int
	}{
		{"без фильтра", InspectionFilter{}, 4},
		{"по заказчику", InspectionFilter{CustomerID: &customer1.ID}, 2},
		{"по инспектору", InspectionFilter{AssignedInspectorID: &inspector.ID}, 2},
		{"по статусам", InspectionFilter{Statuses: []model.InspectionStatus{
			model.StatusAssigned, model.StatusInProgress,
		}}, 2},
		{"заказчик и статус", InspectionFilter{
			CustomerID: &customer2.ID,
			Statuses:   []model.InspectionStatus{model.StatusCancelled},
		}, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			list, err := repo.List(ctx, tc.filter, 50, 0)
			if err != nil {
				t.Fatalf("List() ошибка: %v", err)
			}
			if len(list) != tc.want {
				t.Errorf("List() вернул %d записей, хотели %d", len(list), tc.want)
			}
			count, err := repo.Count(ctx, tc.filter)
			if err != nil {
				t.Fatalf("Count() ошибка: %v", err)
			}
			if count != tc.want {
				t.Errorf("Count() = %d, хотели %d", count, tc.want)
			}
		})
	}
}

// --- Тесты ReportRepository ---

func TestReportCRUD(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewReportRepository(pool)
	insRepo := NewInspectionRepository(pool)

	customer := createTestUser(t, pool, "rep-customer", model.RoleCustomer)
	inspector := createTestUser(t, pool, "rep-inspector", model.RoleInspector)

	ins := &model.Inspection{
		ID:            uuid.New().String(),
		Title:         "t",
		Type:          "плановая",
		CustomerID:    customer.ID,
		Enterprise:    model.Enterprise{Name: "n", Address: "a"},
		PlanDate:      time.Now(),
		ReportDueDate: time.Now(),
		Status:        model.StatusInProgress,
		CheckItems: []model.CheckItem{
			{ID: uuid.New().String(), Text: "x", Status: model.CheckCompliant},
		},
	}
	if err := insRepo.Create(ctx, ins); err != nil {
		t.Fatalf("создание проверки: %v", err)
	}

	rep := &model.Report{
		ID:            uuid.New().String(),
		InspectionID:  ins.ID,
		CreatedBy:     inspector.ID,
		CustomerID:    customer.ID,
		DocumentRef:   "reports/" + ins.ID + ".txt",
		EditableUntil: time.Now().Add(24 * time.Hour),
		Locked:        true,
	}
	if err := repo.Create(ctx, rep); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}

	// Второй отчёт по той же проверке — конфликт
	dup := &model.Report{
		ID:            uuid.New().String(),
		InspectionID:  ins.ID,
		CreatedBy:     inspector.ID,
		CustomerID:    customer.ID,
		DocumentRef:   "reports/dup.txt",
		EditableUntil: time.Now(),
	}
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Errorf("Create() второго отчёта = %v, хотели ErrConflict", err)
	}

	got, err := repo.GetByInspectionID(ctx, ins.ID)
	if err != nil {
		t.Fatalf("GetByInspectionID() ошибка: %v", err)
	}
	if got.ID != rep.ID || !got.Locked {
		t.Errorf("GetByInspectionID() = %+v", got)
	}
	if got.CustomerID != customer.ID {
		t.Errorf("CustomerID = %q, хотели %q", got.CustomerID, customer.ID)
	}

	list, err := repo.List(ctx, &customer.ID, nil, 10, 0)
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("List() вернул %d записей, хотели 1", len(list))
	}

	if err := repo.Delete(ctx, rep.ID); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	if _, err := repo.GetByID(ctx, rep.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() после удаления = %v, хотели ErrNotFound", err)
	}
}

// --- Тесты ChatRepository ---

func TestChatCRUD(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewChatRepository(pool)

	alice := createTestUser(t, pool, "alice", model.RoleCustomer)
	bob := createTestUser(t, pool, "bob", model.RoleInspector)
	carol := createTestUser(t, pool, "carol", model.RoleAdmin)

	chat := &model.Chat{
		ID:             uuid.New().String(),
		Title:          "alice, bob",
		ParticipantIDs: []string{alice.ID, bob.ID},
	}
	if err := repo.Create(ctx, chat); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}

	// FindByParticipants — порядок не важен
	found, err := repo.FindByParticipants(ctx, []string{bob.ID, alice.ID})
	if err != nil {
		t.Fatalf("FindByParticipants() ошибка: %v", err)
	}
	if found.ID != chat.ID {
		t.Errorf("FindByParticipants() вернул %q, хотели %q", found.ID, chat.ID)
	}

	// Надмножество участников — не совпадает
	if _, err := repo.FindByParticipants(ctx, []string{alice.ID, bob.ID, carol.ID}); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindByParticipants() с надмножеством = %v, хотели ErrNotFound", err)
	}
	// Подмножество — тоже не совпадает
	if _, err := repo.FindByParticipants(ctx, []string{alice.ID}); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindByParticipants() с подмножеством = %v, хотели ErrNotFound", err)
	}

	// Сообщения сохраняют порядок отправки
	for _, text := range []string{"привет", "как дела", "до связи"} {
		msg := &model.ChatMessage{
			ID:       uuid.New().String(),
			ChatID:   chat.ID,
			AuthorID: alice.ID,
			Text:     text,
		}
		if err := repo.AddMessage(ctx, msg); err != nil {
			t.Fatalf("AddMessage(%q) ошибка: %v", text, err)
		}
	}
	got, err := repo.GetByID(ctx, chat.ID)
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if len(got.Messages) != 3 || got.Messages[0].Text != "привет" || got.Messages[2].Text != "до связи" {
		t.Errorf("Messages = %+v", got.Messages)
	}

	// Скрытие идемпотентно
	if err := repo.HideForUser(ctx, chat.ID, bob.ID); err != nil {
		t.Fatalf("HideForUser() ошибка: %v", err)
	}
	if err := repo.HideForUser(ctx, chat.ID, bob.ID); err != nil {
		t.Fatalf("повторный HideForUser() ошибка: %v", err)
	}
	got, _ = repo.GetByID(ctx, chat.ID)
	if len(got.DeletedFor) != 1 || got.DeletedFor[0] != bob.ID {
		t.Errorf("DeletedFor = %v", got.DeletedFor)
	}
	if got.VisibleTo(bob.ID) {
		t.Error("чат не должен быть виден скрывшему пользователю")
	}
	if !got.VisibleTo(alice.ID) {
		t.Error("чат должен остаться виден второму участнику")
	}

	// Снятие скрытия
	if err := repo.UnhideForUser(ctx, chat.ID, bob.ID); err != nil {
		t.Fatalf("UnhideForUser() ошибка: %v", err)
	}
	got, _ = repo.GetByID(ctx, chat.ID)
	if len(got.DeletedFor) != 0 {
		t.Errorf("DeletedFor после снятия = %v", got.DeletedFor)
	}

	// Редактирование и удаление сообщения
	msgID := got.Messages[1].ID
	if err := repo.UpdateMessage(ctx, chat.ID, msgID, "исправлено"); err != nil {
		t.Fatalf("UpdateMessage() ошибка: %v", err)
	}
	if err := repo.DeleteMessage(ctx, chat.ID, got.Messages[0].ID); err != nil {
		t.Fatalf("DeleteMessage() ошибка: %v", err)
	}
	got, _ = repo.GetByID(ctx, chat.ID)
	if len(got.Messages) != 2 || got.Messages[0].Text != "исправлено" {
		t.Errorf("Messages после правок = %+v", got.Messages)
	}

	// ListByParticipant
	chats, err := repo.ListByParticipant(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ListByParticipant() ошибка: %v", err)
	}
	if len(chats) != 1 {
		t.Errorf("ListByParticipant() вернул %d чатов, хотели 1", len(chats))
	}

	// Удаление у всех — каскадно
	if err := repo.Delete(ctx, chat.ID); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	var n int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM chat_messages`).Scan(&n); err != nil {
		t.Fatalf("подсчёт chat_messages: %v", err)
	}
	if n != 0 {
		t.Errorf("после удаления чата осталось %d сообщений", n)
	}
}

// --- Тесты AccountRequestRepository ---

func TestAccountRequestCRUD(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewAccountRequestRepository(pool)

	admin := createTestUser(t, pool, "admin", model.RoleAdmin)

	ar := &model.AccountRequest{
		ID:           uuid.New().String(),
		Username:     "newuser",
		PasswordHash: "$2a$10$hash",
		Role:         model.RoleCustomer,
		Purpose:      "заказ проверок",
		Status:       model.RequestPending,
	}
	if err := repo.Create(ctx, ar); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	if ar.RequestedAt.IsZero() {
		t.Error("RequestedAt не установлен")
	}

	pending := model.RequestPending
	list, err := repo.List(ctx, &pending, 10, 0)
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("List(pending) вернул %d записей, хотели 1", len(list))
	}

	now := time.Now().UTC().Truncate(time.Second)
	if err := repo.UpdateReview(ctx, ar.ID, model.RequestApproved, admin.ID, now); err != nil {
		t.Fatalf("UpdateReview() ошибка: %v", err)
	}
	got, err := repo.GetByID(ctx, ar.ID)
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if got.Status != model.RequestApproved {
		t.Errorf("Status = %q, хотели approved", got.Status)
	}
	if got.ReviewedBy == nil || *got.ReviewedBy != admin.ID {
		t.Errorf("ReviewedBy = %v, хотели %q", got.ReviewedBy, admin.ID)
	}

	list, err = repo.List(ctx, &pending, 10, 0)
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("List(pending) после решения вернул %d записей, хотели 0", len(list))
	}
}

func TestAccountRequestPendingUnique(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewAccountRequestRepository(pool)

	admin := createTestUser(t, pool, "admin-uniq", model.RoleAdmin)

	mk := func(username string) *model.AccountRequest {
		return &model.AccountRequest{
			ID:           uuid.New().String(),
			Username:     username,
			PasswordHash: "$2a$10$hash",
			Role:         model.RoleCustomer,
			Purpose:      "заказ проверок",
			Status:       model.RequestPending,
		}
	}

	if err := repo.Create(ctx, mk("petrov")); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}

	// Вторая необработанная заявка на тот же логин, регистр не важен
	if err := repo.Create(ctx, mk("PETROV")); !errors.Is(err, ErrConflict) {
		t.Errorf("Create() повторной заявки = %v, хотели ErrConflict", err)
	}

	// После отклонения логин снова свободен
	first, err := repo.GetPendingByUsername(ctx, "petrov")
	if err != nil {
		t.Fatalf("GetPendingByUsername() ошибка: %v", err)
	}
	if err := repo.UpdateReview(ctx, first.ID, model.RequestRejected, admin.ID, time.Now().UTC()); err != nil {
		t.Fatalf("UpdateReview() ошибка: %v", err)
	}
	if err := repo.Create(ctx, mk("petrov")); err != nil {
		t.Errorf("Create() после отклонения = %v", err)
	}
}
