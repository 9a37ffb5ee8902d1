// fakes_test.go — in-memory реализации репозиториев для unit-тестов
// сервисного слоя.
package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/procheck/backend/internal/docstore"
	"github.com/procheck/backend/internal/domain/model"
	"github.com/procheck/backend/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// --- fakeUserRepo ---

type fakeUserRepo struct {
	users map[string]*model.User

	// deleteErr подменяет результат Delete, имитируя ошибки БД.
	deleteErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, u *model.User) error {
	for _, existing := range r.users {
		if strings.EqualFold(existing.Username, u.Username) {
			return repository.ErrConflict
		}
	}
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	r.users[u.ID] = u
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range r.users {
		if strings.EqualFold(u.Username, username) {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) List(_ context.Context, role *string, limit, offset int) ([]*model.User, error) {
	var result []*model.User
	for _, u := range r.users {
		if role == nil || string(u.Role) == *role {
			result = append(result, u)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return paginate(result, limit, offset), nil
}

func (r *fakeUserRepo) Update(_ context.Context, u *model.User) error {
	if _, ok := r.users[u.ID]; !ok {
		return repository.ErrNotFound
	}
	u.UpdatedAt = time.Now()
	r.users[u.ID] = u
	return nil
}

func (r *fakeUserRepo) UpdatePasswordHash(_ context.Context, id, hash string) error {
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (r *fakeUserRepo) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.LastLoginAt = &at
	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id string) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	if _, ok := r.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *fakeUserRepo) Count(_ context.Context, role *string) (int, error) {
	n := 0
	for _, u := range r.users {
		if role == nil || string(u.Role) == *role {
			n++
		}
	}
	return n, nil
}

// --- fakeTemplateRepo ---

type fakeTemplateRepo struct {
	templates map[string]*model.Template
}

func newFakeTemplateRepo() *fakeTemplateRepo {
	return &fakeTemplateRepo{templates: make(map[string]*model.Template)}
}

func (r *fakeTemplateRepo) Create(_ context.Context, t *model.Template) error {
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	r.templates[t.ID] = t
	return nil
}

func (r *fakeTemplateRepo) GetByID(_ context.Context, id string) (*model.Template, error) {
	t, ok := r.templates[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return t, nil
}

func (r *fakeTemplateRepo) List(_ context.Context, limit, offset int) ([]*model.Template, error) {
	var result []*model.Template
	for _, t := range r.templates {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return paginate(result, limit, offset), nil
}

func (r *fakeTemplateRepo) Update(_ context.Context, t *model.Template) error {
	if _, ok := r.templates[t.ID]; !ok {
		return repository.ErrNotFound
	}
	t.UpdatedAt = time.Now()
	r.templates[t.ID] = t
	return nil
}

func (r *fakeTemplateRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.templates[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.templates, id)
	return nil
}

func (r *fakeTemplateRepo) Count(_ context.Context) (int, error) {
	return len(r.templates), nil
}

// --- fakeInspectionRepo ---

type fakeInspectionRepo struct {
	inspections map[string]*model.Inspection
}

func newFakeInspectionRepo() *fakeInspectionRepo {
	return &fakeInspectionRepo{inspections: make(map[string]*model.Inspection)}
}

func (r *fakeInspectionRepo) Create(_ context.Context, ins *model.Inspection) error {
	ins.CreatedAt = time.Now()
	ins.UpdatedAt = ins.CreatedAt
	r.inspections[ins.ID] = ins
	return nil
}

func (r *fakeInspectionRepo) GetByID(_ context.Context, id string) (*model.Inspection, error) {
	ins, ok := r.inspections[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return ins, nil
}

func matchesFilter(ins *model.Inspection, filter repository.InspectionFilter) bool {
	if filter.CustomerID != nil && ins.CustomerID != *filter.CustomerID {
		return false
	}
	if filter.AssignedInspectorID != nil {
		if ins.AssignedInspectorID == nil || *ins.AssignedInspectorID != *filter.AssignedInspectorID {
			return false
		}
	}
	if len(filter.Statuses) > 0 {
		found := false
		for _, s := range filter.Statuses {
			if ins.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (r *fakeInspectionRepo) List(_ context.Context, filter repository.InspectionFilter, limit, offset int) ([]*model.Inspection, error) {
	var result []*model.Inspection
	for _, ins := range r.inspections {
		if matchesFilter(ins, filter) {
			result = append(result, ins)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		var less bool
		switch filter.SortBy {
		case "plan_date":
			less = a.PlanDate.Before(b.PlanDate)
		case "report_due_date":
			less = a.ReportDueDate.Before(b.ReportDueDate)
		default:
			less = a.CreatedAt.Before(b.CreatedAt) || (a.CreatedAt.Equal(b.CreatedAt) && a.ID < b.ID)
		}
		if filter.SortDesc {
			return !less
		}
		return less
	})
	return paginate(result, limit, offset), nil
}

func (r *fakeInspectionRepo) Update(_ context.Context, ins *model.Inspection) error {
	if _, ok := r.inspections[ins.ID]; !ok {
		return repository.ErrNotFound
	}
	ins.UpdatedAt = time.Now()
	r.inspections[ins.ID] = ins
	return nil
}

func (r *fakeInspectionRepo) ReplaceCheckItems(_ context.Context, id string, items []model.CheckItem) error {
	ins, ok := r.inspections[id]
	if !ok {
		return repository.ErrNotFound
	}
	ins.CheckItems = items
	return nil
}

func (r *fakeInspectionRepo) UpdateCheckItemStatus(_ context.Context, id, itemID string, status model.CheckItemStatus) error {
	ins, ok := r.inspections[id]
	if !ok {
		return repository.ErrNotFound
	}
	for i := range ins.CheckItems {
		if ins.CheckItems[i].ID == itemID {
			ins.CheckItems[i].Status = status
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *fakeInspectionRepo) ReplacePhotos(_ context.Context, id string, photos []string) error {
	ins, ok := r.inspections[id]
	if !ok {
		return repository.ErrNotFound
	}
	ins.Photos = photos
	return nil
}

func (r *fakeInspectionRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.inspections[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.inspections, id)
	return nil
}

func (r *fakeInspectionRepo) Count(_ context.Context, filter repository.InspectionFilter) (int, error) {
	n := 0
	for _, ins := range r.inspections {
		if matchesFilter(ins, filter) {
			n++
		}
	}
	return n, nil
}

// --- fakeReportRepo ---

type fakeReportRepo struct {
	reports map[string]*model.Report
}

func newFakeReportRepo() *fakeReportRepo {
	return &fakeReportRepo{reports: make(map[string]*model.Report)}
}

func (r *fakeReportRepo) Create(_ context.Context, rep *model.Report) error {
	for _, existing := range r.reports {
		if existing.InspectionID == rep.InspectionID {
			return repository.ErrConflict
		}
	}
	rep.CreatedAt = time.Now()
	r.reports[rep.ID] = rep
	return nil
}

func (r *fakeReportRepo) GetByID(_ context.Context, id string) (*model.Report, error) {
	rep, ok := r.reports[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return rep, nil
}

func (r *fakeReportRepo) GetByInspectionID(_ context.Context, inspectionID string) (*model.Report, error) {
	for _, rep := range r.reports {
		if rep.InspectionID == inspectionID {
			return rep, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeReportRepo) List(_ context.Context, customerID, createdBy *string, limit, offset int) ([]*model.Report, error) {
	var result []*model.Report
	for _, rep := range r.reports {
		if customerID != nil && rep.CustomerID != *customerID {
			continue
		}
		if createdBy != nil && rep.CreatedBy != *createdBy {
			continue
		}
		result = append(result, rep)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return paginate(result, limit, offset), nil
}

func (r *fakeReportRepo) SetLocked(_ context.Context, id string, locked bool) error {
	rep, ok := r.reports[id]
	if !ok {
		return repository.ErrNotFound
	}
	rep.Locked = locked
	return nil
}

func (r *fakeReportRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.reports[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.reports, id)
	return nil
}

// --- fakeChatRepo ---

type fakeChatRepo struct {
	chats map[string]*model.Chat
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{chats: make(map[string]*model.Chat)}
}

func (r *fakeChatRepo) Create(_ context.Context, c *model.Chat) error {
	c.CreatedAt = time.Now()
	r.chats[c.ID] = c
	return nil
}

func (r *fakeChatRepo) GetByID(_ context.Context, id string) (*model.Chat, error) {
	c, ok := r.chats[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return c, nil
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, id := range a {
		set[id] = true
	}
	for _, id := range b {
		if !set[id] {
			return false
		}
	}
	return true
}

func (r *fakeChatRepo) FindByParticipants(_ context.Context, participantIDs []string) (*model.Chat, error) {
	for _, c := range r.chats {
		if sameSet(c.ParticipantIDs, participantIDs) {
			return c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeChatRepo) ListByParticipant(_ context.Context, userID string) ([]*model.Chat, error) {
	var result []*model.Chat
	for _, c := range r.chats {
		for _, id := range c.ParticipantIDs {
			if id == userID {
				result = append(result, c)
				break
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *fakeChatRepo) AddMessage(_ context.Context, msg *model.ChatMessage) error {
	c, ok := r.chats[msg.ChatID]
	if !ok {
		return repository.ErrNotFound
	}
	msg.CreatedAt = time.Now()
	c.Messages = append(c.Messages, *msg)
	return nil
}

func (r *fakeChatRepo) UpdateMessage(_ context.Context, chatID, messageID, text string) error {
	c, ok := r.chats[chatID]
	if !ok {
		return repository.ErrNotFound
	}
	for i := range c.Messages {
		if c.Messages[i].ID == messageID {
			c.Messages[i].Text = text
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *fakeChatRepo) DeleteMessage(_ context.Context, chatID, messageID string) error {
	c, ok := r.chats[chatID]
	if !ok {
		return repository.ErrNotFound
	}
	for i := range c.Messages {
		if c.Messages[i].ID == messageID {
			c.Messages = append(c.Messages[:i], c.Messages[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *fakeChatRepo) HideForUser(_ context.Context, chatID, userID string) error {
	c, ok := r.chats[chatID]
	if !ok {
		return repository.ErrNotFound
	}
	for _, id := range c.DeletedFor {
		if id == userID {
			return nil
		}
	}
	c.DeletedFor = append(c.DeletedFor, userID)
	return nil
}

func (r *fakeChatRepo) UnhideForUser(_ context.Context, chatID, userID string) error {
	c, ok := r.chats[chatID]
	if !ok {
		return repository.ErrNotFound
	}
	for i, id := range c.DeletedFor {
		if id == userID {
			c.DeletedFor = append(c.DeletedFor[:i], c.DeletedFor[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *fakeChatRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.chats[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.chats, id)
	return nil
}

// --- fakeAccountRequestRepo ---

type fakeAccountRequestRepo struct {
	requests map[string]*model.AccountRequest
}

func newFakeAccountRequestRepo() *fakeAccountRequestRepo {
	return &fakeAccountRequestRepo{requests: make(map[string]*model.AccountRequest)}
}

func (r *fakeAccountRequestRepo) Create(_ context.Context, ar *model.AccountRequest) error {
	ar.RequestedAt = time.Now()
	r.requests[ar.ID] = ar
	return nil
}

func (r *fakeAccountRequestRepo) GetByID(_ context.Context, id string) (*model.AccountRequest, error) {
	ar, ok := r.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return ar, nil
}

func (r *fakeAccountRequestRepo) GetPendingByUsername(_ context.Context, username string) (*model.AccountRequest, error) {
	for _, ar := range r.requests {
		if ar.Status == model.RequestPending && strings.EqualFold(ar.Username, username) {
			return ar, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeAccountRequestRepo) List(_ context.Context, status *model.RequestStatus, limit, offset int) ([]*model.AccountRequest, error) {
	var result []*model.AccountRequest
	for _, ar := range r.requests {
		if status == nil || ar.Status == *status {
			result = append(result, ar)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return paginate(result, limit, offset), nil
}

func (r *fakeAccountRequestRepo) UpdateReview(_ context.Context, id string, status model.RequestStatus, reviewedBy string, reviewedAt time.Time) error {
	ar, ok := r.requests[id]
	if !ok {
		return repository.ErrNotFound
	}
	ar.Status = status
	ar.ReviewedBy = &reviewedBy
	ar.ReviewedAt = &reviewedAt
	return nil
}

func (r *fakeAccountRequestRepo) Count(_ context.Context, status *model.RequestStatus) (int, error) {
	n := 0
	for _, ar := range r.requests {
		if status == nil || ar.Status == *status {
			n++
		}
	}
	return n, nil
}

// --- fakeTxRunner / fakeDocStore ---

// fakeTxRunner выполняет fn без настоящей транзакции.
type fakeTxRunner struct{}

func (fakeTxRunner) RunInTx(_ context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

// failingTxRunner имитирует откат: fn не выполняется, возвращается ошибка.
type failingTxRunner struct{}

func (failingTxRunner) RunInTx(context.Context, func(tx pgx.Tx) error) error {
	return errTxAborted
}

var errTxAborted = errors.New("транзакция прервана")

// fakeDocStore — хранилище документов в памяти.
type fakeDocStore struct {
	docs map[string]string
}

func newFakeDocStore() *fakeDocStore {
	return &fakeDocStore{docs: make(map[string]string)}
}

func (s *fakeDocStore) Save(ref, content string) error {
	s.docs[ref] = content
	return nil
}

func (s *fakeDocStore) Read(ref string) (string, error) {
	content, ok := s.docs[ref]
	if !ok {
		return "", docstore.ErrNotFound
	}
	return content, nil
}

func (s *fakeDocStore) Remove(ref string) error {
	delete(s.docs, ref)
	return nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// addUser добавляет пользователя в fakeUserRepo.
func addUser(t *testing.T, repo *fakeUserRepo, id string, role model.Role) *model.User {
	t.Helper()
	u := &model.User{
		ID:           id,
		Username:     id,
		PasswordHash: "$2a$10$hash",
		Role:         role,
		FullName:     id,
	}
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("создание пользователя %q: %v", id, err)
	}
	return u
}

// strPtr возвращает указатель на строку.
func strPtr(s string) *string { return &s }
