// reports.go — сервис отчётов.
// Создание отчёта завершает проверку: вставка отчёта и перевод проверки
// в «завершена» выполняются в одной транзакции.
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

	"github.com/procheck/backend/internal/docstore"
	"github.com/procheck/backend/internal/domain/model"
	"github.com/procheck/backend/internal/repository"
)

// TxRunner — выполнение функции внутри транзакции БД.
// Реализуется repository.TxRunner.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// DocumentStore — хранилище текстовых артефактов отчётов.
// Реализуется docstore.Store.
type DocumentStore interface {
	Save(ref, content string) error
	Read(ref string) (string, error)
	Remove(ref string) error
}

// ReportService — сервис отчётов.
type ReportService struct {
	reportRepo     repository.ReportRepository
	inspectionRepo repository.InspectionRepository
	userRepo       repository.UserRepository
	txRunner       TxRunner
	docs           DocumentStore
	logger         *slog.Logger

	// Фабрики репозиториев для транзакционных участков
	txReportRepo     func(tx pgx.Tx) repository.ReportRepository
	txInspectionRepo func(tx pgx.Tx) repository.InspectionRepository
}

// NewReportService создаёт сервис отчётов.
func NewReportService(
	reportRepo repository.ReportRepository,
	inspectionRepo repository.InspectionRepository,
	userRepo repository.UserRepository,
	txRunner TxRunner,
	docs DocumentStore,
	logger *slog.Logger,
) *ReportService {
	return &ReportService{
		reportRepo:     reportRepo,
		inspectionRepo: inspectionRepo,
		userRepo:       userRepo,
		txRunner:       txRunner,
		docs:           docs,
		logger:         logger.With(slog.String("component", "report_service")),
		txReportRepo: func(tx pgx.Tx) repository.ReportRepository {
			return repository.NewReportRepository(tx)
		},
		txInspectionRepo: func(tx pgx.Tx) repository.InspectionRepository {
			return repository.NewInspectionRepository(tx)
		},
	}
}

// RenderDocument формирует текст отчёта по проверке: шапка, предприятие,
// нумерованные пункты со статусами, итоговый статус.
func RenderDocument(ins *model.Inspection, inspectorName string, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Отчёт по проверке: %s\n", ins.Title)
	fmt.Fprintf(&b, "Инспектор: %s\n", inspectorName)
	fmt.Fprintf(&b, "Дата: %s\n\n", now.Format("02.01.2006 15:04"))

	fmt.Fprintf(&b, "Предприятие: %s\n", ins.Enterprise.Name)
	fmt.Fprintf(&b, "Адрес: %s\n\n", ins.Enterprise.Address)

	for i, item := range ins.CheckItems {
		fmt.Fprintf(&b, "%d. %s\n   Статус: %s\n\n", i+1, item.Text, item.Status)
	}

	fmt.Fprintf(&b, "Статус проверки: %s\n", ins.Status)
	return b.String()
}

// Create формирует документ отчёта и завершает проверку.
// Разрешено назначенному инспектору, пока проверка выполняется.
// body — отредактированный инспектором текст; при пустом тексте
// документ формируется автоматически.
func (s *ReportService) Create(ctx context.Context, actor Actor, inspectionID, body string) (*model.Report, error) {
	ins, err := s.inspectionRepo.GetByID(ctx, inspectionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if actor.Role != model.RoleInspector || ins.AssignedInspectorID == nil || *ins.AssignedInspectorID != actor.ID {
		return nil, ErrForbidden
	}
	if ins.Status != model.StatusInProgress {
		return nil, fmt.Errorf("%w: отчёт создаётся по выполняющейся проверке", ErrInvalidState)
	}
	if ins.ReportID != nil {
		return nil, fmt.Errorf("%w: отчёт по проверке уже существует", ErrConflict)
	}

	now := time.Now().UTC()

	if body == "" {
		inspector, err := s.userRepo.GetByID(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		body = RenderDocument(ins, inspector.FullName, now)
	}

	ref := fmt.Sprintf("report_%s_%d.txt", inspectionID, now.UnixMilli())
	if err := s.docs.Save(ref, body); err != nil {
		return nil, err
	}

	report := &model.Report{
		ID:            uuid.New().String(),
		InspectionID:  inspectionID,
		CreatedBy:     actor.ID,
		CustomerID:    ins.CustomerID,
		DocumentRef:   ref,
		EditableUntil: now,
		Locked:        true,
	}

	// Отчёт и завершение проверки — атомарно
	err = s.txRunner.RunInTx(ctx, func(tx pgx.Tx) error {
		if err := s.txReportRepo(tx).Create(ctx, report); err != nil {
			return err
		}
		completeWithReport(ins, report.ID)
		return s.txInspectionRepo(tx).Update(ctx, ins)
	})
	if err != nil {
		// Артефакт без записи в БД не нужен
		if rmErr := s.docs.Remove(ref); rmErr != nil {
			s.logger.Warn("Не удалось удалить артефакт после отката",
				slog.String("ref", ref),
				slog.String("error", rmErr.Error()),
			)
		}
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: отчёт по проверке уже существует", ErrConflict)
		}
		return nil, err
	}

	s.logger.Info("Отчёт создан, проверка завершена",
		slog.String("report_id", report.ID),
		slog.String("inspection_id", inspectionID),
		slog.String("inspector_id", actor.ID),
	)
	return report, nil
}

// Get возвращает отчёт по id. Заказчик видит только свои отчёты,
// инспектор — только созданные им.
func (s *ReportService) Get(ctx context.Context, actor Actor, id string) (*model.Report, error) {
	report, err := s.reportRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := checkReportAccess(actor, report); err != nil {
		return nil, err
	}
	return report, nil
}

// checkReportAccess проверяет доступ актора к отчёту.
func checkReportAccess(actor Actor, report *model.Report) error {
	switch actor.Role {
	case model.RoleAdmin, model.RoleSeniorInspector:
		return nil
	case model.RoleCustomer:
		if report.CustomerID == actor.ID {
			return nil
		}
	case model.RoleInspector:
		if report.CreatedBy == actor.ID {
			return nil
		}
	}
	return ErrForbidden
}

// GetByInspection возвращает отчёт по id проверки.
func (s *ReportService) GetByInspection(ctx context.Context, actor Actor, inspectionID string) (*model.Report, error) {
	report, err := s.reportRepo.GetByInspectionID(ctx, inspectionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := checkReportAccess(actor, report); err != nil {
		return nil, err
	}
	return report, nil
}

// List возвращает отчёты, видимые актору: заказчику — по его проверкам,
// инспектору — созданные им, остальным ролям — все.
func (s *ReportService) List(ctx context.Context, actor Actor, limit, offset int) ([]*model.Report, error) {
	var customerID, createdBy *string
	switch actor.Role {
	case model.RoleCustomer:
		customerID = &actor.ID
	case model.RoleInspector:
		createdBy = &actor.ID
	}
	return s.reportRepo.List(ctx, customerID, createdBy, limit, offset)
}

// Document возвращает текст документа отчёта.
func (s *ReportService) Document(ctx context.Context, actor Actor, id string) (string, error) {
	report, err := s.Get(ctx, actor, id)
	if err != nil {
		return "", err
	}

	text, err := s.docs.Read(report.DocumentRef)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return text, nil
}

// Lock идемпотентно фиксирует отчёт.
func (s *ReportService) Lock(ctx context.Context, id string) (*model.Report, error) {
	report, err := s.reportRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if report.Locked {
		return report, nil
	}

	if err := s.reportRepo.SetLocked(ctx, id, true); err != nil {
		return nil, err
	}
	report.Locked = true
	return report, nil
}

// Delete удаляет отчёт и отвязывает его от проверки в одной транзакции.
// Артефакт удаляется по возможности, его отсутствие — не ошибка.
func (s *ReportService) Delete(ctx context.Context, id string) error {
	report, err := s.reportRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	err = s.txRunner.RunInTx(ctx, func(tx pgx.Tx) error {
		insRepo := s.txInspectionRepo(tx)
		ins, err := insRepo.GetByID(ctx, report.InspectionID)
		if err == nil && ins.ReportID != nil && *ins.ReportID == report.ID {
			ins.ReportID = nil
			if err := insRepo.Update(ctx, ins); err != nil {
				return err
			}
		} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return s.txReportRepo(tx).Delete(ctx, report.ID)
	})
	if err != nil {
		return err
	}

	if err := s.docs.Remove(report.DocumentRef); err != nil {
		s.logger.Warn("Не удалось удалить артефакт отчёта",
			slog.String("ref", report.DocumentRef),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("Отчёт удалён", slog.String("report_id", id))
	return nil
}
