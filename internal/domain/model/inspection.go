package model

import "time"

// InspectionStatus — статус проверки.
// Значения совпадают с отображаемыми в приложении.
type InspectionStatus string

// Статусы проверки. Статусы «черновик» и «утверждена» присутствуют
// в типе, но ни один переход в наблюдаемых потоках их не порождает —
// зарезервированы для будущих сценариев.
const (
	StatusDraft           InspectionStatus = "черновик"
	StatusPendingApproval InspectionStatus = "ожидает утверждения"
	StatusApproved        InspectionStatus = "утверждена"
	StatusAssigned        InspectionStatus = "назначена"
	StatusInProgress      InspectionStatus = "выполняется"
	StatusCompleted       InspectionStatus = "завершена"
	StatusCancelled       InspectionStatus = "отменена"
)

// IsValidInspectionStatus проверяет, является ли строка допустимым статусом.
func IsValidInspectionStatus(s InspectionStatus) bool {
	switch s {
	case StatusDraft, StatusPendingApproval, StatusApproved,
		StatusAssigned, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// CheckItemStatus — статус пункта чек-листа.
type CheckItemStatus string

// Статусы пункта чек-листа.
const (
	CheckUnverified   CheckItemStatus = "не проверено"
	CheckCompliant    CheckItemStatus = "соответствует"
	CheckNonCompliant CheckItemStatus = "не соответствует"
)

// IsValidCheckItemStatus проверяет, является ли строка допустимым статусом пункта.
func IsValidCheckItemStatus(s CheckItemStatus) bool {
	switch s {
	case CheckUnverified, CheckCompliant, CheckNonCompliant:
		return true
	}
	return false
}

// CheckItem — пункт чек-листа проверки.
// Хранится в таблице check_items, принадлежит проверке (cascade delete).
type CheckItem struct {
	// ID — UUID пункта
	ID string
	// Text — формулировка пункта
	Text string
	// Status — статус пункта
	Status CheckItemStatus
}

// Enterprise — сведения о проверяемом предприятии.
type Enterprise struct {
	// Name — название предприятия
	Name string
	// Address — адрес
	Address string
}

// Inspection — проверка: единица работы, создаваемая заказчиком
// и выполняемая назначенным инспектором.
// Хранится в таблице inspections; пункты и фото — в дочерних таблицах.
type Inspection struct {
	// ID — UUID записи
	ID string
	// Title — название проверки
	Title string
	// Type — тип проверки
	Type string
	// CustomerID — ID заказчика (владелец)
	CustomerID string
	// TemplateID — ID шаблона-источника (provenance, опционально)
	TemplateID *string
	// Enterprise — проверяемое предприятие
	Enterprise Enterprise
	// PlanDate — плановая дата проведения
	PlanDate time.Time
	// ReportDueDate — срок сдачи отчёта
	ReportDueDate time.Time
	// Status — статус жизненного цикла (см. пакет lifecycle)
	Status InspectionStatus
	// CheckItems — упорядоченный список пунктов (непустой с момента создания)
	CheckItems []CheckItem
	// AssignedInspectorID — ID назначенного инспектора (с момента назначения)
	AssignedInspectorID *string
	// ApprovedByID — ID старшего инспектора, утвердившего или отменившего
	ApprovedByID *string
	// ApprovedAt — время решения старшего инспектора
	ApprovedAt *time.Time
	// ReportID — ID отчёта; установлен тогда и только тогда, когда
	// проверка завершена и отчёт существует
	ReportID *string
	// Photos — ссылки на фото (непрозрачные URI внешнего провайдера)
	Photos []string
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}
