package model

import "time"

// Report — итоговый отчёт по проверке, 1:1 с проверкой.
// Фиксируется (locked) сразу при создании и никогда не разблокируется.
// Хранится в таблице reports.
type Report struct {
	// ID — UUID записи
	ID string
	// InspectionID — ID проверки (уникален: один отчёт на проверку)
	InspectionID string
	// CreatedBy — ID инспектора, создавшего отчёт
	CreatedBy string
	// CustomerID — копия inspection.customerId, зафиксированная при создании
	CustomerID string
	// DocumentRef — непрозрачная ссылка на артефакт в хранилище документов
	DocumentRef string
	// EditableUntil — задекларированная граница редактирования.
	// Хранится, но ни один путь записи её не проверяет.
	EditableUntil time.Time
	// Locked — отчёт закрыт от редактирования
	Locked bool
	// CreatedAt — время создания записи
	CreatedAt time.Time
}
