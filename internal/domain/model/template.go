package model

import "time"

// CheckItemTemplate — пункт шаблона чек-листа.
// Хранится в таблице template_items.
type CheckItemTemplate struct {
	// ID — UUID пункта
	ID string
	// Text — формулировка пункта
	Text string
}

// Template — шаблон чек-листа для создания проверок.
// При создании проверки пункты копируются (штамп), не ссылаются.
// Хранится в таблице templates.
type Template struct {
	// ID — UUID записи
	ID string
	// Title — название шаблона
	Title string
	// Description — описание (опционально)
	Description *string
	// Items — упорядоченный список пунктов
	Items []CheckItemTemplate
	// CreatedBy — ID старшего инспектора, создавшего шаблон
	CreatedBy string
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}
