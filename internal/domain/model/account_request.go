package model

import "time"

// RequestStatus — статус заявки на создание аккаунта.
type RequestStatus string

// Статусы заявки. approved и rejected — терминальные.
const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// AccountRequest — заявка на создание аккаунта от неаутентифицированного
// пользователя. Пароль хранится только в виде хэша — администратор его не видит.
// Хранится в таблице account_requests.
type AccountRequest struct {
	// ID — UUID записи
	ID string
	// Username — запрошенный логин
	Username string
	// PasswordHash — bcrypt-хэш запрошенного пароля
	PasswordHash string
	// Role — запрошенная роль
	Role Role
	// Purpose — цель создания аккаунта
	Purpose string
	// Status — статус заявки
	Status RequestStatus
	// ReviewedBy — ID администратора, обработавшего заявку
	ReviewedBy *string
	// ReviewedAt — время обработки
	ReviewedAt *time.Time
	// RequestedAt — время подачи заявки
	RequestedAt time.Time
}
