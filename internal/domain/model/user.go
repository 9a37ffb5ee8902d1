// Пакет model — доменные модели ProCheck.
package model

import "time"

// Role — роль пользователя в системе.
type Role string

// Роли пользователей.
const (
	RoleAdmin           Role = "admin"
	RoleCustomer        Role = "customer"
	RoleSeniorInspector Role = "seniorInspector"
	RoleInspector       Role = "inspector"
)

// IsValidRole проверяет, является ли строка допустимой ролью.
func IsValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleCustomer, RoleSeniorInspector, RoleInspector:
		return true
	}
	return false
}

// Profile — профиль пользователя (все поля опциональны).
type Profile struct {
	// AvatarURI — ссылка на аватар (внешний image provider)
	AvatarURI *string
	// Specialization — специализация инспектора
	Specialization *string
	// WorkHours — часы работы
	WorkHours *string
	// Phone — телефон
	Phone *string
	// Email — адрес электронной почты
	Email *string
}

// User — пользователь системы.
// Хранится в таблице users.
type User struct {
	// ID — UUID записи
	ID string
	// Username — логин, уникален без учёта регистра
	Username string
	// PasswordHash — bcrypt-хэш пароля
	PasswordHash string
	// Role — роль пользователя
	Role Role
	// FullName — полное имя
	FullName string
	// Profile — профиль
	Profile Profile
	// LastLoginAt — время последнего входа (nil — ни разу не входил)
	LastLoginAt *time.Time
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}
