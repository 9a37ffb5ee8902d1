// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrConflict — конфликт (дублирующийся ресурс).
	ErrConflict = errors.New("конфликт — ресурс уже существует")
	// ErrInvalidState — операция недопустима в текущем статусе ресурса.
	ErrInvalidState = errors.New("операция недопустима в текущем статусе")
	// ErrInvalidCredentials — неверный логин или пароль.
	ErrInvalidCredentials = errors.New("неверный логин или пароль")
	// ErrForbidden — операция запрещена для этого пользователя.
	ErrForbidden = errors.New("операция запрещена")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
)
