// Пакет lifecycle — машина состояний жизненного цикла проверки.
// Определяет допустимые переходы между статусами и требуемого актора
// для каждого перехода. Проверка прав (роль и личность вызывающего) —
// отдельный слой политики поверх формы машины состояний: пакет только
// сообщает требования, применяет их сервисный слой.
package lifecycle

import "github.com/procheck/backend/internal/domain/model"

// transitions — таблица допустимых переходов.
// Переход в «отменена» разрешён из любого нетерминального статуса
// и обрабатывается отдельно в Allowed.
var transitions = map[model.InspectionStatus][]model.InspectionStatus{
	model.StatusPendingApproval: {model.StatusAssigned},
	model.StatusAssigned:        {model.StatusInProgress},
	model.StatusInProgress:      {model.StatusCompleted},
}

// IsTerminal сообщает, является ли статус терминальным.
// Из терминального статуса переходы не принимаются.
func IsTerminal(s model.InspectionStatus) bool {
	return s == model.StatusCompleted || s == model.StatusCancelled
}

// Allowed сообщает, допустим ли переход from → to.
func Allowed(from, to model.InspectionStatus) bool {
	if IsTerminal(from) {
		return false
	}
	if to == model.StatusCancelled {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// RequiredActor — требование к актору перехода или операции:
// роль и, при необходимости, совпадение личности.
type RequiredActor struct {
	// Role — требуемая роль
	Role model.Role
	// MustBeAssigned — актор обязан быть назначенным инспектором проверки
	MustBeAssigned bool
	// MustBeOwner — актор обязан быть заказчиком-владельцем проверки
	MustBeOwner bool
}

// ActorFor возвращает требование к актору для перехода в статус to.
// Второе значение false — переход не описан потоками системы
// (в частности, для зарезервированных статусов «черновик» и «утверждена»).
func ActorFor(to model.InspectionStatus) (RequiredActor, bool) {
	switch to {
	case model.StatusAssigned:
		return RequiredActor{Role: model.RoleSeniorInspector}, true
	case model.StatusCancelled:
		return RequiredActor{Role: model.RoleSeniorInspector}, true
	case model.StatusInProgress:
		return RequiredActor{Role: model.RoleInspector, MustBeAssigned: true}, true
	case model.StatusCompleted:
		return RequiredActor{Role: model.RoleInspector, MustBeAssigned: true}, true
	}
	return RequiredActor{}, false
}

// CanEditCheckItems сообщает, допустимо ли редактирование состава
// чек-листа заказчиком в данном статусе. После назначения инспектора
// состав пунктов фиксируется.
func CanEditCheckItems(s model.InspectionStatus) bool {
	return s == model.StatusDraft || s == model.StatusPendingApproval
}

// CanEditCheckItemStatus сообщает, допустимо ли выставление статуса
// отдельного пункта назначенным инспектором в данном статусе проверки.
func CanEditCheckItemStatus(s model.InspectionStatus) bool {
	return s == model.StatusAssigned || s == model.StatusInProgress
}

// CanEditPhotos сообщает, допустимо ли изменение списка фото.
// Фото прикрепляются в ходе работ; терминальные проверки неизменяемы.
func CanEditPhotos(s model.InspectionStatus) bool {
	return !IsTerminal(s)
}

// IsActive сообщает, является ли проверка активной (не завершена и не отменена).
// Используется производными выборками, состояние не изменяет.
func IsActive(s model.InspectionStatus) bool {
	return !IsTerminal(s)
}
