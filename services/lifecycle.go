package services

import (
	"time"

	"backend_panelhub/models"
)

// BillingCycleDays фиксированный цикл подписки в днях, не зависит от сервиса
const BillingCycleDays = 30

// DueDateFor возвращает дату окончания для подписки, начатой в start
func DueDateFor(start time.Time) time.Time {
	return StartOfDay(start).AddDate(0, 0, BillingCycleDays)
}

// EffectiveState вычисляет состояние подписки на дату today.
// Активная подписка с прошедшей датой окончания считается просроченной,
// хотя в БД может оставаться "activa"
func EffectiveState(state models.SubscriptionState, dueDate, today time.Time) models.SubscriptionState {
	if state == models.SubscriptionActive && inLocationOf(dueDate, today).Before(StartOfDay(today)) {
		return models.SubscriptionExpired
	}
	return state
}

// DaysUntilDue количество календарных дней до даты окончания, отрицательное для просроченных
func DaysUntilDue(dueDate, today time.Time) int {
	return daysBetween(StartOfDay(today), inLocationOf(dueDate, today))
}

// ApplyCreation выставляет состояние и даты новой подписки
func ApplyCreation(sub *models.Subscription, start time.Time) {
	sub.State = models.SubscriptionActive
	sub.StartDate = StartOfDay(start)
	sub.DueDate = DueDateFor(start)
	sub.CancelledAt = nil
}

// ApplyRenewal продлевает подписку: цикл всегда начинается заново с today,
// а не от старой даты окончания. Допускается из любого состояния
func ApplyRenewal(sub *models.Subscription, now time.Time) {
	sub.State = models.SubscriptionActive
	sub.StartDate = StartOfDay(now)
	sub.DueDate = DueDateFor(now)
	sub.CancelledAt = nil
}

// ApplyCancellation отменяет подписку. Повторная отмена ничего не меняет и
// возвращает false без ошибки
func ApplyCancellation(sub *models.Subscription, now time.Time) (bool, error) {
	switch sub.State {
	case models.SubscriptionCancelled:
		return false, nil
	case models.SubscriptionActive, models.SubscriptionExpired:
		cancelledAt := now
		sub.State = models.SubscriptionCancelled
		sub.CancelledAt = &cancelledAt
		return true, nil
	default:
		return false, ErrInvalidTransition
	}
}

// ApplyDateEdit применяет ручное изменение дат. Новая дата начала
// пересчитывает окончание по тому же правилу +30 дней; явно указанная
// дата окончания в той же правке имеет приоритет
func ApplyDateEdit(sub *models.Subscription, start, due *time.Time) {
	if start != nil {
		sub.StartDate = StartOfDay(*start)
		sub.DueDate = DueDateFor(*start)
	}
	if due != nil {
		sub.DueDate = StartOfDay(*due)
	}
}

// CancellationDate возвращает дату отмены для исторических событий.
// Для старых записей без cancelled_at используется дата окончания
func CancellationDate(sub *models.Subscription) time.Time {
	if sub.CancelledAt != nil {
		return *sub.CancelledAt
	}
	return sub.DueDate
}

// AnnotateState заполняет EffectiveState у подписок на дату today
func AnnotateState(subs []models.Subscription, today time.Time) {
	for i := range subs {
		subs[i].EffectiveState = EffectiveState(subs[i].State, subs[i].DueDate, today)
	}
}

func daysBetween(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
