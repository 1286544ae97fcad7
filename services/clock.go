package services

import "time"

// Clock источник текущего времени
type Clock interface {
	Now() time.Time
}

// SystemClock возвращает системное время в заданном часовом поясе
type SystemClock struct {
	Location *time.Location
}

// Now возвращает текущее время
func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// FixedClock всегда возвращает одно и то же время (для тестов и пересчетов задним числом)
type FixedClock struct {
	Time time.Time
}

// Now возвращает зафиксированное время
func (c FixedClock) Now() time.Time {
	return c.Time
}

// StartOfDay обрезает время до начала календарного дня в его часовом поясе
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Today возвращает начало текущего дня по часам clock
func Today(clock Clock) time.Time {
	return StartOfDay(clock.Now())
}

// inLocationOf переводит t в часовой пояс ref и обрезает до дня
func inLocationOf(t, ref time.Time) time.Time {
	return StartOfDay(t.In(ref.Location()))
}

// CalendarDate переносит календарную дату t (как она записана) на полночь в loc
func CalendarDate(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = t.Location()
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
