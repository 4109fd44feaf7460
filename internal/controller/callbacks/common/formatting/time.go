package formatting

import (
	"fmt"
	"time"

	"github.com/Freeeeeet/coach_scheduler/internal/model"
)

// FormatDateTime форматирует момент в часовом поясе loc: "Пн 20.10 10:00"
func FormatDateTime(t time.Time, loc *time.Location) string {
	local := t.In(loc)
	return fmt.Sprintf("%s %s", WeekdayShort(local.Weekday()), local.Format("02.01 15:04"))
}

// FormatDate форматирует календарную дату
func FormatDate(d model.Date) string {
	return fmt.Sprintf("%02d.%02d.%d", d.Day, int(d.Month), d.Year)
}

// FormatDateWithWeekday форматирует дату с днём недели
func FormatDateWithWeekday(d model.Date) string {
	return fmt.Sprintf("%s (%s)", FormatDate(d), WeekdayName(d.Weekday()))
}

// FormatTime форматирует только время
func FormatTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("15:04")
}

// FormatTimeRange форматирует интервал сессии
func FormatTimeRange(start, end time.Time, loc *time.Location) string {
	return fmt.Sprintf("%s-%s", FormatTime(start, loc), FormatTime(end, loc))
}

// FormatDuration форматирует длительность в минутах
func FormatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d мин", minutes)
	}
	hours := minutes / 60
	mins := minutes % 60
	if mins == 0 {
		return fmt.Sprintf("%d ч", hours)
	}
	return fmt.Sprintf("%d ч %d мин", hours, mins)
}

var weekdayNames = [...]string{
	"Воскресенье",
	"Понедельник",
	"Вторник",
	"Среда",
	"Четверг",
	"Пятница",
	"Суббота",
}

var weekdayShortNames = [...]string{"Вс", "Пн", "Вт", "Ср", "Чт", "Пт", "Сб"}

// WeekdayName возвращает название дня недели на русском
func WeekdayName(wd time.Weekday) string {
	if wd < 0 || int(wd) >= len(weekdayNames) {
		return "Неизвестно"
	}
	return weekdayNames[wd]
}

// WeekdayShort возвращает короткое название дня недели
func WeekdayShort(wd time.Weekday) string {
	if wd < 0 || int(wd) >= len(weekdayShortNames) {
		return "?"
	}
	return weekdayShortNames[wd]
}
