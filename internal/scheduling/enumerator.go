// Package scheduling содержит чистые функции расписания: перечисление
// свободных слотов по недельному шаблону коуча, проверку конфликтов и
// подбор альтернативного времени. Пакет не обращается к хранилищу.
package scheduling

import (
	"iter"
	"slices"
	"sort"
	"time"

	"github.com/Freeeeeet/coach_scheduler/internal/model"
)

// SlotStepMinutes шаг сетки слотов
const SlotStepMinutes = 30

// Window рабочий интервал внутри дня
type Window struct {
	Start model.TimeOfDay
	End   model.TimeOfDay
}

// Enumerator перечисляет доступные для записи моменты времени по шаблону коуча
type Enumerator struct {
	ranges  map[time.Weekday][]Window
	blocked map[model.Date]struct{}
	loc     *time.Location
	now     time.Time
}

// NewEnumerator создаёт перечислитель. Шаблон и даты блокировок интерпретируются в часовом поясе loc,
// моменты не позже now не возвращаются.
func NewEnumerator(template []model.AvailabilitySlot, blocked []model.BlockedDate, loc *time.Location, now time.Time) *Enumerator {
	if loc == nil {
		loc = time.UTC
	}

	blockedSet := make(map[model.Date]struct{}, len(blocked))
	for _, b := range blocked {
		blockedSet[b.Date] = struct{}{}
	}

	return &Enumerator{
		ranges:  mergeTemplate(template),
		blocked: blockedSet,
		loc:     loc,
		now:     now,
	}
}

// mergeTemplate объединяет активные слоты по дням недели; пересекающиеся и смежные интервалы сливаются
func mergeTemplate(template []model.AvailabilitySlot) map[time.Weekday][]Window {
	byDay := make(map[time.Weekday][]Window)
	for _, s := range template {
		if !s.IsActive || s.Validate() != nil {
			continue
		}
		wd := time.Weekday(s.Weekday)
		byDay[wd] = append(byDay[wd], Window{Start: s.Start, End: s.End})
	}

	for wd, windows := range byDay {
		sort.Slice(windows, func(i, j int) bool { return windows[i].Start < windows[j].Start })

		merged := []Window{windows[0]}
		for _, w := range windows[1:] {
			last := &merged[len(merged)-1]
			if w.Start <= last.End {
				if w.End > last.End {
					last.End = w.End
				}
				continue
			}
			merged = append(merged, w)
		}
		byDay[wd] = merged
	}

	return byDay
}

// Location часовой пояс коуча
func (e *Enumerator) Location() *time.Location {
	return e.loc
}

// Now момент, раньше которого слоты не выдаются
func (e *Enumerator) Now() time.Time {
	return e.now
}

// Ranges рабочие интервалы для дня недели после объединения
func (e *Enumerator) Ranges(wd time.Weekday) []Window {
	return slices.Clone(e.ranges[wd])
}

// IsBlocked проверяет, заблокирован ли день целиком
func (e *Enumerator) IsBlocked(d model.Date) bool {
	_, ok := e.blocked[d]
	return ok
}

// HasTemplate есть ли хоть один активный рабочий интервал
func (e *Enumerator) HasTemplate() bool {
	return len(e.ranges) > 0
}

// Enumerate возвращает упорядоченную ленивую последовательность доступных моментов
// с даты from по дату to включительно. Последовательность можно обходить повторно.
func (e *Enumerator) Enumerate(from, to model.Date) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		for d := from; !d.After(to); d = d.AddDays(1) {
			if !e.eachOnDate(d, yield) {
				return
			}
		}
	}
}

// ForDate все доступные моменты одной даты
func (e *Enumerator) ForDate(d model.Date) []time.Time {
	return slices.Collect(e.Enumerate(d, d))
}

func (e *Enumerator) eachOnDate(d model.Date, yield func(time.Time) bool) bool {
	if e.IsBlocked(d) {
		return true
	}

	var last time.Time
	for _, w := range e.ranges[d.Weekday()] {
		for m := w.Start; m+SlotStepMinutes <= w.End; m += SlotStepMinutes {
			t := d.At(m, e.loc)
			if !t.After(e.now) {
				continue
			}
			// при переходе на летнее время несуществующее локальное время сдвигается вперёд
			if !last.IsZero() && !t.After(last) {
				continue
			}
			last = t
			if !yield(t) {
				return false
			}
		}
	}
	return true
}

// Fits проверяет, что интервал [start, start+d) целиком лежит внутри одного рабочего интервала дня
func (e *Enumerator) Fits(start time.Time, d time.Duration) bool {
	local := start.In(e.loc)
	date := model.DateOf(local, e.loc)
	if e.IsBlocked(date) {
		return false
	}

	startMin := model.NewTimeOfDay(local.Hour(), local.Minute())
	endMin := startMin + model.TimeOfDay(d/time.Minute)
	for _, w := range e.ranges[date.Weekday()] {
		if w.Start <= startMin && endMin <= w.End {
			return true
		}
	}
	return false
}

// WeekdayTimes для каждого дня недели возвращает времена начала, допустимые по шаблону.
// Блокировки и текущее время не учитываются: это заготовка для регулярных сессий,
// объединение или пересечение по дням выбирает вызывающий код.
func (e *Enumerator) WeekdayTimes(weekdays []time.Weekday) map[time.Weekday][]model.TimeOfDay {
	out := make(map[time.Weekday][]model.TimeOfDay, len(weekdays))
	for _, wd := range weekdays {
		var times []model.TimeOfDay
		for _, w := range e.ranges[wd] {
			for m := w.Start; m+SlotStepMinutes <= w.End; m += SlotStepMinutes {
				times = append(times, m)
			}
		}
		out[wd] = times
	}
	return out
}

// IntersectTimes времена, доступные во все переданные дни недели
func IntersectTimes(byDay map[time.Weekday][]model.TimeOfDay) []model.TimeOfDay {
	if len(byDay) == 0 {
		return nil
	}

	counts := make(map[model.TimeOfDay]int)
	for _, times := range byDay {
		seen := make(map[model.TimeOfDay]bool, len(times))
		for _, t := range times {
			if !seen[t] {
				seen[t] = true
				counts[t]++
			}
		}
	}

	var out []model.TimeOfDay
	for t, n := range counts {
		if n == len(byDay) {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return out
}

// UnionTimes времена, доступные хотя бы в один из дней
func UnionTimes(byDay map[time.Weekday][]model.TimeOfDay) []model.TimeOfDay {
	seen := make(map[model.TimeOfDay]bool)
	var out []model.TimeOfDay
	for _, times := range byDay {
		for _, t := range times {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	slices.Sort(out)
	return out
}
