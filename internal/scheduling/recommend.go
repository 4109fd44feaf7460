package scheduling

import (
	"sort"
	"time"

	"github.com/Freeeeeet/coach_scheduler/internal/model"
)

const (
	DefaultRecommendWindowDays = 14
	DefaultRecommendCount      = 5
)

// Recommender подбирает альтернативное время рядом с запрошенным
type Recommender struct {
	WindowDays int
	Count      int
}

// NewRecommender создаёт подборщик; неположительные значения заменяются значениями по умолчанию
func NewRecommender(windowDays, count int) *Recommender {
	if windowDays <= 0 {
		windowDays = DefaultRecommendWindowDays
	}
	if count <= 0 {
		count = DefaultRecommendCount
	}
	return &Recommender{WindowDays: windowDays, Count: count}
}

// Recommend перебирает слоты с даты запроса на WindowDays вперёд и возвращает
// до Count свободных моментов, ближайших к запрошенному времени.
// При равном расстоянии раньше идёт более ранний момент.
// Пустой результат означает, что альтернативы нет; это не ошибка.
func (r *Recommender) Recommend(e *Enumerator, req model.SessionRequest, existing []model.Session, opts ...CheckOption) []time.Time {
	loc := e.Location()
	from := model.DateOf(req.ScheduledAt, loc)
	to := from.AddDays(r.WindowDays)
	duration := time.Duration(req.DurationMinutes) * time.Minute

	var candidates []time.Time
	for t := range e.Enumerate(from, to) {
		if !e.Fits(t, duration) {
			continue
		}
		if Check(req.At(t), existing, loc, opts...).Outcome != OutcomeFree {
			continue
		}
		candidates = append(candidates, t)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		di := absDuration(candidates[i].Sub(req.ScheduledAt))
		dj := absDuration(candidates[j].Sub(req.ScheduledAt))
		if di != dj {
			return di < dj
		}
		return candidates[i].Before(candidates[j])
	})

	if len(candidates) > r.Count {
		candidates = candidates[:r.Count]
	}
	return candidates
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
