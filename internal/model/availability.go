package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidAvailability = errors.New("invalid availability slot")

// AvailabilitySlot непрерывный интервал рабочего времени коуча в определённый день недели
type AvailabilitySlot struct {
	ID        int64     `json:"id"`
	CoachID   int64     `json:"coach_id"`
	Weekday   int       `json:"day_of_week"` // 0 = Sunday, 6 = Saturday
	Start     TimeOfDay `json:"start_time"`
	End       TimeOfDay `json:"end_time"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate проверяет инварианты слота
func (s *AvailabilitySlot) Validate() error {
	if s.Weekday < 0 || s.Weekday > 6 {
		return fmt.Errorf("%w: weekday %d out of range", ErrInvalidAvailability, s.Weekday)
	}
	if !s.Start.Valid() || !s.End.Valid() {
		return fmt.Errorf("%w: time out of range", ErrInvalidAvailability)
	}
	if s.Start >= s.End {
		return fmt.Errorf("%w: start %s must be before end %s", ErrInvalidAvailability, s.Start, s.End)
	}
	return nil
}

// BlockedDate день, в который коуч полностью недоступен
type BlockedDate struct {
	ID        int64     `json:"id"`
	CoachID   int64     `json:"coach_id"`
	Date      Date      `json:"date"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// ParseRange разбирает интервал вида "09:00-12:30"
func ParseRange(s string) (start, end TimeOfDay, err error) {
	from, to, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return 0, 0, fmt.Errorf("%w: range %q must look like 09:00-12:00", ErrInvalidAvailability, s)
	}
	if start, err = ParseTimeOfDay(strings.TrimSpace(from)); err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrInvalidAvailability, err)
	}
	if end, err = ParseTimeOfDay(strings.TrimSpace(to)); err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrInvalidAvailability, err)
	}
	if start >= end {
		return 0, 0, fmt.Errorf("%w: start %s must be before end %s", ErrInvalidAvailability, start, end)
	}
	return start, end, nil
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday, "вс": time.Sunday,
	"monday": time.Monday, "mon": time.Monday, "пн": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "вт": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday, "ср": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "чт": time.Thursday,
	"friday": time.Friday, "fri": time.Friday, "пт": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday, "сб": time.Saturday,
}

// ParseWeekday понимает английские названия, их сокращения и русские пн..вс
func ParseWeekday(s string) (time.Weekday, error) {
	wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("%w: unknown weekday %q", ErrInvalidAvailability, s)
	}
	return wd, nil
}
