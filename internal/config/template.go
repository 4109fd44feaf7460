package config

import (
	"fmt"
	"io"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Freeeeeet/coach_scheduler/internal/model"
)

// WeeklyTemplate файл с рабочими часами коуча:
//
//	timezone: Europe/Moscow
//	days:
//	  monday: ["09:00-12:00", "14:00-18:00"]
//	  saturday: []
//
// Дни, которых нет в файле, не меняются; пустой список очищает день.
type WeeklyTemplate struct {
	Timezone string              `yaml:"timezone"`
	Days     map[string][]string `yaml:"days"`
}

// ParseTemplate читает и проверяет файл шаблона
func ParseTemplate(r io.Reader) (*WeeklyTemplate, error) {
	var tpl WeeklyTemplate
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&tpl); err != nil {
		return nil, fmt.Errorf("decode template: %w", err)
	}

	if tpl.Timezone != "" {
		if _, err := time.LoadLocation(tpl.Timezone); err != nil {
			return nil, fmt.Errorf("template timezone %q: %w", tpl.Timezone, err)
		}
	}
	if _, err := tpl.Slots(); err != nil {
		return nil, err
	}
	return &tpl, nil
}

// Slots интервалы по дням недели, отсортированные по началу
func (t *WeeklyTemplate) Slots() (map[time.Weekday][]model.AvailabilitySlot, error) {
	out := make(map[time.Weekday][]model.AvailabilitySlot, len(t.Days))
	for name, ranges := range t.Days {
		wd, err := model.ParseWeekday(name)
		if err != nil {
			return nil, err
		}
		if _, dup := out[wd]; dup {
			return nil, fmt.Errorf("%w: weekday %s listed twice", model.ErrInvalidAvailability, wd)
		}

		slots := make([]model.AvailabilitySlot, 0, len(ranges))
		for _, r := range ranges {
			start, end, err := model.ParseRange(r)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			slots = append(slots, model.AvailabilitySlot{Weekday: int(wd), Start: start, End: end, IsActive: true})
		}
		slices.SortFunc(slots, func(a, b model.AvailabilitySlot) int { return int(a.Start - b.Start) })
		out[wd] = slots
	}
	return out, nil
}
