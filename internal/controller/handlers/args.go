package handlers

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Freeeeeet/coach_scheduler/internal/model"
)

// ErrBadArgs аргументы команды не разобраны, пользователю показывается подсказка
var ErrBadArgs = errors.New("bad command arguments")

// splitCommand разбивает текст сообщения на команду без "/" и "@bot" и аргументы
func splitCommand(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil
	}
	cmd := strings.TrimPrefix(fields[0], "/")
	cmd, _, _ = strings.Cut(cmd, "@")
	return strings.ToLower(cmd), fields[1:]
}

type bookArgs struct {
	ClientRef   string
	Date        model.Date
	Start       model.TimeOfDay
	Minutes     int
	SessionType model.SessionType
}

// parseBookArgs <@client|id> <YYYY-MM-DD> <HH:MM> [minutes] [type]
func parseBookArgs(args []string) (bookArgs, error) {
	if len(args) < 3 || len(args) > 5 {
		return bookArgs{}, fmt.Errorf("%w: expected 3 to 5 arguments, got %d", ErrBadArgs, len(args))
	}

	date, err := model.ParseDate(args[1])
	if err != nil {
		return bookArgs{}, fmt.Errorf("%w: %w", ErrBadArgs, err)
	}
	start, err := parseStart(args[2])
	if err != nil {
		return bookArgs{}, err
	}

	a := bookArgs{
		ClientRef:   args[0],
		Date:        date,
		Start:       start,
		Minutes:     DefaultSessionMinutes,
		SessionType: model.SessionTypeTraining,
	}
	if len(args) >= 4 {
		if a.Minutes, err = parseMinutes(args[3]); err != nil {
			return bookArgs{}, err
		}
	}
	if len(args) == 5 {
		a.SessionType = model.ParseSessionType(args[4])
	}
	return a, nil
}

type seriesArgs struct {
	ClientRef   string
	Weekdays    []time.Weekday
	Start       model.TimeOfDay
	Weeks       int
	Minutes     int
	SessionType model.SessionType
}

// parseSeriesArgs <@client|id> <mon,thu> <HH:MM> <weeks> [minutes] [type]
func parseSeriesArgs(args []string) (seriesArgs, error) {
	if len(args) < 4 || len(args) > 6 {
		return seriesArgs{}, fmt.Errorf("%w: expected 4 to 6 arguments, got %d", ErrBadArgs, len(args))
	}

	weekdays, err := parseWeekdays(args[1])
	if err != nil {
		return seriesArgs{}, err
	}
	start, err := parseStart(args[2])
	if err != nil {
		return seriesArgs{}, err
	}
	weeks, err := strconv.Atoi(args[3])
	if err != nil || weeks <= 0 {
		return seriesArgs{}, fmt.Errorf("%w: weeks %q", ErrBadArgs, args[3])
	}

	a := seriesArgs{
		ClientRef:   args[0],
		Weekdays:    weekdays,
		Start:       start,
		Weeks:       weeks,
		Minutes:     DefaultSessionMinutes,
		SessionType: model.SessionTypeTraining,
	}
	if len(args) >= 5 {
		if a.Minutes, err = parseMinutes(args[4]); err != nil {
			return seriesArgs{}, err
		}
	}
	if len(args) == 6 {
		a.SessionType = model.ParseSessionType(args[5])
	}
	return a, nil
}

// parseWeekdays список дней через запятую, без повторов, в порядке недели с понедельника
func parseWeekdays(s string) ([]time.Weekday, error) {
	var days []time.Weekday
	for part := range strings.SplitSeq(s, ",") {
		wd, err := model.ParseWeekday(part)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadArgs, err)
		}
		if !slices.Contains(days, wd) {
			days = append(days, wd)
		}
	}
	slices.SortFunc(days, func(a, b time.Weekday) int {
		return mondayFirst(a) - mondayFirst(b)
	})
	return days, nil
}

func mondayFirst(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

func parseStart(s string) (model.TimeOfDay, error) {
	tod, err := model.ParseTimeOfDay(s)
	if err != nil || tod == model.MinutesPerDay {
		return 0, fmt.Errorf("%w: time %q", ErrBadArgs, s)
	}
	return tod, nil
}

func parseMinutes(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < MinSessionMinutes || n > MaxSessionMinutes {
		return 0, fmt.Errorf("%w: duration %q must be %d..%d minutes", ErrBadArgs, s, MinSessionMinutes, MaxSessionMinutes)
	}
	return n, nil
}

// parseOptionalDate дата из аргумента или fallback, если аргумента нет
func parseOptionalDate(args []string, i int, fallback model.Date) (model.Date, error) {
	if len(args) <= i {
		return fallback, nil
	}
	d, err := model.ParseDate(args[i])
	if err != nil {
		return model.Date{}, fmt.Errorf("%w: %w", ErrBadArgs, err)
	}
	return d, nil
}
