// Package render рисует недельное расписание коуча в PNG.
package render

import (
	"bytes"
	"fmt"
	"image/color"
	"sync"
	"time"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"

	"github.com/Freeeeeet/coach_scheduler/internal/model"
)

// FontStyle стиль шрифта
type FontStyle string

const (
	FontStyleRegular FontStyle = ""
	FontStyleMedium  FontStyle = "medium"
	FontStyleBold    FontStyle = "bold"
)

// Константы размеров и отступов
const (
	imageWidth       = 1400
	imageHeight      = 900
	headerHeight     = 100
	leftLabelsWidth  = 80
	legendWidth      = 150
	dayPaddingX      = 8
	minSlotHeight    = 8.0
	slotBorderRadius = 6.0
	shadowOffset     = 3.0
	daysInWeek       = 7
	hourPadding      = 1
	defaultMinHour   = 8
	defaultMaxHour   = 20
)

// Константы шрифтов
const (
	titleFontSize     = 25.0
	dayFontSize       = 24.0
	hourLabelFontSize = 16.0
	slotFontSize      = 15.0
	legendFontSize    = 12.0
)

// Цветовая схема
var (
	bgColor          = color.RGBA{245, 246, 248, 255}
	textColor        = color.RGBA{80, 85, 90, 220}
	hourLabelColor   = color.RGBA{110, 115, 120, 200}
	hourLineColor    = color.NRGBA{150, 150, 150, 255}
	todayBgColor     = color.NRGBA{255, 99, 71, 60}
	evenDayColor     = color.NRGBA{240, 240, 240, 255}
	oddDayColor      = color.NRGBA{228, 228, 228, 255}
	blockedDayColor  = color.NRGBA{190, 190, 190, 255}
	currentTimeColor = color.NRGBA{255, 80, 80, 200}
	workingColor     = color.RGBA{133, 193, 85, 70}

	sessionScheduledColor  = color.RGBA{120, 170, 230, 230}
	sessionPendingColor    = color.RGBA{255, 196, 90, 230}
	sessionRescheduleColor = color.RGBA{255, 182, 193, 255}
	sessionTextColor       = color.RGBA{20, 24, 28, 230}
	slotShadowColor        = color.RGBA{0, 0, 0, 20}

	legendItemColor = color.RGBA{70, 74, 78, 220}
)

// Week данные для недельной картинки. Все даты и время считаются в Location.
type Week struct {
	Start       model.Date // понедельник
	Location    *time.Location
	Now         time.Time
	Template    []model.AvailabilitySlot
	Blocked     []model.BlockedDate
	Sessions    []model.Session
	ClientNames map[int64]string
}

type hourRange struct {
	start int
	end   int
	total int
}

var (
	fontsOnce   sync.Once
	parsedFonts map[FontStyle]*opentype.Font
)

func parseFonts() {
	parsedFonts = make(map[FontStyle]*opentype.Font)
	for style, data := range map[FontStyle][]byte{
		FontStyleRegular: goregular.TTF,
		FontStyleMedium:  gomedium.TTF,
		FontStyleBold:    gobold.TTF,
	} {
		if f, err := opentype.Parse(data); err == nil {
			parsedFonts[style] = f
		}
	}
}

// loadFont выставляет шрифт нужного размера, basicfont если TTF не разобрался
func loadFont(dc *gg.Context, size float64, style FontStyle) {
	fontsOnce.Do(parseFonts)

	if f, ok := parsedFonts[style]; ok {
		face, err := opentype.NewFace(f, &opentype.FaceOptions{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err == nil {
			dc.SetFontFace(face)
			return
		}
	}
	dc.SetFontFace(basicfont.Face7x13)
}

// WeekImage рисует неделю: рабочие часы, заблокированные дни и сессии
func WeekImage(w Week) ([]byte, error) {
	if w.Location == nil {
		w.Location = time.UTC
	}
	if w.Start.IsZero() {
		return nil, fmt.Errorf("render week: start date is required")
	}

	hours := calculateHourRange(w)
	dc := gg.NewContext(imageWidth, imageHeight)
	dc.SetColor(bgColor)
	dc.Clear()

	dayWidth := (imageWidth - leftLabelsWidth - legendWidth) / daysInWeek
	dayHeight := imageHeight - headerHeight
	cellHeight := float64(dayHeight) / float64(hours.total)

	drawHeader(dc, w.Start)
	drawHourLabels(dc, hours, cellHeight)

	blocked := make(map[model.Date]bool, len(w.Blocked))
	for _, b := range w.Blocked {
		blocked[b.Date] = true
	}
	today := model.DateOf(w.Now, w.Location)
	byDay := groupSessionsByDay(w.Sessions, w.Location)

	for i := range daysInWeek {
		date := w.Start.AddDays(i)
		x := float64(leftLabelsWidth + i*dayWidth)
		y := float64(headerHeight)

		drawDayBackground(dc, x, y, dayWidth, dayHeight, i, date == today, blocked[date])
		drawDayHeader(dc, date, x, y, dayWidth)
		if !blocked[date] {
			drawWorkingHours(dc, w.Template, date.Weekday(), x, y, dayWidth, hours, cellHeight)
		}
		drawHourLines(dc, x, y, dayWidth, hours, cellHeight)
		for _, s := range byDay[date] {
			drawSession(dc, s, w.Location, w.ClientNames, x, y, dayWidth, hours, cellHeight)
		}
	}

	if !w.Now.IsZero() && !today.Before(w.Start) && today.Before(w.Start.AddDays(daysInWeek)) {
		drawCurrentTimeLine(dc, w.Now.In(w.Location), hours, cellHeight, dayWidth)
	}
	drawLegend(dc, dayWidth)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func groupSessionsByDay(sessions []model.Session, loc *time.Location) map[model.Date][]model.Session {
	out := make(map[model.Date][]model.Session)
	for _, s := range sessions {
		if !s.IsActive() {
			continue
		}
		d := model.DateOf(s.ScheduledAt, loc)
		out[d] = append(out[d], s)
	}
	return out
}

// calculateHourRange часы, покрывающие рабочее время и все сессии недели
func calculateHourRange(w Week) hourRange {
	minHour, maxHour := 24, 0
	extend := func(startMin, endMin int) {
		startH := startMin / 60
		endH := (endMin + 59) / 60
		minHour = min(minHour, startH)
		maxHour = max(maxHour, endH)
	}

	for _, slot := range w.Template {
		if slot.IsActive {
			extend(int(slot.Start), int(slot.End))
		}
	}
	for _, s := range w.Sessions {
		if !s.IsActive() {
			continue
		}
		local := s.ScheduledAt.In(w.Location)
		start := local.Hour()*60 + local.Minute()
		extend(start, min(start+s.DurationMinutes, model.MinutesPerDay))
	}

	if minHour > maxHour {
		minHour, maxHour = defaultMinHour, defaultMaxHour
	}

	start := max(minHour-hourPadding, 0)
	end := min(maxHour+hourPadding, 24)
	return hourRange{start: start, end: end, total: max(end-start, 1)}
}

func drawHeader(dc *gg.Context, start model.Date) {
	end := start.AddDays(daysInWeek - 1)
	title := monthName(start.Month)
	if end.Month != start.Month {
		title += " - " + monthName(end.Month)
	}
	title += fmt.Sprintf(" %d", end.Year)

	loadFont(dc, titleFontSize, FontStyleBold)
	dc.SetColor(textColor)
	_, h := dc.MeasureString(title)
	dc.DrawStringAnchored(title, float64(leftLabelsWidth), float64(headerHeight)/8+h/2, 0, 0)
}

func drawHourLabels(dc *gg.Context, hours hourRange, cellHeight float64) {
	loadFont(dc, hourLabelFontSize, FontStyleMedium)
	dc.SetColor(hourLabelColor)

	for i := 0; i <= hours.total; i++ {
		y := float64(headerHeight) + float64(i)*cellHeight
		label := model.NewTimeOfDay(hours.start+i, 0).String()
		dc.DrawStringAnchored(label, float64(leftLabelsWidth)-10, y, 1, 0.5)
	}
}

func drawDayBackground(dc *gg.Context, x, y float64, dayWidth, dayHeight, dayIndex int, isToday, isBlocked bool) {
	switch {
	case isBlocked:
		dc.SetColor(blockedDayColor)
	case isToday:
		dc.SetColor(todayBgColor)
	case dayIndex%2 == 0:
		dc.SetColor(evenDayColor)
	default:
		dc.SetColor(oddDayColor)
	}
	dc.DrawRectangle(x, y, float64(dayWidth), float64(dayHeight))
	dc.Fill()
}

func drawDayHeader(dc *gg.Context, date model.Date, x, y float64, dayWidth int) {
	loadFont(dc, dayFontSize, FontStyleBold)
	dc.SetColor(textColor)
	dc.DrawStringAnchored(fmt.Sprintf("%02d.%02d", date.Day, int(date.Month)), x+float64(dayWidth)/2, y, 0.5, -1)
	dc.DrawStringAnchored(weekdayShort(date.Weekday()), x+float64(dayWidth)/2, y, 0.5, -0.2)
}

func drawWorkingHours(dc *gg.Context, template []model.AvailabilitySlot, wd time.Weekday, x, y float64, dayWidth int, hours hourRange, cellHeight float64) {
	dc.SetColor(workingColor)
	for _, slot := range template {
		if !slot.IsActive || slot.Weekday != int(wd) {
			continue
		}
		top := y + (float64(slot.Start)/60-float64(hours.start))*cellHeight
		height := float64(slot.End-slot.Start) / 60 * cellHeight
		dc.DrawRectangle(x+2, top, float64(dayWidth)-4, height)
		dc.Fill()
	}
}

func drawHourLines(dc *gg.Context, x, y float64, dayWidth int, hours hourRange, cellHeight float64) {
	dc.SetLineWidth(0.3)
	dc.SetColor(hourLineColor)
	for i := 0; i <= hours.total; i++ {
		hy := y + float64(i)*cellHeight
		dc.DrawLine(x, hy, x+float64(dayWidth), hy)
		dc.Stroke()
	}
}

func drawSession(dc *gg.Context, s model.Session, loc *time.Location, names map[int64]string, x, y float64, dayWidth int, hours hourRange, cellHeight float64) {
	local := s.ScheduledAt.In(loc)
	startHour := float64(local.Hour()) + float64(local.Minute())/60
	top := y + (startHour-float64(hours.start))*cellHeight
	height := max(float64(s.DurationMinutes)/60*cellHeight, minSlotHeight)

	fill := sessionColor(s)
	width := float64(dayWidth) - float64(dayPaddingX*2)

	// Тень
	dc.SetColor(slotShadowColor)
	dc.DrawRoundedRectangle(x+dayPaddingX+shadowOffset, top+2+shadowOffset, width, height-4, slotBorderRadius)
	dc.Fill()

	dc.SetColor(fill)
	dc.DrawRoundedRectangle(x+dayPaddingX, top+2, width, height-4, slotBorderRadius)
	dc.Fill()

	// Рамка
	dc.SetColor(darkenColor(fill, 0.8))
	dc.SetLineWidth(1)
	dc.DrawRoundedRectangle(x+dayPaddingX, top+2, width, height-4, slotBorderRadius)
	dc.Stroke()

	loadFont(dc, slotFontSize, FontStyleMedium)
	dc.SetColor(sessionTextColor)
	txtX := x + dayPaddingX + 8
	txtY := top + 18
	dc.DrawStringAnchored(local.Format("15:04"), txtX, txtY, 0, 0)

	if name := names[s.ClientID]; name != "" && height > 25 {
		loadFont(dc, slotFontSize-2, FontStyleRegular)
		dc.DrawStringAnchored(truncate(name, 14), txtX, txtY+16, 0, 0)
	}
}

// sessionColor цвет сессии по статусу и состоянию переговоров
func sessionColor(s model.Session) color.RGBA {
	switch {
	case s.Status == model.SessionStatusPendingResolution:
		return sessionPendingColor
	case s.Negotiation.Kind == model.NegotiationTagPendingReschedule:
		return sessionRescheduleColor
	default:
		return sessionScheduledColor
	}
}

func darkenColor(c color.RGBA, factor float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(c.R) * factor),
		G: uint8(float64(c.G) * factor),
		B: uint8(float64(c.B) * factor),
		A: c.A,
	}
}

func drawCurrentTimeLine(dc *gg.Context, now time.Time, hours hourRange, cellHeight float64, dayWidth int) {
	current := float64(now.Hour()) + float64(now.Minute())/60
	if current < float64(hours.start) || current > float64(hours.end) {
		return
	}

	y := float64(headerHeight) + (current-float64(hours.start))*cellHeight
	dc.SetColor(currentTimeColor)
	dc.SetLineWidth(2)
	dc.DrawLine(float64(leftLabelsWidth), y, float64(leftLabelsWidth+daysInWeek*dayWidth), y)
	dc.Stroke()
}

func drawLegend(dc *gg.Context, dayWidth int) {
	items := []struct {
		label string
		clr   color.Color
	}{
		{"Рабочие часы", workingColor},
		{"Сессия", sessionScheduledColor},
		{"Конфликт", sessionPendingColor},
		{"Перенос", sessionRescheduleColor},
		{"Выходной", blockedDayColor},
	}

	const boxW, boxH = 20.0, 14.0
	liX := float64(leftLabelsWidth+daysInWeek*dayWidth) + 10
	liY := float64(imageHeight) - 160

	for _, item := range items {
		dc.SetColor(item.clr)
		dc.DrawRoundedRectangle(liX, liY, boxW, boxH, 3)
		dc.Fill()

		loadFont(dc, legendFontSize, FontStyleRegular)
		dc.SetColor(legendItemColor)
		dc.DrawStringAnchored(item.label, liX+boxW+8, liY+boxH/2+1, 0, 0.2)
		liY += boxH + 14
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

var weekdaysShort = [...]string{"Вс", "Пн", "Вт", "Ср", "Чт", "Пт", "Сб"}

func weekdayShort(wd time.Weekday) string {
	return weekdaysShort[wd]
}

var monthNames = [...]string{
	"Январь", "Февраль", "Март", "Апрель", "Май", "Июнь",
	"Июль", "Август", "Сентябрь", "Октябрь", "Ноябрь", "Декабрь",
}

func monthName(m time.Month) string {
	return monthNames[m-1]
}
