package handlers

// Ограничения длительности сессии (в минутах)
const (
	MinSessionMinutes     = 15
	MaxSessionMinutes     = 480 // 8 часов
	DefaultSessionMinutes = 60
)

const (
	// UpcomingDays горизонт списка /sessions
	UpcomingDays = 14
	// MaxListedSlots сколько свободных слотов показывать в /slots
	MaxListedSlots = 30
)
