package handlers

import (
	"time"

	"go.uber.org/zap"

	"github.com/Freeeeeet/coach_scheduler/internal/negotiation"
	"github.com/Freeeeeet/coach_scheduler/internal/service"
)

// Handlers содержит все зависимости для обработки команд
type Handlers struct {
	userService         *service.UserService
	availabilityService *service.AvailabilityService
	sessionService      *service.SessionService
	negotiator          *negotiation.Negotiator
	logger              *zap.Logger
	now                 func() time.Time
}

// NewHandlers создаёт новый обработчик команд
func NewHandlers(
	userService *service.UserService,
	availabilityService *service.AvailabilityService,
	sessionService *service.SessionService,
	negotiator *negotiation.Negotiator,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		userService:         userService,
		availabilityService: availabilityService,
		sessionService:      sessionService,
		negotiator:          negotiator,
		logger:              logger,
		now:                 time.Now,
	}
}
