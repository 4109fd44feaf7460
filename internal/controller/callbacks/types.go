package callbacks

import (
	"go.uber.org/zap"

	"github.com/Freeeeeet/coach_scheduler/internal/negotiation"
	"github.com/Freeeeeet/coach_scheduler/internal/service"
)

// Handler обрабатывает нажатия на inline кнопки
type Handler struct {
	users      *service.UserService
	sessions   *service.SessionService
	negotiator *negotiation.Negotiator
	logger     *zap.Logger
}

// NewHandler создаёт новый обработчик callbacks с зависимостями
func NewHandler(
	users *service.UserService,
	sessions *service.SessionService,
	negotiator *negotiation.Negotiator,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		users:      users,
		sessions:   sessions,
		negotiator: negotiator,
		logger:     logger,
	}
}
