package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Freeeeeet/coach_scheduler/internal/metrics"
	"github.com/Freeeeeet/coach_scheduler/internal/model"
)

// OpenNegotiations незавершённые переговоры, ожидающие коуча или клиента
type OpenNegotiations interface {
	Stale(ctx context.Context, age time.Duration) ([]model.Negotiation, error)
}

// Reminder напоминает коучу о переговорах без движения
type Reminder interface {
	RemindCoach(ctx context.Context, neg *model.Negotiation) error
}

// Monitor периодически обходит открытые переговоры.
// Ничего не отменяет: только обновляет метрику и напоминает коучу,
// не чаще одного раза за staleAfter на переговоры.
type Monitor struct {
	negotiations OpenNegotiations
	reminder     Reminder
	metrics      *metrics.Metrics
	interval     time.Duration
	staleAfter   time.Duration
	now          func() time.Time
	logger       *zap.Logger

	reminded map[uuid.UUID]time.Time
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewMonitor создаёт монитор переговоров
func NewMonitor(negotiations OpenNegotiations, reminder Reminder, m *metrics.Metrics, interval, staleAfter time.Duration, logger *zap.Logger) *Monitor {
	return &Monitor{
		negotiations: negotiations,
		reminder:     reminder,
		metrics:      m,
		interval:     interval,
		staleAfter:   staleAfter,
		now:          time.Now,
		logger:       logger,
		reminded:     make(map[uuid.UUID]time.Time),
		stopChan:     make(chan struct{}),
	}
}

// Run выполняет обход сразу и затем каждые interval, пока не отменён ctx или не вызван Stop
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("Starting negotiation monitor", zap.Duration("interval", m.interval))

	// Первый запуск сразу при старте
	m.Tick(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Tick(ctx)
		case <-m.stopChan:
			m.logger.Info("Negotiation monitor stopped")
			return nil
		case <-ctx.Done():
			m.logger.Info("Negotiation monitor cancelled")
			return nil
		}
	}
}

// Stop останавливает монитор
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

// Tick один обход открытых переговоров
func (m *Monitor) Tick(ctx context.Context) {
	open, err := m.negotiations.Stale(ctx, 0)
	if err != nil {
		m.logger.Error("Failed to list open negotiations", zap.Error(err))
		return
	}
	m.metrics.SetPending(len(open))

	now := m.now()
	seen := make(map[uuid.UUID]bool, len(open))
	for i := range open {
		neg := &open[i]
		seen[neg.ID] = true

		if now.Sub(neg.UpdatedAt) < m.staleAfter {
			continue
		}
		if last, ok := m.reminded[neg.ID]; ok && now.Sub(last) < m.staleAfter {
			continue
		}
		if m.reminder == nil {
			continue
		}

		if err := m.reminder.RemindCoach(ctx, neg); err != nil {
			m.logger.Warn("Failed to remind coach",
				zap.Stringer("negotiation_id", neg.ID),
				zap.Int64("coach_id", neg.CoachID),
				zap.Error(err),
			)
			continue
		}
		m.reminded[neg.ID] = now
		m.logger.Info("Coach reminded about negotiation",
			zap.Stringer("negotiation_id", neg.ID),
			zap.String("state", string(neg.State)),
		)
	}

	// забываем переговоры, которые уже закрылись
	for id := range m.reminded {
		if !seen[id] {
			delete(m.reminded, id)
		}
	}
}
