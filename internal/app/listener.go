package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Freeeeeet/coach_scheduler/internal/events"
)

const listenerRetryDelay = 5 * time.Second

// Listener слушает канал уведомлений PostgreSQL и пересылает события в шину.
// Уведомления приходят только после коммита транзакции, в которой они отправлены.
type Listener struct {
	pool   *pgxpool.Pool
	bus    *events.Bus
	logger *zap.Logger
}

func NewListener(pool *pgxpool.Pool, bus *events.Bus, logger *zap.Logger) *Listener {
	return &Listener{pool: pool, bus: bus, logger: logger}
}

// Run держит отдельное соединение с LISTEN и переподключается при обрыве
func (l *Listener) Run(ctx context.Context) error {
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		l.logger.Warn("Notification listener disconnected, retrying",
			zap.Duration("delay", listenerRetryDelay),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(listenerRetryDelay):
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer func() {
		// соединение возвращается в пул, подписка на канал ему больше не нужна
		_, _ = conn.Exec(context.Background(), "UNLISTEN *")
		conn.Release()
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{events.Channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", events.Channel, err)
	}
	l.logger.Info("Listening for negotiation events", zap.String("channel", events.Channel))

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("wait for notification: %w", err)
		}

		e, err := events.Unmarshal(n.Payload)
		if err != nil {
			l.logger.Warn("Skipping malformed event", zap.String("payload", n.Payload), zap.Error(err))
			continue
		}
		delivered := l.bus.Publish(e)
		l.logger.Debug("Event received",
			zap.String("kind", string(e.Kind)),
			zap.Int("subscribers", delivered),
		)
	}
}
