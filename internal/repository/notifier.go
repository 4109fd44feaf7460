package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Freeeeeet/coach_scheduler/internal/events"
	"github.com/Freeeeeet/coach_scheduler/internal/repository/base"
)

// PgNotifier публикует события через pg_notify. Внутри транзакции уведомление
// доставляется слушателям только после коммита.
type PgNotifier struct {
	*base.Repository
}

func NewPgNotifier(pool *pgxpool.Pool) *PgNotifier {
	return &PgNotifier{Repository: base.NewRepository(pool)}
}

// Publish отправляет событие в канал events.Channel
func (n *PgNotifier) Publish(ctx context.Context, e events.Event) error {
	payload, err := e.Marshal()
	if err != nil {
		return err
	}
	if _, err := n.Querier(ctx).Exec(ctx, `SELECT pg_notify($1, $2)`, events.Channel, payload); err != nil {
		return fmt.Errorf("notify %s: %w", events.Channel, err)
	}
	return nil
}
