package negotiation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Freeeeeet/coach_scheduler/internal/events"
	"github.com/Freeeeeet/coach_scheduler/internal/model"
)

// SessionStore хранилище сессий. Методы с ForUpdate блокируют строку до конца транзакции.
// Get* возвращают nil, nil если запись не найдена.
type SessionStore interface {
	// ListForCheck сессии коуча и перечисленных клиентов (у любого коуча)
	// с началом в [from, to)
	ListForCheck(ctx context.Context, coachID int64, clientIDs []int64, from, to time.Time) ([]model.Session, error)
	ListPendingResolution(ctx context.Context, coachID int64) ([]model.Session, error)
	GetByID(ctx context.Context, id int64) (*model.Session, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*model.Session, error)
	Create(ctx context.Context, s *model.Session) error
	Update(ctx context.Context, s *model.Session) error
	Delete(ctx context.Context, id int64) error
}

// AvailabilityStore шаблон рабочих часов и заблокированные даты коуча
type AvailabilityStore interface {
	GetWeeklyTemplate(ctx context.Context, coachID int64) ([]model.AvailabilitySlot, error)
	GetBlockedDates(ctx context.Context, coachID int64) ([]model.BlockedDate, error)
}

// NegotiationStore хранилище переговоров
type NegotiationStore interface {
	Create(ctx context.Context, n *model.Negotiation) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Negotiation, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Negotiation, error)
	Update(ctx context.Context, n *model.Negotiation) error
	// MarkInviteSent отмечает доставку предложения, не трогая остальные поля
	MarkInviteSent(ctx context.Context, id uuid.UUID) error
	// ListOpenByCoach переговоры коуча в состояниях conflict_detected, proposal_sent_* и declined
	ListOpenByCoach(ctx context.Context, coachID int64) ([]model.Negotiation, error)
	// ListStale переговоры в conflict_detected и proposal_sent_*, не менявшиеся с updatedBefore
	ListStale(ctx context.Context, updatedBefore time.Time) ([]model.Negotiation, error)
}

type UserDirectory interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

// Transactor выполняет fn в одной транзакции; ошибка fn откатывает все изменения
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Messenger доставляет интерактивное предложение получателю (n.RecipientClientID)
type Messenger interface {
	DeliverProposal(ctx context.Context, n *model.Negotiation) error
}

// Publisher публикует событие в рамках текущей транзакции, подписчики получают его после коммита
type Publisher interface {
	Publish(ctx context.Context, e events.Event) error
}
