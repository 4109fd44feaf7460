package negotiation

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/coach_scheduler/internal/model"
)

type PendingStatus string

const (
	PendingNeedsResolution PendingStatus = "needs_resolution" // коуч ещё не выбрал способ разрешения
	PendingAwaitingClient  PendingStatus = "awaiting_client"  // предложение отправлено, ответа нет
	PendingDeclined        PendingStatus = "declined"         // клиент отказался, нужна ручная очистка
	PendingOrphaned        PendingStatus = "orphaned"         // заглушка pending_resolution без открытых переговоров
)

// PendingItem строка списка неразрешённых конфликтов коуча
type PendingItem struct {
	Status      PendingStatus
	Negotiation *model.Negotiation // nil для PendingOrphaned
	Session     *model.Session     // заглушка входящего клиента, если она ещё существует

	// CanReschedule владельца существующей сессии можно попросить о переносе
	CanReschedule bool
}

// Pending все неразрешённые конфликты коуча, включая переговоры без ответа клиента,
// чтобы ни один из них не потерялся
func (n *Negotiator) Pending(ctx context.Context, coachID int64) ([]PendingItem, error) {
	negs, err := n.negotiations.ListOpenByCoach(ctx, coachID)
	if err != nil {
		return nil, fmt.Errorf("list open negotiations: %w", err)
	}
	placeholders, err := n.sessions.ListPendingResolution(ctx, coachID)
	if err != nil {
		return nil, fmt.Errorf("list pending sessions: %w", err)
	}

	unclaimed := make(map[int64]*model.Session, len(placeholders))
	for i := range placeholders {
		unclaimed[placeholders[i].ID] = &placeholders[i]
	}

	items := make([]PendingItem, 0, len(negs)+len(placeholders))
	for i := range negs {
		neg := &negs[i]
		item := PendingItem{Status: pendingStatus(neg.State), Negotiation: neg}
		if item.Status == PendingNeedsResolution {
			existing, err := n.sessions.GetByID(ctx, neg.ExistingSessionID)
			if err != nil {
				return nil, fmt.Errorf("get existing session: %w", err)
			}
			item.CanReschedule = Reschedulable(existing, neg.CoachID)
		}
		if neg.PendingSessionID != nil {
			if s, ok := unclaimed[*neg.PendingSessionID]; ok {
				item.Session = s
				delete(unclaimed, s.ID)
			}
		}
		items = append(items, item)
	}

	for i := range placeholders {
		if s, ok := unclaimed[placeholders[i].ID]; ok {
			items = append(items, PendingItem{Status: PendingOrphaned, Session: s})
		}
	}
	return items, nil
}

func pendingStatus(state model.NegotiationState) PendingStatus {
	switch state {
	case model.NegotiationConflictDetected:
		return PendingNeedsResolution
	case model.NegotiationDeclined:
		return PendingDeclined
	default:
		return PendingAwaitingClient
	}
}
