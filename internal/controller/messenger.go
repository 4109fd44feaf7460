package controller

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/coach_scheduler/internal/controller/callbacks/common/formatting"
	"github.com/Freeeeeet/coach_scheduler/internal/controller/callbacks/common/keyboard"
	"github.com/Freeeeeet/coach_scheduler/internal/events"
	"github.com/Freeeeeet/coach_scheduler/internal/model"
	"github.com/Freeeeeet/coach_scheduler/internal/negotiation"
)

var errNoRecipient = errors.New("negotiation has no recipient")

// Sender отправка сообщений в Telegram, реализуется *bot.Bot
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

type SessionGetter interface {
	GetByID(ctx context.Context, id int64) (*model.Session, error)
}

// Messenger доставляет предложения клиентам и уведомления коучам.
// Личный чат пользователя совпадает с его telegram id.
type Messenger struct {
	sender   Sender
	users    negotiation.UserDirectory
	sessions SessionGetter
	logger   *zap.Logger
}

func NewMessenger(sender Sender, users negotiation.UserDirectory, sessions SessionGetter, logger *zap.Logger) *Messenger {
	return &Messenger{
		sender:   sender,
		users:    users,
		sessions: sessions,
		logger:   logger,
	}
}

// DeliverProposal отправляет получателю предложение с кнопками выбора времени
func (m *Messenger) DeliverProposal(ctx context.Context, neg *model.Negotiation) error {
	if neg.RecipientClientID == nil || neg.Payload == nil {
		return errNoRecipient
	}
	recipient, err := m.user(ctx, *neg.RecipientClientID)
	if err != nil {
		return err
	}
	coach, err := m.user(ctx, neg.CoachID)
	if err != nil {
		return err
	}

	loc := recipient.Location()
	offer := neg.Payload.Offer()
	return m.send(ctx, recipient, formatting.ProposalText(neg, coach, loc), keyboard.Proposal(neg, offer.AvailableSlots, loc))
}

// RemindCoach напоминает коучу о переговорах без движения
func (m *Messenger) RemindCoach(ctx context.Context, neg *model.Negotiation) error {
	coach, err := m.user(ctx, neg.CoachID)
	if err != nil {
		return err
	}
	clientID := neg.IncomingClientID
	if neg.RecipientClientID != nil {
		clientID = *neg.RecipientClientID
	}
	client, err := m.user(ctx, clientID)
	if err != nil {
		return err
	}

	item := &negotiation.PendingItem{Status: negotiation.PendingAwaitingClient, Negotiation: neg}
	if neg.State == model.NegotiationConflictDetected {
		item.Status = negotiation.PendingNeedsResolution
	}
	return m.send(ctx, coach, formatting.ReminderText(neg, client, coach.Location()), keyboard.Pending(item))
}

// Run пересылает события шины участникам, пока не отменён ctx или не закрыта шина
func (m *Messenger) Run(ctx context.Context, bus *events.Bus) error {
	ch, cleanup := bus.Subscribe()
	defer cleanup()

	m.logger.Info("Starting event notifications")
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			if err := m.Notify(ctx, e); err != nil {
				m.logger.Warn("Failed to notify about event",
					zap.String("kind", string(e.Kind)),
					zap.Int64("coach_id", e.CoachID),
					zap.Error(err),
				)
			}
		}
	}
}

// Notify уведомление по одному событию. Коуч узнаёт об ответе клиента,
// клиент узнаёт о новой сессии без конфликта.
func (m *Messenger) Notify(ctx context.Context, e events.Event) error {
	switch e.Kind {
	case events.KindAccepted:
		coach, client, err := m.participants(ctx, e)
		if err != nil {
			return err
		}
		var session *model.Session
		if e.SessionID != nil {
			if session, err = m.sessions.GetByID(ctx, *e.SessionID); err != nil {
				return fmt.Errorf("get session: %w", err)
			}
		}
		return m.send(ctx, coach, formatting.AcceptedText(client, session, coach.Location()), nil)

	case events.KindDeclined:
		coach, client, err := m.participants(ctx, e)
		if err != nil {
			return err
		}
		return m.send(ctx, coach, formatting.DeclinedText(client), nil)

	case events.KindSessionScheduled:
		if e.SessionID == nil {
			return nil
		}
		coach, client, err := m.participants(ctx, e)
		if err != nil {
			return err
		}
		session, err := m.sessions.GetByID(ctx, *e.SessionID)
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}
		if session == nil || session.Status != model.SessionStatusScheduled {
			return nil
		}
		text := fmt.Sprintf("📅 %s записал вас на сессию\n\n%s",
			coach.DisplayName(), formatting.SessionLine(session, coach, client.Location()))
		return m.send(ctx, client, text, nil)
	}
	return nil
}

func (m *Messenger) participants(ctx context.Context, e events.Event) (*model.User, *model.User, error) {
	coach, err := m.user(ctx, e.CoachID)
	if err != nil {
		return nil, nil, err
	}
	client, err := m.user(ctx, e.ClientID)
	if err != nil {
		return nil, nil, err
	}
	return coach, client, nil
}

func (m *Messenger) user(ctx context.Context, id int64) (*model.User, error) {
	u, err := m.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	if u == nil {
		return nil, fmt.Errorf("user %d not found", id)
	}
	return u, nil
}

func (m *Messenger) send(ctx context.Context, to *model.User, text string, kb *models.InlineKeyboardMarkup) error {
	params := &bot.SendMessageParams{
		ChatID: to.TelegramID,
		Text:   text,
	}
	if kb != nil {
		params.ReplyMarkup = kb
	}
	if _, err := m.sender.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("send message to user %d: %w", to.ID, err)
	}
	return nil
}
