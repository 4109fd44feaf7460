package negotiation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Freeeeeet/coach_scheduler/internal/events"
	"github.com/Freeeeeet/coach_scheduler/internal/model"
	"github.com/Freeeeeet/coach_scheduler/internal/proposal"
	"github.com/Freeeeeet/coach_scheduler/internal/scheduling"
)

// conflictAt10_30 входящий клиент B просит Пн 10:30, что пересекается с сессией A 10:00-11:00
func conflictAt10_30(t *testing.T, h *harness) *ProposeResult {
	t.Helper()
	res, err := h.negotiator.Propose(context.Background(), request(clientB, mon("10:30"), 60))
	require.NoError(t, err)
	require.Equal(t, scheduling.OutcomeConflict, res.Outcome)
	return res
}

func eventKinds(db *memDB) []events.Kind {
	kinds := make([]events.Kind, 0, len(db.events))
	for _, e := range db.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

func TestPropose_FreeSlotCreatesScheduledSession(t *testing.T) {
	h := newHarness(t)

	res, err := h.negotiator.Propose(context.Background(), request(clientB, mon("11:00"), 60))
	require.NoError(t, err)

	assert.Equal(t, scheduling.OutcomeFree, res.Outcome)
	require.NotNil(t, res.Session)
	assert.Equal(t, model.SessionStatusScheduled, h.db.session(res.Session.ID).Status)
	assert.Nil(t, res.Negotiation)
	assert.Equal(t, []events.Kind{events.KindSessionScheduled}, eventKinds(h.db))
}

func TestPropose_AlreadyScheduledIsNoop(t *testing.T) {
	h := newHarness(t)

	res, err := h.negotiator.Propose(context.Background(), request(clientA, mon("10:00"), 60))
	require.NoError(t, err)

	assert.Equal(t, scheduling.OutcomeAlreadyScheduled, res.Outcome)
	assert.Equal(t, int64(1), res.Session.ID)
	assert.Len(t, h.db.sessions, 1)
	assert.Empty(t, h.db.events)
}

func TestPropose_RejectsInvalidRequestBeforeStoreAccess(t *testing.T) {
	h := newHarness(t)
	h.db.failOn["get_template"] = errStoreDown

	_, err := h.negotiator.Propose(context.Background(), request(clientB, mon("11:00"), 0))
	require.ErrorIs(t, err, model.ErrInvalidRequest)

	_, err = h.negotiator.Propose(context.Background(), request(clientB, time.Time{}, 60))
	require.ErrorIs(t, err, model.ErrInvalidRequest)
}

func TestPropose_UnknownCoach(t *testing.T) {
	h := newHarness(t)
	req := request(clientB, mon("11:00"), 60)
	req.CoachID = 999

	_, err := h.negotiator.Propose(context.Background(), req)
	assert.ErrorIs(t, err, ErrCoachNotFound)
}

func TestPropose_OverlapPersistsPendingSession(t *testing.T) {
	h := newHarness(t)

	res := conflictAt10_30(t, h)

	require.NotNil(t, res.Conflict)
	assert.Equal(t, model.ConflictTypeOverlap, res.Conflict.Type)
	assert.Equal(t, int64(1), res.Conflict.Existing.ID)
	require.GreaterOrEqual(t, len(res.Conflict.Recommendations), 2)
	assert.Equal(t, mon("11:00"), res.Conflict.Recommendations[0])
	assert.Equal(t, mon("09:00"), res.Conflict.Recommendations[1])

	placeholder := h.db.session(res.Session.ID)
	assert.Equal(t, model.SessionStatusPendingResolution, placeholder.Status)
	assert.Equal(t, clientB, placeholder.ClientID)
	assert.Equal(t, mon("10:30"), placeholder.ScheduledAt)

	neg := h.db.negotiations[res.Negotiation.ID]
	assert.Equal(t, model.NegotiationConflictDetected, neg.State)
	assert.Equal(t, int64(1), neg.ExistingSessionID)
	require.NotNil(t, neg.PendingSessionID)
	assert.Equal(t, placeholder.ID, *neg.PendingSessionID)
	assert.Equal(t, []events.Kind{events.KindConflictDetected}, eventKinds(h.db))
}

func TestPropose_DailyLimit(t *testing.T) {
	h := newHarness(t)

	res, err := h.negotiator.Propose(context.Background(), request(clientA, mon("11:00"), 60))
	require.NoError(t, err)
	require.NotNil(t, res.Conflict)
	assert.Equal(t, model.ConflictTypeDailyLimit, res.Conflict.Type)
}

func TestPropose_FailureLeavesNoPartialState(t *testing.T) {
	h := newHarness(t)
	h.db.failOn["create_negotiation"] = errStoreDown

	_, err := h.negotiator.Propose(context.Background(), request(clientB, mon("10:30"), 60))
	require.ErrorIs(t, err, errStoreDown)

	assert.Len(t, h.db.sessions, 1, "pending session must be rolled back")
	assert.Empty(t, h.db.negotiations)
	assert.Empty(t, h.db.events)
}

func TestPropose_NoWorkingHours(t *testing.T) {
	h := newHarness(t)
	delete(h.db.template, coachID)

	res := conflictAt10_30(t, h)
	assert.True(t, res.NoWorkingHours)
	assert.Empty(t, res.Conflict.Recommendations)
}

func TestResolutionRoundTrip_IncomingAcceptsNearestSlot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := conflictAt10_30(t, h)

	neg, err := h.negotiator.Resolve(ctx, res.Negotiation.ID, model.Resolution{Action: model.ResolutionProposeNewTime})
	require.NoError(t, err)
	assert.Equal(t, model.NegotiationProposalSentToIncoming, neg.State)
	require.NotNil(t, neg.RecipientClientID)
	assert.Equal(t, clientB, *neg.RecipientClientID)

	require.Len(t, h.messenger.delivered, 1)
	offer := h.messenger.delivered[0].Payload.Offer()
	assert.Equal(t, mon("11:00"), offer.AvailableSlots[0])
	assert.Equal(t, mon("09:00"), offer.AvailableSlots[1])
	assert.Equal(t, mon("10:30"), offer.OriginalTime)
	assert.False(t, offer.Mode.AllowsDecline())
	assert.True(t, h.db.negotiations[neg.ID].InviteSent)

	accepted, err := h.negotiator.Accept(ctx, neg.ID, mon("11:00"))
	require.NoError(t, err)
	assert.False(t, accepted.AlreadyAccepted)
	assert.Equal(t, res.Session.ID, accepted.Session.ID, "pending session becomes the booked session")

	session := h.db.session(accepted.Session.ID)
	assert.Equal(t, model.SessionStatusScheduled, session.Status)
	assert.Equal(t, mon("11:00"), session.ScheduledAt)
	assert.Equal(t, mon("12:00"), session.End())
	assert.True(t, session.InviteSent)
	assert.Equal(t, model.NegotiationAccepted, h.db.negotiations[neg.ID].State)
}

func TestAccept_TwiceCreatesOneSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := conflictAt10_30(t, h)
	_, err := h.negotiator.Resolve(ctx, res.Negotiation.ID, model.Resolution{Action: model.ResolutionProposeNewTime})
	require.NoError(t, err)

	first, err := h.negotiator.Accept(ctx, res.Negotiation.ID, mon("11:00"))
	require.NoError(t, err)
	second, err := h.negotiator.Accept(ctx, res.Negotiation.ID, mon("11:00"))
	require.NoError(t, err)

	assert.True(t, second.AlreadyAccepted)
	assert.Equal(t, first.Session.ID, second.Session.ID)

	var atEleven int
	for _, s := range h.db.activeSessions() {
		if s.ScheduledAt.Equal(mon("11:00")) {
			atEleven++
		}
	}
	assert.Equal(t, 1, atEleven)

	_, err = h.negotiator.Accept(ctx, res.Negotiation.ID, mon("09:00"))
	assert.ErrorIs(t, err, ErrNegotiationClosed)
}

func TestAccept_WithoutPendingSessionChecksBeforeCreate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := conflictAt10_30(t, h)
	_, err := h.negotiator.Resolve(ctx, res.Negotiation.ID, model.Resolution{Action: model.ResolutionProposeNewTime})
	require.NoError(t, err)

	// заглушку удалили, а клиент уже записан на 11:00 другим путём
	delete(h.db.sessions, res.Session.ID)
	h.db.sessions[50] = model.Session{
		ID: 50, CoachID: coachID, ClientID: clientB, ScheduledAt: mon("11:00"),
		DurationMinutes: 60, Status: model.SessionStatusScheduled, SessionType: model.SessionTypeTraining,
	}

	accepted, err := h.negotiator.Accept(ctx, res.Negotiation.ID, mon("11:00"))
	require.NoError(t, err)
	assert.Equal(t, int64(50), accepted.Session.ID)
	assert.Len(t, h.db.activeSessions(), 2)
}

func TestAccept_WithoutPendingSessionCreates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := conflictAt10_30(t, h)
	_, err := h.negotiator.Resolve(ctx, res.Negotiation.ID, model.Resolution{Action: model.ResolutionProposeNewTime})
	require.NoError(t, err)
	delete(h.db.sessions, res.Session.ID)

	accepted, err := h.negotiator.Accept(ctx, res.Negotiation.ID, mon("09:00"))
	require.NoError(t, err)
	assert.NotEqual(t, res.Session.ID, accepted.Session.ID)
	assert.Equal(t, model.SessionStatusScheduled, h.db.session(accepted.Session.ID).Status)
	assert.True(t, h.db.session(accepted.Session.ID).InviteSent)
}

func TestAccept_StaleSlotOffersRemaining(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := conflictAt10_30(t, h)
	_, err := h.negotiator.Resolve(ctx, res.Negotiation.ID, model.Resolution{Action: model.ResolutionProposeNewTime})
	require.NoError(t, err)

	// пока клиент думал, 11:00 занял другой клиент
	h.db.sessions[60] = model.Session{
		ID: 60, CoachID: coachID, ClientID: 30, ScheduledAt: mon("11:00"),
		DurationMinutes: 60, Status: model.SessionStatusScheduled, SessionType: model.SessionTypeTraining,
	}
	before := len(h.db.events)

	_, err = h.negotiator.Accept(ctx, res.Negotiation.ID, mon("11:00"))
	var unavailable *SlotUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, mon("11:00"), unavailable.Slot)
	assert.Contains(t, unavailable.Remaining, mon("09:00"))
	assert.NotContains(t, unavailable.Remaining, mon("11:00"))

	assert.Equal(t, model.NegotiationProposalSentToIncoming, h.db.negotiations[res.Negotiation.ID].State)
	assert.Equal(t, model.SessionStatusPendingResolution, h.db.session(res.Session.ID).Status)
	assert.Len(t, h.db.events, before)

	accepted, err := h.negotiator.Accept(ctx, res.Negotiation.ID, mon("09:00"))
	require.NoError(t, err)
	assert.Equal(t, mon("09:00"), accepted.Session.ScheduledAt)
}

func TestAccept_StoreConstraintMapsToUnavailable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := conflictAt10_30(t, h)
	_, err := h.negotiator.Resolve(ctx, res.Negotiation.ID, model.Resolution{Action: model.ResolutionProposeNewTime})
	require.NoError(t, err)

	h.db.failOn["update_session"] = model.ErrSlotTaken

	_, err = h.negotiator.Accept(ctx, res.Negotiation.ID, mon("11:00"))
	var unavailable *SlotUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, model.NegotiationProposalSentToIncoming, h.db.negotiations[res.Negotiation.ID].State)
}

func TestAccept_SlotNotOffered(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := conflictAt10_30(t, h)
	_, err := h.negotiator.Resolve(ctx, res.Negotiation.ID, model.Resolution{Action: model.ResolutionProposeNewTime})
	require.NoError(t, err)

	_, err = h.negotiator.Accept(ctx, res.Negotiation.ID, mon("10:15"))
	assert.ErrorIs(t, err, ErrSlotNotOffered)
}

func TestAccept_BeforeProposalSent(t *testing.T) {
	h := newHarness(t)
	res := conflictAt10_30(t, h)

	_, err := h.negotiator.Accept(context.Background(), res.Negotiation.ID, mon("11:00"))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestExistingHolder_DeclineKeepsTime(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := conflictAt10_30(t, h)

	neg, err := h.negotiator.Resolve(ctx, res.Negotiation.ID, model.Resolution{
		Action:       model.ResolutionRescheduleExisting,
		AllowDecline: true,
	})
	require.NoError(t, err)
	assert.Equal(t, model.NegotiationProposalSentToExisting, neg.State)
	require.NotNil(t, neg.RecipientClientID)
	assert.Equal(t, clientA, *neg.RecipientClientID)

	existing := h.db.session(1)
	assert.Equal(t, model.NegotiationTagPendingReschedule, existing.Negotiation.Kind)
	require.NotNil(t, existing.Negotiation.TargetClientID)
	assert.Equal(t, clientB, *existing.Negotiation.TargetClientID)
	assert.True(t, existing.InviteSent)
	assert.Nil(t, existing.CancellationReason)

	declined, err := h.negotiator.Decline(ctx, neg.ID)
	require.NoError(t, err)
	assert.Equal(t, model.NegotiationDeclined, declined.State)

	existing = h.db.session(1)
	assert.Equal(t, model.NegotiationTagRejected, existing.Negotiation.Kind)
	require.NotNil(t, existing.CancellationReason)
	assert.Equal(t, model.CancellationReasonRescheduleRejected, *existing.CancellationReason)
	assert.Equal(t, mon("10:00"), existing.ScheduledAt)
	assert.Equal(t, model.SessionStatusScheduled, existing.Status)

	again, err := h.negotiator.Decline(ctx, neg.ID)
	require.NoError(t, err)
	assert.Equal(t, model.NegotiationDeclined, again.State)
}

func TestExistingHolder_AcceptMovesSessionAndBooksIncoming(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := conflictAt10_30(t, h)

	neg, err := h.negotiator.Resolve(ctx, res.Negotiation.ID, model.Resolution{
		Action:       model.ResolutionRescheduleExisting,
		AllowDecline: true,
	})
	require.NoError(t, err)

	offer := h.messenger.delivered[0].Payload.Offer()
	assert.Contains(t, offer.AvailableSlots, mon("09:00"))
	assert.NotContains(t, offer.AvailableSlots, mon("10:30"), "incoming client's requested time stays reserved")
	assert.NotContains(t, offer.AvailableSlots, mon("11:00"))

	accepted, err := h.negotiator.Accept(ctx, neg.ID, mon("09:00"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), accepted.Session.ID)

	existing := h.db.session(1)
	assert.Equal(t, mon("09:00"), existing.ScheduledAt)
	assert.Equal(t, model.SessionStatusScheduled, existing.Status)
	assert.Nil(t, existing.CancellationReason)
	assert.True(t, existing.Negotiation.IsNone())

	require.NotNil(t, accepted.Promoted)
	incoming := h.db.session(res.Session.ID)
	assert.Equal(t, model.SessionStatusScheduled, incoming.Status)
	assert.Equal(t, mon("10:30"), incoming.ScheduledAt)

	assert.Equal(t, []events.Kind{
		events.KindConflictDetected,
		events.KindProposalSent,
		events.KindSessionScheduled,
		events.KindAccepted,
	}, eventKinds(h.db))
}

// conflictWithPlaceholder клиент C просит Пн 11:00 и пересекается с заглушкой B 10:30-11:30
func conflictWithPlaceholder(t *testing.T, h *harness) (first, second *ProposeResult) {
	t.Helper()
	first = conflictAt10_30(t, h)
	second, err := h.negotiator.Propose(context.Background(), request(clientC, mon("11:00"), 60))
	require.NoError(t, err)
	require.Equal(t, scheduling.OutcomeConflict, second.Outcome)
	require.Equal(t, first.Session.ID, second.Conflict.Existing.ID)
	require.Equal(t, model.SessionStatusPendingResolution, second.Conflict.Existing.Status)
	return first, second
}

func TestResolve_ExistingPlaceholderCannotBeRescheduled(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first, second := conflictWithPlaceholder(t, h)

	_, err := h.negotiator.Resolve(ctx, second.Negotiation.ID, model.Resolution{
		Action:       model.ResolutionRescheduleExisting,
		AllowDecline: true,
	})
	require.ErrorIs(t, err, ErrExistingUnresolved)
	assert.Empty(t, h.messenger.delivered)

	placeholder := h.db.session(first.Session.ID)
	assert.Equal(t, model.SessionStatusPendingResolution, placeholder.Status)
	assert.True(t, placeholder.Negotiation.IsNone())
	assert.Equal(t, model.NegotiationConflictDetected, h.db.negotiations[first.Negotiation.ID].State)
	assert.Equal(t, model.NegotiationConflictDetected, h.db.negotiations[second.Negotiation.ID].State)

	// предложить новому клиенту другое время по-прежнему можно
	_, err = h.negotiator.Resolve(ctx, second.Negotiation.ID, model.Resolution{Action: model.ResolutionProposeNewTime})
	require.NoError(t, err)
	assert.Equal(t, model.NegotiationProposalSentToIncoming, h.db.negotiations[second.Negotiation.ID].State)
}

func TestAccept_RescheduleOfPlaceholderIsRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first, second := conflictWithPlaceholder(t, h)

	// предложение перенести заглушку, записанное в обход Resolve
	neg := h.db.negotiations[second.Negotiation.ID]
	neg.State = model.NegotiationProposalSentToExisting
	neg.Payload = &proposal.Reschedule{
		Details: proposal.Details{
			OriginalTime:   mon("10:30"),
			AvailableSlots: []time.Time{mon("09:00")},
			Mode:           proposal.ModeConfirm,
		},
		SessionID: first.Session.ID,
	}
	h.db.negotiations[neg.ID] = neg

	_, err := h.negotiator.Accept(ctx, neg.ID, mon("09:00"))
	require.ErrorIs(t, err, ErrExistingUnresolved)

	placeholder := h.db.session(first.Session.ID)
	assert.Equal(t, model.SessionStatusPendingResolution, placeholder.Status)
	assert.Equal(t, mon("10:30"), placeholder.ScheduledAt)
}

func TestDecline_NotAllowedInSelectMode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := conflictAt10_30(t, h)
	_, err := h.negotiator.Resolve(ctx, res.Negotiation.ID, model.Resolution{Action: model.ResolutionProposeNewTime})
	require.NoError(t, err)

	_, err = h.negotiator.Decline(ctx, res.Negotiation.ID)
	assert.ErrorIs(t, err, ErrDeclineNotAllowed)
	assert.Equal(t, model.NegotiationProposalSentToIncoming, h.db.negotiations[res.Negotiation.ID].State)
}

func TestResolve_Cancel(t *testing.T) {
	h := newHarness(t)
	res := conflictAt10_30(t, h)

	neg, err := h.negotiator.Resolve(context.Background(), res.Negotiation.ID, model.Resolution{Action: model.ResolutionCancel})
	require.NoError(t, err)

	assert.Equal(t, model.NegotiationAbandoned, neg.State)
	_, exists := h.db.sessions[res.Session.ID]
	assert.False(t, exists)
	assert.Empty(t, h.messenger.delivered)
}

func TestResolve_OnlyFromConflictDetected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := conflictAt10_30(t, h)
	_, err := h.negotiator.Resolve(ctx, res.Negotiation.ID, model.Resolution{Action: model.ResolutionProposeNewTime})
	require.NoError(t, err)

	_, err = h.negotiator.Resolve(ctx, res.Negotiation.ID, model.Resolution{Action: model.ResolutionRescheduleExisting})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestResolve_NoAlternatives(t *testing.T) {
	h := newHarness(t)
	res := conflictAt10_30(t, h)
	delete(h.db.template, coachID)

	_, err := h.negotiator.Resolve(context.Background(), res.Negotiation.ID, model.Resolution{Action: model.ResolutionProposeNewTime})
	require.ErrorIs(t, err, ErrNoAlternatives)
	assert.Equal(t, model.NegotiationConflictDetected, h.db.negotiations[res.Negotiation.ID].State)
	assert.Empty(t, h.messenger.delivered)
}

func TestResolve_CoachChosenSlotsAreValidated(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := conflictAt10_30(t, h)

	_, err := h.negotiator.Resolve(ctx, res.Negotiation.ID, model.Resolution{
		Action:        model.ResolutionProposeNewTime,
		ProposedSlots: []time.Time{mon("10:00")},
	})
	require.ErrorIs(t, err, ErrInvalidResolution)

	neg, err := h.negotiator.Resolve(ctx, res.Negotiation.ID, model.Resolution{
		Action:        model.ResolutionProposeNewTime,
		ProposedSlots: []time.Time{mon("14:00")},
		Text:          "Можно вечером?",
	})
	require.NoError(t, err)
	offer := neg.Payload.Offer()
	assert.Equal(t, []time.Time{mon("14:00")}, offer.AvailableSlots)
	assert.Equal(t, "Можно вечером?", offer.Text)
}

func TestResolve_StoreFailureKeepsPriorState(t *testing.T) {
	h := newHarness(t)
	res := conflictAt10_30(t, h)
	h.db.failOn["update_negotiation"] = errStoreDown

	_, err := h.negotiator.Resolve(context.Background(), res.Negotiation.ID, model.Resolution{Action: model.ResolutionRescheduleExisting})
	require.ErrorIs(t, err, errStoreDown)

	existing := h.db.session(1)
	assert.True(t, existing.Negotiation.IsNone(), "existing session mutation must be rolled back")
	assert.False(t, existing.InviteSent)
	assert.Equal(t, model.NegotiationConflictDetected, h.db.negotiations[res.Negotiation.ID].State)
	assert.Empty(t, h.messenger.delivered, "nothing is sent when the store write failed")
}

func TestResolve_DeliveryFailureKeepsCommittedState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := conflictAt10_30(t, h)
	h.messenger.err = errStoreDown

	neg, err := h.negotiator.Resolve(ctx, res.Negotiation.ID, model.Resolution{Action: model.ResolutionProposeNewTime})
	require.ErrorIs(t, err, ErrDeliveryFailed)
	require.NotNil(t, neg)

	stored := h.db.negotiations[res.Negotiation.ID]
	assert.Equal(t, model.NegotiationProposalSentToIncoming, stored.State)
	assert.False(t, stored.InviteSent)

	h.messenger.err = nil
	_, err = h.negotiator.Redeliver(ctx, res.Negotiation.ID)
	require.NoError(t, err)
	assert.Len(t, h.messenger.delivered, 1)
	assert.True(t, h.db.negotiations[res.Negotiation.ID].InviteSent)
}

func TestDiscard(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := conflictAt10_30(t, h)
	_, err := h.negotiator.Resolve(ctx, res.Negotiation.ID, model.Resolution{Action: model.ResolutionRescheduleExisting})
	require.NoError(t, err)

	neg, err := h.negotiator.Discard(ctx, res.Negotiation.ID)
	require.NoError(t, err)
	assert.Equal(t, model.NegotiationAbandoned, neg.State)

	_, exists := h.db.sessions[res.Session.ID]
	assert.False(t, exists)
	assert.True(t, h.db.session(1).Negotiation.IsNone())
	assert.Equal(t, mon("10:00"), h.db.session(1).ScheduledAt)

	_, err = h.negotiator.Discard(ctx, res.Negotiation.ID)
	assert.NoError(t, err)

	_, err = h.negotiator.Redeliver(ctx, res.Negotiation.ID)
	assert.ErrorIs(t, err, ErrNegotiationClosed)
}

func TestDiscard_AfterDeclineKeepsRejection(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := conflictAt10_30(t, h)
	_, err := h.negotiator.Resolve(ctx, res.Negotiation.ID, model.Resolution{
		Action:       model.ResolutionRescheduleExisting,
		AllowDecline: true,
	})
	require.NoError(t, err)
	_, err = h.negotiator.Decline(ctx, res.Negotiation.ID)
	require.NoError(t, err)

	_, err = h.negotiator.Discard(ctx, res.Negotiation.ID)
	require.NoError(t, err)
	assert.Equal(t, model.NegotiationTagRejected, h.db.session(1).Negotiation.Kind)
}

func TestPending(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := conflictAt10_30(t, h)
	h.now = h.now.Add(time.Minute)
	second, err := h.negotiator.Propose(ctx, request(clientA, mon("11:00"), 60))
	require.NoError(t, err)
	require.NotNil(t, second.Negotiation)

	_, err = h.negotiator.Resolve(ctx, first.Negotiation.ID, model.Resolution{Action: model.ResolutionProposeNewTime})
	require.NoError(t, err)

	// заглушка без переговоров
	h.db.sessions[70] = model.Session{
		ID: 70, CoachID: coachID, ClientID: 40, ScheduledAt: mon("09:00"),
		DurationMinutes: 30, Status: model.SessionStatusPendingResolution,
	}

	items, err := h.negotiator.Pending(ctx, coachID)
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, PendingAwaitingClient, items[0].Status)
	assert.Equal(t, first.Negotiation.ID, items[0].Negotiation.ID)
	require.NotNil(t, items[0].Session)
	assert.Equal(t, first.Session.ID, items[0].Session.ID)

	assert.Equal(t, PendingNeedsResolution, items[1].Status)
	assert.Equal(t, second.Negotiation.ID, items[1].Negotiation.ID)
	assert.False(t, items[1].CanReschedule, "the existing session is the first conflict's placeholder")

	assert.Equal(t, PendingOrphaned, items[2].Status)
	assert.Nil(t, items[2].Negotiation)
	assert.Equal(t, int64(70), items[2].Session.ID)
}

func TestStale(t *testing.T) {
	h := newHarness(t)
	res := conflictAt10_30(t, h)

	stale, err := h.negotiator.Stale(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Empty(t, stale)

	h.now = h.now.Add(2 * time.Hour)
	stale, err = h.negotiator.Stale(context.Background(), time.Hour)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, res.Negotiation.ID, stale[0].ID)
}
