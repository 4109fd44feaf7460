package negotiation

import (
	"context"
	"errors"
	"maps"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Freeeeeet/coach_scheduler/internal/events"
	"github.com/Freeeeeet/coach_scheduler/internal/model"
	"github.com/Freeeeeet/coach_scheduler/internal/scheduling"
)

var errStoreDown = errors.New("store unavailable")

// memDB хранилище в памяти; WithinTx откатывает все изменения при ошибке
type memDB struct {
	sessions     map[int64]model.Session
	negotiations map[uuid.UUID]model.Negotiation
	users        map[int64]model.User
	template     map[int64][]model.AvailabilitySlot
	blocked      map[int64][]model.BlockedDate
	events       []events.Event
	nextID       int64

	// failOn имя операции, на которой хранилище вернёт ошибку
	failOn  map[string]error
	commits int
}

func newMemDB() *memDB {
	return &memDB{
		sessions:     make(map[int64]model.Session),
		negotiations: make(map[uuid.UUID]model.Negotiation),
		users:        make(map[int64]model.User),
		template:     make(map[int64][]model.AvailabilitySlot),
		blocked:      make(map[int64][]model.BlockedDate),
		failOn:       make(map[string]error),
		nextID:       100,
	}
}

func (db *memDB) fail(op string) error {
	return db.failOn[op]
}

func (db *memDB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	sessions := maps.Clone(db.sessions)
	negotiations := maps.Clone(db.negotiations)
	evs := slices.Clone(db.events)
	nextID := db.nextID

	err := fn(ctx)
	if err != nil {
		db.sessions = sessions
		db.negotiations = negotiations
		db.events = evs
		db.nextID = nextID
		return err
	}
	db.commits++
	return nil
}

func (db *memDB) Publish(_ context.Context, e events.Event) error {
	if err := db.fail("publish"); err != nil {
		return err
	}
	db.events = append(db.events, e)
	return nil
}

func (db *memDB) session(id int64) model.Session {
	return db.sessions[id]
}

func (db *memDB) activeSessions() []model.Session {
	var out []model.Session
	for _, s := range db.sessions {
		if s.IsActive() {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b model.Session) int { return a.ScheduledAt.Compare(b.ScheduledAt) })
	return out
}

type sessionStore struct{ db *memDB }

func (s sessionStore) ListForCheck(_ context.Context, coachID int64, clientIDs []int64, from, to time.Time) ([]model.Session, error) {
	if err := s.db.fail("list_sessions"); err != nil {
		return nil, err
	}
	var out []model.Session
	for _, sess := range s.db.sessions {
		if sess.ScheduledAt.Before(from) || !sess.ScheduledAt.Before(to) {
			continue
		}
		if sess.CoachID == coachID || slices.Contains(clientIDs, sess.ClientID) {
			out = append(out, sess)
		}
	}
	slices.SortFunc(out, func(a, b model.Session) int { return a.ScheduledAt.Compare(b.ScheduledAt) })
	return out, nil
}

func (s sessionStore) ListPendingResolution(_ context.Context, coachID int64) ([]model.Session, error) {
	var out []model.Session
	for _, sess := range s.db.sessions {
		if sess.CoachID == coachID && sess.Status == model.SessionStatusPendingResolution {
			out = append(out, sess)
		}
	}
	slices.SortFunc(out, func(a, b model.Session) int { return a.ScheduledAt.Compare(b.ScheduledAt) })
	return out, nil
}

func (s sessionStore) GetByID(_ context.Context, id int64) (*model.Session, error) {
	sess, ok := s.db.sessions[id]
	if !ok {
		return nil, nil
	}
	return &sess, nil
}

func (s sessionStore) GetByIDForUpdate(ctx context.Context, id int64) (*model.Session, error) {
	return s.GetByID(ctx, id)
}

func (s sessionStore) Create(_ context.Context, sess *model.Session) error {
	if err := s.db.fail("create_session"); err != nil {
		return err
	}
	if err := s.db.checkConstraints(sess); err != nil {
		return err
	}
	s.db.nextID++
	sess.ID = s.db.nextID
	s.db.sessions[sess.ID] = *sess
	return nil
}

func (s sessionStore) Update(_ context.Context, sess *model.Session) error {
	if err := s.db.fail("update_session"); err != nil {
		return err
	}
	if _, ok := s.db.sessions[sess.ID]; !ok {
		return errors.New("session does not exist")
	}
	if err := s.db.checkConstraints(sess); err != nil {
		return err
	}
	s.db.sessions[sess.ID] = *sess
	return nil
}

func (s sessionStore) Delete(_ context.Context, id int64) error {
	if err := s.db.fail("delete_session"); err != nil {
		return err
	}
	delete(s.db.sessions, id)
	return nil
}

// checkConstraints повторяет ограничения базы для сессий в статусе scheduled
func (db *memDB) checkConstraints(sess *model.Session) error {
	if sess.Status != model.SessionStatusScheduled {
		return nil
	}
	for _, other := range db.sessions {
		if other.ID == sess.ID || other.Status != model.SessionStatusScheduled {
			continue
		}
		if other.CoachID == sess.CoachID && scheduling.SessionsOverlap(&other, sess) {
			return model.ErrSlotTaken
		}
		if other.ClientID == sess.ClientID && model.DateOf(other.ScheduledAt, time.UTC) == model.DateOf(sess.ScheduledAt, time.UTC) {
			return model.ErrSlotTaken
		}
	}
	return nil
}

type negotiationStore struct{ db *memDB }

func (s negotiationStore) Create(_ context.Context, n *model.Negotiation) error {
	if err := s.db.fail("create_negotiation"); err != nil {
		return err
	}
	s.db.negotiations[n.ID] = *n
	return nil
}

func (s negotiationStore) GetByID(_ context.Context, id uuid.UUID) (*model.Negotiation, error) {
	n, ok := s.db.negotiations[id]
	if !ok {
		return nil, nil
	}
	return &n, nil
}

func (s negotiationStore) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Negotiation, error) {
	return s.GetByID(ctx, id)
}

func (s negotiationStore) Update(_ context.Context, n *model.Negotiation) error {
	if err := s.db.fail("update_negotiation"); err != nil {
		return err
	}
	s.db.negotiations[n.ID] = *n
	return nil
}

func (s negotiationStore) MarkInviteSent(_ context.Context, id uuid.UUID) error {
	n := s.db.negotiations[id]
	n.InviteSent = true
	s.db.negotiations[id] = n
	return nil
}

func (s negotiationStore) ListOpenByCoach(_ context.Context, coachID int64) ([]model.Negotiation, error) {
	var out []model.Negotiation
	for _, n := range s.db.negotiations {
		if n.CoachID == coachID && !n.State.IsTerminal() {
			out = append(out, n)
		}
	}
	slices.SortFunc(out, func(a, b model.Negotiation) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (s negotiationStore) ListStale(_ context.Context, updatedBefore time.Time) ([]model.Negotiation, error) {
	var out []model.Negotiation
	for _, n := range s.db.negotiations {
		open := n.State == model.NegotiationConflictDetected || n.State.IsProposalSent()
		if open && n.UpdatedAt.Before(updatedBefore) {
			out = append(out, n)
		}
	}
	return out, nil
}

type userStore struct{ db *memDB }

func (s userStore) GetByID(_ context.Context, id int64) (*model.User, error) {
	u, ok := s.db.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

type availabilityStore struct{ db *memDB }

func (s availabilityStore) GetWeeklyTemplate(_ context.Context, coachID int64) ([]model.AvailabilitySlot, error) {
	if err := s.db.fail("get_template"); err != nil {
		return nil, err
	}
	return s.db.template[coachID], nil
}

func (s availabilityStore) GetBlockedDates(_ context.Context, coachID int64) ([]model.BlockedDate, error) {
	return s.db.blocked[coachID], nil
}

type fakeMessenger struct {
	delivered []model.Negotiation
	err       error
}

func (m *fakeMessenger) DeliverProposal(_ context.Context, n *model.Negotiation) error {
	if m.err != nil {
		return m.err
	}
	m.delivered = append(m.delivered, *n)
	return nil
}

const (
	coachID = int64(1)
	clientA = int64(10) // владелец существующей сессии
	clientB = int64(20) // входящий клиент
	clientC = int64(30)
)

// monday понедельник, на который строятся сценарии; now за день до него
var monday = model.Date{Year: 2026, Month: time.October, Day: 19}

func mon(hhmm string) time.Time {
	tod, err := model.ParseTimeOfDay(hhmm)
	if err != nil {
		panic(err)
	}
	return monday.At(tod, time.UTC)
}

type harness struct {
	db         *memDB
	messenger  *fakeMessenger
	negotiator *Negotiator
	now        time.Time
}

// newHarness коуч с шаблоном Пн 09:00-12:00 и сессией клиента A Пн 10:00-11:00
func newHarness(t *testing.T) *harness {
	t.Helper()

	db := newMemDB()
	db.users[coachID] = model.User{ID: coachID, IsCoach: true, Timezone: "UTC", FirstName: "Coach"}
	db.users[clientA] = model.User{ID: clientA, FirstName: "Anna"}
	db.users[clientB] = model.User{ID: clientB, FirstName: "Boris"}
	db.users[clientC] = model.User{ID: clientC, FirstName: "Vera"}
	db.template[coachID] = []model.AvailabilitySlot{{
		CoachID:  coachID,
		Weekday:  int(time.Monday),
		Start:    model.NewTimeOfDay(9, 0),
		End:      model.NewTimeOfDay(12, 0),
		IsActive: true,
	}}
	db.sessions[1] = model.Session{
		ID:              1,
		CoachID:         coachID,
		ClientID:        clientA,
		ScheduledAt:     mon("10:00"),
		DurationMinutes: 60,
		Status:          model.SessionStatusScheduled,
		SessionType:     model.SessionTypeTraining,
		Negotiation:     model.NegotiationTag{Kind: model.NegotiationTagNone},
	}

	h := &harness{
		db:        db,
		messenger: &fakeMessenger{},
		now:       monday.AddDays(-1).At(model.NewTimeOfDay(12, 0), time.UTC),
	}
	h.negotiator = New(Dependencies{
		Sessions:     sessionStore{db},
		Availability: availabilityStore{db},
		Negotiations: negotiationStore{db},
		Users:        userStore{db},
		Tx:           db,
		Messenger:    h.messenger,
		Publisher:    db,
		Recommender:  scheduling.NewRecommender(0, 0),
		Now:          func() time.Time { return h.now },
	})
	return h
}

func request(client int64, start time.Time, minutes int) model.SessionRequest {
	return model.SessionRequest{
		CoachID:         coachID,
		ClientID:        client,
		ScheduledAt:     start,
		DurationMinutes: minutes,
		SessionType:     model.SessionTypeTraining,
	}
}
