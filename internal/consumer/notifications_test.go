package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/shareactivities/internal/domain"
	"example.com/shareactivities/internal/events"
	"example.com/shareactivities/internal/notify"
	"example.com/shareactivities/internal/persistence/memory"
)

type recordingNotifier struct {
	mu         sync.Mutex
	recipients []notify.Recipient
	title      string
	body       string
	calls      int
}

func (n *recordingNotifier) FanOut(_ context.Context, recipients []notify.Recipient, title, body string) notify.Report {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	n.recipients = recipients
	n.title = title
	n.body = body
	return notify.Report{Sent: len(recipients)}
}

type failingAudience struct{}

func (failingAudience) Resolve(context.Context, domain.Activity) ([]notify.Recipient, error) {
	return nil, errors.New("directory unavailable")
}

func newDirectory() *memory.Store {
	store := memory.NewStore()
	ana := domain.User{ID: "u1", Name: "Ana", Email: "ana@example.com"}
	bia := domain.User{ID: "u2", Name: "Bia", Email: "bia@example.com"}
	store.PutUser(ana)
	store.PutUser(bia)
	store.PutFamily(domain.Family{ID: "f1", Name: "Casa"}, domain.Member{User: ana, IsAdmin: true}, domain.Member{User: bia})
	return store
}

func eventMessage(t *testing.T, eventType string, payload any) Message {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return Message{Topic: "activity_events", EventType: eventType, Payload: body, Timestamp: time.Now().UTC()}
}

func TestNotificationHandlerCreatedFamilyActivity(t *testing.T) {
	store := newDirectory()
	notifier := &recordingNotifier{}
	handler := NewNotificationHandler(store.Families(), notify.NewResolver(store.Families(), store.Users()), notifier)

	msg := eventMessage(t, events.TypeActivityCreated, events.ActivityCreated{
		ActivityID: "a1", Name: "Pagar luz", OwnerID: "u1", FamilyID: "f1", Status: string(domain.StatusPending),
	})
	require.NoError(t, handler.Handle(context.Background(), msg))

	require.Equal(t, "Foi criada uma nova atividade para o grupo Casa", notifier.title)
	require.Equal(t, "Atividade criada com o nome Pagar luz e status de pendente", notifier.body)
	require.Len(t, notifier.recipients, 2)
}

func TestNotificationHandlerStatusChangedPersonalActivity(t *testing.T) {
	store := newDirectory()
	notifier := &recordingNotifier{}
	handler := NewNotificationHandler(store.Families(), notify.NewResolver(store.Families(), store.Users()), notifier)

	msg := eventMessage(t, events.TypeActivityStatusChanged, events.ActivityStatusChanged{
		ActivityID: "a2", Name: "Dentista", OwnerID: "u2", PreviousStatus: "pending", Status: string(domain.StatusDone),
	})
	require.NoError(t, handler.Handle(context.Background(), msg))

	require.Equal(t, "Status da atividade alterado", notifier.title)
	require.Equal(t, "Alterado o status da atividade Dentista para concluído", notifier.body)
	require.Equal(t, []notify.Recipient{{Name: "Bia", Email: "bia@example.com"}}, notifier.recipients)
}

func TestNotificationHandlerEnglishTexts(t *testing.T) {
	store := newDirectory()
	notifier := &recordingNotifier{}
	texts, err := TextsFor("en-US")
	require.NoError(t, err)
	handler := NewNotificationHandler(store.Families(), notify.NewResolver(store.Families(), store.Users()), notifier, WithTexts(texts))

	msg := eventMessage(t, events.TypeActivityStatusChanged, events.ActivityStatusChanged{
		ActivityID: "a3", Name: "Groceries", OwnerID: "u1", FamilyID: "f1", Status: string(domain.StatusInProgress),
	})
	require.NoError(t, handler.Handle(context.Background(), msg))
	require.Equal(t, "Activity status changed in group Casa", notifier.title)
	require.Equal(t, "Status of activity Groceries changed to in progress", notifier.body)

	_, err = TextsFor("fr-FR")
	require.Error(t, err)
}

func TestNotificationHandlerIgnoresUnknownEvents(t *testing.T) {
	store := newDirectory()
	notifier := &recordingNotifier{}
	handler := NewNotificationHandler(store.Families(), failingAudience{}, notifier)

	require.NoError(t, handler.Handle(context.Background(), Message{EventType: "activity.archived", Payload: json.RawMessage(`{}`)}))
	require.Zero(t, notifier.calls)
}

func TestNotificationHandlerFailsWhenAudienceUnavailable(t *testing.T) {
	store := newDirectory()
	notifier := &recordingNotifier{}
	handler := NewNotificationHandler(store.Families(), failingAudience{}, notifier)

	msg := eventMessage(t, events.TypeActivityCreated, events.ActivityCreated{ActivityID: "a1", Name: "x", OwnerID: "u1"})
	require.Error(t, handler.Handle(context.Background(), msg))
	require.Zero(t, notifier.calls)
}

func TestNotificationHandlerMissingFamily(t *testing.T) {
	store := newDirectory()
	notifier := &recordingNotifier{}
	handler := NewNotificationHandler(store.Families(), notify.NewResolver(store.Families(), store.Users()), notifier)

	msg := eventMessage(t, events.TypeActivityCreated, events.ActivityCreated{ActivityID: "a1", Name: "x", OwnerID: "u1", FamilyID: "gone"})
	require.Error(t, handler.Handle(context.Background(), msg))
	require.Zero(t, notifier.calls)
}

func TestNotificationHandlerRejectsMalformedPayload(t *testing.T) {
	store := newDirectory()
	handler := NewNotificationHandler(store.Families(), failingAudience{}, &recordingNotifier{})

	err := handler.Handle(context.Background(), Message{EventType: events.TypeActivityCreated, Payload: json.RawMessage(`{"name":`)})
	require.Error(t, err)
}
