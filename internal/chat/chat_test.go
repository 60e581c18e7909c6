package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/require"

	"example.com/shareactivities/internal/domain"
	"example.com/shareactivities/internal/notify"
	"example.com/shareactivities/internal/persistence/memory"
	"example.com/shareactivities/internal/push"
)

type fakeConn struct {
	id      string
	mu      sync.Mutex
	frames  [][]byte
	closed  bool
	sendErr error
}

func newConn(id string) *fakeConn { return &fakeConn{id: id} }

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.frames = append(c.frames, frame)
	return nil
}

func (c *fakeConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) received(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.frames))
	for _, f := range c.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(f, &m))
		out = append(out, m)
	}
	return out
}

type countingTransport struct {
	mu     sync.Mutex
	tokens []string
	titles []string
}

func (c *countingTransport) Send(_ context.Context, token, title, _ string) (push.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = append(c.tokens, token)
	c.titles = append(c.titles, title)
	return push.Receipt{StatusCode: 200}, nil
}

type failingChat struct{}

func (failingChat) Save(context.Context, domain.ChatMessage) error {
	return errors.New("insert failed")
}

func (failingChat) FindAllByRoom(context.Context, string) ([]domain.ChatMessage, error) {
	return nil, nil
}

func fixture(t *testing.T, messages domain.ChatRepository) (*Service, *memory.Store, *countingTransport) {
	t.Helper()
	store := memory.NewStore()
	ana := domain.User{ID: "u1", Name: "Ana", Email: "ana@example.com", PushToken: "ExponentPushToken[ana]"}
	bia := domain.User{ID: "u2", Name: "Bia", Email: "bia@example.com", PushToken: "ExponentPushToken[bia]"}
	store.PutUser(ana)
	store.PutUser(bia)
	store.PutFamily(domain.Family{ID: "fam-1", Name: "Casa"}, domain.Member{User: ana, IsAdmin: true}, domain.Member{User: bia})
	if messages == nil {
		messages = store.Chat()
	}

	transport := &countingTransport{}
	svc := NewService(NewRegistry(), messages, store.Users(), store.Families(),
		notify.NewResolver(store.Families(), store.Users()),
		notify.NewSink(store.Users(), transport),
		WithClock(testclock.NewClock(time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC))))
	return svc, store, transport
}

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()
	a, b := newConn("a"), newConn("b")

	require.NoError(t, r.Join(a, "fam-1"))
	require.NoError(t, r.Join(b, "fam-1"))
	require.Error(t, r.Join(a, ""))
	require.Equal(t, 2, r.Size("fam-1"))
	require.Equal(t, []string{"fam-1"}, r.Rooms())

	r.Leave(a)
	r.Leave(a)
	require.Equal(t, 1, r.Size("fam-1"))

	r.Leave(b)
	require.Empty(t, r.Rooms())
}

func TestBroadcastIsolation(t *testing.T) {
	r := NewRegistry()
	healthy, closed, broken := newConn("healthy"), newConn("closed"), newConn("broken")
	closed.closed = true
	broken.sendErr = errors.New("queue full")
	other := newConn("other")
	for _, c := range []*fakeConn{healthy, closed, broken} {
		require.NoError(t, r.Join(c, "fam-1"))
	}
	require.NoError(t, r.Join(other, "fam-2"))

	result := r.Broadcast("fam-1", []byte(`{"type":"NEW_MESSAGE"}`))
	require.Equal(t, BroadcastResult{Delivered: 1, Skipped: 1, Failed: 1}, result)
	require.Len(t, healthy.frames, 1)
	require.Empty(t, other.frames)
	require.Equal(t, 2, r.Size("fam-1"))
}

func TestConcurrentJoinLeaveBroadcast(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		c := newConn(fmt.Sprintf("c%d", i))
		go func() {
			defer wg.Done()
			_ = r.Join(c, "fam-1")
			r.Leave(c)
		}()
		go func() {
			defer wg.Done()
			r.Broadcast("fam-1", []byte("{}"))
		}()
	}
	wg.Wait()
	require.Zero(t, r.Size("fam-1"))
}

func TestHandleMessageBroadcastsAndPushesEveryMember(t *testing.T) {
	svc, _, transport := fixture(t, nil)
	a, b := newConn("a"), newConn("b")
	require.NoError(t, svc.Registry().Join(a, "fam-1"))
	require.NoError(t, svc.Registry().Join(b, "fam-1"))

	payload := []byte(`{"senderId":"u1","senderName":"Ana","roomId":"fam-1","content":"Quem compra pão?"}`)
	require.NoError(t, svc.HandleMessage(context.Background(), a, payload))
	svc.Wait()

	for _, c := range []*fakeConn{a, b} {
		frames := c.received(t)
		require.Len(t, frames, 1)
		require.Equal(t, FrameNewMessage, frames[0]["type"])
		require.Equal(t, "fam-1", frames[0]["roomId"])
		require.Equal(t, "u1", frames[0]["senderId"])
		require.Equal(t, "Ana", frames[0]["senderName"])
		require.Equal(t, "Quem compra pão?", frames[0]["content"])
	}

	require.ElementsMatch(t, []string{"ExponentPushToken[ana]", "ExponentPushToken[bia]"}, transport.tokens)
	require.Equal(t, "Mensagem de Ana na sala Casa", transport.titles[0])

	history, err := svc.History(context.Background(), "fam-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, "u1", history[0].SenderID)
}

func TestHandleMessageResolvesSenderByEmail(t *testing.T) {
	svc, _, _ := fixture(t, nil)
	a := newConn("a")
	require.NoError(t, svc.Registry().Join(a, "fam-1"))

	payload := []byte(`{"senderId":"bia@example.com","roomId":"fam-1","content":"oi"}`)
	require.NoError(t, svc.HandleMessage(context.Background(), a, payload))
	svc.Wait()

	frames := a.received(t)
	require.Len(t, frames, 1)
	require.Equal(t, "bia@example.com", frames[0]["senderId"])
	require.Equal(t, "Bia", frames[0]["senderName"])

	history, err := svc.History(context.Background(), "fam-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, "u2", history[0].SenderID)
}

func TestHandleMessagePushTitleUsesStoredSenderName(t *testing.T) {
	svc, _, transport := fixture(t, nil)
	a := newConn("a")
	require.NoError(t, svc.Registry().Join(a, "fam-1"))

	payload := []byte(`{"senderId":"u2","senderName":"Administrador","roomId":"fam-1","content":"oi"}`)
	require.NoError(t, svc.HandleMessage(context.Background(), a, payload))
	svc.Wait()

	require.NotEmpty(t, transport.titles)
	for _, title := range transport.titles {
		require.Equal(t, "Mensagem de Bia na sala Casa", title)
	}
	frames := a.received(t)
	require.Len(t, frames, 1)
	require.Equal(t, "Administrador", frames[0]["senderName"])
}

func TestHandleMessageRejectsInvalidPayloads(t *testing.T) {
	cases := map[string]string{
		"malformed":       `{"senderId":`,
		"missing content": `{"senderId":"u1","roomId":"fam-1"}`,
		"missing room":    `{"senderId":"u1","content":"oi"}`,
		"unknown sender":  `{"senderId":"ghost","roomId":"fam-1","content":"oi"}`,
		"unknown room":    `{"senderId":"u1","roomId":"fam-9","content":"oi"}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			svc, _, transport := fixture(t, nil)
			sender, peer := newConn("sender"), newConn("peer")
			require.NoError(t, svc.Registry().Join(sender, "fam-1"))
			require.NoError(t, svc.Registry().Join(peer, "fam-1"))

			require.Error(t, svc.HandleMessage(context.Background(), sender, []byte(payload)))
			svc.Wait()

			frames := sender.received(t)
			require.Len(t, frames, 1)
			require.Equal(t, FrameError, frames[0]["type"])
			require.NotEmpty(t, frames[0]["message"])
			require.Empty(t, peer.frames)
			require.Empty(t, transport.tokens)
		})
	}
}

func TestHandleMessagePersistenceFailureIsNotBroadcast(t *testing.T) {
	svc, _, transport := fixture(t, failingChat{})
	sender, peer := newConn("sender"), newConn("peer")
	require.NoError(t, svc.Registry().Join(sender, "fam-1"))
	require.NoError(t, svc.Registry().Join(peer, "fam-1"))

	err := svc.HandleMessage(context.Background(), sender, []byte(`{"senderId":"u1","roomId":"fam-1","content":"oi"}`))
	require.ErrorContains(t, err, "save message")
	svc.Wait()

	frames := sender.received(t)
	require.Len(t, frames, 1)
	require.Equal(t, "could not deliver message", frames[0]["message"])
	require.Empty(t, peer.frames)
	require.Empty(t, transport.tokens)
}

func TestHistoryRequiresRoom(t *testing.T) {
	svc, _, _ := fixture(t, nil)
	_, err := svc.History(context.Background(), " ")
	require.Error(t, err)
}
