package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/juju/errors"

	"example.com/shareactivities/internal/domain"
	"example.com/shareactivities/internal/logging"
	"example.com/shareactivities/internal/notify"
)

// Members lists the recipients of a room.
type Members interface {
	FamilyMembers(ctx context.Context, familyID string) ([]notify.Recipient, error)
}

// Notifier delivers a push to a set of recipients.
type Notifier interface {
	FanOut(ctx context.Context, recipients []notify.Recipient, title, body string) notify.Report
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces the clock that stamps messages.
func WithClock(clk clock.Clock) Option {
	return func(s *Service) {
		if clk != nil {
			s.clock = clk
		}
	}
}

// WithNotifyTimeout bounds the background push fan-out of one message.
func WithNotifyTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.notifyTimeout = d
		}
	}
}

// Service stores inbound messages, broadcasts them to the room and pushes them to the family.
type Service struct {
	registry *Registry
	messages domain.ChatRepository
	users    domain.UserRepository
	families domain.FamilyRepository
	members  Members
	notifier Notifier

	clock         clock.Clock
	newID         func() string
	notifyTimeout time.Duration
	logger        *log.Logger

	pending sync.WaitGroup
}

// NewService constructs a Service.
func NewService(registry *Registry, messages domain.ChatRepository, users domain.UserRepository,
	families domain.FamilyRepository, members Members, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		registry:      registry,
		messages:      messages,
		users:         users,
		families:      families,
		members:       members,
		notifier:      notifier,
		clock:         clock.WallClock,
		newID:         uuid.NewString,
		notifyTimeout: 30 * time.Second,
		logger:        logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry exposes the room registry the service broadcasts through.
func (s *Service) Registry() *Registry {
	return s.registry
}

// HandleMessage processes one payload received on conn. Any returned error has already been
// reported to conn as an ERROR frame; nothing is broadcast in that case.
func (s *Service) HandleMessage(ctx context.Context, conn Conn, payload []byte) error {
	msg, err := s.handle(ctx, payload)
	if err != nil {
		recordMessage("rejected")
		s.logger.Debug("chat message rejected", "conn", conn.ID(), "err", err)
		s.sendError(conn, err)
		return err
	}
	recordMessage("accepted")
	s.logger.Debug("chat message stored", "conn", conn.ID(), "message_id", msg.ID, "room", msg.RoomID)
	return nil
}

func (s *Service) handle(ctx context.Context, payload []byte) (domain.ChatMessage, error) {
	var in Inbound
	if err := json.Unmarshal(payload, &in); err != nil {
		return domain.ChatMessage{}, errors.NewNotValid(err, "malformed message")
	}
	if err := validate(in); err != nil {
		return domain.ChatMessage{}, err
	}

	sender, err := s.lookupSender(ctx, in.SenderID)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	room, err := s.families.FindByID(ctx, in.RoomID)
	if err != nil {
		return domain.ChatMessage{}, errors.Annotatef(err, "load room %s", in.RoomID)
	}
	if room == nil {
		return domain.ChatMessage{}, errors.NotFoundf("room %q", in.RoomID)
	}

	msg := domain.ChatMessage{
		ID:        s.newID(),
		Content:   in.Content,
		CreatedAt: s.clock.Now().UTC(),
		SenderID:  sender.ID,
		RoomID:    room.ID,
	}
	if err := s.messages.Save(ctx, msg); err != nil {
		return domain.ChatMessage{}, errors.Annotate(err, "save message")
	}

	senderName := in.SenderName
	if senderName == "" {
		senderName = sender.Name
	}
	s.notifyRoom(ctx, *room, sender.Name, msg.Content)
	s.broadcast(msg, in.SenderID, senderName)
	return msg, nil
}

// History returns the stored messages of a room.
func (s *Service) History(ctx context.Context, roomID string) ([]domain.ChatMessage, error) {
	if strings.TrimSpace(roomID) == "" {
		return nil, errors.NotValidf("empty room id")
	}
	msgs, err := s.messages.FindAllByRoom(ctx, roomID)
	if err != nil {
		return nil, errors.Annotatef(err, "load history of %s", roomID)
	}
	return msgs, nil
}

// Wait blocks until background push fan-outs have finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

func validate(in Inbound) error {
	var missing []string
	if strings.TrimSpace(in.SenderID) == "" {
		missing = append(missing, "senderId")
	}
	if strings.TrimSpace(in.RoomID) == "" {
		missing = append(missing, "roomId")
	}
	if strings.TrimSpace(in.Content) == "" {
		missing = append(missing, "content")
	}
	if len(missing) > 0 {
		return errors.NotValidf("message without %s", strings.Join(missing, ", "))
	}
	return nil
}

// lookupSender resolves the sender by id, falling back to email for older clients.
func (s *Service) lookupSender(ctx context.Context, ref string) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, ref)
	if err != nil {
		return nil, errors.Annotatef(err, "load sender %s", ref)
	}
	if user != nil {
		return user, nil
	}
	user, err = s.users.FindByEmail(ctx, ref)
	if err != nil {
		return nil, errors.Annotatef(err, "load sender %s", ref)
	}
	if user == nil {
		return nil, errors.NotFoundf("sender %q", ref)
	}
	return user, nil
}

func (s *Service) notifyRoom(ctx context.Context, room domain.Family, senderName, content string) {
	title := fmt.Sprintf("Mensagem de %s na sala %s", senderName, room.Name)
	body := "Nova mensagem: " + content

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
		defer cancel()

		recipients, err := s.members.FamilyMembers(notifyCtx, room.ID)
		if err != nil {
			s.logger.Warn("chat push: resolve members", "room", room.ID, "err", err)
			return
		}
		report := s.notifier.FanOut(notifyCtx, recipients, title, body)
		s.logger.Debug("chat push fan-out", "room", room.ID, "outcomes", report.String())
	}()
}

// broadcast echoes the sender reference the client sent so clients can recognise their own messages.
func (s *Service) broadcast(msg domain.ChatMessage, senderRef, senderName string) {
	frame, err := json.Marshal(Outbound{
		Type:       FrameNewMessage,
		Content:    msg.Content,
		SenderID:   senderRef,
		RoomID:     msg.RoomID,
		SenderName: senderName,
		CreatedAt:  msg.CreatedAt,
	})
	if err != nil {
		s.logger.Error("encode broadcast frame", "err", err)
		return
	}
	result := s.registry.Broadcast(msg.RoomID, frame)
	s.logger.Debug("chat broadcast", "room", msg.RoomID, "delivered", result.Delivered,
		"skipped", result.Skipped, "failed", result.Failed)
}

func (s *Service) sendError(conn Conn, cause error) {
	message := "could not deliver message"
	switch {
	case errors.Is(cause, errors.NotValid), errors.Is(cause, errors.NotFound):
		message = cause.Error()
	}
	frame, err := json.Marshal(ErrorFrame{Type: FrameError, Message: message})
	if err != nil {
		return
	}
	if err := conn.Send(frame); err != nil {
		s.logger.Debug("error frame not delivered", "conn", conn.ID(), "err", err)
	}
}
