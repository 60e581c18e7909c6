package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/juju/errors"

	"example.com/shareactivities/internal/domain"
	"example.com/shareactivities/internal/events"
	"example.com/shareactivities/internal/logging"
	"example.com/shareactivities/internal/notify"
	"example.com/shareactivities/internal/observability"
)

// Audience resolves who hears about an activity.
type Audience interface {
	Resolve(ctx context.Context, activity domain.Activity) ([]notify.Recipient, error)
}

// Notifier delivers one message to many recipients.
type Notifier interface {
	FanOut(ctx context.Context, recipients []notify.Recipient, title, body string) notify.Report
}

// Texts renders the pushes sent for activity lifecycle events.
type Texts struct {
	Tag string

	createdTitle       string
	createdFamilyTitle string
	createdBody        string
	changedTitle       string
	changedFamilyTitle string
	changedBody        string
	labels             map[domain.Status]string
}

var (
	// TextsPortugueseBR is the default catalog.
	TextsPortugueseBR = Texts{
		Tag:                "pt-BR",
		createdTitle:       "Foi criada uma nova atividade",
		createdFamilyTitle: "Foi criada uma nova atividade para o grupo %s",
		createdBody:        "Atividade criada com o nome %s e status de %s",
		changedTitle:       "Status da atividade alterado",
		changedFamilyTitle: "Status da atividade do grupo %s alterado",
		changedBody:        "Alterado o status da atividade %s para %s",
	}

	TextsEnglishUS = Texts{
		Tag:                "en-US",
		createdTitle:       "A new activity was created",
		createdFamilyTitle: "A new activity was created for group %s",
		createdBody:        "Activity %s created with status %s",
		changedTitle:       "Activity status changed",
		changedFamilyTitle: "Activity status changed in group %s",
		changedBody:        "Status of activity %s changed to %s",
		labels: map[domain.Status]string{
			domain.StatusPending:    "pending",
			domain.StatusInProgress: "in progress",
			domain.StatusDone:       "done",
		},
	}
)

// TextsFor looks up a catalog by tag.
func TextsFor(tag string) (Texts, error) {
	switch tag {
	case "", TextsPortugueseBR.Tag:
		return TextsPortugueseBR, nil
	case TextsEnglishUS.Tag:
		return TextsEnglishUS, nil
	}
	return Texts{}, errors.NotValidf("locale %q", tag)
}

func (t Texts) label(status domain.Status) string {
	if l, ok := t.labels[status]; ok {
		return l
	}
	return status.Label()
}

func (t Texts) title(plain, withFamily, family string) string {
	if family == "" {
		return plain
	}
	return fmt.Sprintf(withFamily, family)
}

// Created renders the push for a newly stored activity.
func (t Texts) Created(name, family string, status domain.Status) (string, string) {
	return t.title(t.createdTitle, t.createdFamilyTitle, family), fmt.Sprintf(t.createdBody, name, t.label(status))
}

// StatusChanged renders the push for a status transition.
func (t Texts) StatusChanged(name, family string, status domain.Status) (string, string) {
	return t.title(t.changedTitle, t.changedFamilyTitle, family), fmt.Sprintf(t.changedBody, name, t.label(status))
}

// NotificationOption configures a NotificationHandler.
type NotificationOption func(*NotificationHandler)

// WithNotificationLogger sets the handler logger.
func WithNotificationLogger(logger *log.Logger) NotificationOption {
	return func(h *NotificationHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithTexts overrides the message catalog.
func WithTexts(texts Texts) NotificationOption {
	return func(h *NotificationHandler) {
		h.texts = texts
	}
}

// NotificationHandler fans activity events out to the activity's audience.
type NotificationHandler struct {
	families domain.FamilyRepository
	audience Audience
	notifier Notifier
	texts    Texts
	logger   *log.Logger
}

// NewNotificationHandler constructs a NotificationHandler.
func NewNotificationHandler(families domain.FamilyRepository, audience Audience, notifier Notifier, opts ...NotificationOption) *NotificationHandler {
	h := &NotificationHandler{
		families: families,
		audience: audience,
		notifier: notifier,
		texts:    TextsPortugueseBR,
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle decodes msg and notifies. Unknown event types are ignored. Delivery outcomes never
// fail the message; a failed audience lookup does.
func (h *NotificationHandler) Handle(ctx context.Context, msg Message) error {
	var (
		activity   domain.Activity
		render     func(name, family string, status domain.Status) (string, string)
		occurredAt = msg.Timestamp
	)

	switch msg.EventType {
	case events.TypeActivityCreated:
		var ev events.ActivityCreated
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			return errors.Annotatef(err, "decode %s", msg.EventType)
		}
		activity = domain.Activity{ID: ev.ActivityID, Name: ev.Name, OwnerID: ev.OwnerID, FamilyID: ev.FamilyID, Status: domain.Status(ev.Status)}
		render = h.texts.Created
		if !ev.CreatedAt.IsZero() {
			occurredAt = ev.CreatedAt
		}
	case events.TypeActivityStatusChanged:
		var ev events.ActivityStatusChanged
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			return errors.Annotatef(err, "decode %s", msg.EventType)
		}
		activity = domain.Activity{ID: ev.ActivityID, Name: ev.Name, OwnerID: ev.OwnerID, FamilyID: ev.FamilyID, Status: domain.Status(ev.Status)}
		render = h.texts.StatusChanged
		if !ev.OccurredAt.IsZero() {
			occurredAt = ev.OccurredAt
		}
	default:
		h.logger.Debug("ignoring event", "event_type", msg.EventType)
		return nil
	}

	familyName, err := h.familyName(ctx, activity)
	if err != nil {
		return err
	}
	recipients, err := h.audience.Resolve(ctx, activity)
	if err != nil {
		return errors.Annotatef(err, "resolve audience of activity %s", activity.ID)
	}

	title, body := render(activity.Name, familyName, activity.Status)
	report := h.notifier.FanOut(ctx, recipients, title, body)
	h.logger.Info("activity event notified", "event_type", msg.EventType, "activity_id", activity.ID, "report", report.String())
	observability.RecordActivityNotified(occurredAt)
	return nil
}

func (h *NotificationHandler) familyName(ctx context.Context, activity domain.Activity) (string, error) {
	if !activity.HasFamily() {
		return "", nil
	}
	family, err := h.families.FindByID(ctx, activity.FamilyID)
	if err != nil {
		return "", errors.Annotatef(err, "find family %s", activity.FamilyID)
	}
	if family == nil {
		return "", errors.NotFoundf("family %s", activity.FamilyID)
	}
	return family.Name, nil
}
