package jobs

import (
	"fmt"
	"time"

	"github.com/juju/errors"
)

// Locale renders expiration alerts in one language.
type Locale struct {
	Tag          string
	ExpiredTitle string
	NearDueTitle string
	// DateLayout formats the deadline inside message bodies.
	DateLayout string

	subject       string
	familySubject string
	expired       string
	dueToday      string
	dueTomorrow   string
	dueInDays     string
}

var (
	// PortugueseBR is the default catalog.
	PortugueseBR = Locale{
		Tag:           "pt-BR",
		ExpiredTitle:  "A atividade expirou!",
		NearDueTitle:  "A atividade está próxima do vencimento!",
		DateLayout:    "02/01/2006 às 15:04",
		subject:       `A atividade "%s" `,
		familySubject: `A atividade "%s" do grupo "%s" `,
		expired:       "expirou em %s.",
		dueToday:      "expira hoje, %s!",
		dueTomorrow:   "expira em 1 dia, no dia %s.",
		dueInDays:     "expira em %d dias, no dia %s.",
	}

	EnglishUS = Locale{
		Tag:           "en-US",
		ExpiredTitle:  "The activity has expired!",
		NearDueTitle:  "The activity is about to expire!",
		DateLayout:    "01/02/2006 at 15:04",
		subject:       `The activity "%s" `,
		familySubject: `The activity "%s" of group "%s" `,
		expired:       "expired on %s.",
		dueToday:      "expires today, %s!",
		dueTomorrow:   "expires in 1 day, on %s.",
		dueInDays:     "expires in %d days, on %s.",
	}
)

// LocaleFor looks up a catalog by tag.
func LocaleFor(tag string) (Locale, error) {
	switch tag {
	case "", PortugueseBR.Tag:
		return PortugueseBR, nil
	case EnglishUS.Tag:
		return EnglishUS, nil
	}
	return Locale{}, errors.NotValidf("locale %q", tag)
}

func (l Locale) lead(name, family string) string {
	if family != "" {
		return fmt.Sprintf(l.familySubject, name, family)
	}
	return fmt.Sprintf(l.subject, name)
}

// Expired renders the alert for an activity whose deadline has passed.
func (l Locale) Expired(name, family string, at time.Time) (string, string) {
	return l.ExpiredTitle, l.lead(name, family) + fmt.Sprintf(l.expired, at.Format(l.DateLayout))
}

// NearDue renders the alert for an activity due in daysUntil calendar days.
func (l Locale) NearDue(name, family string, daysUntil int, at time.Time) (string, string) {
	date := at.Format(l.DateLayout)
	var suffix string
	switch {
	case daysUntil <= 0:
		suffix = fmt.Sprintf(l.dueToday, date)
	case daysUntil == 1:
		suffix = fmt.Sprintf(l.dueTomorrow, date)
	default:
		suffix = fmt.Sprintf(l.dueInDays, daysUntil, date)
	}
	return l.NearDueTitle, l.lead(name, family) + suffix
}
