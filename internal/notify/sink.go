package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"example.com/shareactivities/internal/domain"
	"example.com/shareactivities/internal/logging"
	"example.com/shareactivities/internal/push"
)

var tokenPrefixes = []string{"ExponentPushToken[", "ExpoPushToken["}

// ValidToken reports whether token looks like an Expo push token.
func ValidToken(token string) bool {
	for _, prefix := range tokenPrefixes {
		if strings.HasPrefix(token, prefix) && strings.HasSuffix(token, "]") && len(token) > len(prefix)+1 {
			return true
		}
	}
	return false
}

// Option configures optional behaviour for the Sink.
type Option func(*Sink)

// WithLogger overrides the logger used to report skipped and failed deliveries.
func WithLogger(logger *log.Logger) Option {
	return func(s *Sink) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTimeout bounds each outbound push call.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Sink) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithParallelism lets FanOut notify up to n recipients concurrently.
func WithParallelism(n int) Option {
	return func(s *Sink) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

// Sink performs best-effort delivery. It never returns delivery errors to callers.
type Sink struct {
	users       domain.UserRepository
	transport   push.Transport
	timeout     time.Duration
	parallelism int
	logger      *log.Logger
}

// NewSink constructs a Sink.
func NewSink(users domain.UserRepository, transport push.Transport, opts ...Option) *Sink {
	s := &Sink{
		users:       users,
		transport:   transport,
		timeout:     10 * time.Second,
		parallelism: 1,
		logger:      logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Notify delivers title/body to the user identified by email, at most once.
func (s *Sink) Notify(ctx context.Context, email, title, body string) Outcome {
	outcome := s.notify(ctx, email, title, body)
	recordOutcome(outcome)
	return outcome
}

func (s *Sink) notify(ctx context.Context, email, title, body string) Outcome {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.logger.Debug("push skipped: unknown user", "email", email)
			return Outcome{Email: email, Status: StatusSkipped, Reason: ReasonUnknownUser}
		}
		s.logger.Warn("push skipped: user lookup failed", "email", email, "err", err)
		return Outcome{Email: email, Status: StatusFailed, Reason: ReasonLookupError}
	}
	if user == nil {
		s.logger.Debug("push skipped: unknown user", "email", email)
		return Outcome{Email: email, Status: StatusSkipped, Reason: ReasonUnknownUser}
	}
	if user.PushToken == "" {
		s.logger.Debug("push skipped: no token", "email", email)
		return Outcome{Email: email, Status: StatusSkipped, Reason: ReasonNoToken}
	}
	if !ValidToken(user.PushToken) {
		s.logger.Debug("push skipped: malformed token", "email", email)
		return Outcome{Email: email, Status: StatusSkipped, Reason: ReasonInvalidToken}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.transport.Send(callCtx, user.PushToken, title, body); err != nil {
		s.logger.Warn("push delivery failed", "email", email, "err", err)
		return Outcome{Email: email, Status: StatusFailed, Reason: ReasonTransport}
	}
	s.logger.Debug("push delivered", "email", email, "title", title)
	return Outcome{Email: email, Status: StatusSent}
}

// FanOut makes exactly one delivery attempt per recipient and aggregates the outcomes.
func (s *Sink) FanOut(ctx context.Context, recipients []Recipient, title, body string) Report {
	var report Report
	if len(recipients) == 0 {
		return report
	}

	if s.parallelism <= 1 || len(recipients) == 1 {
		for _, r := range recipients {
			report.Add(s.Notify(ctx, r.Email, title, body))
		}
		return report
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, s.parallelism)
	)
	for _, r := range recipients {
		wg.Add(1)
		sem <- struct{}{}
		go func(email string) {
			defer wg.Done()
			defer func() { <-sem }()
			outcome := s.Notify(ctx, email, title, body)
			mu.Lock()
			report.Add(outcome)
			mu.Unlock()
		}(r.Email)
	}
	wg.Wait()
	return report
}
