// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Enroll Contributors

package registration

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/enrollkit/enroll/internal/account"
	"github.com/enrollkit/enroll/internal/credential"
	"github.com/enrollkit/enroll/internal/notify"
	"github.com/enrollkit/enroll/pkg/errutil"
)

var tracer = otel.Tracer("enroll/registration")

// DefaultNotifyTimeout bounds how long RegisterUser waits for the notification.
const DefaultNotifyTimeout = 10 * time.Second

// Result describes a successful registration.
type Result struct {
	Success    bool             `json:"success"`
	Account    *account.Account `json:"account"`
	EmailSent  bool             `json:"email_sent"`
	EmailError string           `json:"email_error,omitempty"`
	State      State            `json:"state"`
}

// Service registers new accounts.
type Service struct {
	store            account.Store
	hasher           credential.PasswordHasher
	sender           notify.Sender
	logger           *slog.Logger
	recorder         Recorder
	notifyTimeout    time.Duration
	verificationMail bool
	now              func() time.Time
	tokens           TokenSource
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithNotifyTimeout bounds the notification step. Non-positive values keep the default.
func WithNotifyTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.notifyTimeout = d
		}
	}
}

// WithRecorder reports outcomes to r.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithVerificationMail selects the post-registration message: a verification
// request when enabled (the default), a welcome message otherwise.
func WithVerificationMail(enabled bool) Option {
	return func(s *Service) {
		s.verificationMail = enabled
	}
}

// WithClock overrides the time source used for durations.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTokenSource overrides verification token generation.
func WithTokenSource(src TokenSource) Option {
	return func(s *Service) {
		if src != nil {
			s.tokens = src
		}
	}
}

// New creates a Service. All three collaborators are required.
func New(store account.Store, hasher credential.PasswordHasher, sender notify.Sender, opts ...Option) (*Service, error) {
	switch {
	case store == nil:
		return nil, oops.Code(CodeInvalidDependency).With("dependency", "store").Errorf("account store is required")
	case hasher == nil:
		return nil, oops.Code(CodeInvalidDependency).With("dependency", "hasher").Errorf("password hasher is required")
	case sender == nil:
		return nil, oops.Code(CodeInvalidDependency).With("dependency", "sender").Errorf("notification sender is required")
	}

	s := &Service{
		store:            store,
		hasher:           hasher,
		sender:           sender,
		logger:           slog.Default(),
		recorder:         nopRecorder{},
		notifyTimeout:    DefaultNotifyTimeout,
		verificationMail: true,
		now:              time.Now,
		tokens:           NewVerificationToken,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RegisterUser creates an account for in.
//
// Errors wrap ErrValidation, ErrDuplicateEmail or ErrRegistrationFailed. A
// notification failure is not an error: the Result reports EmailSent=false
// and EmailError instead.
func (s *Service) RegisterUser(ctx context.Context, in Input) (result *Result, err error) {
	start := s.now()
	state := StateReceived
	email := account.NormalizeEmail(in.Email)
	logger := s.logger.With("email", email)

	ctx, span := tracer.Start(ctx, "registration.RegisterUser")
	advance := func(next State) {
		state = next
		logger.DebugContext(ctx, "registration state", "state", state)
	}
	defer func() {
		span.SetAttributes(attribute.String("registration.state", string(state)))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err = Validate(in); err != nil {
		advance(StateRejected)
		s.recorder.RegistrationOutcome(OutcomeInvalid)
		logger.InfoContext(ctx, "registration rejected",
			"state", state,
			"code", errutil.Code(err),
			"field", ValidationField(err))
		return nil, err
	}
	advance(StateValidated)

	existing, lookupErr := s.store.FindByEmail(ctx, email)
	if lookupErr != nil {
		advance(StateFailed)
		return nil, s.fail(logger, "find account by email", lookupErr)
	}
	if existing != nil {
		advance(StateRejected)
		return nil, s.rejectDuplicate(ctx, logger, email)
	}
	advance(StateDuplicateChecked)

	digest, hashErr := s.hasher.Hash(in.Password)
	if hashErr != nil {
		advance(StateFailed)
		return nil, s.fail(logger, "hash password", hashErr)
	}
	advance(StateCredentialHashed)

	created, saveErr := s.store.Save(ctx, account.NewAccountData{
		Email:            email,
		CredentialDigest: digest,
		GivenName:        in.GivenName,
		FamilyName:       in.FamilyName,
		EmailVerified:    false,
		FailedLoginCount: 0,
	})
	if saveErr != nil {
		// The unique constraint caught a concurrent registration of the same email.
		if account.IsDuplicateEmail(saveErr) {
			advance(StateRejected)
			return nil, s.rejectDuplicate(ctx, logger, email)
		}
		advance(StateFailed)
		return nil, s.fail(logger, "save account", saveErr)
	}
	advance(StatePersisted)

	sent, emailErr := s.notify(ctx, logger, created.Email)
	advance(StateNotificationAttempted)

	advance(StateCompleted)
	s.recorder.RegistrationOutcome(OutcomeSuccess)
	span.SetAttributes(
		attribute.String("account.id", created.ID.String()),
		attribute.Bool("registration.email_sent", sent),
	)
	logger.InfoContext(ctx, "account registered",
		"account_id", created.ID.String(),
		"email_sent", sent,
		"duration", s.now().Sub(start))

	return &Result{
		Success:    true,
		Account:    created,
		EmailSent:  sent,
		EmailError: emailErr,
		State:      state,
	}, nil
}

func (s *Service) rejectDuplicate(ctx context.Context, logger *slog.Logger, email string) error {
	s.recorder.RegistrationOutcome(OutcomeDuplicate)
	logger.InfoContext(ctx, "registration rejected", "state", StateRejected, "code", CodeDuplicateEmail)
	return duplicateEmailError(email, StateRejected)
}

func (s *Service) fail(logger *slog.Logger, step string, cause error) error {
	s.recorder.RegistrationOutcome(OutcomeFailed)
	errutil.LogError(logger, "registration failed", oops.With("step", step).Wrap(cause))
	return failedError(step, StateFailed, cause)
}

// notify sends the post-registration message, waiting at most notifyTimeout.
// It returns whether the message was sent and, if not, why.
func (s *Service) notify(ctx context.Context, logger *slog.Logger, email string) (bool, string) {
	kind := notify.KindWelcome
	if s.verificationMail {
		kind = notify.KindVerification
	}

	ctx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
	defer cancel()

	err := s.send(ctx, kind, email)
	s.recorder.NotificationOutcome(string(kind), err == nil)
	if err != nil {
		logger.WarnContext(ctx, "notification failed; registration kept",
			"kind", kind,
			"error", err)
		return false, err.Error()
	}
	return true, ""
}

func (s *Service) send(ctx context.Context, kind notify.Kind, email string) error {
	var token string
	if kind == notify.KindVerification {
		var err error
		if token, err = s.tokens(); err != nil {
			return oops.Code("REGISTRATION_TOKEN_FAILED").Wrapf(err, "generate verification token")
		}
	}

	// Senders are expected to honor ctx; the select enforces the bound for those that do not.
	done := make(chan error, 1)
	go func() {
		if kind == notify.KindVerification {
			done <- s.sender.SendVerification(ctx, email, token)
			return
		}
		done <- s.sender.SendWelcome(ctx, email)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return oops.Code("REGISTRATION_NOTIFY_TIMEOUT").
			With("timeout", s.notifyTimeout.String()).
			Wrapf(ctx.Err(), "notification not sent within %s", s.notifyTimeout)
	}
}
