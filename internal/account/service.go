package account

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/secureauth/secureauth/internal/apperr"
	"github.com/secureauth/secureauth/internal/lockout"
	"github.com/secureauth/secureauth/internal/metrics"
	"github.com/secureauth/secureauth/internal/notification"
	"github.com/secureauth/secureauth/internal/session"
)

const (
	msgInvalidCredentials = "Invalid credentials"
	msgLocked             = "Account is locked due to too many failed attempts. Please contact support."
)

// Hasher hashes and verifies account secrets.
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(secret, digest string) bool
	VerifyDummy(secret string)
}

// TokenIssuer mints bearer tokens for authenticated accounts.
type TokenIssuer interface {
	Issue(accountNumber string, claims session.Claims) (session.Token, error)
}

// Service implements registration, login with lockout, and profile management.
type Service struct {
	repo     Repository
	hasher   Hasher
	issuer   TokenIssuer
	policy   lockout.Policy
	notifier notification.Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithPolicy overrides the default lockout policy.
func WithPolicy(p lockout.Policy) Option { return func(s *Service) { s.policy = p } }

// WithNotifier sets the notifier told about lockouts.
func WithNotifier(n notification.Notifier) Option { return func(s *Service) { s.notifier = n } }

// WithMetrics sets the collectors updated by the service.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService builds an account service.
func NewService(repo Repository, hasher Hasher, issuer TokenIssuer, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		hasher: hasher,
		issuer: issuer,
		policy: lockout.NewPolicy(lockout.DefaultThreshold, lockout.DefaultWindow),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an account with zeroed login counters.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Account, error) {
	if _, err := s.repo.Find(ctx, in.AccountNumber); err == nil {
		return Account{}, duplicate("account.Register")
	} else if !errors.Is(err, apperr.ErrNotFound) {
		s.logger.ErrorContext(ctx, "lookup during registration failed",
			slog.String("account_number", in.AccountNumber), slog.Any("error", err))
		return Account{}, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return Account{}, err
	}

	a := Account{
		AccountNumber: in.AccountNumber,
		PasswordHash:  hash,
		Profile:       in.Profile,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.repo.Create(ctx, a); err != nil {
		if !errors.Is(err, apperr.ErrDuplicateAccount) {
			s.logger.ErrorContext(ctx, "create account failed",
				slog.String("account_number", in.AccountNumber), slog.Any("error", err))
		}
		return Account{}, err
	}

	s.metrics.ObserveRegistration()
	s.logger.InfoContext(ctx, "account registered", slog.String("account_number", a.AccountNumber))
	return a, nil
}

// Login authenticates accountNumber with secret and issues a token.
//
// Unknown accounts and wrong passwords fail identically. The lockout check,
// the password check and the counter update run under the account's lock, so
// no more than Threshold consecutive failures are ever verified. A locked
// account is refused before the password is checked and reported with its
// own error.
func (s *Service) Login(ctx context.Context, accountNumber, secret string) (LoginResult, error) {
	const op = "account.Login"
	log := s.logger.With(slog.String("account_number", accountNumber))

	now := s.now()
	updated, err := s.repo.RecordAttempt(ctx, accountNumber, now, func(a Account) (bool, error) {
		decision, err := s.policy.Evaluate(a.LoginAttempts, a.LastFailedAttempt, now)
		if err != nil {
			return false, err
		}
		if decision.Locked() {
			return false, &apperr.Error{Op: op, Kind: apperr.ErrLocked, Msg: msgLocked, RetryAfter: decision.RetryAfter}
		}
		return s.hasher.Verify(secret, a.PasswordHash), nil
	})
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			s.hasher.VerifyDummy(secret)
			log.WarnContext(ctx, "login attempt for non-existent account")
			s.metrics.ObserveLogin(metrics.OutcomeInvalid)
			return LoginResult{}, apperr.New(op, apperr.ErrUnauthorized, msgInvalidCredentials)
		case errors.Is(err, apperr.ErrLocked):
			log.WarnContext(ctx, "login attempt on locked account", slog.Duration("retry_after", apperr.RetryAfter(err)))
			s.metrics.ObserveLogin(metrics.OutcomeLocked)
			return LoginResult{}, err
		default:
			return LoginResult{}, s.storageFailure(ctx, log, "record login attempt", err)
		}
	}

	// A successful attempt always leaves the counter at zero.
	if updated.LoginAttempts > 0 {
		log.WarnContext(ctx, "failed login attempt", slog.Int("login_attempts", updated.LoginAttempts))
		s.metrics.ObserveLogin(metrics.OutcomeInvalid)
		s.onFailure(ctx, log, updated, now)
		return LoginResult{}, apperr.New(op, apperr.ErrUnauthorized, msgInvalidCredentials)
	}

	token, err := s.issuer.Issue(accountNumber, session.Claims{
		AccountType: updated.BankAccountType,
		Name:        updated.FullName(),
	})
	if err != nil {
		log.ErrorContext(ctx, "issue token failed", slog.Any("error", err))
		return LoginResult{}, err
	}

	s.metrics.ObserveLogin(metrics.OutcomeSuccess)
	log.InfoContext(ctx, "login succeeded")
	return LoginResult{Account: updated, Token: token}, nil
}

// onFailure reports the transition to locked. The attempt was evaluated as
// unlocked under the same lock that recorded it, so a locked state now is
// always a fresh lockout and is reported exactly once.
func (s *Service) onFailure(ctx context.Context, log *slog.Logger, a Account, now time.Time) {
	decision, err := s.policy.Evaluate(a.LoginAttempts, a.LastFailedAttempt, now)
	if err != nil || !decision.Locked() {
		return
	}
	log.WarnContext(ctx, "account locked", slog.Int("login_attempts", a.LoginAttempts))
	s.metrics.ObserveLockout()
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, notification.Message{
		Kind:          notification.KindAccountLocked,
		AccountNumber: a.AccountNumber,
		Body:          "Your account was locked after repeated failed login attempts.",
	}); err != nil {
		log.WarnContext(ctx, "lockout notification failed", slog.Any("error", err))
	}
}

func (s *Service) storageFailure(ctx context.Context, log *slog.Logger, what string, err error) error {
	log.ErrorContext(ctx, what+" failed", slog.Any("error", err))
	s.metrics.ObserveLogin(metrics.OutcomeStorageError)
	if errors.Is(err, apperr.ErrStorage) {
		return err
	}
	return apperr.Storage("account.Login", err)
}

// Get returns one account.
func (s *Service) Get(ctx context.Context, accountNumber string) (Account, error) {
	return s.repo.Find(ctx, accountNumber)
}

// List returns every account.
func (s *Service) List(ctx context.Context) ([]Account, error) {
	accounts, err := s.repo.List(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "list accounts failed", slog.Any("error", err))
	}
	return accounts, err
}

// Update applies a partial update. A new password goes through the hasher.
func (s *Service) Update(ctx context.Context, accountNumber string, p Patch) (Account, error) {
	var hash string
	if p.Password != nil {
		h, err := s.hasher.Hash(*p.Password)
		if err != nil {
			return Account{}, err
		}
		hash = h
	}

	a, err := s.repo.Update(ctx, accountNumber, func(a *Account) error {
		p.apply(a)
		if hash != "" {
			a.PasswordHash = hash
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			s.logger.ErrorContext(ctx, "update account failed",
				slog.String("account_number", accountNumber), slog.Any("error", err))
		}
		return Account{}, err
	}
	s.logger.InfoContext(ctx, "account updated", slog.String("account_number", accountNumber))
	return a, nil
}

// Delete removes an account.
func (s *Service) Delete(ctx context.Context, accountNumber string) error {
	if err := s.repo.Delete(ctx, accountNumber); err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			s.logger.ErrorContext(ctx, "delete account failed",
				slog.String("account_number", accountNumber), slog.Any("error", err))
		}
		return err
	}
	s.logger.InfoContext(ctx, "account removed", slog.String("account_number", accountNumber))
	return nil
}

// Ping checks the credential store.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
