// Package tanod is a standalone identity service: applications
// delegate registration, login, email verification, and password
// recovery to it, and get back a signed assertion they can verify
// locally with the shared secret.
package tanod

import (
	"context"
	"fmt"
	"time"

	"github.com/lborres/tanod/core"
	"github.com/lborres/tanod/logging"
	"github.com/lborres/tanod/notify"
	"github.com/lborres/tanod/pkg/crypto"
	"github.com/lborres/tanod/session"
	"github.com/lborres/tanod/strategies/guest"
	"github.com/lborres/tanod/strategies/local"
)

// interfaces
type (
	AuthStorage = core.AuthStorage
	Notifier    = core.Notifier
	Strategy    = core.Strategy

	PasswordHandler = crypto.PasswordHandler
)

// structs
type (
	Identity    = core.Identity
	Method      = core.Method
	Token       = core.Token
	Event       = core.Event
	Credentials = core.Credentials
	Payload     = core.Payload
	Result      = core.Result
	Operation   = core.Operation
	TokenKind   = core.TokenKind
)

// operations
const (
	OpRegister            = core.OpRegister
	OpAuthenticate        = core.OpAuthenticate
	OpRequestVerification = core.OpRequestVerification
	OpVerify              = core.OpVerify
	OpForgotPassword      = core.OpForgotPassword
	OpResetPassword       = core.OpResetPassword
)

var (
	ErrMethodExists     = core.ErrMethodExists
	ErrIdentityNotFound = core.ErrIdentityNotFound
	ErrMethodNotFound   = core.ErrMethodNotFound
)

var (
	ErrTokenInvalid       = core.ErrTokenInvalid
	ErrTokenConsumed      = core.ErrTokenConsumed
	ErrInvalidCredentials = core.ErrInvalidCredentials
	ErrInvalidAssertion   = core.ErrInvalidAssertion
)

var (
	ErrUnknownStrategy = core.ErrUnknownStrategy
	ErrNotSupported    = core.ErrNotSupported
	ErrUnavailable     = core.ErrUnavailable
)

var (
	ErrEmailRequired    = core.ErrEmailRequired
	ErrInvalidEmail     = core.ErrInvalidEmail
	ErrPasswordRequired = core.ErrPasswordRequired
	ErrPasswordTooShort = core.ErrPasswordTooShort
	ErrPasswordTooLong  = core.ErrPasswordTooLong
	ErrTokenRequired    = core.ErrTokenRequired
)

var (
	ErrSecretRequired  = core.ErrSecretRequired
	ErrSecretTooShort  = core.ErrSecretTooShort
	ErrStorageRequired = core.ErrStorageRequired
)

const (
	defaultBasePath  = "/api/auth"
	defaultSecretLen = 32
)

// HTTPAdapter binds a transport layer to a configured service.
type HTTPAdapter interface {
	RegisterRoutes(t *Tanod) error
}

// MailConfig names the sender identity used in outbound mail.
type MailConfig struct {
	From     string
	SiteName string
}

// Config is everything New needs. Secret and Storage are required;
// the rest has working defaults.
type Config struct {
	// Secret is the pre-shared symmetric key downstream services use
	// to verify assertions. Never transmitted over the wire.
	Secret string

	Storage AuthStorage

	// Optional config
	HTTP            HTTPAdapter
	Notifier        Notifier
	Logger          logging.Logger
	Mail            MailConfig
	PasswordHasher  PasswordHandler
	SessionTTL      time.Duration
	VerificationTTL time.Duration
	ResetTTL        time.Duration
	BasePath        string
	DisableCache    bool
}

// Tanod is a configured service instance.
type Tanod struct {
	Orchestrator *core.Orchestrator
	BasePath     string
}

// New validates the configuration, wires the built-in strategies, and
// registers HTTP routes when a transport adapter is provided.
func New(config Config) (*Tanod, error) {
	if config.Secret == "" {
		return nil, ErrSecretRequired
	}
	if len(config.Secret) < defaultSecretLen {
		return nil, fmt.Errorf("%w - minimum of %d characters", ErrSecretTooShort, defaultSecretLen)
	}
	if config.Storage == nil {
		return nil, ErrStorageRequired
	}

	// Set defaults

	logger := config.Logger
	if logger == nil {
		logger = logging.Default()
	}

	notifier := config.Notifier
	if notifier == nil {
		notifier = notify.NewMailer(notify.Config{
			From:     config.Mail.From,
			SiteName: config.Mail.SiteName,
		}, notify.NewLogSender(logger))
	}

	passwordHasher := config.PasswordHasher
	if passwordHasher == nil {
		passwordHasher = crypto.NewArgon2()
	}

	basePath := config.BasePath
	if basePath == "" {
		basePath = defaultBasePath
	}

	storage := config.Storage
	if !config.DisableCache {
		storage = core.NewCachedStorage(storage, core.NewIdentityCache(core.CacheConfig{
			TTL:     5 * time.Minute,
			MaxSize: 500,
		}))
	}

	issuer := session.New(config.Secret, config.SessionTTL)
	tokens := core.NewTokenManager(storage, core.TokenPolicy{
		VerificationTTL: config.VerificationTTL,
		ResetTTL:        config.ResetTTL,
	})

	orchestrator := core.NewOrchestrator(storage, issuer, notifier, logger)
	if err := orchestrator.RegisterStrategy(guest.New(storage)); err != nil {
		return nil, err
	}
	if err := orchestrator.RegisterStrategy(local.New(storage, tokens, passwordHasher)); err != nil {
		return nil, err
	}

	t := &Tanod{
		Orchestrator: orchestrator,
		BasePath:     basePath,
	}

	if config.HTTP != nil {
		if err := config.HTTP.RegisterRoutes(t); err != nil {
			return nil, err
		}
	}

	return t, nil
}

// Use registers an additional strategy beyond the built-in two.
func (t *Tanod) Use(s Strategy) error {
	return t.Orchestrator.RegisterStrategy(s)
}

// Handle routes one operation to the named strategy.
func (t *Tanod) Handle(ctx context.Context, strategy string, op Operation, payload Payload) (*Result, error) {
	return t.Orchestrator.Handle(ctx, strategy, op, payload)
}

// VerifyAssertion validates a session assertion and returns the bound
// user id.
func (t *Tanod) VerifyAssertion(assertion string) (string, error) {
	return t.Orchestrator.VerifyAssertion(assertion)
}

// GetIdentity loads the unified identity record for a user id.
func (t *Tanod) GetIdentity(ctx context.Context, id string) (*Identity, error) {
	return t.Orchestrator.GetIdentity(ctx, id)
}
