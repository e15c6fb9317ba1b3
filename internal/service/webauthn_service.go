package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/credlock/credlock/internal/challenge"
	"github.com/credlock/credlock/internal/config"
	"github.com/credlock/credlock/internal/domain"
	"github.com/credlock/credlock/internal/repository"
)

var (
	// ErrVerificationFailed is the generic failure for both WebAuthn
	// ceremonies. It deliberately does not say which step failed.
	ErrVerificationFailed = errors.New("webauthn verification failed")
	// ErrUnknownCredential means the assertion referenced a credential this
	// service has never stored.
	ErrUnknownCredential = errors.New("unknown credential")
)

// ceremonyProvider is the trusted verification primitive, implemented by
// *webauthn.WebAuthn. Tests substitute it to drive the state machine
// without real authenticator hardware.
type ceremonyProvider interface {
	BeginRegistration(user webauthn.User, opts ...webauthn.RegistrationOption) (*protocol.CredentialCreation, *webauthn.SessionData, error)
	CreateCredential(user webauthn.User, session webauthn.SessionData, response *protocol.ParsedCredentialCreationData) (*webauthn.Credential, error)
	BeginLogin(user webauthn.User, opts ...webauthn.LoginOption) (*protocol.CredentialAssertion, *webauthn.SessionData, error)
	BeginDiscoverableLogin(opts ...webauthn.LoginOption) (*protocol.CredentialAssertion, *webauthn.SessionData, error)
	ValidateLogin(user webauthn.User, session webauthn.SessionData, response *protocol.ParsedCredentialAssertionData) (*webauthn.Credential, error)
	ValidatePasskeyLogin(handler webauthn.DiscoverableUserHandler, session webauthn.SessionData, response *protocol.ParsedCredentialAssertionData) (webauthn.User, *webauthn.Credential, error)
}

type ceremonyParser interface {
	ParseCredentialCreationResponseBytes(data []byte) (*protocol.ParsedCredentialCreationData, error)
	ParseCredentialRequestResponseBytes(data []byte) (*protocol.ParsedCredentialAssertionData, error)
}

type protocolParser struct{}

func (protocolParser) ParseCredentialCreationResponseBytes(data []byte) (*protocol.ParsedCredentialCreationData, error) {
	return protocol.ParseCredentialCreationResponseBytes(data)
}

func (protocolParser) ParseCredentialRequestResponseBytes(data []byte) (*protocol.ParsedCredentialAssertionData, error) {
	return protocol.ParseCredentialRequestResponseBytes(data)
}

// RegistrationOptions is the payload handed to the WebAuthn client plus the
// challenge the client echoes back during verification.
type RegistrationOptions struct {
	Options   *protocol.CredentialCreation `json:"options"`
	Challenge string                       `json:"challenge"`
}

type LoginOptions struct {
	Options   *protocol.CredentialAssertion `json:"options"`
	Challenge string                        `json:"challenge"`
}

// WebAuthnService owns the passkey half of the credential lifecycle. Every
// issued challenge is also recorded server-side with the ceremony state and
// consumed exactly once on verification.
type WebAuthnService struct {
	provider       ceremonyProvider
	parser         ceremonyParser
	users          repository.UserRepository
	authenticators repository.AuthenticatorRepository
	challenges     challenge.Store
	challengeTTL   time.Duration
}

func NewWebAuthnService(
	cfg *config.Config,
	users repository.UserRepository,
	authenticators repository.AuthenticatorRepository,
	challenges challenge.Store,
) (*WebAuthnService, error) {
	web, err := webauthn.New(&webauthn.Config{
		RPDisplayName: cfg.RPDisplayName,
		RPID:          cfg.RPID,
		RPOrigins:     cfg.RPOrigins,
	})
	if err != nil {
		return nil, fmt.Errorf("configure webauthn: %w", err)
	}
	return &WebAuthnService{
		provider:       web,
		parser:         protocolParser{},
		users:          users,
		authenticators: authenticators,
		challenges:     challenges,
		challengeTTL:   cfg.ChallengeTTL,
	}, nil
}

// BeginRegistration builds registration options for an existing user. All of
// the user's current credential identifiers go into the exclusion list so a
// device cannot re-register the same authenticator.
func (s *WebAuthnService) BeginRegistration(ctx context.Context, userID uint) (*RegistrationOptions, error) {
	wu, err := s.loadWebAuthnUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var opts []webauthn.RegistrationOption
	if len(wu.credentials) > 0 {
		opts = append(opts, webauthn.WithExclusions(webauthn.Credentials(wu.credentials).CredentialDescriptors()))
	}
	creation, session, err := s.provider.BeginRegistration(wu, opts...)
	if err != nil {
		return nil, fmt.Errorf("begin registration: %w", err)
	}
	if err := s.challenges.Save(ctx, session.Challenge, session, s.challengeTTL); err != nil {
		return nil, fmt.Errorf("record pending ceremony: %w", err)
	}
	return &RegistrationOptions{Options: creation, Challenge: session.Challenge}, nil
}

// FinishRegistration verifies an attestation response against the recorded
// ceremony and persists the new authenticator. The stored counter starts at
// the value reported by the attestation, never at zero by assumption.
func (s *WebAuthnService) FinishRegistration(ctx context.Context, userID uint, response []byte, echoedChallenge string) (*domain.Authenticator, error) {
	wu, err := s.loadWebAuthnUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	session, err := s.challenges.Consume(ctx, echoedChallenge)
	if err != nil {
		if errors.Is(err, challenge.ErrNotFound) {
			return nil, ErrVerificationFailed
		}
		return nil, err
	}
	parsed, err := s.parser.ParseCredentialCreationResponseBytes(response)
	if err != nil {
		return nil, ErrVerificationFailed
	}
	credential, err := s.provider.CreateCredential(wu, *session, parsed)
	if err != nil {
		return nil, ErrVerificationFailed
	}

	authenticator := &domain.Authenticator{
		CredentialID:    EncodeCredentialID(credential.ID),
		PublicKey:       credential.PublicKey,
		AttestationType: credential.AttestationType,
		AAGUID:          credential.Authenticator.AAGUID,
		SignCount:       credential.Authenticator.SignCount,
		Transports:      joinTransports(credential.Transport),
		BackupEligible:  credential.Flags.BackupEligible,
		BackupState:     credential.Flags.BackupState,
		UserVerified:    credential.Flags.UserVerified,
		UserID:          wu.user.ID,
	}
	if err := s.authenticators.Create(ctx, authenticator); err != nil {
		if errors.Is(err, repository.ErrCredentialExists) {
			return nil, ErrVerificationFailed
		}
		return nil, err
	}
	return authenticator, nil
}

// BeginLogin builds authentication options. With an email that resolves to a
// user holding at least one authenticator it issues a non-discoverable
// allow-list; in every other case (no email, unknown email, no registered
// authenticators) it falls back to the discoverable flow without revealing
// which case applied.
func (s *WebAuthnService) BeginLogin(ctx context.Context, email string) (*LoginOptions, error) {
	email = strings.TrimSpace(email)
	if email != "" {
		user, err := s.users.FindByEmail(ctx, email)
		if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
			return nil, err
		}
		if err == nil {
			wu, err := s.webAuthnUserFor(ctx, user)
			if err != nil {
				return nil, err
			}
			if len(wu.credentials) > 0 {
				assertion, session, err := s.provider.BeginLogin(wu)
				if err != nil {
					return nil, fmt.Errorf("begin login: %w", err)
				}
				if err := s.challenges.Save(ctx, session.Challenge, session, s.challengeTTL); err != nil {
					return nil, fmt.Errorf("record pending ceremony: %w", err)
				}
				return &LoginOptions{Options: assertion, Challenge: session.Challenge}, nil
			}
		}
	}

	assertion, session, err := s.provider.BeginDiscoverableLogin()
	if err != nil {
		return nil, fmt.Errorf("begin discoverable login: %w", err)
	}
	if err := s.challenges.Save(ctx, session.Challenge, session, s.challengeTTL); err != nil {
		return nil, fmt.Errorf("record pending ceremony: %w", err)
	}
	return &LoginOptions{Options: assertion, Challenge: session.Challenge}, nil
}

// FinishLogin verifies an assertion response and returns the owning user.
// The stored signature counter advances to exactly the reported value, and
// only when that value is strictly greater; a clone warning or a lost
// conditional update fails the ceremony without touching the counter.
func (s *WebAuthnService) FinishLogin(ctx context.Context, response []byte, echoedChallenge string) (*domain.User, error) {
	session, err := s.challenges.Consume(ctx, echoedChallenge)
	if err != nil {
		if errors.Is(err, challenge.ErrNotFound) {
			return nil, ErrVerificationFailed
		}
		return nil, err
	}
	parsed, err := s.parser.ParseCredentialRequestResponseBytes(response)
	if err != nil {
		return nil, ErrVerificationFailed
	}

	credentialID := EncodeCredentialID(parsed.RawID)
	stored, err := s.authenticators.FindByCredentialID(ctx, credentialID)
	if err != nil {
		if errors.Is(err, repository.ErrAuthenticatorNotFound) {
			return nil, ErrUnknownCredential
		}
		return nil, err
	}
	owner := stored.User

	var credential *webauthn.Credential
	if len(session.UserID) == 0 {
		// Discoverable session: the library resolves the account through the
		// user handle in the assertion.
		_, credential, err = s.provider.ValidatePasskeyLogin(s.discoverableHandler(ctx), *session, parsed)
	} else {
		var wu *webAuthnUser
		wu, err = s.webAuthnUserFor(ctx, &owner)
		if err != nil {
			return nil, err
		}
		credential, err = s.provider.ValidateLogin(wu, *session, parsed)
	}
	if err != nil {
		return nil, ErrVerificationFailed
	}
	if credential.Authenticator.CloneWarning {
		return nil, ErrVerificationFailed
	}

	newCount := credential.Authenticator.SignCount
	if newCount != 0 || stored.SignCount != 0 {
		if err := s.authenticators.AdvanceSignCount(ctx, credentialID, newCount); err != nil {
			if errors.Is(err, repository.ErrStaleSignCount) {
				return nil, ErrVerificationFailed
			}
			return nil, err
		}
	}
	return &owner, nil
}

func (s *WebAuthnService) discoverableHandler(ctx context.Context) webauthn.DiscoverableUserHandler {
	return func(rawID, _ []byte) (webauthn.User, error) {
		stored, err := s.authenticators.FindByCredentialID(ctx, EncodeCredentialID(rawID))
		if err != nil {
			return nil, err
		}
		return s.webAuthnUserFor(ctx, &stored.User)
	}
}

func (s *WebAuthnService) loadWebAuthnUser(ctx context.Context, userID uint) (*webAuthnUser, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.webAuthnUserFor(ctx, user)
}

func (s *WebAuthnService) webAuthnUserFor(ctx context.Context, user *domain.User) (*webAuthnUser, error) {
	stored, err := s.authenticators.ListByUserID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	credentials := make([]webauthn.Credential, 0, len(stored))
	for i := range stored {
		credential, err := credentialFromAuthenticator(&stored[i])
		if err != nil {
			return nil, err
		}
		credentials = append(credentials, credential)
	}
	return &webAuthnUser{user: user, credentials: credentials}, nil
}

// webAuthnUser adapts a domain user to the library's User interface. The
// WebAuthn handle is the user's opaque random handle, not the numeric id.
type webAuthnUser struct {
	user        *domain.User
	credentials []webauthn.Credential
}

func (u *webAuthnUser) WebAuthnID() []byte { return u.user.Handle }

func (u *webAuthnUser) WebAuthnName() string { return u.user.Email }

func (u *webAuthnUser) WebAuthnDisplayName() string { return u.user.DisplayName() }

func (u *webAuthnUser) WebAuthnCredentials() []webauthn.Credential { return u.credentials }

// EncodeCredentialID is the canonical transport-safe encoding of a raw
// credential identifier, used both as the storage key and in responses.
func EncodeCredentialID(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}

func credentialFromAuthenticator(a *domain.Authenticator) (webauthn.Credential, error) {
	rawID, err := base64.RawURLEncoding.DecodeString(a.CredentialID)
	if err != nil {
		return webauthn.Credential{}, fmt.Errorf("decode credential id %q: %w", a.CredentialID, err)
	}
	return webauthn.Credential{
		ID:              rawID,
		PublicKey:       a.PublicKey,
		AttestationType: a.AttestationType,
		Transport:       splitTransports(a.Transports),
		Flags: webauthn.CredentialFlags{
			UserPresent:    true,
			UserVerified:   a.UserVerified,
			BackupEligible: a.BackupEligible,
			BackupState:    a.BackupState,
		},
		Authenticator: webauthn.Authenticator{
			AAGUID:    a.AAGUID,
			SignCount: a.SignCount,
		},
	}, nil
}

func joinTransports(transports []protocol.AuthenticatorTransport) string {
	if len(transports) == 0 {
		return ""
	}
	parts := make([]string, 0, len(transports))
	for _, t := range transports {
		parts = append(parts, string(t))
	}
	return strings.Join(parts, ",")
}

func splitTransports(encoded string) []protocol.AuthenticatorTransport {
	if encoded == "" {
		return nil
	}
	parts := strings.Split(encoded, ",")
	transports := make([]protocol.AuthenticatorTransport, 0, len(parts))
	for _, p := range parts {
		transports = append(transports, protocol.AuthenticatorTransport(p))
	}
	return transports
}
