package verifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/sbelyakov/authkeeper/internal/common"
)

// Config identifies the relying party to authenticators.
type Config struct {
	RPID          string
	RPDisplayName string
	RPOrigins     []string
}

// RelyingParty implements Verifier on top of the go-webauthn library.
type RelyingParty struct {
	wa     *webauthn.WebAuthn
	source CredentialSource
}

func NewRelyingParty(cfg Config, source CredentialSource) (*RelyingParty, error) {
	wa, err := webauthn.New(&webauthn.Config{
		RPID:          cfg.RPID,
		RPDisplayName: cfg.RPDisplayName,
		RPOrigins:     cfg.RPOrigins,
	})
	if err != nil {
		return nil, fmt.Errorf("relying party init: %w", err)
	}
	return &RelyingParty{wa: wa, source: source}, nil
}

// creationEnvelope is the serialized registration options payload. The
// embedded CredentialCreation marshals under "publicKey", so clients can
// feed the payload to navigator.credentials.create untouched; "session" is
// the library state the finish half needs and carries nothing secret.
type creationEnvelope struct {
	protocol.CredentialCreation
	Session webauthn.SessionData `json:"session"`
}

type assertionEnvelope struct {
	protocol.CredentialAssertion
	Session webauthn.SessionData `json:"session"`
}

func (rp *RelyingParty) StartRegistration(ctx context.Context, identity UserIdentity, attachment Attachment) (string, error) {
	existing, err := rp.source.CredentialsForUser(ctx, identity.Name)
	if err != nil {
		return "", err
	}

	user := &ceremonyUser{
		name:        identity.Name,
		displayName: identity.DisplayName,
		handle:      identity.Handle,
		credentials: toLibraryCredentials(existing),
	}

	selection := protocol.AuthenticatorSelection{
		UserVerification: protocol.VerificationRequired,
	}
	switch attachment {
	case AttachmentPlatform:
		selection.AuthenticatorAttachment = protocol.Platform
	case AttachmentCrossPlatform:
		selection.AuthenticatorAttachment = protocol.CrossPlatform
	}

	opts := []webauthn.RegistrationOption{webauthn.WithAuthenticatorSelection(selection)}
	if len(user.credentials) > 0 {
		opts = append(opts, webauthn.WithExclusions(webauthn.Credentials(user.credentials).CredentialDescriptors()))
	}

	creation, session, err := rp.wa.BeginRegistration(user, opts...)
	if err != nil {
		return "", fmt.Errorf("begin registration: %w", err)
	}

	payload, err := json.Marshal(creationEnvelope{CredentialCreation: *creation, Session: *session})
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrSerialization, err)
	}
	return string(payload), nil
}

func (rp *RelyingParty) FinishRegistration(ctx context.Context, optionsJSON, responseJSON string) (*RegistrationOutcome, error) {
	var env creationEnvelope
	if err := json.Unmarshal([]byte(optionsJSON), &env); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrSerialization, err)
	}

	parsed, err := protocol.ParseCredentialCreationResponseBytes([]byte(responseJSON))
	if err != nil {
		return nil, fmt.Errorf("parse credential response: %w", err)
	}

	// The session was issued by us, so its user handle is authoritative.
	user := &ceremonyUser{handle: env.Session.UserID}
	cred, err := rp.wa.CreateCredential(user, env.Session, parsed)
	if err != nil {
		return nil, fmt.Errorf("verify attestation: %w", err)
	}

	return &RegistrationOutcome{
		CredentialID:   cred.ID,
		PublicKeyCOSE:  cred.PublicKey,
		SignatureCount: cred.Authenticator.SignCount,
	}, nil
}

func (rp *RelyingParty) StartAssertion(ctx context.Context, username string) (string, error) {
	creds, err := rp.source.CredentialsForUser(ctx, username)
	if err != nil {
		return "", err
	}

	var (
		assertion *protocol.CredentialAssertion
		session   *webauthn.SessionData
	)
	if len(creds) == 0 {
		// No registered credentials: issue options with an empty allow
		// list. The ceremony then fails at finish with no matching
		// credential rather than leaking user existence at start.
		assertion, session, err = rp.wa.BeginDiscoverableLogin()
	} else {
		handle, herr := rp.source.HandleForUser(ctx, username)
		if herr != nil {
			return "", herr
		}
		user := &ceremonyUser{name: username, handle: handle, credentials: toLibraryCredentials(creds)}
		assertion, session, err = rp.wa.BeginLogin(user)
	}
	if err != nil {
		return "", fmt.Errorf("begin login: %w", err)
	}

	payload, err := json.Marshal(assertionEnvelope{CredentialAssertion: *assertion, Session: *session})
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrSerialization, err)
	}
	return string(payload), nil
}

func (rp *RelyingParty) FinishAssertion(ctx context.Context, optionsJSON, responseJSON string) (*AssertionOutcome, error) {
	var env assertionEnvelope
	if err := json.Unmarshal([]byte(optionsJSON), &env); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrSerialization, err)
	}

	parsed, err := protocol.ParseCredentialRequestResponseBytes([]byte(responseJSON))
	if err != nil {
		return nil, fmt.Errorf("parse credential response: %w", err)
	}

	var (
		cred        *webauthn.Credential
		ownerHandle []byte
	)
	if len(env.Session.UserID) == 0 {
		var owner webauthn.User
		owner, cred, err = rp.wa.ValidatePasskeyLogin(rp.userHandler(ctx), env.Session, parsed)
		if owner != nil {
			ownerHandle = owner.WebAuthnID()
		}
	} else {
		ownerHandle = env.Session.UserID
		username, uerr := rp.source.UsernameForHandle(ctx, env.Session.UserID)
		if uerr != nil {
			return nil, uerr
		}
		creds, cerr := rp.source.CredentialsForUser(ctx, username)
		if cerr != nil {
			return nil, cerr
		}
		user := &ceremonyUser{name: username, handle: env.Session.UserID, credentials: toLibraryCredentials(creds)}
		cred, err = rp.wa.ValidateLogin(user, env.Session, parsed)
	}
	if err != nil {
		return nil, fmt.Errorf("verify assertion: %w", err)
	}

	return &AssertionOutcome{
		Success:        true,
		CloneWarning:   cred.Authenticator.CloneWarning,
		OwnerHandle:    ownerHandle,
		CredentialID:   cred.ID,
		SignatureCount: cred.Authenticator.SignCount,
	}, nil
}

func (rp *RelyingParty) userHandler(ctx context.Context) webauthn.DiscoverableUserHandler {
	return func(_, userHandle []byte) (webauthn.User, error) {
		username, err := rp.source.UsernameForHandle(ctx, userHandle)
		if err != nil {
			return nil, err
		}
		creds, err := rp.source.CredentialsForUser(ctx, username)
		if err != nil {
			return nil, err
		}
		return &ceremonyUser{name: username, handle: userHandle, credentials: toLibraryCredentials(creds)}, nil
	}
}

// ceremonyUser adapts our identity model to the library's user interface.
type ceremonyUser struct {
	name        string
	displayName string
	handle      []byte
	credentials []webauthn.Credential
}

func (u *ceremonyUser) WebAuthnID() []byte                         { return u.handle }
func (u *ceremonyUser) WebAuthnName() string                       { return u.name }
func (u *ceremonyUser) WebAuthnDisplayName() string                { return u.displayName }
func (u *ceremonyUser) WebAuthnIcon() string                       { return "" }
func (u *ceremonyUser) WebAuthnCredentials() []webauthn.Credential { return u.credentials }

func toLibraryCredentials(src []SourceCredential) []webauthn.Credential {
	if len(src) == 0 {
		return nil
	}
	creds := make([]webauthn.Credential, 0, len(src))
	for _, c := range src {
		creds = append(creds, webauthn.Credential{
			ID:        c.CredentialID,
			PublicKey: c.PublicKeyCOSE,
			Authenticator: webauthn.Authenticator{
				SignCount: c.SignatureCount,
			},
		})
	}
	return creds
}
