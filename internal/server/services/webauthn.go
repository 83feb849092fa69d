package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sbelyakov/authkeeper/internal/common"
	"github.com/sbelyakov/authkeeper/internal/dbx"
	"github.com/sbelyakov/authkeeper/internal/logging"
	"github.com/sbelyakov/authkeeper/internal/server/auth"
	"github.com/sbelyakov/authkeeper/internal/server/config"
	"github.com/sbelyakov/authkeeper/internal/server/models"
	"github.com/sbelyakov/authkeeper/internal/server/repositories/repomanager"
	"github.com/sbelyakov/authkeeper/internal/server/verifier"
)

// WebAuthnService orchestrates the two-phase WebAuthn ceremonies. Each
// ceremony is a start call that issues and persists a challenge, followed by
// a finish call that consumes it exactly once: the challenge row is deleted
// on every finish outcome except "never started", so a response can never be
// replayed and a superseded challenge can never be completed.
type WebAuthnService struct {
	db                          *sql.DB
	repomanager                 repomanager.RepositoryManager
	verifier                    verifier.Verifier
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
	logger                      logging.Logger
}

func NewWebAuthnService(db *sql.DB, m repomanager.RepositoryManager, v verifier.Verifier, cfg *config.Config, logger logging.Logger) *WebAuthnService {
	return &WebAuthnService{
		db:                          db,
		repomanager:                 m,
		verifier:                    v,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
		logger:                      logger.With("module", "webauthn_service"),
	}
}

// StartRegistration begins a registration ceremony for the user, creating
// the account on first contact. It returns the serialized creation options
// to hand to the client verbatim. Any previously issued registration
// challenge for the user is superseded.
func (s *WebAuthnService) StartRegistration(ctx context.Context, username, attachment string) (string, error) {
	user, err := s.resolveOrCreateUser(ctx, username)
	if err != nil {
		return "", err
	}

	identity := verifier.UserIdentity{
		Name:        username,
		DisplayName: user.DisplayName,
		Handle:      user.Handle(),
	}

	options, err := s.verifier.StartRegistration(ctx, identity, selectAttachment(attachment))
	if err != nil {
		return "", err
	}

	// Persist only after serialization succeeded, so a failed start leaves
	// no partial state behind.
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Challenges(tx).Replace(ctx, username, models.KindRegistration, options)
	})
	if err != nil {
		return "", fmt.Errorf("error storing challenge: %w", err)
	}

	return options, nil
}

// FinishRegistration completes a registration ceremony. On success the new
// credential is recorded and the challenge consumed atomically; on a
// verification failure the challenge is still consumed, so the same
// challenge can never be attempted twice.
func (s *WebAuthnService) FinishRegistration(ctx context.Context, username, responseJSON string) error {
	challenge, err := s.repomanager.Challenges(s.db).Latest(ctx, username, models.KindRegistration)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrChallengeNotFound
		}
		return fmt.Errorf("error loading challenge: %w", err)
	}

	outcome, verr := s.verifier.FinishRegistration(ctx, challenge.OptionsJSON, responseJSON)
	if verr != nil {
		s.consumeChallenge(ctx, username, models.KindRegistration)
		return fmt.Errorf("%w: %v", common.ErrRegistrationFailed, verr)
	}

	user, err := s.repomanager.Users(s.db).GetByUsername(ctx, username)
	if err != nil {
		s.consumeChallenge(ctx, username, models.KindRegistration)
		return fmt.Errorf("error resolving user: %w", err)
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		cred := &models.Credential{
			UserID:         user.ID,
			CredentialID:   outcome.CredentialID,
			PublicKeyCOSE:  outcome.PublicKeyCOSE,
			SignatureCount: outcome.SignatureCount,
		}
		if _, err := s.repomanager.Credentials(tx).Save(ctx, cred); err != nil {
			return fmt.Errorf("error saving credential: %w", err)
		}
		return s.repomanager.Challenges(tx).Delete(ctx, username, models.KindRegistration)
	})
}

// StartLogin begins an assertion ceremony, superseding any previously issued
// login challenge for the user, and returns the serialized request options.
func (s *WebAuthnService) StartLogin(ctx context.Context, username string) (string, error) {
	options, err := s.verifier.StartAssertion(ctx, username)
	if err != nil {
		return "", err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Challenges(tx).Replace(ctx, username, models.KindAssertion, options)
	})
	if err != nil {
		return "", fmt.Errorf("error storing challenge: %w", err)
	}

	return options, nil
}

// FinishLogin completes an assertion ceremony and returns a bearer token.
// The stored signature counter is updated last-write-wins; a missing or
// duplicated credential row is logged and ignored, since the verifier has
// already confirmed a valid signature against a known public key.
func (s *WebAuthnService) FinishLogin(ctx context.Context, username, responseJSON string) (string, error) {
	challenge, err := s.repomanager.Challenges(s.db).Latest(ctx, username, models.KindAssertion)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrChallengeNotFound
		}
		return "", fmt.Errorf("error loading challenge: %w", err)
	}

	outcome, verr := s.verifier.FinishAssertion(ctx, challenge.OptionsJSON, responseJSON)
	if verr != nil {
		s.consumeChallenge(ctx, username, models.KindAssertion)
		if errors.Is(verr, common.ErrIdentityNotFound) {
			return "", verr
		}
		return "", fmt.Errorf("%w: %v", common.ErrAuthenticationFailed, verr)
	}

	if !outcome.Success {
		s.consumeChallenge(ctx, username, models.KindAssertion)
		return "", common.ErrAuthenticationFailed
	}

	if outcome.CloneWarning {
		s.logger.Warn(ctx, "signature counter regressed, authenticator may be cloned", "username", username)
	}

	user, err := s.repomanager.Users(s.db).GetByUsername(ctx, username)
	if err != nil {
		s.consumeChallenge(ctx, username, models.KindAssertion)
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrAuthenticationFailed
		}
		return "", fmt.Errorf("error resolving user: %w", err)
	}

	// The signature only proves ownership of some registered credential.
	// The credential's owner must be the user this ceremony was started
	// for, or an attacker could sign another user's challenge with their
	// own passkey.
	if !bytes.Equal(outcome.OwnerHandle, user.Handle()) {
		s.logger.Warn(ctx, "assertion signed by a credential owned by a different user", "username", username)
		s.consumeChallenge(ctx, username, models.KindAssertion)
		return "", common.ErrAuthenticationFailed
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		s.updateSignatureCount(ctx, tx, username, outcome)
		return s.repomanager.Challenges(tx).Delete(ctx, username, models.KindAssertion)
	})
	if err != nil {
		return "", fmt.Errorf("error consuming challenge: %w", err)
	}

	token, err := auth.GenerateToken(user.ID.String(), s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return "", common.ErrorInternal
	}
	return token, nil
}

// updateSignatureCount persists the verifier-reported counter. Best effort:
// failures are logged but never block token issuance.
func (s *WebAuthnService) updateSignatureCount(ctx context.Context, tx dbx.DBTX, username string, outcome *verifier.AssertionOutcome) {
	repo := s.repomanager.Credentials(tx)

	creds, err := repo.FindAllByCredentialID(ctx, outcome.CredentialID)
	if err != nil {
		s.logger.Warn(ctx, "signature counter update skipped", "username", username, "error", err)
		return
	}
	switch {
	case len(creds) == 0:
		s.logger.Warn(ctx, "signature counter update skipped", "username", username, "error", common.ErrorNotFound)
	case len(creds) > 1:
		s.logger.Warn(ctx, "signature counter update skipped", "username", username, "error", common.ErrAmbiguousCredential)
	default:
		cred := creds[0]
		cred.SignatureCount = outcome.SignatureCount
		if _, err := repo.Save(ctx, cred); err != nil {
			s.logger.Warn(ctx, "signature counter update failed", "username", username, "error", err)
		}
	}
}

// consumeChallenge drops the challenge after a failed finish attempt; a
// challenge is single-use no matter how verification went.
func (s *WebAuthnService) consumeChallenge(ctx context.Context, username string, kind models.CeremonyKind) {
	if err := s.repomanager.Challenges(s.db).Delete(ctx, username, kind); err != nil {
		s.logger.Error(ctx, "error deleting challenge", "username", username, "kind", string(kind), "error", err)
	}
}

func (s *WebAuthnService) resolveOrCreateUser(ctx context.Context, username string) (*models.User, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByUsername(ctx, username)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("error resolving user: %w", err)
	}

	user, err = repo.Create(ctx, &models.User{Username: username, DisplayName: username})
	if err != nil {
		// Lost a race against a concurrent start for the same username.
		if errors.Is(err, common.ErrorLoginAlreadyExists) {
			return repo.GetByUsername(ctx, username)
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return user, nil
}

// selectAttachment normalizes the caller-supplied attachment preference. An
// absent value defaults to platform for better passkey UX on supported
// devices; unrecognized values assert no preference.
func selectAttachment(attachment string) verifier.Attachment {
	if attachment == "" {
		return verifier.AttachmentPlatform
	}
	switch strings.ToLower(strings.TrimSpace(attachment)) {
	case "platform":
		return verifier.AttachmentPlatform
	case "cross-platform", "cross_platform", "crossplatform", "external", "security-key", "security_key":
		return verifier.AttachmentCrossPlatform
	default:
		return verifier.AttachmentAny
	}
}
