package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sbelyakov/authkeeper/internal/common"
	"github.com/sbelyakov/authkeeper/internal/server/repositories/repomanager"
	"github.com/sbelyakov/authkeeper/internal/server/verifier"
)

// credentialSource adapts the user and credential repositories to
// verifier.CredentialSource, translating between usernames and the opaque
// handles that flow through the WebAuthn protocol.
type credentialSource struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

// NewCredentialSource returns a verifier.CredentialSource backed by the
// repositories.
func NewCredentialSource(db *sql.DB, m repomanager.RepositoryManager) verifier.CredentialSource {
	return &credentialSource{db: db, repomanager: m}
}

func (s *credentialSource) CredentialsForUser(ctx context.Context, username string) ([]verifier.SourceCredential, error) {
	user, err := s.repomanager.Users(s.db).GetByUsername(ctx, username)
	if err != nil {
		// An unknown user simply has no credentials yet.
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("error resolving user: %w", err)
	}

	creds, err := s.repomanager.Credentials(s.db).ListByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("error listing credentials: %w", err)
	}

	handle := user.Handle()
	out := make([]verifier.SourceCredential, 0, len(creds))
	for _, c := range creds {
		out = append(out, verifier.SourceCredential{
			OwnerHandle:    handle,
			CredentialID:   c.CredentialID,
			PublicKeyCOSE:  c.PublicKeyCOSE,
			SignatureCount: c.SignatureCount,
		})
	}
	return out, nil
}

func (s *credentialSource) HandleForUser(ctx context.Context, username string) ([]byte, error) {
	user, err := s.repomanager.Users(s.db).GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("error resolving user: %w", err)
	}
	return user.Handle(), nil
}

func (s *credentialSource) UsernameForHandle(ctx context.Context, handle []byte) (string, error) {
	id, err := uuid.FromBytes(handle)
	if err != nil {
		return "", common.ErrIdentityNotFound
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrIdentityNotFound
		}
		return "", fmt.Errorf("error resolving handle: %w", err)
	}
	return user.Username, nil
}
