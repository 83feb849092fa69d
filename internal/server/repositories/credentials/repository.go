// Package credentials persists the ledger of registered WebAuthn public-key
// credentials, keyed by the authenticator-assigned credential id.
package credentials

import (
	"context"

	"github.com/google/uuid"
	"github.com/sbelyakov/authkeeper/internal/server/models"
)

type Repository interface {
	// ListByUser returns every credential owned by the user, or an empty
	// slice when there are none.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Credential, error)

	// FindAllByCredentialID returns every row matching the credential id.
	// Zero rows is not an error; callers decide what more than one means.
	FindAllByCredentialID(ctx context.Context, credentialID []byte) ([]*models.Credential, error)

	// Save inserts the credential, or on a credential id collision updates
	// the stored public key and signature counter.
	Save(ctx context.Context, cred *models.Credential) (*models.Credential, error)
}
