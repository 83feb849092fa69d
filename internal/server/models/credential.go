package models

import (
	"time"

	"github.com/google/uuid"
)

// Credential is a registered WebAuthn public-key credential. CredentialID is
// the authenticator-assigned opaque byte string; PublicKeyCOSE is kept
// verbatim for the verifier. SignatureCount is advisory clone-detection
// state, updated last-write-wins after each successful assertion.
type Credential struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	CredentialID   []byte
	PublicKeyCOSE  []byte
	SignatureCount uint32
	CreatedAt      time.Time
}
