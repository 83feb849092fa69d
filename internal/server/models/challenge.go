package models

import (
	"time"

	"github.com/google/uuid"
)

// CeremonyKind distinguishes the two WebAuthn ceremony flavors.
type CeremonyKind string

const (
	KindRegistration CeremonyKind = "REG"
	KindAssertion    CeremonyKind = "ASSERT"
)

// Challenge is one outstanding ceremony state. At most one row exists per
// (username, kind); presence of the row is the ceremony state, so there is
// no separate status column. OptionsJSON is the serialized options payload
// handed to the client, opaque to everything but the verifier.
type Challenge struct {
	ID          uuid.UUID
	Username    string
	Kind        CeremonyKind
	OptionsJSON string
	CreatedAt   time.Time
}
