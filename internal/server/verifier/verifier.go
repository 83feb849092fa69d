// Package verifier wraps all cryptographic WebAuthn verification behind a
// narrow interface. The rest of the server never inspects signature bytes,
// COSE keys, or origins; it hands the verifier an opaque options payload and
// a client response and receives a small outcome record back. The seam also
// lets services be tested with a stub instead of a real relying party.
package verifier

import "context"

// Attachment is a normalized authenticator attachment preference.
type Attachment string

const (
	AttachmentPlatform      Attachment = "platform"
	AttachmentCrossPlatform Attachment = "cross-platform"
	AttachmentAny           Attachment = "any"
)

// UserIdentity is what the authenticator learns about a user: the username,
// a display name, and the 16-byte opaque handle that stands in for the
// username inside credential records.
type UserIdentity struct {
	Name        string
	DisplayName string
	Handle      []byte
}

// RegistrationOutcome is the distilled result of a verified attestation.
type RegistrationOutcome struct {
	CredentialID   []byte
	PublicKeyCOSE  []byte
	SignatureCount uint32
}

// AssertionOutcome is the distilled result of a verified assertion.
// OwnerHandle is the handle of the user the validated credential belongs
// to; callers must check it against the identity the ceremony was started
// for, since a valid signature alone only proves ownership of some
// registered credential. CloneWarning is set when the signature counter
// regressed, which may indicate a cloned authenticator; it is advisory
// only.
type AssertionOutcome struct {
	Success        bool
	CloneWarning   bool
	OwnerHandle    []byte
	CredentialID   []byte
	SignatureCount uint32
}

// Verifier performs the cryptographic half of WebAuthn ceremonies.
//
// Start* return a serialized options payload that embeds a fresh random
// challenge. The payload is opaque to callers: it must be stored and handed
// back verbatim to the matching Finish* call, which performs challenge,
// origin, and signature verification internally.
type Verifier interface {
	StartRegistration(ctx context.Context, identity UserIdentity, attachment Attachment) (string, error)
	FinishRegistration(ctx context.Context, optionsJSON, responseJSON string) (*RegistrationOutcome, error)
	StartAssertion(ctx context.Context, username string) (string, error)
	FinishAssertion(ctx context.Context, optionsJSON, responseJSON string) (*AssertionOutcome, error)
}
