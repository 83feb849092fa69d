package verifier

import "context"

// SourceCredential is a registered credential as the relying party needs to
// see it during a ceremony.
type SourceCredential struct {
	OwnerHandle    []byte
	CredentialID   []byte
	PublicKeyCOSE  []byte
	SignatureCount uint32
}

// CredentialSource supplies the relying party with registered credentials
// and user-handle lookups. Implementations sit on top of the credential
// ledger and the user identity resolver.
type CredentialSource interface {
	// CredentialsForUser returns the user's registered credentials, empty
	// when the user is unknown or has none.
	CredentialsForUser(ctx context.Context, username string) ([]SourceCredential, error)

	// HandleForUser returns the user's opaque 16-byte handle.
	HandleForUser(ctx context.Context, username string) ([]byte, error)

	// UsernameForHandle is the inverse lookup. It fails with
	// common.ErrIdentityNotFound when the handle is malformed or unknown.
	UsernameForHandle(ctx context.Context, handle []byte) (string, error)
}
