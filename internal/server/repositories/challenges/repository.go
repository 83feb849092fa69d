// Package challenges persists outstanding ceremony state: at most one live
// challenge row per (username, kind). A row's presence is the ceremony state,
// so there is no status column and terminal states are simply absence.
package challenges

import (
	"context"

	"github.com/sbelyakov/authkeeper/internal/server/models"
)

type Repository interface {
	// Replace deletes any existing (username, kind) entry and inserts a new
	// one with a fresh timestamp. Absence of a prior entry is not an error.
	Replace(ctx context.Context, username string, kind models.CeremonyKind, optionsJSON string) error

	// Latest returns the most recent entry for the key, ties broken by
	// creation time descending, or common.ErrorNotFound. It never deletes:
	// consuming the challenge is the caller's responsibility so that it is
	// single-use regardless of the verification outcome.
	Latest(ctx context.Context, username string, kind models.CeremonyKind) (*models.Challenge, error)

	// Delete removes the entry for the key. Idempotent.
	Delete(ctx context.Context, username string, kind models.CeremonyKind) error
}
