package challenges

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sbelyakov/authkeeper/internal/common"
	"github.com/sbelyakov/authkeeper/internal/dbx"
	"github.com/sbelyakov/authkeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Replace(ctx context.Context, username string, kind models.CeremonyKind, optionsJSON string) error {

	if err := r.Delete(ctx, username, kind); err != nil {
		return err
	}

	query :=
		`INSERT INTO webauthn_challenges (username, kind, options_json)
         VALUES ($1, $2, $3)
		 `

	if _, err := r.db.ExecContext(ctx, query, username, string(kind), optionsJSON); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Latest(ctx context.Context, username string, kind models.CeremonyKind) (*models.Challenge, error) {
	query :=
		`SELECT id, username, kind, options_json, created_at FROM webauthn_challenges
		 WHERE username = $1 AND kind = $2
		 ORDER BY created_at DESC
		 LIMIT 1
		 `

	ch := &models.Challenge{}
	var kindRaw string
	err := r.db.QueryRowContext(ctx, query, username, string(kind)).
		Scan(&ch.ID, &ch.Username, &kindRaw, &ch.OptionsJSON, &ch.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	ch.Kind = models.CeremonyKind(kindRaw)
	return ch, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, username string, kind models.CeremonyKind) error {
	query :=
		`DELETE FROM webauthn_challenges
		 WHERE username = $1 AND kind = $2
		 `

	if _, err := r.db.ExecContext(ctx, query, username, string(kind)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}
