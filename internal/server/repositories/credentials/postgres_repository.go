package credentials

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/sbelyakov/authkeeper/internal/dbx"
	"github.com/sbelyakov/authkeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Credential, error) {
	query :=
		`SELECT id, user_id, credential_id, public_key_cose, signature_count, created_at
		 FROM webauthn_credentials
		 WHERE user_id = $1
		 ORDER BY created_at
		 `

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	return scanCredentials(rows)
}

func (r *PostgresRepository) FindAllByCredentialID(ctx context.Context, credentialID []byte) ([]*models.Credential, error) {
	query :=
		`SELECT id, user_id, credential_id, public_key_cose, signature_count, created_at
		 FROM webauthn_credentials
		 WHERE credential_id = $1
		 `

	rows, err := r.db.QueryContext(ctx, query, credentialID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	return scanCredentials(rows)
}

func (r *PostgresRepository) Save(ctx context.Context, cred *models.Credential) (*models.Credential, error) {

	query :=
		`INSERT INTO webauthn_credentials (user_id, credential_id, public_key_cose, signature_count)
         VALUES ($1, $2, $3, $4)
		 ON CONFLICT (credential_id) DO UPDATE
		 SET public_key_cose = EXCLUDED.public_key_cose,
		     signature_count = EXCLUDED.signature_count
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		cred.UserID, cred.CredentialID, cred.PublicKeyCOSE, int64(cred.SignatureCount)).
		Scan(&cred.ID, &cred.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return cred, nil
}

func scanCredentials(rows *sql.Rows) ([]*models.Credential, error) {
	creds := make([]*models.Credential, 0)
	for rows.Next() {
		cred := &models.Credential{}
		var count int64
		if err := rows.Scan(&cred.ID, &cred.UserID, &cred.CredentialID,
			&cred.PublicKeyCOSE, &count, &cred.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		cred.SignatureCount = uint32(count)
		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return creds, nil
}
