package services

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/sbelyakov/authkeeper/internal/common"
	"github.com/sbelyakov/authkeeper/internal/dbx"
	"github.com/sbelyakov/authkeeper/internal/logging"
	"github.com/sbelyakov/authkeeper/internal/server/models"
	challengesrepo "github.com/sbelyakov/authkeeper/internal/server/repositories/challenges"
	credentialsrepo "github.com/sbelyakov/authkeeper/internal/server/repositories/credentials"
	usersrepo "github.com/sbelyakov/authkeeper/internal/server/repositories/users"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// fakeUsersRepo keeps users in memory keyed by username.
type fakeUsersRepo struct {
	users     map[string]*models.User
	createErr error
	getErr    error
}

func newFakeUsersRepo(users ...*models.User) *fakeUsersRepo {
	f := &fakeUsersRepo{users: map[string]*models.User{}}
	for _, u := range users {
		f.users[u.Username] = u
	}
	return f
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if _, ok := f.users[u.Username]; ok {
		return nil, common.ErrorLoginAlreadyExists
	}
	u.ID = uuid.New()
	f.users[u.Username] = u
	return u, nil
}

func (f *fakeUsersRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.users[username]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

// fakeCredentialsRepo keeps credentials in a slice and records Save calls.
type fakeCredentialsRepo struct {
	creds   []*models.Credential
	saved   []*models.Credential
	saveErr error
	listErr error
	findErr error
}

func (f *fakeCredentialsRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Credential, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []*models.Credential{}
	for _, c := range f.creds {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCredentialsRepo) FindAllByCredentialID(ctx context.Context, credentialID []byte) ([]*models.Credential, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	out := []*models.Credential{}
	for _, c := range f.creds {
		if string(c.CredentialID) == string(credentialID) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCredentialsRepo) Save(ctx context.Context, cred *models.Credential) (*models.Credential, error) {
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	f.saved = append(f.saved, cred)
	for i, c := range f.creds {
		if string(c.CredentialID) == string(cred.CredentialID) {
			f.creds[i] = cred
			return cred, nil
		}
	}
	f.creds = append(f.creds, cred)
	return cred, nil
}

// fakeChallengesRepo keeps at most one challenge per (username, kind).
type fakeChallengesRepo struct {
	rows       map[string]*models.Challenge
	replaceErr error
	latestErr  error
	deleteErr  error
	deletes    int
}

func newFakeChallengesRepo() *fakeChallengesRepo {
	return &fakeChallengesRepo{rows: map[string]*models.Challenge{}}
}

func challengeKey(username string, kind models.CeremonyKind) string {
	return username + "/" + string(kind)
}

func (f *fakeChallengesRepo) Replace(ctx context.Context, username string, kind models.CeremonyKind, optionsJSON string) error {
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.rows[challengeKey(username, kind)] = &models.Challenge{Username: username, Kind: kind, OptionsJSON: optionsJSON}
	return nil
}

func (f *fakeChallengesRepo) Latest(ctx context.Context, username string, kind models.CeremonyKind) (*models.Challenge, error) {
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	ch, ok := f.rows[challengeKey(username, kind)]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return ch, nil
}

func (f *fakeChallengesRepo) Delete(ctx context.Context, username string, kind models.CeremonyKind) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletes++
	delete(f.rows, challengeKey(username, kind))
	return nil
}

type fakeRepoManager struct {
	u  *fakeUsersRepo
	c  *fakeCredentialsRepo
	ch *fakeChallengesRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error       { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository             { return m.u }
func (m *fakeRepoManager) Credentials(db dbx.DBTX) credentialsrepo.Repository { return m.c }
func (m *fakeRepoManager) Challenges(db dbx.DBTX) challengesrepo.Repository   { return m.ch }
