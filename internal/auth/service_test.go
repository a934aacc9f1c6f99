package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/tunisianchic/backend-boutique/internal/auth"
	"github.com/tunisianchic/backend-boutique/internal/common"
	"github.com/tunisianchic/backend-boutique/internal/db"
)

type fakeQuerier struct {
	users    map[string]db.User
	sessions map[string]db.Session
}

func newFakeQuerier() *fakeQuerier {
	return &fakeQuerier{users: map[string]db.User{}, sessions: map[string]db.Session{}}
}

func (f *fakeQuerier) CreateUser(_ context.Context, arg db.CreateUserParams) (db.User, error) {
	if _, exists := f.users[arg.Email]; exists {
		return db.User{}, &pgconn.PgError{Code: "23505"}
	}
	var id pgtype.UUID
	if err := id.Scan(uuid.NewString()); err != nil {
		return db.User{}, err
	}
	u := db.User{
		ID:           id,
		Email:        arg.Email,
		PasswordHash: arg.PasswordHash,
		FirstName:    arg.FirstName,
		LastName:     arg.LastName,
		Role:         "customer",
		CreatedAt:    pgtype.Timestamptz{Time: time.Now(), Valid: true},
		UpdatedAt:    pgtype.Timestamptz{Time: time.Now(), Valid: true},
	}
	f.users[arg.Email] = u
	return u, nil
}

func (f *fakeQuerier) GetUserByEmail(_ context.Context, email string) (db.User, error) {
	if u, ok := f.users[email]; ok {
		return u, nil
	}
	return db.User{}, pgx.ErrNoRows
}

func (f *fakeQuerier) GetUserByID(_ context.Context, id pgtype.UUID) (db.User, error) {
	for _, u := range f.users {
		if u.ID.Bytes == id.Bytes {
			return u, nil
		}
	}
	return db.User{}, pgx.ErrNoRows
}

func (f *fakeQuerier) UpdateUserProfile(_ context.Context, arg db.UpdateUserProfileParams) (db.User, error) {
	for email, u := range f.users {
		if u.ID.Bytes == arg.ID.Bytes {
			if arg.FirstName.Valid {
				u.FirstName = arg.FirstName
			}
			if arg.Phone.Valid {
				u.Phone = arg.Phone
			}
			f.users[email] = u
			return u, nil
		}
	}
	return db.User{}, pgx.ErrNoRows
}

func (f *fakeQuerier) CreateSession(_ context.Context, arg db.CreateSessionParams) (db.Session, error) {
	var id pgtype.UUID
	if err := id.Scan(uuid.NewString()); err != nil {
		return db.Session{}, err
	}
	s := db.Session{ID: id, UserID: arg.UserID, RefreshToken: arg.RefreshToken, ExpiresAt: arg.ExpiresAt}
	f.sessions[arg.RefreshToken] = s
	return s, nil
}

func (f *fakeQuerier) GetSessionByToken(_ context.Context, token string) (db.Session, error) {
	if s, ok := f.sessions[token]; ok {
		return s, nil
	}
	return db.Session{}, pgx.ErrNoRows
}

func (f *fakeQuerier) DeleteSessionByToken(_ context.Context, token string) error {
	delete(f.sessions, token)
	return nil
}

func (f *fakeQuerier) RotateSessionToken(_ context.Context, arg db.RotateSessionTokenParams) (db.Session, error) {
	for token, s := range f.sessions {
		if s.ID.Bytes == arg.ID.Bytes {
			delete(f.sessions, token)
			s.RefreshToken = arg.RefreshToken
			s.ExpiresAt = arg.ExpiresAt
			f.sessions[arg.RefreshToken] = s
			return s, nil
		}
	}
	return db.Session{}, pgx.ErrNoRows
}

func (f *fakeQuerier) DeleteSessionsForUser(_ context.Context, userID pgtype.UUID) error {
	for token, s := range f.sessions {
		if s.UserID.Bytes == userID.Bytes {
			delete(f.sessions, token)
		}
	}
	return nil
}

func newTestService(t *testing.T, q auth.Querier) *auth.Service {
	t.Helper()
	svc, err := auth.NewService(auth.Config{Queries: q, Secret: "test-secret-test-secret"})
	require.NoError(t, err)
	return svc
}

func TestRegisterNormalisesEmailAndRejectsDuplicates(t *testing.T) {
	q := newFakeQuerier()
	svc := newTestService(t, q)

	user, err := svc.Register(context.Background(), "Amira", "Ben Salah", "  Amira@Example.COM ", "password123")
	require.NoError(t, err)
	require.Equal(t, "amira@example.com", user.Email)

	_, err = svc.Register(context.Background(), "Other", "User", "amira@example.com", "password123")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "EMAIL_ALREADY_USED", appErr.Code)
	require.Equal(t, 409, appErr.HTTPStatus)
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc := newTestService(t, newFakeQuerier())

	_, err := svc.Register(context.Background(), "A", "B", "short@example.com", "short")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func TestLoginAndParseAccessToken(t *testing.T) {
	q := newFakeQuerier()
	svc := newTestService(t, q)

	registered, err := svc.Register(context.Background(), "Sami", "Trabelsi", "sami@example.com", "password123")
	require.NoError(t, err)

	result, err := svc.Login(context.Background(), "Sami@Example.com", "password123", "ua", "127.0.0.1")
	require.NoError(t, err)
	require.NotEmpty(t, result.AccessToken)
	require.NotEmpty(t, result.RefreshToken)

	subject, err := svc.ParseAccessToken(result.AccessToken)
	require.NoError(t, err)
	require.Equal(t, registered.ID, subject)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	q := newFakeQuerier()
	svc := newTestService(t, q)

	_, err := svc.Register(context.Background(), "S", "T", "user@example.com", "password123")
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "user@example.com", "wrong-password", "", "")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "INVALID_CREDENTIALS", appErr.Code)
}

func TestRefreshRotatesToken(t *testing.T) {
	q := newFakeQuerier()
	svc := newTestService(t, q)

	_, err := svc.Register(context.Background(), "S", "T", "rotate@example.com", "password123")
	require.NoError(t, err)
	login, err := svc.Login(context.Background(), "rotate@example.com", "password123", "", "")
	require.NoError(t, err)

	refreshed, err := svc.Refresh(context.Background(), login.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// the old token is gone after rotation
	_, err = svc.Refresh(context.Background(), login.RefreshToken)
	require.Error(t, err)

	_, err = svc.Refresh(context.Background(), refreshed.RefreshToken)
	require.NoError(t, err)
}

func TestRefreshRejectsExpiredSession(t *testing.T) {
	q := newFakeQuerier()
	svc := newTestService(t, q)

	_, err := svc.Register(context.Background(), "S", "T", "expired@example.com", "password123")
	require.NoError(t, err)
	login, err := svc.Login(context.Background(), "expired@example.com", "password123", "", "")
	require.NoError(t, err)

	svc.WithNow(func() time.Time { return time.Now().Add(31 * 24 * time.Hour) })
	_, err = svc.Refresh(context.Background(), login.RefreshToken)
	require.Error(t, err)
	require.Empty(t, q.sessions, "expired session must be revoked")
}

func TestLogoutRevokesSession(t *testing.T) {
	q := newFakeQuerier()
	svc := newTestService(t, q)

	_, err := svc.Register(context.Background(), "S", "T", "bye@example.com", "password123")
	require.NoError(t, err)
	login, err := svc.Login(context.Background(), "bye@example.com", "password123", "", "")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), login.RefreshToken))
	_, err = svc.Refresh(context.Background(), login.RefreshToken)
	require.Error(t, err)
}

func TestParseAccessTokenRejectsGarbage(t *testing.T) {
	svc := newTestService(t, newFakeQuerier())

	_, err := svc.ParseAccessToken("not-a-token")
	require.Error(t, err)

	_, err = svc.ParseAccessToken("")
	require.Error(t, err)
}
