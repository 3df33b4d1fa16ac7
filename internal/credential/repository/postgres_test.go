package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"auth-session-engine/internal/credential/domain"
	"auth-session-engine/internal/credential/repository"
	"auth-session-engine/internal/db"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUserID = "3f1f8a8e-6f4e-4a1c-9a74-0f3f1a2b3c4d"

var credentialColumns = []string{
	"id", "email", "password_hash", "email_verified", "roles",
	"failed_attempts", "locked_until", "created_at", "updated_at",
}

func TestGetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := repository.NewPostgresRepository(mock)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, email, password_hash").
			WithArgs(testUserID).
			WillReturnRows(pgxmock.NewRows(credentialColumns).
				AddRow(testUserID, "user@example.com", "hash", true, []string{"user"}, 0, nil, time.Now(), time.Now()))

		cred, err := r.GetByID(ctx, testUserID)
		require.NoError(t, err)
		require.NotNil(t, cred)
		assert.Equal(t, testUserID, cred.ID)
		assert.True(t, cred.EmailVerified)
		assert.Nil(t, cred.LockedUntil)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, email, password_hash").
			WithArgs(testUserID).
			WillReturnError(pgx.ErrNoRows)

		cred, err := r.GetByID(ctx, testUserID)
		require.NoError(t, err)
		assert.Nil(t, cred)
	})

	t.Run("database error", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, email, password_hash").
			WithArgs(testUserID).
			WillReturnError(fmt.Errorf("db error"))

		_, err := r.GetByID(ctx, testUserID)
		assert.Error(t, err)
	})
}

func TestGetByEmail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := repository.NewPostgresRepository(mock)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, email, password_hash").
			WithArgs("user@example.com").
			WillReturnRows(pgxmock.NewRows(credentialColumns).
				AddRow(testUserID, "user@example.com", "hash", true, []string{}, 2, nil, time.Now(), time.Now()))

		cred, err := r.GetByEmail(ctx, "user@example.com")
		require.NoError(t, err)
		require.NotNil(t, cred)
		assert.Equal(t, 2, cred.FailedAttempts)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, email, password_hash").
			WithArgs("missing@example.com").
			WillReturnError(pgx.ErrNoRows)

		cred, err := r.GetByEmail(ctx, "missing@example.com")
		require.NoError(t, err)
		assert.Nil(t, cred)
	})
}

func TestCreate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := repository.NewPostgresRepository(mock)
	ctx := context.Background()
	cred := &domain.Credential{
		ID:            testUserID,
		Email:         "new@example.com",
		PasswordHash:  "hash",
		EmailVerified: true,
		Roles:         []string{"user"},
	}

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO users").
			WithArgs(cred.ID, cred.Email, cred.PasswordHash, cred.EmailVerified, cred.Roles).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err := r.Create(ctx, cred)
		assert.NoError(t, err)
	})

	t.Run("database error", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO users").
			WithArgs(cred.ID, cred.Email, cred.PasswordHash, cred.EmailVerified, cred.Roles).
			WillReturnError(fmt.Errorf("db error"))

		err := r.Create(ctx, cred)
		assert.Error(t, err)
	})
}

func TestRecordFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := repository.NewPostgresRepository(mock)
	ctx := context.Background()

	t.Run("below threshold", func(t *testing.T) {
		mock.ExpectQuery("UPDATE users").
			WithArgs(testUserID, 5, int64(900)).
			WillReturnRows(pgxmock.NewRows([]string{"failed_attempts", "locked_until"}).AddRow(3, nil))

		attempts, lockedUntil, err := r.RecordFailure(ctx, testUserID, 5, 15*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
		assert.Nil(t, lockedUntil)
	})

	t.Run("lock engaged", func(t *testing.T) {
		until := time.Now().Add(15 * time.Minute)
		mock.ExpectQuery("UPDATE users").
			WithArgs(testUserID, 5, int64(900)).
			WillReturnRows(pgxmock.NewRows([]string{"failed_attempts", "locked_until"}).AddRow(5, &until))

		attempts, lockedUntil, err := r.RecordFailure(ctx, testUserID, 5, 15*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, 5, attempts)
		require.NotNil(t, lockedUntil)
	})

	t.Run("missing user", func(t *testing.T) {
		mock.ExpectQuery("UPDATE users").
			WithArgs(testUserID, 5, int64(900)).
			WillReturnError(pgx.ErrNoRows)

		_, _, err := r.RecordFailure(ctx, testUserID, 5, 15*time.Minute)
		assert.ErrorIs(t, err, db.ErrNotFound)
	})
}

func TestResetFailures(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := repository.NewPostgresRepository(mock)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec("UPDATE users").
			WithArgs(testUserID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := r.ResetFailures(ctx, testUserID)
		assert.NoError(t, err)
	})

	t.Run("missing user", func(t *testing.T) {
		mock.ExpectExec("UPDATE users").
			WithArgs(testUserID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := r.ResetFailures(ctx, testUserID)
		assert.ErrorIs(t, err, db.ErrNotFound)
	})
}
