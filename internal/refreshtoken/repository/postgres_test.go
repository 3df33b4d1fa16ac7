package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"auth-session-engine/internal/refreshtoken/domain"
	"auth-session-engine/internal/refreshtoken/repository"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testUserID    = "7b0c9a2e-1d3f-4e5a-8b6c-9d0e1f2a3b4c"
	testSessionID = "c4d5e6f7-a8b9-4c0d-9e1f-2a3b4c5d6e7f"
	testTokenID   = "9e8d7c6b-5a49-4382-b716-0f1e2d3c4b5a"
	testHash      = "2c26b46b68ffc68ff99b453c1d30413413422d706483bfa0f98a5e886266e7ae"
)

var tokenColumns = []string{
	"id", "user_id", "session_id", "token_hash", "status", "token_version",
	"rotation_count", "replaced_by", "created_at", "expires_at",
	"rotated_at", "revoked_at", "revoked_reason",
}

func liveTokenRow(now time.Time) []any {
	return []any{
		testTokenID, testUserID, testSessionID, testHash, domain.StatusLive,
		3, 0, "", now, now.Add(30 * 24 * time.Hour), nil, nil, "",
	}
}

func TestGetByHash(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := repository.NewPostgresRepository(mock)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, user_id, session_id").
			WithArgs(testHash).
			WillReturnRows(pgxmock.NewRows(tokenColumns).AddRow(liveTokenRow(time.Now())...))

		tok, err := r.GetByHash(ctx, testHash)
		require.NoError(t, err)
		require.NotNil(t, tok)
		assert.Equal(t, testTokenID, tok.ID)
		assert.Equal(t, domain.StatusLive, tok.Status)
		assert.Equal(t, 3, tok.TokenVersion)
		assert.Nil(t, tok.RotatedAt)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, user_id, session_id").
			WithArgs(testHash).
			WillReturnError(pgx.ErrNoRows)

		tok, err := r.GetByHash(ctx, testHash)
		require.NoError(t, err)
		assert.Nil(t, tok)
	})

	t.Run("database error", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, user_id, session_id").
			WithArgs(testHash).
			WillReturnError(fmt.Errorf("connection refused"))

		_, err := r.GetByHash(ctx, testHash)
		assert.Error(t, err)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := repository.NewPostgresRepository(mock)
	ctx := context.Background()
	now := time.Now()
	expires := now.Add(30 * 24 * time.Hour)

	mock.ExpectQuery("INSERT INTO refresh_tokens").
		WithArgs(testTokenID, testUserID, testSessionID, testHash, 3, 0, expires).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(now))

	tok := &domain.RefreshToken{
		ID: testTokenID, UserID: testUserID, SessionID: testSessionID,
		TokenHash: testHash, TokenVersion: 3, ExpiresAt: expires,
	}
	require.NoError(t, r.Insert(ctx, tok))
	assert.Equal(t, now, tok.CreatedAt)
	assert.Equal(t, domain.StatusLive, tok.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRotate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := repository.NewPostgresRepository(mock)
	ctx := context.Background()
	now := time.Now()

	successor := func() *domain.RefreshToken {
		return &domain.RefreshToken{
			ID: "0a1b2c3d-4e5f-4678-9abc-def012345678", UserID: testUserID,
			SessionID: testSessionID, TokenHash: "newhash", TokenVersion: 3,
			RotationCount: 1, ExpiresAt: now.Add(30 * 24 * time.Hour),
		}
	}

	t.Run("wins the transition", func(t *testing.T) {
		succ := successor()
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE refresh_tokens SET status").
			WithArgs(testTokenID, succ.ID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectQuery("INSERT INTO refresh_tokens").
			WithArgs(succ.ID, testUserID, testSessionID, "newhash", 3, 1, succ.ExpiresAt).
			WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(now))
		mock.ExpectCommit()

		rotated, err := r.Rotate(ctx, testTokenID, succ)
		require.NoError(t, err)
		assert.True(t, rotated)
		assert.Equal(t, domain.StatusLive, succ.Status)
	})

	t.Run("loses the race", func(t *testing.T) {
		succ := successor()
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE refresh_tokens SET status").
			WithArgs(testTokenID, succ.ID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectCommit()

		rotated, err := r.Rotate(ctx, testTokenID, succ)
		require.NoError(t, err)
		assert.False(t, rotated)
	})

	t.Run("successor insert fails", func(t *testing.T) {
		succ := successor()
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE refresh_tokens SET status").
			WithArgs(testTokenID, succ.ID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectQuery("INSERT INTO refresh_tokens").
			WithArgs(succ.ID, testUserID, testSessionID, "newhash", 3, 1, succ.ExpiresAt).
			WillReturnError(fmt.Errorf("unique violation"))
		mock.ExpectRollback()

		rotated, err := r.Rotate(ctx, testTokenID, succ)
		assert.Error(t, err)
		assert.False(t, rotated)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeBySession(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := repository.NewPostgresRepository(mock)
	ctx := context.Background()

	t.Run("live token revoked", func(t *testing.T) {
		mock.ExpectExec("UPDATE refresh_tokens SET status").
			WithArgs(testSessionID, "user_logout").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		n, err := r.RevokeBySession(ctx, testSessionID, "user_logout")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("no live token", func(t *testing.T) {
		mock.ExpectExec("UPDATE refresh_tokens SET status").
			WithArgs(testSessionID, "user_logout").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		n, err := r.RevokeBySession(ctx, testSessionID, "user_logout")
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPurgeTerminal(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := repository.NewPostgresRepository(mock)
	ctx := context.Background()
	cutoff := time.Now().Add(-90 * 24 * time.Hour)

	mock.ExpectExec("DELETE FROM refresh_tokens").
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 40))

	n, err := r.PurgeTerminal(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(40), n)
	require.NoError(t, mock.ExpectationsWereMet())
}
