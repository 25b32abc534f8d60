package repository

import (
	"context"
	"errors"
	"fitclub/internal/domain/checkin/model"
	membershipRepo "fitclub/internal/domain/membership/repository"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ctx = context.Background()

func setupMockDB(t *testing.T) (CheckInRepository, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return NewCheckInRepository(db), mock
}

func TestIncrementUsedVisits(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	guard := `UPDATE "memberships" SET .*"used_visits"=used_visits \+ 1 WHERE \(id = \$\d AND status = \$\d AND \(max_visits IS NULL OR used_visits < max_visits\)\)`

	t.Run("Guard passes", func(t *testing.T) {
		repo, mock := setupMockDB(t)
		mock.ExpectExec(guard).WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.IncrementUsedVisits(ctx, "m1", now))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Guard rejects when quota is full", func(t *testing.T) {
		repo, mock := setupMockDB(t)
		mock.ExpectExec(guard).WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.IncrementUsedVisits(ctx, "m1", now), ErrQuotaGuard)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMarkTokenConsumed(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	guard := `UPDATE "check_in_tokens" SET "consumed_at"=\$1 WHERE value = \$2 AND consumed_at IS NULL AND revoked_at IS NULL AND expires_at > \$3`

	t.Run("First consume wins", func(t *testing.T) {
		repo, mock := setupMockDB(t)
		mock.ExpectExec(guard).WithArgs(now, "tok", now).WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.MarkTokenConsumed(ctx, "tok", now))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Second consume rejected", func(t *testing.T) {
		repo, mock := setupMockDB(t)
		mock.ExpectExec(guard).WithArgs(now, "tok", now).WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.MarkTokenConsumed(ctx, "tok", now), ErrTokenNotConsumable)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetTokenForUpdate(t *testing.T) {
	expires := time.Date(2026, 5, 1, 10, 5, 0, 0, time.UTC)

	t.Run("Locks the row", func(t *testing.T) {
		repo, mock := setupMockDB(t)
		rows := sqlmock.NewRows([]string{"value", "membership_id", "user_id", "issued_at", "expires_at", "consumed_at", "revoked_at"}).
			AddRow("tok", "m1", "u1", expires.Add(-5*time.Minute), expires, nil, nil)
		mock.ExpectQuery(`SELECT \* FROM "check_in_tokens" WHERE value = \$1 .*FOR UPDATE`).WillReturnRows(rows)

		token, err := repo.GetTokenForUpdate(ctx, "tok")

		require.NoError(t, err)
		assert.Equal(t, "m1", token.MembershipID)
		assert.Nil(t, token.ConsumedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Unknown token", func(t *testing.T) {
		repo, mock := setupMockDB(t)
		mock.ExpectQuery(`SELECT \* FROM "check_in_tokens"`).WillReturnRows(sqlmock.NewRows([]string{"value"}))

		_, err := repo.GetTokenForUpdate(ctx, "missing")

		assert.ErrorIs(t, err, ErrTokenNotFound)
	})
}

func TestGetMembershipNotFound(t *testing.T) {
	repo, mock := setupMockDB(t)
	mock.ExpectQuery(`SELECT \* FROM "memberships" WHERE id = \$1`).WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetMembership(ctx, "missing")

	assert.ErrorIs(t, err, membershipRepo.ErrMembershipNotFound)
}

func TestCreateTokenCollision(t *testing.T) {
	repo, mock := setupMockDB(t)
	mock.ExpectExec(`INSERT INTO "check_in_tokens"`).WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.CreateToken(ctx, &model.CheckInToken{Value: "dup", MembershipID: "m1", UserID: "u1"})

	assert.ErrorIs(t, err, ErrTokenCollision)
}

func TestTransactionRollsBackOnError(t *testing.T) {
	repo, mock := setupMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "memberships"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Transaction(ctx, func(tx CheckInRepository) error {
		return tx.IncrementUsedVisits(ctx, "m1", time.Now())
	})

	assert.ErrorIs(t, err, ErrQuotaGuard)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionCommits(t *testing.T) {
	repo, mock := setupMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "visits"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var created *model.Visit
	err := repo.Transaction(ctx, func(tx CheckInRepository) error {
		created = &model.Visit{MembershipID: "m1", UserID: "u1", Method: model.MethodManual, VisitedAt: time.Now()}
		return tx.CreateVisit(ctx, created)
	})

	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteStaleTokens(t *testing.T) {
	repo, mock := setupMockDB(t)
	mock.ExpectExec(`DELETE FROM "check_in_tokens" WHERE consumed_at IS NULL AND \(expires_at < \$1 OR revoked_at < \$2\)`).
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := repo.DeleteStaleTokens(ctx, time.Now())

	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}

func TestFindLiveTokenNone(t *testing.T) {
	repo, mock := setupMockDB(t)
	mock.ExpectQuery(`SELECT \* FROM "check_in_tokens" WHERE membership_id = \$1 AND consumed_at IS NULL`).
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	token, err := repo.FindLiveToken(ctx, "m1", time.Now())

	assert.NoError(t, err)
	assert.Nil(t, token)
	assert.False(t, errors.Is(err, ErrTokenNotFound))
}
