package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"probebandit/models"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func armColumns() []string {
	return []string{
		"id", "name", "command", "weight", "success_limit",
		"successes", "failures", "active", "broken", "created_at", "updated_at",
	}
}

func TestCreateArm(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO arms`).
		WithArgs(sqlmock.AnyArg(), "fuzz-net", "probe --p 0.2 --delay 50ms", 2.5, nil,
			0, 0, true, false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	arm := models.NewArm("fuzz-net", "probe --p 0.2 --delay 50ms")
	arm.Weight = 2.5
	created, err := s.CreateArm(context.Background(), arm)

	assert.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "fuzz-net", created.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateArmWithLimit(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO arms`).
		WithArgs(sqlmock.AnyArg(), "capped", "probe", 1.0, int64(10),
			0, 0, true, false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	limit := 10
	arm := models.NewArm("capped", "probe")
	arm.Limit = &limit
	_, err := s.CreateArm(context.Background(), arm)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListArms(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`FROM arms`).
		WillReturnRows(sqlmock.NewRows(armColumns()).
			AddRow("id-1", "alpha", "probe a", 1.0, nil, 3, 7, true, false, now, now).
			AddRow("id-2", "bravo", "probe b", 2.0, 5, 5, 0, false, false, now, now))

	arms, err := s.ListArms(context.Background())
	require.NoError(t, err)
	require.Len(t, arms, 2)

	assert.Equal(t, "alpha", arms[0].Name)
	assert.Nil(t, arms[0].Limit)
	assert.Equal(t, 3, arms[0].Successes)

	require.NotNil(t, arms[1].Limit)
	assert.Equal(t, 5, *arms[1].Limit)
	assert.Equal(t, models.StateLimitReached, arms[1].State())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetArmNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`FROM arms`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(armColumns()))

	_, err := s.GetArm(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrArmNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordOutcome(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`UPDATE arms`).
		WithArgs(true, "alpha").
		WillReturnRows(sqlmock.NewRows([]string{"successes", "failures", "success_limit"}).
			AddRow(4, 7, nil))

	successes, failures, err := s.RecordOutcome(context.Background(), "alpha", true)
	assert.NoError(t, err)
	assert.Equal(t, 4, successes)
	assert.Equal(t, 7, failures)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordOutcomeDeactivatesAtLimit(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`UPDATE arms`).
		WithArgs(true, "capped").
		WillReturnRows(sqlmock.NewRows([]string{"successes", "failures", "success_limit"}).
			AddRow(5, 2, 5))
	mock.ExpectExec(`UPDATE arms SET active = FALSE`).
		WithArgs("capped").
		WillReturnResult(sqlmock.NewResult(0, 1))

	successes, _, err := s.RecordOutcome(context.Background(), "capped", true)
	assert.NoError(t, err)
	assert.Equal(t, 5, successes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkBroken(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE arms SET broken = TRUE`).
		WithArgs("bad").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, s.MarkBroken(context.Background(), "bad"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetArm(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE arms`).
		WithArgs("probe --new", "alpha").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, s.ResetArm(context.Background(), "alpha", "probe --new"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetArmNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE arms`).
		WithArgs("", "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.ResetArm(context.Background(), "ghost", "")
	assert.ErrorIs(t, err, ErrArmNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetAll(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE arms`).
		WillReturnResult(sqlmock.NewResult(0, 3))

	assert.NoError(t, s.ResetAll(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRun(t *testing.T) {
	s, mock := newMockStore(t)

	arms := []models.Arm{
		{Name: "alpha", Successes: 4, Failures: 6, Active: true},
		{Name: "bravo", Successes: 5, Failures: 0, Active: false, Broken: false},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE arms`).
		WithArgs(4, 6, true, false, "alpha").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE arms`).
		WithArgs(5, 0, false, false, "bravo").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	assert.NoError(t, s.SaveRun(context.Background(), arms))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS arms`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, s.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
