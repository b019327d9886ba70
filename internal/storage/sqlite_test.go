package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/aromance/internal/model"
	"github.com/Veraticus/aromance/internal/service"
	"github.com/Veraticus/aromance/internal/testutil/catalog"
)

var testEpoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestStorage(t *testing.T, products catalog.Products) (*SQLiteStorage, *testClock) {
	t.Helper()
	s, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	clock := &testClock{now: testEpoch}
	s.SetClock(clock.Now)
	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, products.Seed(context.Background(), s))
	return s, clock
}

func createUser(t *testing.T, s *SQLiteStorage, wallet string) {
	t.Helper()
	_, err := s.CreateProfile(context.Background(), model.NewUserProfile(wallet, s.now()))
	require.NoError(t, err)
}

func newDraft(t *testing.T, buyer string, p model.Product, qty int, key string) model.Transaction {
	t.Helper()
	tx, err := model.NewTransactionDraft(buyer, model.CartLine{Product: p, Quantity: qty}, key, testEpoch)
	require.NoError(t, err)
	return tx
}

func basicReviewer() model.StakeTier {
	return model.StakeTier{Role: model.RoleReviewer, Level: model.LevelBasic}
}

func requireRejection(t *testing.T, err error, message string) {
	t.Helper()
	var rej *service.RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, message, rej.Message)
}

func TestNewSQLiteStorageRejectsEmptyPath(t *testing.T) {
	_, err := NewSQLiteStorage("  ")
	assert.ErrorIs(t, err, ErrEmptyString)
}

func TestMigrateIsIdempotent(t *testing.T) {
	s, _ := newTestStorage(t, nil)
	ctx := context.Background()

	require.NoError(t, s.Migrate(ctx))

	version, err := s.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, version)
}

func TestMigrateRollsBackFailedMigration(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("PRAGMA user_version").
		WillReturnRows(sqlmock.NewRows([]string{"user_version"}).AddRow(0))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS profiles").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	s := newWithDB(db, "mock")
	err = s.Migrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migration 1 failed")
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateSkipsAppliedVersions(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("PRAGMA user_version").
		WillReturnRows(sqlmock.NewRows([]string{"user_version"}).AddRow(ExpectedSchemaVersion))
	mock.ExpectQuery("PRAGMA user_version").
		WillReturnRows(sqlmock.NewRows([]string{"user_version"}).AddRow(ExpectedSchemaVersion))

	s := newWithDB(db, "mock")
	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsQueryFailureIsReported(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT COUNT").WillReturnError(errors.New("locked"))

	s := newWithDB(db, "mock")
	_, err = s.PlatformStats(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "total_users")
	var rej *service.RejectionError
	assert.False(t, errors.As(err, &rej), "storage faults are not rejections")
}
