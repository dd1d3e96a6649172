package store

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *Store) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, &Store{DB: mock}
}

func TestMigrate(t *testing.T) {
	mock, s := newMock(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS local_state").WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRead(t *testing.T) {
	mock, s := newMock(t)
	keys := []string{"ghl_access_token", "ghl_location_id", "ghl_token_expiry"}

	mock.ExpectQuery("SELECT key, value FROM local_state").
		WithArgs(keys).
		WillReturnRows(pgxmock.NewRows([]string{"key", "value"}).
			AddRow("ghl_access_token", "tok").
			AddRow("ghl_location_id", "loc"))

	got, err := s.Read(context.Background(), keys)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"ghl_access_token": "tok", "ghl_location_id": "loc"}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReadError(t *testing.T) {
	mock, s := newMock(t)
	mock.ExpectQuery("SELECT key, value FROM local_state").
		WithArgs(pgxmock.AnyArg()).
		WillReturnError(errors.New("conn reset"))

	_, err := s.Read(context.Background(), []string{"a"})
	assert.ErrorContains(t, err, "store: read state")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteCommitsOneTransaction(t *testing.T) {
	mock, s := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO local_state").
		WithArgs("ghl_access_token", "tok").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, s.Write(context.Background(), map[string]string{"ghl_access_token": "tok"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteRollsBackOnFailure(t *testing.T) {
	mock, s := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO local_state").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.Write(context.Background(), map[string]string{"ghl_access_token": "tok"})
	assert.ErrorContains(t, err, "store: upsert ghl_access_token")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	mock, s := newMock(t)
	keys := []string{"ghl_access_token", "ghl_location_id", "ghl_token_expiry"}
	mock.ExpectExec("DELETE FROM local_state").
		WithArgs(keys).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	require.NoError(t, s.Delete(context.Background(), keys))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmptyWritesSkipTheDatabase(t *testing.T) {
	mock, s := newMock(t)
	require.NoError(t, s.Write(context.Background(), nil))
	require.NoError(t, s.Delete(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}
