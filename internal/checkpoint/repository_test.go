package checkpoint

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetNextBlock_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT next_block FROM checkpoints WHERE chain_id = \$1`).
		WithArgs(uint32(1)).
		WillReturnRows(sqlmock.NewRows([]string{"next_block"}))

	r := newWithDB(db)
	_, ok, err := r.GetNextBlock(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetNextBlock_Found(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT next_block FROM checkpoints WHERE chain_id = \$1`).
		WithArgs(uint32(5)).
		WillReturnRows(sqlmock.NewRows([]string{"next_block"}).AddRow(uint64(1000)))

	r := newWithDB(db)
	next, ok, err := r.GetNextBlock(context.Background(), 5)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.EqualValues(t, 1000, next)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetNextBlock_Upsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO checkpoints`).
		WithArgs(uint32(7), uint64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	r := newWithDB(db)
	err = r.SetNextBlock(context.Background(), 7, 42)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthCheck(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()

	r := newWithDB(db)
	require.NoError(t, r.HealthCheck(context.Background()))
}
