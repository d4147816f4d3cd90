package db_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/adapters/db"
	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/core/domain"
	"github.com/Colin-nwk/ubuxa-agent-sub000/test/helpers"
)

func TestSeedCollection_RollsBackOnInsertFailure(t *testing.T) {
	mock, sqlDB := helpers.SetupMockDB(t)

	store := db.NewStore(db.DefaultConfig(), helpers.TestLogger(),
		db.WithDatabase(db.NewDatabaseFromDB(sqlDB, helpers.TestLogger())),
		db.WithoutMigrations(),
	)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT row_count FROM seed_log WHERE collection = \?`).
		WithArgs("customers").
		WillReturnRows(sqlmock.NewRows([]string{"row_count"}))
	mock.ExpectExec(`INSERT INTO customers`).
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	err := store.Initialize(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "failed to seed customers")
	assert.ErrorContains(t, err, "disk I/O error")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedCollection_SkipsSeededCollections(t *testing.T) {
	mock, sqlDB := helpers.SetupMockDB(t)

	empty := domain.SeedData{}
	store := db.NewStore(db.DefaultConfig(), helpers.TestLogger(),
		db.WithDatabase(db.NewDatabaseFromDB(sqlDB, helpers.TestLogger())),
		db.WithoutMigrations(),
		db.WithSeedData(empty),
	)

	for _, c := range domain.ReferenceCollections() {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT row_count FROM seed_log WHERE collection = \?`).
			WithArgs(c.String()).
			WillReturnRows(sqlmock.NewRows([]string{"row_count"}).AddRow(3))
		mock.ExpectCommit()
	}

	require.NoError(t, store.Initialize(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
