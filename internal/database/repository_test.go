package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/codemem/engine/internal/database"
)

type widgetModel struct {
	ID    string `gorm:"primaryKey"`
	Name  string
	Count int
}

type widget struct {
	ID    string
	Name  string
	Count int
}

type widgetMapper struct{}

func (widgetMapper) ToModel(w widget) widgetModel {
	return widgetModel{ID: w.ID, Name: w.Name, Count: w.Count}
}

func (widgetMapper) ToEntity(m widgetModel) widget {
	return widget{ID: m.ID, Name: m.Name, Count: m.Count}
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&widgetModel{}))
	return db
}

func TestRepository_CreateFindCount(t *testing.T) {
	db := openTestDB(t)
	repo := database.NewRepository[widgetModel, widget](db, widgetMapper{})
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, widget{ID: "1", Name: "alpha", Count: 3}))
	require.NoError(t, repo.Create(ctx, widget{ID: "2", Name: "beta", Count: 7}))

	all, err := repo.Find(ctx, database.NewQuery().OrderAsc("name"))
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "alpha", all[0].Name)

	count, err := repo.Count(ctx, database.NewQuery().GreaterThan("count", 5))
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	one, ok, err := repo.FindOne(ctx, database.NewQuery().Equal("id", "2"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "beta", one.Name)
}

func TestRepository_DeleteBy(t *testing.T) {
	db := openTestDB(t)
	repo := database.NewRepository[widgetModel, widget](db, widgetMapper{})
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, widget{ID: "1", Name: "alpha", Count: 3}))
	n, err := repo.DeleteBy(ctx, database.NewQuery().Equal("id", "1"))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	exists, err := repo.Exists(ctx, database.NewQuery().Equal("id", "1"))
	require.NoError(t, err)
	require.False(t, exists)
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	repo := database.NewRepository[widgetModel, widget](db, widgetMapper{})

	err := database.WithTransaction(db, func(tx *gorm.DB) error {
		txRepo := database.NewRepository[widgetModel, widget](tx, widgetMapper{})
		require.NoError(t, txRepo.Create(context.Background(), widget{ID: "x", Name: "ephemeral"}))
		return assertErr
	})
	require.ErrorIs(t, err, assertErr)

	exists, err := repo.Exists(context.Background(), database.NewQuery().Equal("id", "x"))
	require.NoError(t, err)
	require.False(t, exists, "transaction should have rolled back the insert")
}

var assertErr = &testError{"boom"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
