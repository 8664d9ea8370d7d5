package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"rentalhub/internal/domain"
	"rentalhub/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	client *models.Client
	user   *models.User
	chairs *models.Product
	tables *models.Product
}

// setupTestDB opens a file database seeded with a client, a user and two products.
func setupTestDB(t *testing.T) *DB {
	db, _ := setupFixture(t)
	return db
}

func setupFixture(t *testing.T) (*DB, fixture) {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(t.TempDir(), "rentalhub.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	f := fixture{
		client: &models.Client{Name: "Ana", Phone: "555-0100"},
		user:   &models.User{Username: "ops", FullName: "Ops Desk"},
		chairs: &models.Product{ID: 1, Name: "Chair", Price: 100, Stock: 10},
		tables: &models.Product{ID: 2, Name: "Table", Price: 500, Stock: 3},
	}
	require.NoError(t, db.CreateClient(ctx, f.client))
	require.NoError(t, db.CreateUser(ctx, f.user))
	require.NoError(t, db.CreateProduct(ctx, f.chairs))
	require.NoError(t, db.CreateProduct(ctx, f.tables))
	return db, f
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func saveRental(t *testing.T, db *DB, f fixture, start, end time.Time, status models.RentalStatus, items ...models.RentalItem) *models.Rental {
	t.Helper()
	r := &models.Rental{
		StartAt:  start,
		EndAt:    end,
		Status:   status,
		ClientID: f.client.ID,
		UserID:   f.user.ID,
		Items:    items,
	}
	r.Total = r.ComputeTotal()
	err := db.RunInTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		return tx.SaveRental(ctx, r)
	})
	require.NoError(t, err)
	return r
}

func TestNewDB_DirectoryCreation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "test.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, dbPath)
	assert.Equal(t, dbPath, db.Path())
}

func TestNewDB_Memory(t *testing.T) {
	logger := zerolog.Nop()
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	defer db.Close()

	assert.NoError(t, db.Ping(context.Background()))
}

func TestDB_ErrorPaths(t *testing.T) {
	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(t.TempDir(), "closed.db"), &logger)
	require.NoError(t, err)
	db.Close()

	ctx := context.Background()
	_, err = db.GetProduct(ctx, 1)
	assert.Error(t, err)
	_, err = db.ListRentals(ctx)
	assert.Error(t, err)
	assert.Error(t, db.CreatePayment(ctx, &models.Payment{RentalID: 1, Amount: 1}))
	assert.Error(t, db.RunInTx(ctx, func(context.Context, domain.Tx) error { return nil }))
}
