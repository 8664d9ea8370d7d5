package pgstore

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"rentalhub/internal/domain"
	"rentalhub/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ domain.Store = (*Store)(nil)
	_ domain.Tx    = (*txStore)(nil)
)

// setupStore connects to RENTALHUB_TEST_POSTGRES_DSN and starts from empty tables.
func setupStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("RENTALHUB_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("RENTALHUB_TEST_POSTGRES_DSN not set")
	}

	logger := zerolog.Nop()
	ctx := context.Background()
	s, err := ConnectDSN(ctx, dsn, 8, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.pool.Exec(ctx, `TRUNCATE payments, rental_items, rentals, products, clients, users RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return s
}

func TestStoreRoundTrip(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	client := &models.Client{Name: "Ana"}
	user := &models.User{Username: "ops"}
	require.NoError(t, s.CreateClient(ctx, client))
	require.NoError(t, s.CreateUser(ctx, user))
	chairs := &models.Product{ID: 1, Name: "Chair", Price: 100, Stock: 10}
	require.NoError(t, s.CreateProduct(ctx, chairs))

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := &models.Rental{
		StartAt: start, EndAt: start.AddDate(0, 0, 2), Status: models.StatusCreated,
		ClientID: client.ID, UserID: user.ID,
		Items: []models.RentalItem{{ProductID: chairs.ID, Quantity: 4, UnitPrice: 100}},
	}
	r.Total = r.ComputeTotal()
	require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		if err := tx.LockProducts(ctx, []int64{chairs.ID}); err != nil {
			return err
		}
		return tx.SaveRental(ctx, r)
	}))

	got, err := s.GetRental(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, int64(400), got.Total)

	committed, err := s.CommittedQuantity(ctx, chairs.ID, models.NewWindow(start.AddDate(0, 0, 2), start.AddDate(0, 0, 3)),
		models.ActiveStatuses(), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(4), committed)

	require.NoError(t, s.CreatePayment(ctx, &models.Payment{RentalID: r.ID, Amount: 150, PaidAt: start}))
	paid, err := s.SumPaymentsByRental(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(150), paid)

	require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.DeleteRental(ctx, r.ID)
	}))
	payments, err := s.ListPaymentsByRental(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestConcurrentReservations(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	client := &models.Client{Name: "Ana"}
	user := &models.User{Username: "ops"}
	require.NoError(t, s.CreateClient(ctx, client))
	require.NoError(t, s.CreateUser(ctx, user))
	limited := &models.Product{ID: 1, Name: "Limited", Stock: 1}
	require.NoError(t, s.CreateProduct(ctx, limited))

	start := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	w := models.NewWindow(start, start.AddDate(0, 0, 1))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
				if err := tx.LockProducts(ctx, []int64{limited.ID}); err != nil {
					return err
				}
				committed, err := tx.CommittedQuantity(ctx, limited.ID, w, models.ActiveStatuses(), 0)
				if err != nil {
					return err
				}
				if committed >= limited.Stock {
					return assert.AnError
				}
				return tx.SaveRental(ctx, &models.Rental{
					StartAt: w.Start, EndAt: w.End, Status: models.StatusCreated,
					ClientID: client.ID, UserID: user.ID,
					Items: []models.RentalItem{{ProductID: limited.ID, Quantity: 1}},
				})
			})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, successes)
}

func TestStatusUpdateChecksVersion(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	client := &models.Client{Name: "Ana"}
	user := &models.User{Username: "ops"}
	require.NoError(t, s.CreateClient(ctx, client))
	require.NoError(t, s.CreateUser(ctx, user))
	chairs := &models.Product{ID: 1, Name: "Chair", Price: 100, Stock: 10}
	require.NoError(t, s.CreateProduct(ctx, chairs))

	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	r := &models.Rental{
		StartAt: start, EndAt: start.AddDate(0, 0, 1), Status: models.StatusCreated,
		ClientID: client.ID, UserID: user.ID,
		Items: []models.RentalItem{{ProductID: chairs.ID, Quantity: 1, UnitPrice: 100}},
	}
	require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.SaveRental(ctx, r)
	}))
	readVersion := r.Version

	// two writers that both read the CREATED row: only the first may move it
	require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.UpdateRentalStatus(ctx, r.ID, readVersion, models.StatusDelivered)
	}))
	err := s.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.UpdateRentalStatus(ctx, r.ID, readVersion, models.StatusCancelled)
	})
	require.ErrorIs(t, err, ErrConcurrentModification)

	got, err := s.GetRental(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, got.Status)
	assert.Equal(t, readVersion+1, got.Version)
}
