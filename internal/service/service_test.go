package service

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"rentalhub/internal/database"
	"rentalhub/internal/events"
	"rentalhub/internal/lock"
	"rentalhub/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	db       *database.DB
	rentals  *RentalService
	payments *PaymentService
	catalog  *CatalogService
	bus      *events.EventBus
	client   *models.Client
	user     *models.User
	product  *models.Product // stock 5, price 100

	mu       sync.Mutex
	received []string
}

func newTestEnv(t *testing.T, strict bool) *testEnv {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(filepath.Join(t.TempDir(), "rentalhub.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	env := &testEnv{
		db:  db,
		bus: events.NewEventBus(),
	}
	env.bus.Subscribe(events.AllEvents, func(e *events.Event) error {
		env.mu.Lock()
		env.received = append(env.received, e.Type)
		env.mu.Unlock()
		return nil
	})
	env.rentals = NewRentalService(db, lock.NewMemoryLocker(5*time.Second), env.bus, strict, &logger)
	env.payments = NewPaymentService(db, env.bus, &logger)
	env.catalog = NewCatalogService(db, &logger)

	ctx := context.Background()
	env.client = &models.Client{Name: "Ana"}
	env.user = &models.User{Username: "ops"}
	env.product = &models.Product{ID: 1, Name: "Chair", Price: 100, Stock: 5}
	require.NoError(t, db.CreateClient(ctx, env.client))
	require.NoError(t, db.CreateUser(ctx, env.user))
	require.NoError(t, db.CreateProduct(ctx, env.product))
	return env
}

func (e *testEnv) events() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.received...)
}

func (e *testEnv) input(start, end time.Time, items ...models.ItemRequest) RentalInput {
	return RentalInput{
		ClientID: e.client.ID,
		UserID:   e.user.ID,
		Address:  "Main St 1",
		StartAt:  start,
		EndAt:    end,
		Items:    items,
	}
}

func jan(d int) time.Time {
	return time.Date(2024, time.January, d, 0, 0, 0, 0, time.UTC)
}

func item(productID, qty int64) models.ItemRequest {
	return models.ItemRequest{ProductID: productID, Quantity: qty}
}
