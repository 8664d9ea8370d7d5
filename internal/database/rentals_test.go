package database

import (
	"context"
	"testing"

	"rentalhub/internal/domain"
	"rentalhub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProducts(t *testing.T) {
	db, f := setupFixture(t)
	ctx := context.Background()

	got, err := db.GetProduct(ctx, f.chairs.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Chair", got.Name)
	assert.Equal(t, int64(10), got.Stock)

	missing, err := db.GetProduct(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	got.Stock = 12
	require.NoError(t, db.UpdateProduct(ctx, got))
	again, err := db.GetProduct(ctx, f.chairs.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(12), again.Stock)

	assert.Error(t, db.UpdateProduct(ctx, &models.Product{ID: 999, Name: "ghost"}))

	auto := &models.Product{Name: "Tent", Stock: 1}
	require.NoError(t, db.CreateProduct(ctx, auto))
	assert.Equal(t, int64(3), auto.ID)

	products, err := db.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 3)
}

func TestClientsAndUsers(t *testing.T) {
	db, f := setupFixture(t)
	ctx := context.Background()

	c, err := db.GetClient(ctx, f.client.ID)
	require.NoError(t, err)
	assert.Equal(t, "555-0100", c.Phone)

	u, err := db.GetUser(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, "ops", u.Username)

	none, err := db.GetClient(ctx, 404)
	require.NoError(t, err)
	assert.Nil(t, none)

	assert.Error(t, db.CreateUser(ctx, &models.User{Username: "ops"}), "username is unique")

	clients, err := db.ListClients(ctx)
	require.NoError(t, err)
	assert.Len(t, clients, 1)
	users, err := db.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestDeleteReferencedRows(t *testing.T) {
	db, f := setupFixture(t)
	ctx := context.Background()

	// even a cancelled rental keeps its client, user and products
	saveRental(t, db, f, day(1), day(2), models.StatusCancelled,
		models.RentalItem{ProductID: f.chairs.ID, Quantity: 1, UnitPrice: 100})

	assert.ErrorIs(t, db.DeleteClient(ctx, f.client.ID), domain.ErrInUse)
	assert.ErrorIs(t, db.DeleteUser(ctx, f.user.ID), domain.ErrInUse)
	assert.ErrorIs(t, db.DeleteProduct(ctx, f.chairs.ID), domain.ErrInUse)

	require.NoError(t, db.DeleteProduct(ctx, f.tables.ID))
	gone, err := db.GetProduct(ctx, f.tables.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	assert.NoError(t, db.DeleteProduct(ctx, f.tables.ID), "missing rows are not an error")

	bob := &models.Client{Name: "Bob"}
	require.NoError(t, db.CreateClient(ctx, bob))
	bob.Email = "bob@example.com"
	require.NoError(t, db.UpdateClient(ctx, bob))
	got, err := db.GetClient(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", got.Email)
	require.NoError(t, db.DeleteClient(ctx, bob.ID))

	assert.Error(t, db.UpdateUser(ctx, &models.User{ID: 404, Username: "ghost"}))
}

func TestSaveAndGetRental(t *testing.T) {
	db, f := setupFixture(t)
	ctx := context.Background()

	r := saveRental(t, db, f, day(1), day(3), models.StatusCreated,
		models.RentalItem{ProductID: f.chairs.ID, Quantity: 4, UnitPrice: 100},
		models.RentalItem{ProductID: f.tables.ID, Quantity: 1, UnitPrice: 500},
	)
	assert.NotZero(t, r.ID)
	assert.Equal(t, int64(1), r.Version)

	got, err := db.GetRental(ctx, r.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.StartAt.Equal(day(1)))
	assert.True(t, got.EndAt.Equal(day(3)))
	assert.Equal(t, models.StatusCreated, got.Status)
	assert.Equal(t, int64(900), got.Total)
	require.Len(t, got.Items, 2)
	assert.Equal(t, r.ID, got.Items[0].RentalID)

	t.Run("UpdateReplacesItems", func(t *testing.T) {
		got.Items = []models.RentalItem{{ProductID: f.tables.ID, Quantity: 2, UnitPrice: 450}}
		got.Total = got.ComputeTotal()
		err := db.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			return tx.SaveRental(ctx, got)
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.Version)

		reloaded, err := db.GetRental(ctx, r.ID)
		require.NoError(t, err)
		require.Len(t, reloaded.Items, 1)
		assert.Equal(t, int64(450), reloaded.Items[0].UnitPrice)
		assert.Equal(t, int64(900), reloaded.Total)
	})

	t.Run("StaleVersionIsRejected", func(t *testing.T) {
		stale := *got
		stale.Version = 1
		err := db.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			return tx.SaveRental(ctx, &stale)
		})
		assert.ErrorIs(t, err, ErrConcurrentModification)
	})

	t.Run("MissingRental", func(t *testing.T) {
		none, err := db.GetRental(ctx, 404)
		require.NoError(t, err)
		assert.Nil(t, none)
	})
}

func TestCommittedQuantity(t *testing.T) {
	db, f := setupFixture(t)
	ctx := context.Background()

	a := saveRental(t, db, f, day(1), day(3), models.StatusCreated,
		models.RentalItem{ProductID: f.chairs.ID, Quantity: 4, UnitPrice: 100})
	saveRental(t, db, f, day(3), day(5), models.StatusDelivered,
		models.RentalItem{ProductID: f.chairs.ID, Quantity: 2, UnitPrice: 100})
	saveRental(t, db, f, day(2), day(4), models.StatusCancelled,
		models.RentalItem{ProductID: f.chairs.ID, Quantity: 5, UnitPrice: 100})
	saveRental(t, db, f, day(2), day(2), models.StatusPickedUp,
		models.RentalItem{ProductID: f.chairs.ID, Quantity: 1, UnitPrice: 100})

	active := models.ActiveStatuses()
	tests := []struct {
		name    string
		window  models.Window
		exclude int64
		want    int64
	}{
		{name: "shared endpoint counts as overlap", window: models.NewWindow(day(3), day(3)), want: 6},
		{name: "only first rental", window: models.NewWindow(day(1), day(2)), want: 4},
		{name: "after everything", window: models.NewWindow(day(6), day(7)), want: 0},
		{name: "exclude self", window: models.NewWindow(day(1), day(5)), exclude: a.ID, want: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.CommittedQuantity(ctx, f.chairs.ID, tt.window, active, tt.exclude)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	other, err := db.CommittedQuantity(ctx, f.tables.ID, models.NewWindow(day(1), day(5)), active, 0)
	require.NoError(t, err)
	assert.Zero(t, other)

	none, err := db.CommittedQuantity(ctx, f.chairs.ID, models.NewWindow(day(1), day(5)), nil, 0)
	require.NoError(t, err)
	assert.Zero(t, none)
}

func TestRentalAggregates(t *testing.T) {
	db, f := setupFixture(t)
	ctx := context.Background()

	saveRental(t, db, f, day(2), day(3), models.StatusCreated,
		models.RentalItem{ProductID: f.chairs.ID, Quantity: 1, UnitPrice: 100})
	saveRental(t, db, f, day(10), day(11), models.StatusPickedUp,
		models.RentalItem{ProductID: f.tables.ID, Quantity: 1, UnitPrice: 500})
	saveRental(t, db, f, day(12), day(13), models.StatusCancelled,
		models.RentalItem{ProductID: f.tables.ID, Quantity: 2, UnitPrice: 500})
	saveRental(t, db, f, day(1).AddDate(0, 1, 0), day(2).AddDate(0, 1, 0), models.StatusCreated,
		models.RentalItem{ProductID: f.chairs.ID, Quantity: 9, UnitPrice: 100})

	created, err := db.CountRentalsByStatus(ctx, models.StatusCreated)
	require.NoError(t, err)
	assert.Equal(t, int64(2), created)

	income, err := db.SumRentalTotals(ctx, day(1), day(1).AddDate(0, 1, 0), models.RevenueStatuses())
	require.NoError(t, err)
	assert.Equal(t, int64(600), income)

	january, err := db.ListRentalsStartingBetween(ctx, day(1), day(1).AddDate(0, 1, 0))
	require.NoError(t, err)
	require.Len(t, january, 3)
	assert.True(t, january[0].StartAt.Equal(day(2)))
	assert.Len(t, january[2].Items, 1)

	all, err := db.ListRentals(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestUpdateStatusAndDeleteCascade(t *testing.T) {
	db, f := setupFixture(t)
	ctx := context.Background()

	r := saveRental(t, db, f, day(1), day(2), models.StatusCreated,
		models.RentalItem{ProductID: f.chairs.ID, Quantity: 1, UnitPrice: 100})
	require.NoError(t, db.CreatePayment(ctx, &models.Payment{RentalID: r.ID, Amount: 50, PaidAt: day(1)}))

	err := db.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.UpdateRentalStatus(ctx, r.ID, r.Version, models.StatusDelivered)
	})
	require.NoError(t, err)
	got, err := db.GetRental(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, got.Status)
	assert.Equal(t, int64(2), got.Version)

	// a writer that read version 1 loses
	err = db.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.UpdateRentalStatus(ctx, r.ID, r.Version, models.StatusCancelled)
	})
	require.ErrorIs(t, err, ErrConcurrentModification)
	got, err = db.GetRental(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, got.Status)

	err = db.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.DeleteRental(ctx, r.ID)
	})
	require.NoError(t, err)

	gone, err := db.GetRental(ctx, r.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	payments, err := db.ListPaymentsByRental(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, payments)

	var items int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rental_items WHERE rental_id = ?`, r.ID).Scan(&items))
	assert.Zero(t, items)
}

func TestRunInTxRollsBack(t *testing.T) {
	db, f := setupFixture(t)
	ctx := context.Background()

	err := db.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		r := &models.Rental{StartAt: day(1), EndAt: day(2), Status: models.StatusCreated,
			ClientID: f.client.ID, UserID: f.user.ID}
		if err := tx.SaveRental(ctx, r); err != nil {
			return err
		}
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	all, err := db.ListRentals(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}
