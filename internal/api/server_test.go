package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"rentalhub/internal/config"
	"rentalhub/internal/database"
	"rentalhub/internal/events"
	"rentalhub/internal/export"
	"rentalhub/internal/lock"
	"rentalhub/internal/models"
	"rentalhub/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type testAPI struct {
	srv    *HTTPServer
	db     *database.DB
	client *models.Client
	user   *models.User
}

func newTestAPI(t *testing.T, cfg config.APIConfig) *testAPI {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "api.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	client := &models.Client{Name: "Ana"}
	user := &models.User{Username: "ops"}
	require.NoError(t, db.CreateClient(ctx, client))
	require.NoError(t, db.CreateUser(ctx, user))
	require.NoError(t, db.CreateProduct(ctx, &models.Product{ID: 1, Name: "Chair", Price: 100, Stock: 3}))

	bus := events.NewEventBus()
	svc := Services{
		Rentals:   service.NewRentalService(db, lock.NewMemoryLocker(time.Second), bus, true, &logger),
		Payments:  service.NewPaymentService(db, bus, &logger),
		Catalog:   service.NewCatalogService(db, &logger),
		Dashboard: service.NewDashboardService(db),
		Exporter:  export.NewExporter(db, t.TempDir(), &logger),
	}
	return &testAPI{
		srv:    NewHTTPServer(cfg, svc, db, &logger),
		db:     db,
		client: client,
		user:   user,
	}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	a.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) rentalBody(start, end string, qty int64) map[string]any {
	return map[string]any{
		"client_id": a.client.ID,
		"user_id":   a.user.ID,
		"address":   "Main St 1",
		"start_at":  start,
		"end_at":    end,
		"items":     []map[string]int64{{"product_id": 1, "quantity": qty}},
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	a := newTestAPI(t, config.APIConfig{})
	rec := a.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestIDIsEchoed(t *testing.T) {
	a := newTestAPI(t, config.APIConfig{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	a.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestCreateRentalAndStockConflict(t *testing.T) {
	a := newTestAPI(t, config.APIConfig{})

	rec := a.do(t, http.MethodPost, "/api/v1/rentals", a.rentalBody("2025-01-10T00:00:00Z", "2025-01-12T00:00:00Z", 2))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[models.Rental](t, rec)
	assert.Equal(t, models.StatusCreated, created.Status)
	assert.Equal(t, int64(200), created.Total)

	rec = a.do(t, http.MethodPost, "/api/v1/rentals", a.rentalBody("2025-01-12T00:00:00Z", "2025-01-14T00:00:00Z", 2))
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.EqualValues(t, 1, body["product_id"])
	assert.EqualValues(t, 2, body["requested"])
	assert.EqualValues(t, 1, body["available"])

	rec = a.do(t, http.MethodPost, "/api/v1/rentals", a.rentalBody("2025-01-13T00:00:00Z", "2025-01-14T00:00:00Z", 3))
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/v1/rentals", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[map[string][]models.Rental](t, rec)
	assert.Len(t, list["rentals"], 2)
}

func TestCreateRentalValidation(t *testing.T) {
	a := newTestAPI(t, config.APIConfig{})

	rec := a.do(t, http.MethodPost, "/api/v1/rentals", a.rentalBody("2025-01-12T00:00:00Z", "2025-01-10T00:00:00Z", 1))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/v1/rentals", a.rentalBody("2025-01-10T00:00:00Z", "2025-01-12T00:00:00Z", 0))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/rentals", strings.NewReader("{not json"))
	raw := httptest.NewRecorder()
	a.srv.Handler().ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)

	body := a.rentalBody("2025-01-10T00:00:00Z", "2025-01-12T00:00:00Z", 1)
	body["client_id"] = 999
	rec = a.do(t, http.MethodPost, "/api/v1/rentals", body)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRentalLifecycleOverHTTP(t *testing.T) {
	a := newTestAPI(t, config.APIConfig{})

	rec := a.do(t, http.MethodPost, "/api/v1/rentals", a.rentalBody("2025-01-10T00:00:00Z", "2025-01-12T00:00:00Z", 1))
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[models.Rental](t, rec)
	base := fmt.Sprintf("/api/v1/rentals/%d", created.ID)

	rec = a.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodPut, base, a.rentalBody("2025-01-10T00:00:00Z", "2025-01-12T00:00:00Z", 3))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(300), decode[models.Rental](t, rec).Total)

	rec = a.do(t, http.MethodPost, base+"/status?status=PICKED_UP", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPost, base+"/status?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPut, base+"/status?status=delivered", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StatusDelivered, decode[models.Rental](t, rec).Status)

	rec = a.do(t, http.MethodDelete, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestPaymentsOverHTTP(t *testing.T) {
	a := newTestAPI(t, config.APIConfig{})

	rec := a.do(t, http.MethodPost, "/api/v1/rentals", a.rentalBody("2025-01-10T00:00:00Z", "2025-01-12T00:00:00Z", 3))
	require.Equal(t, http.StatusCreated, rec.Code)
	rental := decode[models.Rental](t, rec)
	base := fmt.Sprintf("/api/v1/rentals/%d", rental.ID)

	rec = a.do(t, http.MethodPost, base+"/payments", map[string]any{"amount": 100, "note": "cash"})
	require.Equal(t, http.StatusCreated, rec.Code)
	first := decode[models.Payment](t, rec)
	assert.False(t, first.PaidAt.IsZero())

	rec = a.do(t, http.MethodPost, base+"/payments", map[string]any{"amount": 50, "paid_at": "2025-01-11T10:00:00Z"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.do(t, http.MethodPost, base+"/payments", map[string]any{"amount": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/v1/rentals/999/payments", map[string]any{"amount": 10})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodGet, base+"/payments/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[models.PaymentSummary](t, rec)
	assert.Equal(t, int64(300), summary.Total)
	assert.Equal(t, int64(150), summary.TotalPaid)
	assert.Equal(t, int64(150), summary.Pending)

	rec = a.do(t, http.MethodPost, "/api/v1/payments", map[string]any{"rental_id": rental.ID, "amount": 25, "paid_at": "2025-02-03T09:00:00Z"})
	require.Equal(t, http.StatusCreated, rec.Code)
	third := decode[models.Payment](t, rec)

	rec = a.do(t, http.MethodPost, "/api/v1/payments", map[string]any{"amount": 25})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/v1/payments?from=2025-01-01&to=2025-02-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var window struct {
		Payments []models.Payment `json:"payments"`
		Total    int64            `json:"total"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&window))
	require.Len(t, window.Payments, 1)
	assert.Equal(t, int64(50), window.Total)

	rec = a.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/payments/%d", third.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodGet, base+"/payments", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[map[string][]models.Payment](t, rec)["payments"], 2)

	rec = a.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/payments/%d", first.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodGet, base+"/balance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(250), decode[map[string]int64](t, rec)["pending"])

	rec = a.do(t, http.MethodGet, "/api/v1/rentals/999/balance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(0), decode[map[string]int64](t, rec)["pending"])

	rec = a.do(t, http.MethodGet, "/api/v1/rentals/999/payments/summary", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodGet, fmt.Sprintf("/api/v1/payments/%d", first.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/payments/%d", first.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAvailabilityOverHTTP(t *testing.T) {
	a := newTestAPI(t, config.APIConfig{})

	rec := a.do(t, http.MethodPost, "/api/v1/rentals", a.rentalBody("2025-01-10T00:00:00Z", "2025-01-12T00:00:00Z", 2))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/v1/products/1/availability?start=2025-01-12&end=2025-01-13", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[models.Availability](t, rec)
	assert.Equal(t, int64(3), got.TotalStock)
	assert.Equal(t, int64(2), got.Committed)
	assert.Equal(t, int64(1), got.Available)

	rec = a.do(t, http.MethodGet, "/api/v1/availability?start=2025-01-13T00:00:00Z&end=2025-01-20T00:00:00Z", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[map[string][]models.Availability](t, rec)
	require.Len(t, all["results"], 1)
	assert.Equal(t, int64(3), all["results"][0].Available)

	rec = a.do(t, http.MethodGet, "/api/v1/products/1/availability?start=2025-01-12", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/v1/products/1/availability?start=2025-01-15&end=2025-01-12", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/v1/products/42/availability?start=2025-01-12&end=2025-01-13", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/v1/products/abc/availability?start=2025-01-12&end=2025-01-13", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCatalogOverHTTP(t *testing.T) {
	a := newTestAPI(t, config.APIConfig{})

	rec := a.do(t, http.MethodPost, "/api/v1/products", map[string]any{"name": "Table", "price": 250, "stock": 4})
	require.Equal(t, http.StatusCreated, rec.Code)
	table := decode[models.Product](t, rec)
	assert.NotZero(t, table.ID)

	rec = a.do(t, http.MethodPost, "/api/v1/products", map[string]any{"name": " ", "stock": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPut, fmt.Sprintf("/api/v1/products/%d", table.ID), map[string]any{"name": "Table XL", "price": 300, "stock": 6})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Table XL", decode[models.Product](t, rec).Name)

	rec = a.do(t, http.MethodPut, "/api/v1/products/999", map[string]any{"name": "Ghost", "stock": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/v1/products", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[map[string][]models.Product](t, rec)["products"], 2)

	rec = a.do(t, http.MethodPost, "/api/v1/clients", map[string]any{"name": "Bob", "phone": "+100"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = a.do(t, http.MethodPost, "/api/v1/clients", map[string]any{"name": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = a.do(t, http.MethodGet, "/api/v1/clients", nil)
	assert.Len(t, decode[map[string][]models.Client](t, rec)["clients"], 2)

	rec = a.do(t, http.MethodPost, "/api/v1/users", map[string]any{"username": "driver"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = a.do(t, http.MethodGet, "/api/v1/users", nil)
	assert.Len(t, decode[map[string][]models.User](t, rec)["users"], 2)
}

func TestCatalogEntriesByID(t *testing.T) {
	a := newTestAPI(t, config.APIConfig{})

	rec := a.do(t, http.MethodPost, "/api/v1/rentals", a.rentalBody("2025-01-10T00:00:00Z", "2025-01-12T00:00:00Z", 2))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.do(t, http.MethodGet, fmt.Sprintf("/api/v1/clients/%d", a.client.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ana", decode[models.Client](t, rec).Name)

	rec = a.do(t, http.MethodPut, fmt.Sprintf("/api/v1/clients/%d", a.client.ID), map[string]any{"name": "Ana Maria"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ana Maria", decode[models.Client](t, rec).Name)

	rec = a.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/clients/%d", a.client.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = a.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/users/%d", a.user.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = a.do(t, http.MethodDelete, "/api/v1/products/1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/v1/clients/999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = a.do(t, http.MethodDelete, "/api/v1/clients/999", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/v1/users", map[string]any{"username": "driver"})
	require.Equal(t, http.StatusCreated, rec.Code)
	driver := decode[models.User](t, rec)
	rec = a.do(t, http.MethodPut, fmt.Sprintf("/api/v1/users/%d", driver.ID), map[string]any{"username": "driver", "full_name": "Night Driver"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Night Driver", decode[models.User](t, rec).FullName)
	rec = a.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/users/%d", driver.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(t, http.MethodGet, fmt.Sprintf("/api/v1/users/%d", driver.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// two chairs are out on Jan 10-12, so stock 1 is refused and stock 2 accepted
	rec = a.do(t, http.MethodPut, "/api/v1/products/1", map[string]any{"name": "Chair", "price": 100, "stock": 1})
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = a.do(t, http.MethodPut, "/api/v1/products/1", map[string]any{"name": "Chair", "price": 100, "stock": 2})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/v1/products", map[string]any{"name": "Heater", "stock": 1})
	require.Equal(t, http.StatusCreated, rec.Code)
	heater := decode[models.Product](t, rec)
	rec = a.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/products/%d", heater.ID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDashboardOverHTTP(t *testing.T) {
	a := newTestAPI(t, config.APIConfig{})
	a.srv.now = func() time.Time { return time.Date(2025, time.January, 20, 12, 0, 0, 0, time.UTC) }

	rec := a.do(t, http.MethodPost, "/api/v1/rentals", a.rentalBody("2025-01-10T00:00:00Z", "2025-01-12T00:00:00Z", 2))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/v1/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[models.DashboardStats](t, rec)
	assert.Equal(t, int64(1), stats.ToDeliver)
	assert.Equal(t, int64(0), stats.ToPickUp)
	assert.Equal(t, int64(200), stats.MonthIncome)
}

func TestExportOverHTTP(t *testing.T) {
	a := newTestAPI(t, config.APIConfig{})

	rec := a.do(t, http.MethodPost, "/api/v1/rentals", a.rentalBody("2025-01-10T00:00:00Z", "2025-01-12T00:00:00Z", 2))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/v1/exports/rentals?from=2025-01-01&to=2025-02-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "rentals_2025-01-01_to_2025-02-01.xlsx")

	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{export.SheetRentals, export.SheetPayments, export.SheetOccupancy}, f.GetSheetList())

	rec = a.do(t, http.MethodGet, "/api/v1/exports/rentals?from=2025-02-01&to=2025-01-01", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/v1/exports/rentals?from=jan", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServerOverRealListener(t *testing.T) {
	a := newTestAPI(t, config.APIConfig{})
	ts := httptest.NewServer(a.srv.Handler())
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/api/v1/products/1")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var p models.Product
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
	assert.Equal(t, "Chair", p.Name)
}
