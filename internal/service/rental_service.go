package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"rentalhub/internal/domain"
	"rentalhub/internal/events"
	"rentalhub/internal/metrics"
	"rentalhub/internal/models"

	"github.com/rs/zerolog"
)

// RentalInput is the full description of a rental as submitted by a caller.
type RentalInput struct {
	ClientID int64
	UserID   int64
	Address  string
	StartAt  time.Time
	EndAt    time.Time
	Items    []models.ItemRequest
}

func (in RentalInput) window() models.Window {
	return models.NewWindow(in.StartAt, in.EndAt)
}

type RentalService struct {
	store             domain.Store
	locker            domain.Locker
	eventBus          domain.EventPublisher
	availability      *AvailabilityCalculator
	validator         *Validator
	strictTransitions bool
	logger            *zerolog.Logger
	now               func() time.Time
}

func NewRentalService(
	store domain.Store,
	locker domain.Locker,
	eventBus domain.EventPublisher,
	strictTransitions bool,
	logger *zerolog.Logger,
) *RentalService {
	availability := NewAvailabilityCalculator()
	return &RentalService{
		store:             store,
		locker:            locker,
		eventBus:          eventBus,
		availability:      availability,
		validator:         NewValidator(availability),
		strictTransitions: strictTransitions,
		logger:            logger,
		now:               time.Now,
	}
}

func (s *RentalService) CreateRental(ctx context.Context, in RentalInput) (*models.Rental, error) {
	release, err := s.lockProducts(ctx, requestedProductIDs(in.Items))
	if err != nil {
		return nil, err
	}
	defer release()

	var created *models.Rental
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		if err := s.resolveParties(ctx, tx, in.ClientID, in.UserID); err != nil {
			return err
		}
		if err := tx.LockProducts(ctx, requestedProductIDs(in.Items)); err != nil {
			return err
		}

		resolved, err := s.validator.Validate(ctx, tx, in.Items, in.window(), 0)
		if err != nil {
			return err
		}

		now := s.now()
		rental := &models.Rental{
			StartAt:   in.StartAt,
			EndAt:     in.EndAt,
			Address:   in.Address,
			Status:    models.StatusCreated,
			ClientID:  in.ClientID,
			UserID:    in.UserID,
			Items:     buildItems(resolved),
			CreatedAt: now,
			UpdatedAt: now,
		}
		rental.Total = rental.ComputeTotal()

		if err := tx.SaveRental(ctx, rental); err != nil {
			return err
		}
		created = rental
		return nil
	})
	if err != nil {
		s.logRejection(err, "create", 0)
		return nil, err
	}

	metrics.IncRental("create")
	s.publishEvent(events.EventRentalCreated, created)
	s.logger.Info().
		Int64("rental_id", created.ID).
		Int64("client_id", created.ClientID).
		Int64("total", created.Total).
		Msg("rental created")
	return created, nil
}

// UpdateRental replaces the rental's data and items wholesale. The rental's own
// reservation is excluded from the availability check.
func (s *RentalService) UpdateRental(ctx context.Context, id int64, in RentalInput) (*models.Rental, error) {
	release, err := s.lockProducts(ctx, requestedProductIDs(in.Items))
	if err != nil {
		return nil, err
	}
	defer release()

	var updated *models.Rental
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		rental, err := tx.GetRental(ctx, id)
		if err != nil {
			return err
		}
		if rental == nil {
			return &NotFoundError{Entity: "rental", ID: id}
		}
		rental.Items = nil

		if err := s.resolveParties(ctx, tx, in.ClientID, in.UserID); err != nil {
			return err
		}
		if err := tx.LockProducts(ctx, requestedProductIDs(in.Items)); err != nil {
			return err
		}

		resolved, err := s.validator.Validate(ctx, tx, in.Items, in.window(), id)
		if err != nil {
			return err
		}

		rental.Address = in.Address
		rental.StartAt = in.StartAt
		rental.EndAt = in.EndAt
		rental.ClientID = in.ClientID
		rental.UserID = in.UserID
		rental.Items = buildItems(resolved)
		rental.Total = rental.ComputeTotal()
		rental.UpdatedAt = s.now()

		if err := tx.SaveRental(ctx, rental); err != nil {
			return err
		}
		updated = rental
		return nil
	})
	if err != nil {
		s.logRejection(err, "update", id)
		return nil, err
	}

	metrics.IncRental("update")
	s.publishEvent(events.EventRentalUpdated, updated)
	return updated, nil
}

// UpdateRentalStatus moves a rental to a new status. Unknown values fail with
// InvalidStatusError; in strict mode the transition graph is enforced.
func (s *RentalService) UpdateRentalStatus(ctx context.Context, id int64, rawStatus string) (*models.Rental, error) {
	current, err := s.store.GetRental(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, &NotFoundError{Entity: "rental", ID: id}
	}

	// Only a move back into a holding status needs the product locks.
	var lockIDs []int64
	if next, perr := models.ParseRentalStatus(rawStatus); perr == nil && !current.Status.IsActive() && next.IsActive() {
		lockIDs = current.ProductIDs()
	}
	release, err := s.lockProducts(ctx, lockIDs)
	if err != nil {
		return nil, err
	}
	defer release()

	var changed *models.Rental
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		rental, err := tx.GetRental(ctx, id)
		if err != nil {
			return err
		}
		if rental == nil {
			return &NotFoundError{Entity: "rental", ID: id}
		}

		next, err := models.ParseRentalStatus(rawStatus)
		if err != nil {
			return err
		}
		if next == rental.Status {
			changed = rental
			return nil
		}
		if s.strictTransitions && !CanTransition(rental.Status, next) {
			return &InvalidTransitionError{From: rental.Status, To: next}
		}

		if !rental.Status.IsActive() && next.IsActive() {
			if err := s.revalidate(ctx, tx, rental); err != nil {
				return err
			}
		}

		if err := tx.UpdateRentalStatus(ctx, id, rental.Version, next); err != nil {
			return err
		}
		rental.Status = next
		rental.Version++
		rental.UpdatedAt = s.now()
		changed = rental
		return nil
	})
	if err != nil {
		s.logRejection(err, "status", id)
		return nil, err
	}

	metrics.IncRental("status")
	s.publishEvent(events.EventRentalStatusChanged, changed)
	return changed, nil
}

// DeleteRental removes a rental with its items and payments and returns the
// removed snapshot. A missing rental yields (nil, nil).
func (s *RentalService) DeleteRental(ctx context.Context, id int64) (*models.Rental, error) {
	var deleted *models.Rental
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		rental, err := tx.GetRental(ctx, id)
		if err != nil || rental == nil {
			return err
		}
		if err := tx.DeleteRental(ctx, id); err != nil {
			return err
		}
		deleted = rental
		return nil
	})
	if err != nil {
		return nil, err
	}
	if deleted == nil {
		return nil, nil
	}

	metrics.IncRental("delete")
	s.publishEvent(events.EventRentalDeleted, deleted)
	return deleted, nil
}

func (s *RentalService) GetRental(ctx context.Context, id int64) (*models.Rental, error) {
	return s.store.GetRental(ctx, id)
}

func (s *RentalService) ListRentals(ctx context.Context) ([]*models.Rental, error) {
	return s.store.ListRentals(ctx)
}

// GetAvailability reports stock for one product over a window.
func (s *RentalService) GetAvailability(ctx context.Context, productID int64, w models.Window) (*models.Availability, error) {
	if !w.Valid() {
		return nil, &InvalidWindowError{Start: w.Start, End: w.End}
	}
	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, &NotFoundError{Entity: "product", ID: productID}
	}
	return s.availability.Availability(ctx, s.store, product, w)
}

// ListAvailability reports stock for every catalog product over a window.
func (s *RentalService) ListAvailability(ctx context.Context, w models.Window) ([]*models.Availability, error) {
	if !w.Valid() {
		return nil, &InvalidWindowError{Start: w.Start, End: w.End}
	}
	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Availability, 0, len(products))
	for _, p := range products {
		a, err := s.availability.Availability(ctx, s.store, p, w)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// CanTransition reports whether the status graph allows from -> to.
func CanTransition(from, to models.RentalStatus) bool {
	switch from {
	case models.StatusCreated:
		return to == models.StatusDelivered || to == models.StatusCancelled
	case models.StatusDelivered:
		return to == models.StatusPickedUp
	default:
		return false
	}
}

func (s *RentalService) resolveParties(ctx context.Context, tx domain.Tx, clientID, userID int64) error {
	client, err := tx.GetClient(ctx, clientID)
	if err != nil {
		return err
	}
	if client == nil {
		return &NotFoundError{Entity: "client", ID: clientID}
	}

	user, err := tx.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return &NotFoundError{Entity: "user", ID: userID}
	}
	return nil
}

// revalidate checks that a rental re-entering a holding status still fits the stock.
func (s *RentalService) revalidate(ctx context.Context, tx domain.Tx, rental *models.Rental) error {
	ids := rental.ProductIDs()
	if err := tx.LockProducts(ctx, ids); err != nil {
		return err
	}
	items := make([]models.ItemRequest, 0, len(rental.Items))
	for _, it := range rental.Items {
		items = append(items, models.ItemRequest{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	_, err := s.validator.Validate(ctx, tx, items, rental.Window(), rental.ID)
	return err
}

// lockProducts takes the per-product locks in ascending id order.
func (s *RentalService) lockProducts(ctx context.Context, ids []int64) (func(), error) {
	if s.locker == nil || len(ids) == 0 {
		return func() {}, nil
	}

	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	start := time.Now()
	held := make([]domain.Unlocker, 0, len(sorted))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			if err := held[i].Release(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn().Err(err).Msg("release product lock")
			}
		}
	}

	for _, id := range sorted {
		u, err := s.locker.Acquire(ctx, productLockKey(id))
		if err != nil {
			release()
			return nil, fmt.Errorf("lock product %d: %w", id, err)
		}
		held = append(held, u)
	}
	metrics.ObserveLockWait(time.Since(start))
	return release, nil
}

func productLockKey(id int64) string {
	return "product:" + strconv.FormatInt(id, 10)
}

func buildItems(resolved []ResolvedItem) []models.RentalItem {
	items := make([]models.RentalItem, 0, len(resolved))
	for _, r := range resolved {
		items = append(items, models.RentalItem{
			ProductID: r.Product.ID,
			Quantity:  r.Quantity,
			UnitPrice: r.UnitPrice,
		})
	}
	return items
}

func (s *RentalService) logRejection(err error, op string, rentalID int64) {
	event := s.logger.Warn()
	if !IsValidationError(err) && !IsNotFound(err) {
		event = s.logger.Error()
	}
	event.Err(err).Str("operation", op).Int64("rental_id", rentalID).Msg("rental operation rejected")
}

func (s *RentalService) publishEvent(eventType string, rental *models.Rental) {
	if s.eventBus == nil {
		return
	}

	payload := events.RentalEventPayload{
		RentalID:  rental.ID,
		ClientID:  rental.ClientID,
		UserID:    rental.UserID,
		Status:    string(rental.Status),
		StartAt:   rental.StartAt,
		EndAt:     rental.EndAt,
		Total:     rental.Total,
		ItemCount: len(rental.Items),
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("rental_id", rental.ID).Msg("publish event error")
	}
}
