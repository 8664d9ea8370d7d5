package service

import (
	"context"
	"time"

	"rentalhub/internal/domain"
	"rentalhub/internal/events"
	"rentalhub/internal/metrics"
	"rentalhub/internal/models"

	"github.com/rs/zerolog"
)

type PaymentInput struct {
	RentalID int64
	Amount   int64
	// PaidAt defaults to the submission time when zero.
	PaidAt time.Time
	Note   string
}

// PaymentService reconciles a rental's total against its recorded payments.
// It never changes rental state.
type PaymentService struct {
	store    domain.Store
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewPaymentService(store domain.Store, eventBus domain.EventPublisher, logger *zerolog.Logger) *PaymentService {
	return &PaymentService{
		store:    store,
		eventBus: eventBus,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *PaymentService) TotalPaid(ctx context.Context, rentalID int64) (int64, error) {
	return s.store.SumPaymentsByRental(ctx, rentalID)
}

// PendingBalance is total minus paid. It is 0 for an unknown rental and may be
// negative when the rental was overpaid.
func (s *PaymentService) PendingBalance(ctx context.Context, rentalID int64) (int64, error) {
	rental, err := s.store.GetRental(ctx, rentalID)
	if err != nil {
		return 0, err
	}
	if rental == nil {
		return 0, nil
	}
	paid, err := s.store.SumPaymentsByRental(ctx, rentalID)
	if err != nil {
		return 0, err
	}
	return rental.Total - paid, nil
}

// Summary is PendingBalance with an explicit NotFoundError for unknown rentals.
func (s *PaymentService) Summary(ctx context.Context, rentalID int64) (*models.PaymentSummary, error) {
	rental, err := s.store.GetRental(ctx, rentalID)
	if err != nil {
		return nil, err
	}
	if rental == nil {
		return nil, &NotFoundError{Entity: "rental", ID: rentalID}
	}
	paid, err := s.store.SumPaymentsByRental(ctx, rentalID)
	if err != nil {
		return nil, err
	}
	return &models.PaymentSummary{
		RentalID:  rental.ID,
		Total:     rental.Total,
		TotalPaid: paid,
		Pending:   rental.Total - paid,
		Status:    rental.Status,
	}, nil
}

// RecordPayment stores a payment. Overpayment is accepted.
func (s *PaymentService) RecordPayment(ctx context.Context, in PaymentInput) (*models.Payment, error) {
	if in.Amount <= 0 {
		return nil, &InvalidAmountError{Amount: in.Amount}
	}

	rental, err := s.store.GetRental(ctx, in.RentalID)
	if err != nil {
		return nil, err
	}
	if rental == nil {
		return nil, &NotFoundError{Entity: "rental", ID: in.RentalID}
	}

	paidAt := in.PaidAt
	if paidAt.IsZero() {
		paidAt = s.now()
	}

	payment := &models.Payment{
		RentalID: in.RentalID,
		Amount:   in.Amount,
		PaidAt:   paidAt,
		Note:     in.Note,
	}
	if err := s.store.CreatePayment(ctx, payment); err != nil {
		s.logger.Error().Err(err).Int64("rental_id", in.RentalID).Msg("create payment")
		return nil, err
	}

	metrics.IncPayment()
	s.publishEvent(events.EventPaymentRecorded, payment)
	return payment, nil
}

// DeletePayment returns the removed payment, or (nil, nil) when it did not exist.
func (s *PaymentService) DeletePayment(ctx context.Context, id int64) (*models.Payment, error) {
	payment, err := s.store.GetPayment(ctx, id)
	if err != nil || payment == nil {
		return nil, err
	}
	if err := s.store.DeletePayment(ctx, id); err != nil {
		return nil, err
	}
	s.publishEvent(events.EventPaymentDeleted, payment)
	return payment, nil
}

func (s *PaymentService) GetPayment(ctx context.Context, id int64) (*models.Payment, error) {
	return s.store.GetPayment(ctx, id)
}

// ListPayments returns the rental's payments, oldest first.
func (s *PaymentService) ListPayments(ctx context.Context, rentalID int64) ([]*models.Payment, error) {
	return s.store.ListPaymentsByRental(ctx, rentalID)
}

func (s *PaymentService) PaymentsBetween(ctx context.Context, from, to time.Time) ([]*models.Payment, error) {
	return s.store.ListPaymentsBetween(ctx, from, to)
}

func (s *PaymentService) SumBetween(ctx context.Context, from, to time.Time) (int64, error) {
	return s.store.SumPaymentsBetween(ctx, from, to)
}

func (s *PaymentService) publishEvent(eventType string, p *models.Payment) {
	if s.eventBus == nil {
		return
	}
	payload := events.PaymentEventPayload{
		PaymentID: p.ID,
		RentalID:  p.RentalID,
		Amount:    p.Amount,
		PaidAt:    p.PaidAt,
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("payment_id", p.ID).Msg("publish event error")
	}
}
