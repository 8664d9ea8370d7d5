package api

import (
	"net/http"
	"time"

	"rentalhub/internal/models"
	"rentalhub/internal/service"
)

type rentalRequest struct {
	ClientID int64                `json:"client_id"`
	UserID   int64                `json:"user_id"`
	Address  string               `json:"address"`
	StartAt  time.Time            `json:"start_at"`
	EndAt    time.Time            `json:"end_at"`
	Items    []models.ItemRequest `json:"items"`
}

func (req rentalRequest) input() service.RentalInput {
	return service.RentalInput{
		ClientID: req.ClientID,
		UserID:   req.UserID,
		Address:  req.Address,
		StartAt:  req.StartAt,
		EndAt:    req.EndAt,
		Items:    req.Items,
	}
}

type paymentRequest struct {
	RentalID int64      `json:"rental_id,omitempty"`
	Amount   int64      `json:"amount"`
	PaidAt   *time.Time `json:"paid_at,omitempty"`
	Note     string     `json:"note"`
}

func (req paymentRequest) input(rentalID int64) service.PaymentInput {
	in := service.PaymentInput{RentalID: rentalID, Amount: req.Amount, Note: req.Note}
	if req.PaidAt != nil {
		in.PaidAt = *req.PaidAt
	}
	return in
}

func (s *HTTPServer) handleListRentals(w http.ResponseWriter, r *http.Request) {
	rentals, err := s.svc.Rentals.ListRentals(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if rentals == nil {
		rentals = []*models.Rental{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rentals": rentals})
}

func (s *HTTPServer) handleCreateRental(w http.ResponseWriter, r *http.Request) {
	var req rentalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	rental, err := s.svc.Rentals.CreateRental(r.Context(), req.input())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rental)
}

func (s *HTTPServer) handleGetRental(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	rental, err := s.svc.Rentals.GetRental(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if rental == nil {
		s.fail(w, r, &service.NotFoundError{Entity: "rental", ID: id})
		return
	}
	writeJSON(w, http.StatusOK, rental)
}

func (s *HTTPServer) handleUpdateRental(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var req rentalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	rental, err := s.svc.Rentals.UpdateRental(r.Context(), id, req.input())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rental)
}

func (s *HTTPServer) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	rental, err := s.svc.Rentals.UpdateRentalStatus(r.Context(), id, r.URL.Query().Get("status"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rental)
}

// handleDeleteRental answers 204 when there was nothing to delete.
func (s *HTTPServer) handleDeleteRental(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	rental, err := s.svc.Rentals.DeleteRental(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if rental == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, rental)
}

func (s *HTTPServer) handleListPayments(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	payments, err := s.svc.Payments.ListPayments(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if payments == nil {
		payments = []*models.Payment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"payments": payments})
}

func (s *HTTPServer) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var req paymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	payment, err := s.svc.Payments.RecordPayment(r.Context(), req.input(id))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, payment)
}

func (s *HTTPServer) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.RentalID <= 0 {
		s.fail(w, r, &service.InvalidFieldError{Field: "rental_id", Reason: "must be a positive integer"})
		return
	}

	payment, err := s.svc.Payments.RecordPayment(r.Context(), req.input(req.RentalID))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, payment)
}

// handlePaymentsBetween lists payments with from <= paid_at < to, plus their sum.
func (s *HTTPServer) handlePaymentsBetween(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseBound("from", q.Get("from"), false)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	to, err := parseBound("to", q.Get("to"), false)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	payments, err := s.svc.Payments.PaymentsBetween(r.Context(), from, to)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	total, err := s.svc.Payments.SumBetween(r.Context(), from, to)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if payments == nil {
		payments = []*models.Payment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"payments": payments, "total": total})
}

func (s *HTTPServer) handlePaymentSummary(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	summary, err := s.svc.Payments.Summary(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *HTTPServer) handlePendingBalance(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	pending, err := s.svc.Payments.PendingBalance(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"rental_id": id, "pending": pending})
}

func (s *HTTPServer) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	payment, err := s.svc.Payments.GetPayment(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if payment == nil {
		s.fail(w, r, &service.NotFoundError{Entity: "payment", ID: id})
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

func (s *HTTPServer) handleDeletePayment(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	payment, err := s.svc.Payments.DeletePayment(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if payment == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}
