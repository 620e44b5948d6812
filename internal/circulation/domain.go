package circulation

import (
	"time"

	"github.com/google/uuid"

	"biblioteca/internal/models"
)

// CheckoutResult is what reserve returns: either a loan (a copy was on the
// shelf) or a queued reservation.
type CheckoutResult struct {
	Loan        *models.Loan        `json:"loan,omitempty"`
	Reservation *models.Reservation `json:"reservation,omitempty"`
}

// ReturnOutcome reports the closed loan and, when a reservation was
// promoted, the reservation and the loan it became.
type ReturnOutcome struct {
	Loan                 *models.Loan        `json:"loan"`
	FulfilledReservation *models.Reservation `json:"fulfilled_reservation,omitempty"`
	PromotedLoan         *models.Loan        `json:"promoted_loan,omitempty"`
}

// LoanCreatedEvent is recorded when a checkout opens a loan.
type LoanCreatedEvent struct {
	LoanID   uuid.UUID `json:"loan_id"`
	BookID   uuid.UUID `json:"book_id"`
	PatronID uuid.UUID `json:"patron_id"`
	DueAt    time.Time `json:"due_at"`
}

// LoanReturnedEvent is recorded when a loan closes.
type LoanReturnedEvent struct {
	LoanID     uuid.UUID `json:"loan_id"`
	BookID     uuid.UUID `json:"book_id"`
	PatronID   uuid.UUID `json:"patron_id"`
	ReturnedAt time.Time `json:"returned_at"`
}

// ReservationPlacedEvent is recorded when a patron queues for a book.
type ReservationPlacedEvent struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	BookID        uuid.UUID `json:"book_id"`
	PatronID      uuid.UUID `json:"patron_id"`
}

// ReservationFulfilledEvent is recorded when a return promotes the oldest
// pending reservation into a loan.
type ReservationFulfilledEvent struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	LoanID        uuid.UUID `json:"loan_id"`
}

// ReservationCancelledEvent is recorded when a pending reservation is
// cancelled by the patron.
type ReservationCancelledEvent struct {
	ReservationID uuid.UUID `json:"reservation_id"`
}
