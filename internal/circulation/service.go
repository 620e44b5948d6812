package circulation

import (
	"context"

	"github.com/google/uuid"

	"biblioteca/internal/models"
)

// Service is the loan ledger: checkout, return, reservations and the
// listings over them.
type Service interface {
	Checkout(ctx context.Context, bookID, patronID uuid.UUID) (*models.Loan, error)
	Return(ctx context.Context, loanID uuid.UUID) (*ReturnOutcome, error)
	Reserve(ctx context.Context, bookID, patronID uuid.UUID) (*CheckoutResult, error)
	CancelReservation(ctx context.Context, reservationID uuid.UUID) (*models.Reservation, error)

	GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error)
	ListLoans(ctx context.Context, patronID uuid.UUID, openOnly bool) ([]models.Loan, error)
	ListReservations(ctx context.Context, bookID uuid.UUID) ([]models.Reservation, error)
}
