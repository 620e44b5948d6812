package circulation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"biblioteca/internal/models"
	"biblioteca/internal/storage"
	"biblioteca/pkg/eventstore"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// service implements the Service interface. The store performs every
// copy-count mutation atomically; this layer adds patron eligibility,
// due-date policy and the audit journal.
type service struct {
	store      storage.Store
	events     eventstore.Appender
	logger     *zap.Logger
	loanPeriod time.Duration
}

// NewService creates a new circulation service instance. loanPeriod is how
// long a checkout runs before it is overdue.
func NewService(store storage.Store, events eventstore.Appender, logger *zap.Logger, loanPeriod time.Duration) Service {
	return &service{
		store:      store,
		events:     events,
		logger:     logger,
		loanPeriod: loanPeriod,
	}
}

func (s *service) recordEvent(ctx context.Context, aggregateID uuid.UUID, aggregateType, eventType string, expectedVersion int, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("marshal event data", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	event := eventstore.Event{
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		EventData:     jsonData,
		Version:       expectedVersion + 1,
	}
	if err := s.events.AppendEvents(ctx, aggregateID, aggregateType, expectedVersion, []eventstore.Event{event}); err != nil {
		s.logger.Warn("append audit event",
			zap.String("event_type", eventType),
			zap.String("aggregate_id", aggregateID.String()),
			zap.Error(err),
		)
	}
}

// checkPatron verifies the patron exists and is active. The status check
// runs before the store transaction, so a suspension landing in between
// can still slip through one checkout; the store re-verifies existence
// inside the transaction.
func (s *service) checkPatron(ctx context.Context, patronID uuid.UUID) error {
	patron, err := s.store.GetPatron(ctx, patronID)
	if err != nil {
		return err
	}
	if patron.Status != models.PatronActive {
		return &storage.ValidationError{Field: "patron_id", Reason: "patron is not active"}
	}
	return nil
}

func (s *service) Checkout(ctx context.Context, bookID, patronID uuid.UUID) (*models.Loan, error) {
	if err := s.checkPatron(ctx, patronID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	loan, err := s.store.Checkout(ctx, bookID, patronID, now, now.Add(s.loanPeriod))
	if err != nil {
		return nil, fmt.Errorf("checkout: %w", err)
	}

	s.recordEvent(ctx, loan.ID, "loan", "LoanCreated", 0, LoanCreatedEvent{
		LoanID:   loan.ID,
		BookID:   loan.BookID,
		PatronID: loan.PatronID,
		DueAt:    loan.DueAt,
	})
	return loan, nil
}

func (s *service) Return(ctx context.Context, loanID uuid.UUID) (*ReturnOutcome, error) {
	now := time.Now().UTC()
	result, err := s.store.Return(ctx, loanID, now, s.loanPeriod)
	if err != nil {
		return nil, fmt.Errorf("return: %w", err)
	}

	s.recordEvent(ctx, result.Loan.ID, "loan", "LoanReturned", 1, LoanReturnedEvent{
		LoanID:     result.Loan.ID,
		BookID:     result.Loan.BookID,
		PatronID:   result.Loan.PatronID,
		ReturnedAt: now,
	})

	outcome := &ReturnOutcome{Loan: result.Loan}
	if result.PromotedLoan != nil {
		outcome.FulfilledReservation = result.FulfilledReservation
		outcome.PromotedLoan = result.PromotedLoan

		s.recordEvent(ctx, result.PromotedLoan.ID, "loan", "LoanCreated", 0, LoanCreatedEvent{
			LoanID:   result.PromotedLoan.ID,
			BookID:   result.PromotedLoan.BookID,
			PatronID: result.PromotedLoan.PatronID,
			DueAt:    result.PromotedLoan.DueAt,
		})
		s.recordEvent(ctx, result.FulfilledReservation.ID, "reservation", "ReservationFulfilled", 1, ReservationFulfilledEvent{
			ReservationID: result.FulfilledReservation.ID,
			LoanID:        result.PromotedLoan.ID,
		})
	}
	return outcome, nil
}

func (s *service) Reserve(ctx context.Context, bookID, patronID uuid.UUID) (*CheckoutResult, error) {
	if err := s.checkPatron(ctx, patronID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	result, err := s.store.Reserve(ctx, bookID, patronID, now, now.Add(s.loanPeriod))
	if err != nil {
		return nil, fmt.Errorf("reserve: %w", err)
	}

	if result.Loan != nil {
		s.recordEvent(ctx, result.Loan.ID, "loan", "LoanCreated", 0, LoanCreatedEvent{
			LoanID:   result.Loan.ID,
			BookID:   result.Loan.BookID,
			PatronID: result.Loan.PatronID,
			DueAt:    result.Loan.DueAt,
		})
		return &CheckoutResult{Loan: result.Loan}, nil
	}

	s.recordEvent(ctx, result.Reservation.ID, "reservation", "ReservationPlaced", 0, ReservationPlacedEvent{
		ReservationID: result.Reservation.ID,
		BookID:        bookID,
		PatronID:      patronID,
	})
	return &CheckoutResult{Reservation: result.Reservation}, nil
}

func (s *service) CancelReservation(ctx context.Context, reservationID uuid.UUID) (*models.Reservation, error) {
	res, err := s.store.CancelReservation(ctx, reservationID)
	if err != nil {
		return nil, fmt.Errorf("cancel reservation: %w", err)
	}

	s.recordEvent(ctx, res.ID, "reservation", "ReservationCancelled", 1, ReservationCancelledEvent{
		ReservationID: res.ID,
	})
	return res, nil
}

func (s *service) GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	return s.store.GetLoan(ctx, id)
}

func (s *service) ListLoans(ctx context.Context, patronID uuid.UUID, openOnly bool) ([]models.Loan, error) {
	return s.store.ListLoans(ctx, patronID, openOnly)
}

func (s *service) ListReservations(ctx context.Context, bookID uuid.UUID) ([]models.Reservation, error) {
	return s.store.ListReservations(ctx, bookID)
}
