package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"biblioteca/internal/models"
	"biblioteca/internal/storage"
)

const loanColumns = `id, book_id, patron_id, checked_out_at, due_at, returned_at`

// lockBook locks the book row for the rest of the transaction and returns
// its copy counts. Every copy-count mutation for one book funnels through
// this lock, which keeps 0 <= available_copies <= total_copies under
// concurrent checkouts and returns.
func lockBook(ctx context.Context, tx *sqlx.Tx, bookID uuid.UUID) (total, available int, err error) {
	err = tx.QueryRowContext(ctx, `
		SELECT total_copies, available_copies
		FROM books
		WHERE id = $1
		FOR UPDATE
	`, bookID).Scan(&total, &available)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, storage.ErrNotFound
	}
	if err != nil {
		return 0, 0, fmt.Errorf("lock book row: %w", err)
	}
	return total, available, nil
}

func patronExists(ctx context.Context, tx *sqlx.Tx, patronID uuid.UUID) error {
	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM patrons WHERE id = $1)`, patronID).Scan(&exists); err != nil {
		return fmt.Errorf("check patron: %w", err)
	}
	if !exists {
		return storage.ErrNotFound
	}
	return nil
}

func insertLoan(ctx context.Context, tx *sqlx.Tx, bookID, patronID uuid.UUID, now, due time.Time) (*models.Loan, error) {
	loan := &models.Loan{
		ID:           uuid.New(),
		BookID:       bookID,
		PatronID:     patronID,
		CheckedOutAt: now,
		DueAt:        due,
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO loans (id, book_id, patron_id, checked_out_at, due_at)
		VALUES ($1, $2, $3, $4, $5)
	`, loan.ID, loan.BookID, loan.PatronID, loan.CheckedOutAt, loan.DueAt)
	if err != nil {
		return nil, fmt.Errorf("insert loan: %w", translateErr(err))
	}
	return loan, nil
}

func checkoutTx(ctx context.Context, tx *sqlx.Tx, bookID, patronID uuid.UUID, now, due time.Time) (*models.Loan, error) {
	_, available, err := lockBook(ctx, tx, bookID)
	if err != nil {
		return nil, err
	}
	if err := patronExists(ctx, tx, patronID); err != nil {
		return nil, err
	}
	if available <= 0 {
		return nil, storage.ErrUnavailable
	}
	if err := touchBook(ctx, tx, bookID, -1, now); err != nil {
		return nil, err
	}
	return insertLoan(ctx, tx, bookID, patronID, now, due)
}

func (s *Store) Checkout(ctx context.Context, bookID, patronID uuid.UUID, now, due time.Time) (*models.Loan, error) {
	var loan *models.Loan
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var txErr error
		loan, txErr = checkoutTx(ctx, tx, bookID, patronID, now, due)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

func (s *Store) Return(ctx context.Context, loanID uuid.UUID, now time.Time, loanPeriod time.Duration) (*storage.ReturnResult, error) {
	result := &storage.ReturnResult{}
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var loan models.Loan
		err := tx.QueryRowContext(ctx, `
			SELECT `+loanColumns+`
			FROM loans
			WHERE id = $1
			FOR UPDATE
		`, loanID).Scan(&loan.ID, &loan.BookID, &loan.PatronID, &loan.CheckedOutAt, &loan.DueAt, &loan.ReturnedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock loan row: %w", err)
		}
		if loan.ReturnedAt != nil {
			return storage.ErrAlreadyReturned
		}

		// Book lock first, then the writes, so a concurrent checkout for
		// the same book waits here.
		if _, _, err := lockBook(ctx, tx, loan.BookID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `UPDATE loans SET returned_at = $1 WHERE id = $2`, now, loan.ID); err != nil {
			return fmt.Errorf("close loan: %w", err)
		}
		if err := touchBook(ctx, tx, loan.BookID, +1, now); err != nil {
			return err
		}

		returnedAt := now
		loan.ReturnedAt = &returnedAt
		result.Loan = &loan

		// Promote the oldest pending reservation, if one is queued.
		var res models.Reservation
		err = tx.QueryRowContext(ctx, `
			SELECT id, book_id, patron_id, requested_at, status
			FROM reservations
			WHERE book_id = $1 AND status = 'pending'
			ORDER BY requested_at ASC, id ASC
			LIMIT 1
			FOR UPDATE
		`, loan.BookID).Scan(&res.ID, &res.BookID, &res.PatronID, &res.RequestedAt, &res.Status)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("find pending reservation: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `UPDATE reservations SET status = 'fulfilled', updated_at = $1 WHERE id = $2`, now, res.ID); err != nil {
			return fmt.Errorf("fulfill reservation: %w", err)
		}
		if err := touchBook(ctx, tx, loan.BookID, -1, now); err != nil {
			return err
		}
		promoted, err := insertLoan(ctx, tx, loan.BookID, res.PatronID, now, now.Add(loanPeriod))
		if err != nil {
			return err
		}

		res.Status = models.ReservationFulfilled
		result.FulfilledReservation = &res
		result.PromotedLoan = promoted
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) Reserve(ctx context.Context, bookID, patronID uuid.UUID, now, due time.Time) (*storage.ReserveResult, error) {
	result := &storage.ReserveResult{}
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		_, available, err := lockBook(ctx, tx, bookID)
		if err != nil {
			return err
		}
		if err := patronExists(ctx, tx, patronID); err != nil {
			return err
		}

		if available > 0 {
			loan, err := checkoutTx(ctx, tx, bookID, patronID, now, due)
			if err != nil {
				return err
			}
			result.Loan = loan
			return nil
		}

		res := &models.Reservation{
			ID:          uuid.New(),
			BookID:      bookID,
			PatronID:    patronID,
			RequestedAt: now,
			Status:      models.ReservationPending,
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO reservations (id, book_id, patron_id, requested_at, status)
			VALUES ($1, $2, $3, $4, $5)
		`, res.ID, res.BookID, res.PatronID, res.RequestedAt, res.Status)
		if err != nil {
			// Partial unique index: one pending reservation per (book, patron).
			return translateErr(err)
		}
		result.Reservation = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CancelReservation(ctx context.Context, reservationID uuid.UUID) (*models.Reservation, error) {
	var res models.Reservation
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.QueryRowContext(ctx, `
			SELECT id, book_id, patron_id, requested_at, status
			FROM reservations
			WHERE id = $1
			FOR UPDATE
		`, reservationID).Scan(&res.ID, &res.BookID, &res.PatronID, &res.RequestedAt, &res.Status)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock reservation row: %w", err)
		}
		if res.Status != models.ReservationPending {
			return storage.ErrConflict
		}

		if _, err := tx.ExecContext(ctx, `UPDATE reservations SET status = 'cancelled', updated_at = NOW() WHERE id = $1`, res.ID); err != nil {
			return fmt.Errorf("cancel reservation: %w", err)
		}
		res.Status = models.ReservationCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *Store) GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	var loan models.Loan
	err := s.db.GetContext(ctx, &loan, `SELECT `+loanColumns+` FROM loans WHERE id = $1`, id)
	if err != nil {
		return nil, translateErr(err)
	}
	return &loan, nil
}

func (s *Store) ListLoans(ctx context.Context, patronID uuid.UUID, openOnly bool) ([]models.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE ($1::uuid IS NULL OR patron_id = $1)`
	if openOnly {
		query += ` AND returned_at IS NULL`
	}
	query += ` ORDER BY checked_out_at ASC, id ASC`

	var filter interface{}
	if patronID != uuid.Nil {
		filter = patronID
	}

	loans := []models.Loan{}
	if err := s.db.SelectContext(ctx, &loans, query, filter); err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	return loans, nil
}

func (s *Store) ListReservations(ctx context.Context, bookID uuid.UUID) ([]models.Reservation, error) {
	query := `
		SELECT id, book_id, patron_id, requested_at, status
		FROM reservations
		WHERE ($1::uuid IS NULL OR book_id = $1)
		ORDER BY requested_at ASC, id ASC
	`
	var filter interface{}
	if bookID != uuid.Nil {
		filter = bookID
	}

	reservations := []models.Reservation{}
	if err := s.db.SelectContext(ctx, &reservations, query, filter); err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return reservations, nil
}
