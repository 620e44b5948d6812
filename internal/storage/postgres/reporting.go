package postgres

import (
	"context"
	"fmt"
	"time"

	"biblioteca/internal/models"
)

// Stats aggregates the statistics read model in two queries: the scalar
// counters and the most-borrowed ranking.
func (s *Store) Stats(ctx context.Context, now time.Time) (*models.LibraryStats, error) {
	stats := &models.LibraryStats{}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM books),
			(SELECT COUNT(*) FROM books WHERE available_copies > 0),
			(SELECT COUNT(*) FROM loans WHERE returned_at IS NULL),
			(SELECT COUNT(*) FROM loans WHERE returned_at IS NULL AND due_at < $1),
			(SELECT COUNT(*) FROM patrons WHERE status = 'active'),
			(SELECT COUNT(*) FROM reservations WHERE status = 'pending')
	`, now).Scan(
		&stats.TotalBooks,
		&stats.BooksAvailable,
		&stats.ActiveLoans,
		&stats.OverdueLoans,
		&stats.RegisteredPatrons,
		&stats.PendingReservations,
	)
	if err != nil {
		return nil, fmt.Errorf("query counters: %w", err)
	}

	top := []models.BookLoanCount{}
	err = s.db.SelectContext(ctx, &top, `
		SELECT l.book_id, COALESCE(b.title, '') AS title, COUNT(*) AS loan_count
		FROM loans l
		LEFT JOIN books b ON b.id = l.book_id
		GROUP BY l.book_id, b.title
		ORDER BY loan_count DESC, l.book_id ASC
		LIMIT 5
	`)
	if err != nil {
		return nil, fmt.Errorf("query most borrowed: %w", err)
	}
	stats.MostBorrowed = top

	return stats, nil
}
