// Package storage defines the persistence contracts for the library and the
// error kinds every store implementation must surface. Required-field and
// copy-count validation happens at the store boundary, so both the postgres
// and the in-memory implementation enforce the same invariants.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"biblioteca/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrUnavailable is returned by Checkout when no copies are available.
	ErrUnavailable = errors.New("no copies available")
	// ErrAlreadyReturned is returned by Return for a closed loan.
	ErrAlreadyReturned = errors.New("loan already returned")
	// ErrConflict is returned on concurrent copy-count mutation, stale
	// versions, duplicate keys and deletes of still-referenced records.
	ErrConflict = errors.New("conflict")
)

// ValidationError reports a missing or invalid field at the store boundary.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

// Validate checks the book invariants: required fields, and
// 0 <= available_copies <= total_copies.
func ValidateBook(b *models.Book) error {
	if b.Title == "" {
		return &ValidationError{Field: "title", Reason: "is required"}
	}
	if b.AuthorID == uuid.Nil {
		return &ValidationError{Field: "author_id", Reason: "is required"}
	}
	if b.CategoryID == uuid.Nil {
		return &ValidationError{Field: "category_id", Reason: "is required"}
	}
	if b.TotalCopies < 0 {
		return &ValidationError{Field: "total_copies", Reason: "must not be negative"}
	}
	if b.AvailableCopies < 0 {
		return &ValidationError{Field: "available_copies", Reason: "must not be negative"}
	}
	if b.AvailableCopies > b.TotalCopies {
		return &ValidationError{Field: "available_copies", Reason: "must not exceed total_copies"}
	}
	return nil
}

// CatalogStore persists books, authors and categories.
type CatalogStore interface {
	CreateBook(ctx context.Context, book *models.Book) error
	GetBook(ctx context.Context, id uuid.UUID) (*models.Book, error)
	// UpdateBook applies the given record if its Version matches the stored
	// one, then bumps the version. A stale version fails with ErrConflict.
	UpdateBook(ctx context.Context, book *models.Book) error
	DeleteBook(ctx context.Context, id uuid.UUID) error
	ListBooks(ctx context.Context) ([]models.Book, error)

	CreateAuthor(ctx context.Context, author *models.Author) error
	GetAuthor(ctx context.Context, id uuid.UUID) (*models.Author, error)
	UpdateAuthor(ctx context.Context, author *models.Author) error
	DeleteAuthor(ctx context.Context, id uuid.UUID) error
	ListAuthors(ctx context.Context) ([]models.Author, error)

	CreateCategory(ctx context.Context, category *models.Category) error
	GetCategory(ctx context.Context, id uuid.UUID) (*models.Category, error)
	UpdateCategory(ctx context.Context, category *models.Category) error
	DeleteCategory(ctx context.Context, id uuid.UUID) error
	ListCategories(ctx context.Context) ([]models.Category, error)

	// SearchBooks returns candidate books whose title, author name or
	// category name contains any token of the query, case-insensitively.
	// Final ranking is applied by the caller.
	SearchBooks(ctx context.Context, query string) ([]models.Book, error)
}

// ReturnResult carries the closed loan and, when a pending reservation was
// promoted during the same transaction, the loan created for it.
type ReturnResult struct {
	Loan                 *models.Loan
	FulfilledReservation *models.Reservation
	PromotedLoan         *models.Loan
}

// ReserveResult carries exactly one of a pending reservation (no copies
// available) or a loan (reserve routed directly to checkout).
type ReserveResult struct {
	Reservation *models.Reservation
	Loan        *models.Loan
}

// LoanStore is the loan ledger. Implementations must serialize copy-count
// mutation per book so the available-copies invariant holds under
// concurrent checkouts and returns.
type LoanStore interface {
	Checkout(ctx context.Context, bookID, patronID uuid.UUID, now time.Time, due time.Time) (*models.Loan, error)
	Return(ctx context.Context, loanID uuid.UUID, now time.Time, loanPeriod time.Duration) (*ReturnResult, error)
	Reserve(ctx context.Context, bookID, patronID uuid.UUID, now time.Time, due time.Time) (*ReserveResult, error)
	CancelReservation(ctx context.Context, reservationID uuid.UUID) (*models.Reservation, error)

	GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error)
	ListLoans(ctx context.Context, patronID uuid.UUID, openOnly bool) ([]models.Loan, error)
	ListReservations(ctx context.Context, bookID uuid.UUID) ([]models.Reservation, error)
}

// PatronStore persists patrons and their credentials.
type PatronStore interface {
	CreatePatron(ctx context.Context, patron *models.Patron, cred *models.Credential) error
	GetPatron(ctx context.Context, id uuid.UUID) (*models.Patron, error)
	GetPatronByEmail(ctx context.Context, email string) (*models.Patron, error)
	GetCredential(ctx context.Context, patronID uuid.UUID) (*models.Credential, error)
}

// StatsStore serves the statistics read model.
type StatsStore interface {
	Stats(ctx context.Context, now time.Time) (*models.LibraryStats, error)
}

// Store bundles every persistence concern behind one handle.
type Store interface {
	CatalogStore
	LoanStore
	PatronStore
	StatsStore
}
