package models

import (
	"time"

	"github.com/google/uuid"
)

// Book is a catalog record. AuthorName and CategoryName are denormalized
// on reads; the author and category rows stay the source of truth.
type Book struct {
	ID              uuid.UUID `json:"id" db:"id"`
	ISBN            string    `json:"isbn,omitempty" db:"isbn"`
	Title           string    `json:"title" db:"title"`
	AuthorID        uuid.UUID `json:"author_id" db:"author_id"`
	CategoryID      uuid.UUID `json:"category_id" db:"category_id"`
	AuthorName      string    `json:"author,omitempty" db:"author_name"`
	CategoryName    string    `json:"category,omitempty" db:"category_name"`
	PublishedYear   int       `json:"published_year,omitempty" db:"published_year"`
	TotalCopies     int       `json:"total_copies" db:"total_copies"`
	AvailableCopies int       `json:"available_copies" db:"available_copies"`
	Version         int       `json:"version" db:"version"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// Author is referenced by books, never embedded mutably.
type Author struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Category struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Patron statuses.
const (
	PatronActive    = "active"
	PatronSuspended = "suspended"
)

type Patron struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Name      string    `json:"name" db:"name"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Credential holds a patron's argon2id password hash and salt.
type Credential struct {
	PatronID     uuid.UUID `json:"-" db:"patron_id"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Salt         string    `json:"-" db:"salt"`
}

// Loan is an open borrowing record until ReturnedAt is set.
type Loan struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	BookID       uuid.UUID  `json:"book_id" db:"book_id"`
	PatronID     uuid.UUID  `json:"patron_id" db:"patron_id"`
	CheckedOutAt time.Time  `json:"checked_out_at" db:"checked_out_at"`
	DueAt        time.Time  `json:"due_at" db:"due_at"`
	ReturnedAt   *time.Time `json:"returned_at,omitempty" db:"returned_at"`
}

// Open reports whether the loan has not been returned yet.
func (l *Loan) Open() bool {
	return l.ReturnedAt == nil
}

// Reservation statuses.
const (
	ReservationPending   = "pending"
	ReservationFulfilled = "fulfilled"
	ReservationCancelled = "cancelled"
)

// Reservation is a queued request for a currently unavailable book.
type Reservation struct {
	ID          uuid.UUID `json:"id" db:"id"`
	BookID      uuid.UUID `json:"book_id" db:"book_id"`
	PatronID    uuid.UUID `json:"patron_id" db:"patron_id"`
	RequestedAt time.Time `json:"requested_at" db:"requested_at"`
	Status      string    `json:"status" db:"status"`
}

// BookLoanCount is a statistics row for the most-borrowed ranking.
type BookLoanCount struct {
	BookID    uuid.UUID `json:"book_id" db:"book_id"`
	Title     string    `json:"title" db:"title"`
	LoanCount int       `json:"loan_count" db:"loan_count"`
}

// LibraryStats mirrors the statistics block of the admin CLI.
type LibraryStats struct {
	TotalBooks          int             `json:"total_books"`
	BooksAvailable      int             `json:"books_available"`
	ActiveLoans         int             `json:"active_loans"`
	OverdueLoans        int             `json:"overdue_loans"`
	RegisteredPatrons   int             `json:"registered_patrons"`
	PendingReservations int             `json:"pending_reservations"`
	MostBorrowed        []BookLoanCount `json:"most_borrowed"`
}
