package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biblioteca/internal/models"
	"biblioteca/internal/storage"
)

const loanPeriod = 30 * 24 * time.Hour

var testSchema = []string{
	`DROP TABLE IF EXISTS reservations, loans, credentials, patrons, books, categories, authors CASCADE`,
	`CREATE TABLE authors (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE categories (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE books (
		id UUID PRIMARY KEY,
		isbn TEXT UNIQUE,
		title TEXT NOT NULL,
		author_id UUID NOT NULL REFERENCES authors(id),
		category_id UUID NOT NULL REFERENCES categories(id),
		published_year INT NOT NULL DEFAULT 0,
		total_copies INT NOT NULL CHECK (total_copies >= 0),
		available_copies INT NOT NULL CHECK (available_copies >= 0 AND available_copies <= total_copies),
		version INT NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE patrons (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE credentials (
		patron_id UUID PRIMARY KEY REFERENCES patrons(id) ON DELETE CASCADE,
		password_hash TEXT NOT NULL,
		salt TEXT NOT NULL
	)`,
	`CREATE TABLE loans (
		id UUID PRIMARY KEY,
		book_id UUID NOT NULL REFERENCES books(id),
		patron_id UUID NOT NULL REFERENCES patrons(id),
		checked_out_at TIMESTAMPTZ NOT NULL,
		due_at TIMESTAMPTZ NOT NULL,
		returned_at TIMESTAMPTZ
	)`,
	`CREATE TABLE reservations (
		id UUID PRIMARY KEY,
		book_id UUID NOT NULL REFERENCES books(id),
		patron_id UUID NOT NULL REFERENCES patrons(id),
		status TEXT NOT NULL DEFAULT 'pending',
		requested_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX idx_reservations_pending
		ON reservations (book_id, patron_id) WHERE status = 'pending'`,
}

// setupTestStore connects to a PostgreSQL database and resets the schema.
// It skips the test when the database is unreachable.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	pgUser := os.Getenv("PGUSER")
	pgPassword := os.Getenv("PGPASSWORD")
	pgHost := os.Getenv("PGHOST")
	pgPort := os.Getenv("PGPORT")
	pgDB := os.Getenv("PGDATABASE")

	if pgUser == "" {
		pgUser = "user"
	}
	if pgPassword == "" {
		pgPassword = "password"
	}
	if pgHost == "" {
		pgHost = "localhost"
	}
	if pgPort == "" {
		pgPort = "5432"
	}
	if pgDB == "" {
		pgDB = "testdb"
	}

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		pgHost, pgPort, pgUser, pgPassword, pgDB)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := Open(ctx, connStr)
	if err != nil {
		t.Skipf("skipping: could not connect to postgres: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	for _, stmt := range testSchema {
		if _, err := store.DB().Exec(stmt); err != nil {
			t.Fatalf("failed to create schema: %v", err)
		}
	}
	return store
}

func seedCatalog(t *testing.T, s *Store, totalCopies int) *models.Book {
	t.Helper()
	ctx := context.Background()

	author := &models.Author{ID: uuid.New(), Name: "Umberto Eco"}
	require.NoError(t, s.CreateAuthor(ctx, author))
	category := &models.Category{ID: uuid.New(), Name: "Fiction " + uuid.NewString()}
	require.NoError(t, s.CreateCategory(ctx, category))

	book := &models.Book{
		ID:              uuid.New(),
		Title:           "The Name of the Rose",
		AuthorID:        author.ID,
		CategoryID:      category.ID,
		TotalCopies:     totalCopies,
		AvailableCopies: totalCopies,
	}
	require.NoError(t, s.CreateBook(ctx, book))
	return book
}

func seedPatron(t *testing.T, s *Store, email string) *models.Patron {
	t.Helper()
	patron := &models.Patron{ID: uuid.New(), Email: email, Name: "Reader", Status: models.PatronActive}
	require.NoError(t, s.CreatePatron(context.Background(), patron, &models.Credential{PasswordHash: "h", Salt: "s"}))
	return patron
}

func TestBookCRUD(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	book := seedCatalog(t, s, 3)

	got, err := s.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "The Name of the Rose", got.Title)
	assert.Equal(t, "Umberto Eco", got.AuthorName)
	assert.Equal(t, 1, got.Version)

	got.Title = "Il nome della rosa"
	require.NoError(t, s.UpdateBook(ctx, got))
	assert.Equal(t, 2, got.Version)

	stale := *got
	stale.Version = 1
	assert.ErrorIs(t, s.UpdateBook(ctx, &stale), storage.ErrConflict)

	require.NoError(t, s.DeleteBook(ctx, book.ID))
	_, err = s.GetBook(ctx, book.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCheckoutReturnAndPromotion(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	book := seedCatalog(t, s, 1)
	holder := seedPatron(t, s, "holder@example.com")
	waiter := seedPatron(t, s, "waiter@example.com")

	now := time.Now().UTC()
	loan, err := s.Checkout(ctx, book.ID, holder.ID, now, now.Add(loanPeriod))
	require.NoError(t, err)

	// No copies left: a second checkout fails, a reserve queues.
	_, err = s.Checkout(ctx, book.ID, waiter.ID, now, now.Add(loanPeriod))
	assert.ErrorIs(t, err, storage.ErrUnavailable)

	reserved, err := s.Reserve(ctx, book.ID, waiter.ID, now, now.Add(loanPeriod))
	require.NoError(t, err)
	require.NotNil(t, reserved.Reservation)

	// The partial unique index rejects a duplicate pending reservation.
	_, err = s.Reserve(ctx, book.ID, waiter.ID, now.Add(time.Minute), now.Add(loanPeriod))
	assert.ErrorIs(t, err, storage.ErrConflict)

	// Returning promotes the waiting patron in the same transaction.
	result, err := s.Return(ctx, loan.ID, now.Add(time.Hour), loanPeriod)
	require.NoError(t, err)
	require.NotNil(t, result.PromotedLoan)
	assert.Equal(t, waiter.ID, result.PromotedLoan.PatronID)
	assert.Equal(t, reserved.Reservation.ID, result.FulfilledReservation.ID)

	got, err := s.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.AvailableCopies)

	_, err = s.Return(ctx, loan.ID, now.Add(2*time.Hour), loanPeriod)
	assert.ErrorIs(t, err, storage.ErrAlreadyReturned)
}

func TestUpdateBookShrinkWithOpenLoans(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	book := seedCatalog(t, s, 2)
	alice := seedPatron(t, s, "alice@example.com")
	bob := seedPatron(t, s, "bob@example.com")

	now := time.Now().UTC()
	loanA, err := s.Checkout(ctx, book.ID, alice.ID, now, now.Add(loanPeriod))
	require.NoError(t, err)
	loanB, err := s.Checkout(ctx, book.ID, bob.ID, now, now.Add(loanPeriod))
	require.NoError(t, err)

	// Both copies are out; shrinking total below the open-loan count must
	// fail, or the returns would push available past total.
	got, err := s.GetBook(ctx, book.ID)
	require.NoError(t, err)
	got.TotalCopies = 1
	got.AvailableCopies = 0
	assert.ErrorIs(t, s.UpdateBook(ctx, got), storage.ErrConflict)

	// Inflating available past the copies actually on the shelf is
	// rejected the same way.
	got.TotalCopies = 2
	got.AvailableCopies = 1
	assert.ErrorIs(t, s.UpdateBook(ctx, got), storage.ErrConflict)

	_, err = s.Return(ctx, loanA.ID, now.Add(time.Hour), loanPeriod)
	require.NoError(t, err)
	_, err = s.Return(ctx, loanB.ID, now.Add(2*time.Hour), loanPeriod)
	require.NoError(t, err)

	got, err = s.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.AvailableCopies)
	assert.LessOrEqual(t, got.AvailableCopies, got.TotalCopies)

	// With every copy back on the shelf the shrink goes through.
	got.TotalCopies = 1
	got.AvailableCopies = 1
	require.NoError(t, s.UpdateBook(ctx, got))
}

func TestCreateBookDanglingReferences(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	author := &models.Author{ID: uuid.New(), Name: "Known Author"}
	require.NoError(t, s.CreateAuthor(ctx, author))
	category := &models.Category{ID: uuid.New(), Name: "Known Category"}
	require.NoError(t, s.CreateCategory(ctx, category))

	var verr *storage.ValidationError
	err := s.CreateBook(ctx, &models.Book{
		ID:         uuid.New(),
		Title:      "Orphan",
		AuthorID:   author.ID,
		CategoryID: uuid.New(),
	})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "category_id", verr.Field)

	err = s.CreateBook(ctx, &models.Book{
		ID:         uuid.New(),
		Title:      "Orphan",
		AuthorID:   uuid.New(),
		CategoryID: category.ID,
	})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "author_id", verr.Field)
}

func TestSearchBooks(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	book := seedCatalog(t, s, 1)

	candidates, err := s.SearchBooks(ctx, "rose")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, book.ID, candidates[0].ID)

	candidates, err = s.SearchBooks(ctx, "eco")
	require.NoError(t, err)
	assert.Len(t, candidates, 1)

	candidates, err = s.SearchBooks(ctx, "nonexistent")
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	book := seedCatalog(t, s, 2)
	patron := seedPatron(t, s, "reader@example.com")

	now := time.Now().UTC()
	_, err := s.Checkout(ctx, book.ID, patron.ID, now.Add(-60*24*time.Hour), now.Add(-30*24*time.Hour))
	require.NoError(t, err)

	stats, err := s.Stats(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalBooks)
	assert.Equal(t, 1, stats.BooksAvailable)
	assert.Equal(t, 1, stats.ActiveLoans)
	assert.Equal(t, 1, stats.OverdueLoans)
	assert.Equal(t, 1, stats.RegisteredPatrons)
	require.Len(t, stats.MostBorrowed, 1)
	assert.Equal(t, book.ID, stats.MostBorrowed[0].BookID)
}

func TestPatronUniqueEmail(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	seedPatron(t, s, "reader@example.com")

	dup := &models.Patron{ID: uuid.New(), Email: "Reader@Example.com", Name: "Dup", Status: models.PatronActive}
	err := s.CreatePatron(ctx, dup, &models.Credential{PasswordHash: "h", Salt: "s"})
	assert.ErrorIs(t, err, storage.ErrConflict)
}

func TestTranslateErr(t *testing.T) {
	assert.Nil(t, translateErr(nil))
	assert.ErrorIs(t, translateErr(sql.ErrNoRows), storage.ErrNotFound)
	assert.ErrorIs(t, translateErr(&pq.Error{Code: "23505"}), storage.ErrConflict)
	assert.ErrorIs(t, translateErr(&pq.Error{Code: "23503"}), storage.ErrConflict)

	// CHECK violations surface the field derived from the constraint name.
	var verr *storage.ValidationError
	err := translateErr(&pq.Error{Code: "23514", Table: "books", Constraint: "books_available_copies_check"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "available_copies", verr.Field)
}
