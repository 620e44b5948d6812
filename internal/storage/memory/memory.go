// Package memory is an in-memory Store used by tests and by USE_MOCK_DB
// mode. A single mutex serializes every mutation, which trivially satisfies
// the per-book serialization the loan ledger requires.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"biblioteca/internal/models"
	"biblioteca/internal/storage"
)

type Store struct {
	mu           sync.Mutex
	books        map[uuid.UUID]*models.Book
	authors      map[uuid.UUID]*models.Author
	categories   map[uuid.UUID]*models.Category
	patrons      map[uuid.UUID]*models.Patron
	credentials  map[uuid.UUID]*models.Credential
	loans        map[uuid.UUID]*models.Loan
	reservations map[uuid.UUID]*models.Reservation
}

var _ storage.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		books:        make(map[uuid.UUID]*models.Book),
		authors:      make(map[uuid.UUID]*models.Author),
		categories:   make(map[uuid.UUID]*models.Category),
		patrons:      make(map[uuid.UUID]*models.Patron),
		credentials:  make(map[uuid.UUID]*models.Credential),
		loans:        make(map[uuid.UUID]*models.Loan),
		reservations: make(map[uuid.UUID]*models.Reservation),
	}
}

// --- catalog ---

func (s *Store) CreateBook(ctx context.Context, book *models.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := storage.ValidateBook(book); err != nil {
		return err
	}
	if _, ok := s.authors[book.AuthorID]; !ok {
		return &storage.ValidationError{Field: "author_id", Reason: "references unknown author"}
	}
	if _, ok := s.categories[book.CategoryID]; !ok {
		return &storage.ValidationError{Field: "category_id", Reason: "references unknown category"}
	}
	for _, existing := range s.books {
		if book.ISBN != "" && existing.ISBN == book.ISBN {
			return storage.ErrConflict
		}
	}

	now := time.Now().UTC()
	stored := *book
	stored.Version = 1
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.books[stored.ID] = &stored
	*book = s.bookWithNames(&stored)
	return nil
}

func (s *Store) GetBook(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getBookLocked(id)
}

func (s *Store) getBookLocked(id uuid.UUID) (*models.Book, error) {
	stored, ok := s.books[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	book := s.bookWithNames(stored)
	return &book, nil
}

func (s *Store) bookWithNames(stored *models.Book) models.Book {
	book := *stored
	if author, ok := s.authors[book.AuthorID]; ok {
		book.AuthorName = author.Name
	}
	if category, ok := s.categories[book.CategoryID]; ok {
		book.CategoryName = category.Name
	}
	return book
}

func (s *Store) UpdateBook(ctx context.Context, book *models.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.books[book.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if stored.Version != book.Version {
		return storage.ErrConflict
	}
	if err := storage.ValidateBook(book); err != nil {
		return err
	}
	if _, ok := s.authors[book.AuthorID]; !ok {
		return &storage.ValidationError{Field: "author_id", Reason: "references unknown author"}
	}
	if _, ok := s.categories[book.CategoryID]; !ok {
		return &storage.ValidationError{Field: "category_id", Reason: "references unknown category"}
	}

	// Copies on loan still need a slot when they come back.
	openLoans := 0
	for _, loan := range s.loans {
		if loan.BookID == book.ID && loan.Open() {
			openLoans++
		}
	}
	if book.AvailableCopies > book.TotalCopies-openLoans {
		return storage.ErrConflict
	}

	updated := *book
	updated.Version = stored.Version + 1
	updated.CreatedAt = stored.CreatedAt
	updated.UpdatedAt = time.Now().UTC()
	s.books[updated.ID] = &updated
	*book = s.bookWithNames(&updated)
	return nil
}

func (s *Store) DeleteBook(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.books[id]; !ok {
		return storage.ErrNotFound
	}
	for _, loan := range s.loans {
		if loan.BookID == id && loan.Open() {
			return storage.ErrConflict
		}
	}
	for _, res := range s.reservations {
		if res.BookID == id && res.Status == models.ReservationPending {
			return storage.ErrConflict
		}
	}
	delete(s.books, id)
	return nil
}

func (s *Store) ListBooks(ctx context.Context) ([]models.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	books := make([]models.Book, 0, len(s.books))
	for _, stored := range s.books {
		books = append(books, s.bookWithNames(stored))
	}
	sort.Slice(books, func(i, j int) bool {
		if books[i].Title != books[j].Title {
			return books[i].Title < books[j].Title
		}
		return books[i].ID.String() < books[j].ID.String()
	})
	return books, nil
}

func (s *Store) CreateAuthor(ctx context.Context, author *models.Author) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(author.Name) == "" {
		return &storage.ValidationError{Field: "name", Reason: "is required"}
	}
	now := time.Now().UTC()
	stored := *author
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.authors[stored.ID] = &stored
	*author = stored
	return nil
}

func (s *Store) GetAuthor(ctx context.Context, id uuid.UUID) (*models.Author, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.authors[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	author := *stored
	return &author, nil
}

func (s *Store) UpdateAuthor(ctx context.Context, author *models.Author) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.authors[author.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if strings.TrimSpace(author.Name) == "" {
		return &storage.ValidationError{Field: "name", Reason: "is required"}
	}
	updated := *author
	updated.CreatedAt = stored.CreatedAt
	updated.UpdatedAt = time.Now().UTC()
	s.authors[updated.ID] = &updated
	*author = updated
	return nil
}

func (s *Store) DeleteAuthor(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.authors[id]; !ok {
		return storage.ErrNotFound
	}
	for _, book := range s.books {
		if book.AuthorID == id {
			return storage.ErrConflict
		}
	}
	delete(s.authors, id)
	return nil
}

func (s *Store) ListAuthors(ctx context.Context) ([]models.Author, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	authors := make([]models.Author, 0, len(s.authors))
	for _, stored := range s.authors {
		authors = append(authors, *stored)
	}
	sort.Slice(authors, func(i, j int) bool {
		if authors[i].Name != authors[j].Name {
			return authors[i].Name < authors[j].Name
		}
		return authors[i].ID.String() < authors[j].ID.String()
	})
	return authors, nil
}

func (s *Store) CreateCategory(ctx context.Context, category *models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(category.Name) == "" {
		return &storage.ValidationError{Field: "name", Reason: "is required"}
	}
	now := time.Now().UTC()
	stored := *category
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.categories[stored.ID] = &stored
	*category = stored
	return nil
}

func (s *Store) GetCategory(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.categories[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	category := *stored
	return &category, nil
}

func (s *Store) UpdateCategory(ctx context.Context, category *models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.categories[category.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if strings.TrimSpace(category.Name) == "" {
		return &storage.ValidationError{Field: "name", Reason: "is required"}
	}
	updated := *category
	updated.CreatedAt = stored.CreatedAt
	updated.UpdatedAt = time.Now().UTC()
	s.categories[updated.ID] = &updated
	*category = updated
	return nil
}

func (s *Store) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[id]; !ok {
		return storage.ErrNotFound
	}
	for _, book := range s.books {
		if book.CategoryID == id {
			return storage.ErrConflict
		}
	}
	delete(s.categories, id)
	return nil
}

func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	categories := make([]models.Category, 0, len(s.categories))
	for _, stored := range s.categories {
		categories = append(categories, *stored)
	}
	sort.Slice(categories, func(i, j int) bool {
		if categories[i].Name != categories[j].Name {
			return categories[i].Name < categories[j].Name
		}
		return categories[i].ID.String() < categories[j].ID.String()
	})
	return categories, nil
}

func (s *Store) SearchBooks(ctx context.Context, query string) ([]models.Book, error) {
	// Ranking happens in the caller; candidates are every book with the
	// author/category names filled in.
	return s.ListBooks(ctx)
}

// --- loan ledger ---

func (s *Store) Checkout(ctx context.Context, bookID, patronID uuid.UUID, now, due time.Time) (*models.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkoutLocked(bookID, patronID, now, due)
}

func (s *Store) checkoutLocked(bookID, patronID uuid.UUID, now, due time.Time) (*models.Loan, error) {
	book, ok := s.books[bookID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if _, ok := s.patrons[patronID]; !ok {
		return nil, storage.ErrNotFound
	}
	if book.AvailableCopies <= 0 {
		return nil, storage.ErrUnavailable
	}

	book.AvailableCopies--
	book.UpdatedAt = now

	loan := &models.Loan{
		ID:           uuid.New(),
		BookID:       bookID,
		PatronID:     patronID,
		CheckedOutAt: now,
		DueAt:        due,
	}
	s.loans[loan.ID] = loan

	out := *loan
	return &out, nil
}

func (s *Store) Return(ctx context.Context, loanID uuid.UUID, now time.Time, loanPeriod time.Duration) (*storage.ReturnResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loan, ok := s.loans[loanID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if !loan.Open() {
		return nil, storage.ErrAlreadyReturned
	}

	returnedAt := now
	loan.ReturnedAt = &returnedAt

	book := s.books[loan.BookID]
	if book != nil {
		book.AvailableCopies++
		book.UpdatedAt = now
	}

	result := &storage.ReturnResult{}
	closed := *loan
	result.Loan = &closed

	// Promote the oldest pending reservation for this book, if any.
	if next := s.oldestPendingLocked(loan.BookID); next != nil {
		next.Status = models.ReservationFulfilled
		promoted, err := s.checkoutLocked(loan.BookID, next.PatronID, now, now.Add(loanPeriod))
		if err != nil {
			return nil, err
		}
		fulfilled := *next
		result.FulfilledReservation = &fulfilled
		result.PromotedLoan = promoted
	}

	return result, nil
}

func (s *Store) oldestPendingLocked(bookID uuid.UUID) *models.Reservation {
	var oldest *models.Reservation
	for _, res := range s.reservations {
		if res.BookID != bookID || res.Status != models.ReservationPending {
			continue
		}
		if oldest == nil ||
			res.RequestedAt.Before(oldest.RequestedAt) ||
			(res.RequestedAt.Equal(oldest.RequestedAt) && res.ID.String() < oldest.ID.String()) {
			oldest = res
		}
	}
	return oldest
}

func (s *Store) Reserve(ctx context.Context, bookID, patronID uuid.UUID, now, due time.Time) (*storage.ReserveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[bookID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if _, ok := s.patrons[patronID]; !ok {
		return nil, storage.ErrNotFound
	}

	// A copy is on the shelf: route straight to checkout.
	if book.AvailableCopies > 0 {
		loan, err := s.checkoutLocked(bookID, patronID, now, due)
		if err != nil {
			return nil, err
		}
		return &storage.ReserveResult{Loan: loan}, nil
	}

	for _, res := range s.reservations {
		if res.BookID == bookID && res.PatronID == patronID && res.Status == models.ReservationPending {
			return nil, storage.ErrConflict
		}
	}

	reservation := &models.Reservation{
		ID:          uuid.New(),
		BookID:      bookID,
		PatronID:    patronID,
		RequestedAt: now,
		Status:      models.ReservationPending,
	}
	s.reservations[reservation.ID] = reservation

	out := *reservation
	return &storage.ReserveResult{Reservation: &out}, nil
}

func (s *Store) CancelReservation(ctx context.Context, reservationID uuid.UUID) (*models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, ok := s.reservations[reservationID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if res.Status != models.ReservationPending {
		return nil, storage.ErrConflict
	}
	res.Status = models.ReservationCancelled

	out := *res
	return &out, nil
}

func (s *Store) GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loan, ok := s.loans[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := *loan
	return &out, nil
}

func (s *Store) ListLoans(ctx context.Context, patronID uuid.UUID, openOnly bool) ([]models.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loans := make([]models.Loan, 0)
	for _, loan := range s.loans {
		if patronID != uuid.Nil && loan.PatronID != patronID {
			continue
		}
		if openOnly && !loan.Open() {
			continue
		}
		loans = append(loans, *loan)
	}
	sort.Slice(loans, func(i, j int) bool {
		if !loans[i].CheckedOutAt.Equal(loans[j].CheckedOutAt) {
			return loans[i].CheckedOutAt.Before(loans[j].CheckedOutAt)
		}
		return loans[i].ID.String() < loans[j].ID.String()
	})
	return loans, nil
}

func (s *Store) ListReservations(ctx context.Context, bookID uuid.UUID) ([]models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reservations := make([]models.Reservation, 0)
	for _, res := range s.reservations {
		if bookID != uuid.Nil && res.BookID != bookID {
			continue
		}
		reservations = append(reservations, *res)
	}
	sort.Slice(reservations, func(i, j int) bool {
		if !reservations[i].RequestedAt.Equal(reservations[j].RequestedAt) {
			return reservations[i].RequestedAt.Before(reservations[j].RequestedAt)
		}
		return reservations[i].ID.String() < reservations[j].ID.String()
	})
	return reservations, nil
}

// --- patrons ---

func (s *Store) CreatePatron(ctx context.Context, patron *models.Patron, cred *models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(patron.Email) == "" {
		return &storage.ValidationError{Field: "email", Reason: "is required"}
	}
	if strings.TrimSpace(patron.Name) == "" {
		return &storage.ValidationError{Field: "name", Reason: "is required"}
	}
	for _, existing := range s.patrons {
		if strings.EqualFold(existing.Email, patron.Email) {
			return storage.ErrConflict
		}
	}

	now := time.Now().UTC()
	stored := *patron
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.patrons[stored.ID] = &stored

	storedCred := *cred
	storedCred.PatronID = stored.ID
	s.credentials[stored.ID] = &storedCred

	*patron = stored
	return nil
}

func (s *Store) GetPatron(ctx context.Context, id uuid.UUID) (*models.Patron, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.patrons[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	patron := *stored
	return &patron, nil
}

func (s *Store) GetPatronByEmail(ctx context.Context, email string) (*models.Patron, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, stored := range s.patrons {
		if strings.EqualFold(stored.Email, email) {
			patron := *stored
			return &patron, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) GetCredential(ctx context.Context, patronID uuid.UUID) (*models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.credentials[patronID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cred := *stored
	return &cred, nil
}

// --- statistics ---

func (s *Store) Stats(ctx context.Context, now time.Time) (*models.LibraryStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &models.LibraryStats{TotalBooks: len(s.books)}

	for _, book := range s.books {
		if book.AvailableCopies > 0 {
			stats.BooksAvailable++
		}
	}
	for _, patron := range s.patrons {
		if patron.Status == models.PatronActive {
			stats.RegisteredPatrons++
		}
	}
	for _, res := range s.reservations {
		if res.Status == models.ReservationPending {
			stats.PendingReservations++
		}
	}

	counts := make(map[uuid.UUID]int)
	for _, loan := range s.loans {
		counts[loan.BookID]++
		if loan.Open() {
			stats.ActiveLoans++
			if loan.DueAt.Before(now) {
				stats.OverdueLoans++
			}
		}
	}

	top := make([]models.BookLoanCount, 0, len(counts))
	for bookID, count := range counts {
		row := models.BookLoanCount{BookID: bookID, LoanCount: count}
		if book, ok := s.books[bookID]; ok {
			row.Title = book.Title
		}
		top = append(top, row)
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].LoanCount != top[j].LoanCount {
			return top[i].LoanCount > top[j].LoanCount
		}
		return top[i].BookID.String() < top[j].BookID.String()
	})
	if len(top) > 5 {
		top = top[:5]
	}
	stats.MostBorrowed = top

	return stats, nil
}
