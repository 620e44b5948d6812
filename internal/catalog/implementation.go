package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"biblioteca/internal/models"
	"biblioteca/internal/search"
	"biblioteca/internal/storage"
	"biblioteca/pkg/eventstore"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// service implements the Service interface on top of a catalog store.
type service struct {
	store  storage.CatalogStore
	events eventstore.Appender
	logger *zap.Logger
}

// NewService creates a new catalog service instance.
func NewService(store storage.CatalogStore, events eventstore.Appender, logger *zap.Logger) Service {
	return &service{store: store, events: events, logger: logger}
}

// recordEvent appends an audit event to the journal. The store is the
// source of truth, so a journal failure does not undo the mutation.
func (s *service) recordEvent(ctx context.Context, aggregateID uuid.UUID, eventType string, expectedVersion int, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("marshal event data", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	event := eventstore.Event{
		AggregateID:   aggregateID,
		AggregateType: "book",
		EventType:     eventType,
		EventData:     jsonData,
		Version:       expectedVersion + 1,
	}
	if err := s.events.AppendEvents(ctx, aggregateID, "book", expectedVersion, []eventstore.Event{event}); err != nil {
		s.logger.Warn("append audit event",
			zap.String("event_type", eventType),
			zap.String("aggregate_id", aggregateID.String()),
			zap.Error(err),
		)
	}
}

func (s *service) CreateBook(ctx context.Context, input BookInput) (*models.Book, error) {
	available := input.TotalCopies
	if input.AvailableCopies != nil {
		available = *input.AvailableCopies
	}

	book := &models.Book{
		ID:              uuid.New(),
		ISBN:            input.ISBN,
		Title:           input.Title,
		AuthorID:        input.AuthorID,
		CategoryID:      input.CategoryID,
		PublishedYear:   input.PublishedYear,
		TotalCopies:     input.TotalCopies,
		AvailableCopies: available,
	}
	if err := s.store.CreateBook(ctx, book); err != nil {
		return nil, fmt.Errorf("create book: %w", err)
	}

	s.recordEvent(ctx, book.ID, "BookAdded", 0, BookAddedEvent{
		ID:          book.ID,
		ISBN:        book.ISBN,
		Title:       book.Title,
		AuthorID:    book.AuthorID,
		CategoryID:  book.CategoryID,
		TotalCopies: book.TotalCopies,
	})
	return book, nil
}

func (s *service) GetBook(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	return s.store.GetBook(ctx, id)
}

func (s *service) UpdateBook(ctx context.Context, id uuid.UUID, version int, input BookInput) (*models.Book, error) {
	current, err := s.store.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}

	available := current.AvailableCopies
	if input.AvailableCopies != nil {
		available = *input.AvailableCopies
	}

	book := &models.Book{
		ID:              id,
		ISBN:            input.ISBN,
		Title:           input.Title,
		AuthorID:        input.AuthorID,
		CategoryID:      input.CategoryID,
		PublishedYear:   input.PublishedYear,
		TotalCopies:     input.TotalCopies,
		AvailableCopies: available,
		Version:         version,
	}
	if err := s.store.UpdateBook(ctx, book); err != nil {
		return nil, fmt.Errorf("update book: %w", err)
	}

	s.recordEvent(ctx, id, "BookUpdated", version, BookUpdatedEvent{
		ID:              id,
		Title:           book.Title,
		TotalCopies:     book.TotalCopies,
		AvailableCopies: book.AvailableCopies,
	})
	return book, nil
}

func (s *service) DeleteBook(ctx context.Context, id uuid.UUID) error {
	book, err := s.store.GetBook(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteBook(ctx, id); err != nil {
		return fmt.Errorf("delete book: %w", err)
	}

	s.recordEvent(ctx, id, "BookRemoved", book.Version, BookRemovedEvent{ID: id})
	return nil
}

func (s *service) ListBooks(ctx context.Context) ([]models.Book, error) {
	return s.store.ListBooks(ctx)
}

func (s *service) CreateAuthor(ctx context.Context, name string) (*models.Author, error) {
	author := &models.Author{ID: uuid.New(), Name: name}
	if err := s.store.CreateAuthor(ctx, author); err != nil {
		return nil, fmt.Errorf("create author: %w", err)
	}
	return author, nil
}

func (s *service) GetAuthor(ctx context.Context, id uuid.UUID) (*models.Author, error) {
	return s.store.GetAuthor(ctx, id)
}

func (s *service) UpdateAuthor(ctx context.Context, id uuid.UUID, name string) (*models.Author, error) {
	author := &models.Author{ID: id, Name: name}
	if err := s.store.UpdateAuthor(ctx, author); err != nil {
		return nil, fmt.Errorf("update author: %w", err)
	}
	return author, nil
}

func (s *service) DeleteAuthor(ctx context.Context, id uuid.UUID) error {
	return s.store.DeleteAuthor(ctx, id)
}

func (s *service) ListAuthors(ctx context.Context) ([]models.Author, error) {
	return s.store.ListAuthors(ctx)
}

func (s *service) CreateCategory(ctx context.Context, name string) (*models.Category, error) {
	category := &models.Category{ID: uuid.New(), Name: name}
	if err := s.store.CreateCategory(ctx, category); err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return category, nil
}

func (s *service) GetCategory(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	return s.store.GetCategory(ctx, id)
}

func (s *service) UpdateCategory(ctx context.Context, id uuid.UUID, name string) (*models.Category, error) {
	category := &models.Category{ID: id, Name: name}
	if err := s.store.UpdateCategory(ctx, category); err != nil {
		return nil, fmt.Errorf("update category: %w", err)
	}
	return category, nil
}

func (s *service) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	return s.store.DeleteCategory(ctx, id)
}

func (s *service) ListCategories(ctx context.Context) ([]models.Category, error) {
	return s.store.ListCategories(ctx)
}

// Search fetches candidates from the store and applies the deterministic
// ranking: score descending, then id ascending.
func (s *service) Search(ctx context.Context, query string) ([]models.Book, error) {
	start := time.Now()
	candidates, err := s.store.SearchBooks(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}
	ranked := search.Rank(candidates, query)
	s.logger.Debug("search completed",
		zap.String("query", query),
		zap.Int("results", len(ranked)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return ranked, nil
}
