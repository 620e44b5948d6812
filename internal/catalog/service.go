package catalog

import (
	"context"

	"github.com/google/uuid"

	"biblioteca/internal/models"
)

// Service is the catalog: CRUD over books, authors and categories, plus
// free-text search over the three.
type Service interface {
	CreateBook(ctx context.Context, input BookInput) (*models.Book, error)
	GetBook(ctx context.Context, id uuid.UUID) (*models.Book, error)
	UpdateBook(ctx context.Context, id uuid.UUID, version int, input BookInput) (*models.Book, error)
	DeleteBook(ctx context.Context, id uuid.UUID) error
	ListBooks(ctx context.Context) ([]models.Book, error)

	CreateAuthor(ctx context.Context, name string) (*models.Author, error)
	GetAuthor(ctx context.Context, id uuid.UUID) (*models.Author, error)
	UpdateAuthor(ctx context.Context, id uuid.UUID, name string) (*models.Author, error)
	DeleteAuthor(ctx context.Context, id uuid.UUID) error
	ListAuthors(ctx context.Context) ([]models.Author, error)

	CreateCategory(ctx context.Context, name string) (*models.Category, error)
	GetCategory(ctx context.Context, id uuid.UUID) (*models.Category, error)
	UpdateCategory(ctx context.Context, id uuid.UUID, name string) (*models.Category, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) error
	ListCategories(ctx context.Context) ([]models.Category, error)

	Search(ctx context.Context, query string) ([]models.Book, error)
}
