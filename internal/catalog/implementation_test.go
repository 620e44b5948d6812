package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"biblioteca/internal/models"
	"biblioteca/internal/storage"
	"biblioteca/internal/storage/memory"
	"biblioteca/pkg/eventstore"
)

func newTestService(t *testing.T) (Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return NewService(store, eventstore.Noop{}, zap.NewNop()), store
}

func seedRefs(t *testing.T, svc Service) (*models.Author, *models.Category) {
	t.Helper()
	ctx := context.Background()
	author, err := svc.CreateAuthor(ctx, "Primo Levi")
	require.NoError(t, err)
	category, err := svc.CreateCategory(ctx, "Memoir")
	require.NoError(t, err)
	return author, category
}

func TestCreateBookDefaultsAvailableCopies(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	author, category := seedRefs(t, svc)

	book, err := svc.CreateBook(ctx, BookInput{
		Title:       "If This Is a Man",
		AuthorID:    author.ID,
		CategoryID:  category.ID,
		TotalCopies: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, book.AvailableCopies)
	assert.Equal(t, 1, book.Version)
	assert.Equal(t, "Primo Levi", book.AuthorName)
}

func TestCreateBookExplicitAvailableCopies(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	author, category := seedRefs(t, svc)

	two := 2
	book, err := svc.CreateBook(ctx, BookInput{
		Title:           "The Periodic Table",
		AuthorID:        author.ID,
		CategoryID:      category.ID,
		TotalCopies:     4,
		AvailableCopies: &two,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, book.AvailableCopies)

	// More available than total is invalid.
	six := 6
	_, err = svc.CreateBook(ctx, BookInput{
		Title:           "Bad Counts",
		AuthorID:        author.ID,
		CategoryID:      category.ID,
		TotalCopies:     4,
		AvailableCopies: &six,
	})
	var verr *storage.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "available_copies", verr.Field)
}

func TestUpdateBookVersioning(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	author, category := seedRefs(t, svc)

	book, err := svc.CreateBook(ctx, BookInput{
		Title:       "If This Is a Man",
		AuthorID:    author.ID,
		CategoryID:  category.ID,
		TotalCopies: 1,
	})
	require.NoError(t, err)

	input := BookInput{
		Title:       "Se questo è un uomo",
		AuthorID:    author.ID,
		CategoryID:  category.ID,
		TotalCopies: 1,
	}
	updated, err := svc.UpdateBook(ctx, book.ID, book.Version, input)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
	// Copy counts survive an update that does not name them.
	assert.Equal(t, 1, updated.AvailableCopies)

	_, err = svc.UpdateBook(ctx, book.ID, book.Version, input)
	assert.ErrorIs(t, err, storage.ErrConflict)
}

func TestDeleteBook(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	author, category := seedRefs(t, svc)

	book, err := svc.CreateBook(ctx, BookInput{
		Title:       "The Truce",
		AuthorID:    author.ID,
		CategoryID:  category.ID,
		TotalCopies: 1,
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteBook(ctx, book.ID))
	_, err = svc.GetBook(ctx, book.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = svc.DeleteBook(ctx, uuid.New())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteAuthorInUse(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	author, category := seedRefs(t, svc)

	_, err := svc.CreateBook(ctx, BookInput{
		Title:       "The Drowned and the Saved",
		AuthorID:    author.ID,
		CategoryID:  category.ID,
		TotalCopies: 1,
	})
	require.NoError(t, err)

	err = svc.DeleteAuthor(ctx, author.ID)
	assert.ErrorIs(t, err, storage.ErrConflict)
	err = svc.DeleteCategory(ctx, category.ID)
	assert.ErrorIs(t, err, storage.ErrConflict)
}

func TestSearchRanksAcrossFields(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	author, category := seedRefs(t, svc)

	_, err := svc.CreateBook(ctx, BookInput{
		Title: "If This Is a Man", AuthorID: author.ID, CategoryID: category.ID, TotalCopies: 1,
	})
	require.NoError(t, err)
	_, err = svc.CreateBook(ctx, BookInput{
		Title: "The Periodic Table", AuthorID: author.ID, CategoryID: category.ID, TotalCopies: 1,
	})
	require.NoError(t, err)

	// Author name matches both, title narrows to one.
	results, err := svc.Search(ctx, "levi periodic")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "The Periodic Table", results[0].Title)

	results, err = svc.Search(ctx, "memoir")
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = svc.Search(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, results)
}
