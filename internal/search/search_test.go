package search

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biblioteca/internal/models"
)

func book(title, author, category string) models.Book {
	return models.Book{
		ID:           uuid.New(),
		Title:        title,
		AuthorName:   author,
		CategoryName: category,
	}
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"name", "of", "the", "rose"}, Tokenize("  Name OF the Rose "))
	assert.Empty(t, Tokenize("   "))
	assert.Empty(t, Tokenize(""))
}

func TestScore(t *testing.T) {
	b := book("The Name of the Rose", "Umberto Eco", "Historical Fiction")

	assert.Equal(t, 2, Score(&b, []string{"rose", "eco"}))
	assert.Equal(t, 1, Score(&b, []string{"fiction", "zzz"}))
	assert.Equal(t, 0, Score(&b, []string{"zzz"}))

	// A token counts once even when it matches several fields.
	assert.Equal(t, 1, Score(&b, []string{"the"}))
}

func TestRankFiltersAndOrders(t *testing.T) {
	books := []models.Book{
		book("Foundation", "Isaac Asimov", "Science Fiction"),
		book("Dune", "Frank Herbert", "Science Fiction"),
		book("Dune Messiah", "Frank Herbert", "Science Fiction"),
		book("The Hobbit", "J.R.R. Tolkien", "Fantasy"),
	}

	ranked := Rank(books, "dune herbert")
	require.Len(t, ranked, 2)
	assert.Equal(t, "Dune", ranked[0].Title[:4])
	assert.Equal(t, "Dune", ranked[1].Title[:4])

	ranked = Rank(books, "fiction")
	assert.Len(t, ranked, 3)

	assert.Nil(t, Rank(books, ""))
	assert.Empty(t, Rank(books, "nonexistent"))
}

func TestRankTieBreakIsDeterministic(t *testing.T) {
	a := book("Dune", "Frank Herbert", "Science Fiction")
	b := book("Dune Messiah", "Frank Herbert", "Science Fiction")

	first := Rank([]models.Book{a, b}, "dune")
	second := Rank([]models.Book{b, a}, "dune")

	require.Len(t, first, 2)
	require.Len(t, second, 2)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, first[1].ID, second[1].ID)
}
