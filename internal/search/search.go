// Package search ranks catalog records for a free-text query. Matching is
// case-insensitive substring containment per query token over title, author
// name and category name. The rank of a book is the number of tokens that
// match at least one field; ties break deterministically by book id.
package search

import (
	"sort"
	"strings"

	"biblioteca/internal/models"
)

// Tokenize splits a query into lower-cased tokens.
func Tokenize(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// Score returns how many tokens match the book's title, author name or
// category name. A book with score zero does not match the query.
func Score(book *models.Book, tokens []string) int {
	title := strings.ToLower(book.Title)
	author := strings.ToLower(book.AuthorName)
	category := strings.ToLower(book.CategoryName)

	score := 0
	for _, tok := range tokens {
		if strings.Contains(title, tok) || strings.Contains(author, tok) || strings.Contains(category, tok) {
			score++
		}
	}
	return score
}

// Rank filters books matching the query and orders them by score descending,
// then by id ascending. An empty query matches nothing.
func Rank(books []models.Book, query string) []models.Book {
	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return nil
	}

	type scored struct {
		book  models.Book
		score int
	}

	matches := make([]scored, 0, len(books))
	for i := range books {
		if s := Score(&books[i], tokens); s > 0 {
			matches = append(matches, scored{book: books[i], score: s})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].book.ID.String() < matches[j].book.ID.String()
	})

	ranked := make([]models.Book, len(matches))
	for i, m := range matches {
		ranked[i] = m.book
	}
	return ranked
}
