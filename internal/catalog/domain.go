package catalog

import (
	"github.com/google/uuid"
)

// BookInput carries the writable fields of a book.
type BookInput struct {
	ISBN          string    `json:"isbn"`
	Title         string    `json:"title"`
	AuthorID      uuid.UUID `json:"author_id"`
	CategoryID    uuid.UUID `json:"category_id"`
	PublishedYear int       `json:"published_year"`
	TotalCopies   int       `json:"total_copies"`
	// AvailableCopies is optional; when nil it defaults to TotalCopies on
	// create and stays untouched on update.
	AvailableCopies *int `json:"available_copies"`
}

// BookAddedEvent is recorded when a book enters the catalog.
type BookAddedEvent struct {
	ID          uuid.UUID `json:"id"`
	ISBN        string    `json:"isbn,omitempty"`
	Title       string    `json:"title"`
	AuthorID    uuid.UUID `json:"author_id"`
	CategoryID  uuid.UUID `json:"category_id"`
	TotalCopies int       `json:"total_copies"`
}

// BookUpdatedEvent is recorded when catalog fields or copy counts change.
type BookUpdatedEvent struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	TotalCopies     int       `json:"total_copies"`
	AvailableCopies int       `json:"available_copies"`
}

// BookRemovedEvent is recorded when a book is deleted from the catalog.
type BookRemovedEvent struct {
	ID uuid.UUID `json:"id"`
}
