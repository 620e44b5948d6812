package patrons

import (
	"github.com/google/uuid"
)

// PatronRegisteredEvent is recorded when a new patron registers.
type PatronRegisteredEvent struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
}
