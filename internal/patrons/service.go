package patrons

import (
	"context"

	"github.com/google/uuid"

	"biblioteca/internal/models"
)

// Service manages patron accounts and authentication.
type Service interface {
	Register(ctx context.Context, email, name, password string) (*models.Patron, error)
	// Authenticate verifies the credentials and returns the patron plus a
	// signed bearer token.
	Authenticate(ctx context.Context, email, password string) (*models.Patron, string, error)
	GetPatron(ctx context.Context, id uuid.UUID) (*models.Patron, error)
}
