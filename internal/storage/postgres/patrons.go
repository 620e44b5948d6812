package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"biblioteca/internal/models"
	"biblioteca/internal/storage"
)

func (s *Store) CreatePatron(ctx context.Context, patron *models.Patron, cred *models.Credential) error {
	if patron.Email == "" {
		return &storage.ValidationError{Field: "email", Reason: "is required"}
	}
	if patron.Name == "" {
		return &storage.ValidationError{Field: "name", Reason: "is required"}
	}

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO patrons (id, email, name, status)
			VALUES ($1, LOWER($2), $3, $4)
			RETURNING created_at, updated_at
		`, patron.ID, patron.Email, patron.Name, patron.Status).Scan(&patron.CreatedAt, &patron.UpdatedAt)
		if err != nil {
			return translateErr(err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO credentials (patron_id, password_hash, salt)
			VALUES ($1, $2, $3)
		`, patron.ID, cred.PasswordHash, cred.Salt)
		if err != nil {
			return fmt.Errorf("insert credential: %w", translateErr(err))
		}
		return nil
	})
}

func (s *Store) GetPatron(ctx context.Context, id uuid.UUID) (*models.Patron, error) {
	var patron models.Patron
	err := s.db.GetContext(ctx, &patron, `
		SELECT id, email, name, status, created_at, updated_at
		FROM patrons
		WHERE id = $1
	`, id)
	if err != nil {
		return nil, translateErr(err)
	}
	return &patron, nil
}

func (s *Store) GetPatronByEmail(ctx context.Context, email string) (*models.Patron, error) {
	var patron models.Patron
	err := s.db.GetContext(ctx, &patron, `
		SELECT id, email, name, status, created_at, updated_at
		FROM patrons
		WHERE email = LOWER($1)
	`, email)
	if err != nil {
		return nil, translateErr(err)
	}
	return &patron, nil
}

func (s *Store) GetCredential(ctx context.Context, patronID uuid.UUID) (*models.Credential, error) {
	var cred models.Credential
	err := s.db.GetContext(ctx, &cred, `
		SELECT patron_id, password_hash, salt
		FROM credentials
		WHERE patron_id = $1
	`, patronID)
	if err != nil {
		return nil, translateErr(err)
	}
	return &cred, nil
}
