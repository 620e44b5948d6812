package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"biblioteca/internal/models"
	"biblioteca/internal/search"
	"biblioteca/internal/storage"
)

const bookColumns = `
	b.id, COALESCE(b.isbn, '') AS isbn, b.title, b.author_id, b.category_id, b.published_year,
	b.total_copies, b.available_copies, b.version, b.created_at, b.updated_at,
	a.name AS author_name, c.name AS category_name
`

const bookFrom = `
	FROM books b
	JOIN authors a ON a.id = b.author_id
	JOIN categories c ON c.id = b.category_id
`

func (s *Store) CreateBook(ctx context.Context, book *models.Book) error {
	if err := storage.ValidateBook(book); err != nil {
		return err
	}

	query := `
		INSERT INTO books (id, isbn, title, author_id, category_id, published_year, total_copies, available_copies, version)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, 1)
		RETURNING version, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		book.ID, book.ISBN, book.Title, book.AuthorID, book.CategoryID,
		book.PublishedYear, book.TotalCopies, book.AvailableCopies,
	).Scan(&book.Version, &book.CreatedAt, &book.UpdatedAt)
	if err != nil {
		if translated := translateErr(err); errors.Is(translated, storage.ErrConflict) {
			// Dangling author/category references read as validation
			// failures, duplicate ISBNs stay conflicts.
			if field, lookupErr := s.missingReference(ctx, book); lookupErr == nil && field != "" {
				return &storage.ValidationError{
					Field:  field,
					Reason: "references unknown " + strings.TrimSuffix(field, "_id"),
				}
			}
			return storage.ErrConflict
		}
		return fmt.Errorf("insert book: %w", translateErr(err))
	}
	return nil
}

// missingReference names the dangling foreign key of a book, if any.
func (s *Store) missingReference(ctx context.Context, book *models.Book) (string, error) {
	var authorExists, categoryExists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM authors WHERE id = $1),
		       EXISTS (SELECT 1 FROM categories WHERE id = $2)
	`, book.AuthorID, book.CategoryID).Scan(&authorExists, &categoryExists)
	if err != nil {
		return "", err
	}
	switch {
	case !authorExists:
		return "author_id", nil
	case !categoryExists:
		return "category_id", nil
	}
	return "", nil
}

func (s *Store) GetBook(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	var book models.Book
	err := s.db.GetContext(ctx, &book, `SELECT `+bookColumns+bookFrom+` WHERE b.id = $1`, id)
	if err != nil {
		return nil, translateErr(err)
	}
	return &book, nil
}

func (s *Store) UpdateBook(ctx context.Context, book *models.Book) error {
	if err := storage.ValidateBook(book); err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, _, err := lockBook(ctx, tx, book.ID); err != nil {
			return err
		}

		// Copies on loan still need a slot when they come back.
		var openLoans int
		err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM loans WHERE book_id = $1 AND returned_at IS NULL
		`, book.ID).Scan(&openLoans)
		if err != nil {
			return fmt.Errorf("count open loans: %w", err)
		}
		if book.AvailableCopies > book.TotalCopies-openLoans {
			return storage.ErrConflict
		}

		query := `
			UPDATE books
			SET isbn = NULLIF($1, ''), title = $2, author_id = $3, category_id = $4,
			    published_year = $5, total_copies = $6, available_copies = $7,
			    version = version + 1, updated_at = NOW()
			WHERE id = $8 AND version = $9
			RETURNING version, updated_at
		`
		err = tx.QueryRowContext(ctx, query,
			book.ISBN, book.Title, book.AuthorID, book.CategoryID, book.PublishedYear,
			book.TotalCopies, book.AvailableCopies, book.ID, book.Version,
		).Scan(&book.Version, &book.UpdatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			// The row exists (locked above), so the version is stale.
			return storage.ErrConflict
		}
		if err != nil {
			return fmt.Errorf("update book: %w", translateErr(err))
		}
		return nil
	})
}

func (s *Store) DeleteBook(ctx context.Context, id uuid.UUID) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		var open int
		err := tx.QueryRowContext(ctx, `
			SELECT (SELECT COUNT(*) FROM loans WHERE book_id = $1 AND returned_at IS NULL)
			     + (SELECT COUNT(*) FROM reservations WHERE book_id = $1 AND status = 'pending')
		`, id).Scan(&open)
		if err != nil {
			return fmt.Errorf("count open loans: %w", err)
		}
		if open > 0 {
			return storage.ErrConflict
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete book: %w", translateErr(err))
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return storage.ErrNotFound
		}
		return nil
	})
}

func (s *Store) ListBooks(ctx context.Context) ([]models.Book, error) {
	books := []models.Book{}
	err := s.db.SelectContext(ctx, &books, `SELECT `+bookColumns+bookFrom+` ORDER BY b.title ASC, b.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

// SearchBooks pre-filters candidates in SQL with one ILIKE group per query
// token; the ranking itself stays in the search package so the postgres and
// memory stores order results identically.
func (s *Store) SearchBooks(ctx context.Context, query string) ([]models.Book, error) {
	tokens := search.Tokenize(query)
	if len(tokens) == 0 {
		return []models.Book{}, nil
	}

	exprs := make([]goqu.Expression, 0, len(tokens))
	for _, tok := range tokens {
		pattern := "%" + tok + "%"
		exprs = append(exprs, goqu.Or(
			goqu.I("b.title").ILike(pattern),
			goqu.I("a.name").ILike(pattern),
			goqu.I("c.name").ILike(pattern),
		))
	}

	sqlQuery, args, err := goqu.Dialect("postgres").
		From(goqu.T("books").As("b")).
		Join(goqu.T("authors").As("a"), goqu.On(goqu.I("a.id").Eq(goqu.I("b.author_id")))).
		Join(goqu.T("categories").As("c"), goqu.On(goqu.I("c.id").Eq(goqu.I("b.category_id")))).
		Select(
			goqu.I("b.id"), goqu.COALESCE(goqu.I("b.isbn"), "").As("isbn"), goqu.I("b.title"),
			goqu.I("b.author_id"), goqu.I("b.category_id"), goqu.I("b.published_year"),
			goqu.I("b.total_copies"), goqu.I("b.available_copies"), goqu.I("b.version"),
			goqu.I("b.created_at"), goqu.I("b.updated_at"),
			goqu.I("a.name").As("author_name"), goqu.I("c.name").As("category_name"),
		).
		Where(goqu.Or(exprs...)).
		Order(goqu.I("b.id").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build search query: %w", err)
	}

	books := []models.Book{}
	if err := s.db.SelectContext(ctx, &books, sqlQuery, args...); err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}
	return books, nil
}

func (s *Store) CreateAuthor(ctx context.Context, author *models.Author) error {
	if author.Name == "" {
		return &storage.ValidationError{Field: "name", Reason: "is required"}
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO authors (id, name) VALUES ($1, $2)
		RETURNING created_at, updated_at
	`, author.ID, author.Name).Scan(&author.CreatedAt, &author.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert author: %w", translateErr(err))
	}
	return nil
}

func (s *Store) GetAuthor(ctx context.Context, id uuid.UUID) (*models.Author, error) {
	var author models.Author
	err := s.db.GetContext(ctx, &author, `SELECT id, name, created_at, updated_at FROM authors WHERE id = $1`, id)
	if err != nil {
		return nil, translateErr(err)
	}
	return &author, nil
}

func (s *Store) UpdateAuthor(ctx context.Context, author *models.Author) error {
	if author.Name == "" {
		return &storage.ValidationError{Field: "name", Reason: "is required"}
	}
	err := s.db.QueryRowContext(ctx, `
		UPDATE authors SET name = $1, updated_at = NOW() WHERE id = $2
		RETURNING updated_at
	`, author.Name, author.ID).Scan(&author.UpdatedAt)
	if err != nil {
		return translateErr(err)
	}
	return nil
}

func (s *Store) DeleteAuthor(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM authors WHERE id = $1`, id)
	if err != nil {
		// Foreign key violation: still referenced by a book.
		return translateErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListAuthors(ctx context.Context) ([]models.Author, error) {
	authors := []models.Author{}
	err := s.db.SelectContext(ctx, &authors, `SELECT id, name, created_at, updated_at FROM authors ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list authors: %w", err)
	}
	return authors, nil
}

func (s *Store) CreateCategory(ctx context.Context, category *models.Category) error {
	if category.Name == "" {
		return &storage.ValidationError{Field: "name", Reason: "is required"}
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO categories (id, name) VALUES ($1, $2)
		RETURNING created_at, updated_at
	`, category.ID, category.Name).Scan(&category.CreatedAt, &category.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert category: %w", translateErr(err))
	}
	return nil
}

func (s *Store) GetCategory(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var category models.Category
	err := s.db.GetContext(ctx, &category, `SELECT id, name, created_at, updated_at FROM categories WHERE id = $1`, id)
	if err != nil {
		return nil, translateErr(err)
	}
	return &category, nil
}

func (s *Store) UpdateCategory(ctx context.Context, category *models.Category) error {
	if category.Name == "" {
		return &storage.ValidationError{Field: "name", Reason: "is required"}
	}
	err := s.db.QueryRowContext(ctx, `
		UPDATE categories SET name = $1, updated_at = NOW() WHERE id = $2
		RETURNING updated_at
	`, category.Name, category.ID).Scan(&category.UpdatedAt)
	if err != nil {
		return translateErr(err)
	}
	return nil
}

func (s *Store) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return translateErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories := []models.Category{}
	err := s.db.SelectContext(ctx, &categories, `SELECT id, name, created_at, updated_at FROM categories ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// touchBook is used by the loan ledger after copy-count changes.
func touchBook(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, delta int, now time.Time) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE books
		SET available_copies = available_copies + $1, updated_at = $2
		WHERE id = $3
	`, delta, now, id)
	if err != nil {
		return fmt.Errorf("adjust available copies: %w", translateErr(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
