package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/payimport/internal/core"
)

// catalogTitleConstraint is the unique constraint on catalog_items.title.
const catalogTitleConstraint = "catalog_items_title_key"

// FindByTitle looks a catalog item up by exact title.
func (s *Store) FindByTitle(ctx context.Context, title string) (core.CatalogItem, bool, error) {
	item := core.CatalogItem{Title: title}
	var price string
	err := s.pool.QueryRow(ctx, `SELECT id, price::text, author_id FROM catalog_items WHERE title = $1`, title).
		Scan(&item.ID, &price, &item.AuthorID)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.CatalogItem{}, false, nil
	}
	if err != nil {
		return core.CatalogItem{}, false, fmt.Errorf("find catalog item %q: %w", title, err)
	}
	if item.Price, err = parseDecimal(price); err != nil {
		return core.CatalogItem{}, false, err
	}
	return item, true, nil
}

// CreateItem creates a free catalog item. A taken title returns an error
// wrapping core.ErrDuplicateTitle.
func (s *Store) CreateItem(ctx context.Context, title string, authorID int64) (core.CatalogItem, error) {
	item := core.CatalogItem{Title: title, AuthorID: authorID}
	var price string
	err := s.pool.QueryRow(ctx, `INSERT INTO catalog_items (title, author_id) VALUES ($1, $2)
		RETURNING id, price::text`, title, authorID).Scan(&item.ID, &price)
	if isConstraintError(err, codeUniqueViolation, catalogTitleConstraint) {
		return core.CatalogItem{}, fmt.Errorf("create catalog item %q: %w", title, core.ErrDuplicateTitle)
	}
	if err != nil {
		return core.CatalogItem{}, fmt.Errorf("create catalog item %q: %w", title, err)
	}
	if item.Price, err = parseDecimal(price); err != nil {
		return core.CatalogItem{}, err
	}
	return item, nil
}

// ============================================================================
// Directory
// ============================================================================

// CustomerExists reports whether id is a known customer.
func (s *Store) CustomerExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check customer %d: %w", id, err)
	}
	return exists, nil
}

// UserByID reports whether id is a known user.
func (s *Store) UserByID(ctx context.Context, id int64) (int64, bool, error) {
	return s.findUser(ctx, `SELECT id FROM users WHERE id = $1`, id)
}

// UserByEmail finds a user by e-mail address, ignoring case.
func (s *Store) UserByEmail(ctx context.Context, email string) (int64, bool, error) {
	return s.findUser(ctx, `SELECT id FROM users WHERE lower(email) = lower($1) ORDER BY id LIMIT 1`, email)
}

// UserByLogin finds a user by exact login name.
func (s *Store) UserByLogin(ctx context.Context, login string) (int64, bool, error) {
	return s.findUser(ctx, `SELECT id FROM users WHERE login = $1 ORDER BY id LIMIT 1`, login)
}

func (s *Store) findUser(ctx context.Context, query string, arg any) (int64, bool, error) {
	var id int64
	err := s.pool.QueryRow(ctx, query, arg).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find user: %w", err)
	}
	return id, true, nil
}
