package scheme

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals the requested scheme does not exist or is inactive.
var ErrNotFound = errors.New("scheme: not found")

// Repository provides read access to the deposit scheme catalog.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const schemeColumns = `id, name, website_url, api_endpoint, api_key_ref, active, description, logo_url, created_at`

// GetActive fetches an active scheme by its primary key.
func (r *Repository) GetActive(ctx context.Context, id string) (Scheme, error) {
	query := `
		SELECT ` + schemeColumns + `
		FROM deposit_schemes
		WHERE id = $1 AND active
	`

	s, err := scanScheme(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Scheme{}, ErrNotFound
		}
		return Scheme{}, fmt.Errorf("scheme: query by id: %w", err)
	}

	return s, nil
}

// ListActive fetches all active schemes ordered by name.
func (r *Repository) ListActive(ctx context.Context) ([]Scheme, error) {
	query := `
		SELECT ` + schemeColumns + `
		FROM deposit_schemes
		WHERE active
		ORDER BY name ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("scheme: list: %w", err)
	}
	defer rows.Close()

	schemes := make([]Scheme, 0, 4)
	for rows.Next() {
		s, err := scanScheme(rows)
		if err != nil {
			return nil, fmt.Errorf("scheme: scan: %w", err)
		}
		schemes = append(schemes, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scheme: iterate: %w", err)
	}

	return schemes, nil
}

func scanScheme(row pgx.Row) (Scheme, error) {
	var s Scheme
	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.WebsiteURL,
		&s.APIEndpoint,
		&s.APIKeyRef,
		&s.Active,
		&s.Description,
		&s.LogoURL,
		&s.CreatedAt,
	)
	if err != nil {
		return Scheme{}, err
	}
	return s, nil
}
