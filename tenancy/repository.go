package tenancy

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals the requested tenancy does not exist.
var ErrNotFound = errors.New("tenancy: not found")

// Repository provides read access to tenancies and their related parties.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get fetches a tenancy together with its property, landlord, and tenant.
// A tenancy missing any of those linkages is treated as not found, since the
// deposit workflows cannot attribute a protection without them.
func (r *Repository) Get(ctx context.Context, id string) (Summary, error) {
	const query = `
		SELECT t.id, t.property_id, t.tenant_id, t.deposit_amount, t.start_date, t.end_date, t.active,
		       p.title, p.address_line, p.city, p.postcode,
		       l.id, l.full_name,
		       u.full_name
		FROM tenancies t
		JOIN properties p ON p.id = t.property_id
		JOIN users l ON l.id = p.landlord_id
		JOIN users u ON u.id = t.tenant_id
		WHERE t.id = $1
	`

	var s Summary
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID,
		&s.PropertyID,
		&s.TenantID,
		&s.DepositAmount,
		&s.StartDate,
		&s.EndDate,
		&s.Active,
		&s.PropertyTitle,
		&s.PropertyAddress,
		&s.PropertyCity,
		&s.Postcode,
		&s.LandlordID,
		&s.LandlordName,
		&s.TenantName,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Summary{}, ErrNotFound
		}
		return Summary{}, fmt.Errorf("tenancy: query by id: %w", err)
	}

	return s, nil
}
