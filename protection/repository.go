package protection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when no protection record matches the identifier.
	ErrNotFound = errors.New("protection: not found")
	// ErrAlreadyProtected signals the tenancy already has a protection record.
	ErrAlreadyProtected = errors.New("protection: tenancy already protected")
)

// Repository implements the protection store backed by PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const recordColumns = `id, tenancy_id, deposit_amount, scheme_name, protection_ref, protected_on,
	certificate_ref, expiry_date, renewed, renewal_date, dispute_raised, dispute_details, created_at, updated_at`

const recordColumnsP = `p.id, p.tenancy_id, p.deposit_amount, p.scheme_name, p.protection_ref, p.protected_on,
	p.certificate_ref, p.expiry_date, p.renewed, p.renewal_date, p.dispute_raised, p.dispute_details, p.created_at, p.updated_at`

// Insert persists a new protection record inside the active transaction.
func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, rec Record) (Record, error) {
	insertSQL := `
		INSERT INTO deposit_protections
			(id, tenancy_id, deposit_amount, scheme_name, protection_ref, protected_on, certificate_ref, expiry_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + recordColumns

	created, err := scanRecord(tx.QueryRow(ctx, insertSQL,
		rec.ID,
		rec.TenancyID,
		rec.DepositAmount,
		rec.SchemeName,
		rec.ProtectionRef,
		rec.ProtectedOn,
		rec.CertificateRef,
		rec.ExpiryDate,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Record{}, ErrAlreadyProtected
		}
		return Record{}, fmt.Errorf("protection: insert: %w", err)
	}

	return created, nil
}

// GetForUpdate locks the protection row matched by uuid or protection
// reference and returns it together with the owning tenancy's end date.
func (r *Repository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Record, time.Time, error) {
	selectSQL := `
		SELECT ` + recordColumnsP + `, t.end_date
		FROM deposit_protections p
		JOIN tenancies t ON t.id = p.tenancy_id
		WHERE p.id::text = $1 OR p.protection_ref = $1
		FOR UPDATE OF p
	`

	var (
		rec        Record
		tenancyEnd time.Time
	)
	row := tx.QueryRow(ctx, selectSQL, id)
	rec, err := scanRecordWith(row, &tenancyEnd)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, time.Time{}, ErrNotFound
		}
		return Record{}, time.Time{}, fmt.Errorf("protection: get for update: %w", err)
	}

	return rec, tenancyEnd, nil
}

// UpdateRenewal advances the expiry and stamps the renewal inside the active transaction.
func (r *Repository) UpdateRenewal(ctx context.Context, tx pgx.Tx, id string, expiry, renewalDate time.Time) (Record, error) {
	updateSQL := `
		UPDATE deposit_protections
		SET expiry_date = $2,
		    renewed = true,
		    renewal_date = $3,
		    updated_at = now()
		WHERE id = $1
		RETURNING ` + recordColumns

	rec, err := scanRecord(tx.QueryRow(ctx, updateSQL, id, expiry, renewalDate))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("protection: update renewal: %w", err)
	}

	return rec, nil
}

// UpdateDispute flags the record as disputed and stores the structured details.
func (r *Repository) UpdateDispute(ctx context.Context, tx pgx.Tx, id string, details []byte) (Record, error) {
	updateSQL := `
		UPDATE deposit_protections
		SET dispute_raised = true,
		    dispute_details = $2::jsonb,
		    updated_at = now()
		WHERE id = $1
		RETURNING ` + recordColumns

	rec, err := scanRecord(tx.QueryRow(ctx, updateSQL, id, details))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("protection: update dispute: %w", err)
	}

	return rec, nil
}

const appendLogSQL = `
	INSERT INTO deposit_protection_log
		(id, protection_id, action, actor_id, actor_role, details, success, response_payload)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

// AppendLog writes an audit entry inside the active transaction so record and
// trail commit or roll back together.
func (r *Repository) AppendLog(ctx context.Context, tx pgx.Tx, entry LogEntry) error {
	if _, err := tx.Exec(ctx, appendLogSQL,
		entry.ID,
		entry.ProtectionID,
		entry.Action,
		entry.ActorID,
		entry.ActorRole,
		entry.Details,
		entry.Success,
		entry.ResponsePayload,
	); err != nil {
		return fmt.Errorf("protection: append log: %w", err)
	}
	return nil
}

// AppendLogDirect writes an audit entry on a fresh connection, outside any
// transaction. Used by the failure path after the workflow transaction has
// rolled back.
func (r *Repository) AppendLogDirect(ctx context.Context, entry LogEntry) error {
	if _, err := r.pool.Exec(ctx, appendLogSQL,
		entry.ID,
		entry.ProtectionID,
		entry.Action,
		entry.ActorID,
		entry.ActorRole,
		entry.Details,
		entry.Success,
		entry.ResponsePayload,
	); err != nil {
		return fmt.Errorf("protection: append log direct: %w", err)
	}
	return nil
}

// GetByTenancy fetches the display join across tenancy, property, landlord,
// tenant, and scheme for the given tenancy.
func (r *Repository) GetByTenancy(ctx context.Context, tenancyID string) (Details, error) {
	selectSQL := `
		SELECT ` + recordColumnsP + `,
		       t.start_date, t.end_date,
		       pr.title, pr.address_line, pr.city,
		       l.full_name, u.full_name,
		       s.website_url
		FROM deposit_protections p
		JOIN tenancies t ON t.id = p.tenancy_id
		JOIN properties pr ON pr.id = t.property_id
		JOIN users l ON l.id = pr.landlord_id
		JOIN users u ON u.id = t.tenant_id
		LEFT JOIN deposit_schemes s ON s.name = p.scheme_name
		WHERE p.tenancy_id = $1
	`

	var d Details
	row := r.pool.QueryRow(ctx, selectSQL, tenancyID)
	rec, err := scanRecordWith(row,
		&d.TenancyStartDate,
		&d.TenancyEndDate,
		&d.PropertyTitle,
		&d.PropertyAddress,
		&d.PropertyCity,
		&d.LandlordName,
		&d.TenantName,
		&d.SchemeWebsiteURL,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Details{}, ErrNotFound
		}
		return Details{}, fmt.Errorf("protection: get by tenancy: %w", err)
	}

	d.Record = rec
	return d, nil
}

// History returns the audit trail for a protection, newest first.
func (r *Repository) History(ctx context.Context, id string) ([]LogEntry, error) {
	const selectSQL = `
		SELECT l.id, l.protection_id, l.action, l.actor_id, l.actor_role, l.details, l.success, l.response_payload, l.created_at
		FROM deposit_protection_log l
		JOIN deposit_protections p ON p.id = l.protection_id
		WHERE p.id::text = $1 OR p.protection_ref = $1
		ORDER BY l.created_at DESC, l.id DESC
	`

	rows, err := r.pool.Query(ctx, selectSQL, id)
	if err != nil {
		return nil, fmt.Errorf("protection: history: %w", err)
	}
	defer rows.Close()

	entries := make([]LogEntry, 0, 8)
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(
			&e.ID,
			&e.ProtectionID,
			&e.Action,
			&e.ActorID,
			&e.ActorRole,
			&e.Details,
			&e.Success,
			&e.ResponsePayload,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("protection: scan log entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("protection: iterate log entries: %w", err)
	}

	return entries, nil
}

func scanRecord(row pgx.Row) (Record, error) {
	return scanRecordWith(row)
}

func scanRecordWith(row pgx.Row, extra ...any) (Record, error) {
	var rec Record
	dest := []any{
		&rec.ID,
		&rec.TenancyID,
		&rec.DepositAmount,
		&rec.SchemeName,
		&rec.ProtectionRef,
		&rec.ProtectedOn,
		&rec.CertificateRef,
		&rec.ExpiryDate,
		&rec.Renewed,
		&rec.RenewalDate,
		&rec.DisputeRaised,
		&rec.DisputeDetails,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return Record{}, err
	}
	return rec, nil
}
