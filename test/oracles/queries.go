package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

// All returns the invariant checks run against the live database while the
// actors are writing. Each query must return zero rows.
func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_one_protection_per_tenancy",
			SQL: `SELECT tenancy_id, COUNT(*) FROM deposit_protections
                  GROUP BY tenancy_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O2_expiry_after_protection",
			SQL: `SELECT id, protected_on, expiry_date FROM deposit_protections
                  WHERE protected_on > expiry_date`,
		},
		{
			Name: "O3_renewed_has_renewal_date",
			SQL: `SELECT id FROM deposit_protections
                  WHERE renewed AND renewal_date IS NULL`,
		},
		{
			Name: "O4_dispute_has_reason",
			SQL: `SELECT id, dispute_details FROM deposit_protections
                  WHERE dispute_raised
                    AND (dispute_details IS NULL
                         OR COALESCE(dispute_details->>'reason', '') = '')`,
		},
		{
			Name: "O5_dispute_status_pending",
			SQL: `SELECT id, dispute_details->>'status' FROM deposit_protections
                  WHERE dispute_raised AND dispute_details->>'status' <> 'pending'`,
		},
		{
			Name: "O6_protection_ref_format",
			SQL: `SELECT id, protection_ref FROM deposit_protections
                  WHERE protection_ref !~ '^[A-Z]{2,3}-[0-9]{8}$'`,
		},
		{
			Name: "O7_registration_audited",
			SQL: `SELECT p.id FROM deposit_protections p
                  WHERE NOT EXISTS (
                      SELECT 1 FROM deposit_protection_log l
                      WHERE l.protection_id = p.id
                        AND l.action = 'registration' AND l.success)`,
		},
		{
			Name: "O8_renewal_audited",
			SQL: `SELECT p.id FROM deposit_protections p
                  WHERE p.renewed AND NOT EXISTS (
                      SELECT 1 FROM deposit_protection_log l
                      WHERE l.protection_id = p.id
                        AND l.action = 'renewal' AND l.success)`,
		},
		{
			Name: "O9_success_log_has_protection",
			SQL: `SELECT id, action FROM deposit_protection_log
                  WHERE success AND protection_id IS NULL`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row
// text), or an empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
