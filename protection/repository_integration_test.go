package protection

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"depositflow/scheme"
	"depositflow/tenancy"
)

// TestProtectionLifecycle_Integration connects to a real PostgreSQL via
// DATABASE_URL and runs the full register -> renew -> dispute flow against it,
// verifying the record and audit trail the service leaves behind.
func TestProtectionLifecycle_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL is empty; set it to a live PostgreSQL to run integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}
	defer pool.Close()

	if !tableExists(ctx, t, pool, "deposit_protections") || !tableExists(ctx, t, pool, "deposit_protection_log") || !tableExists(ctx, t, pool, "deposit_schemes") {
		t.Skip("database schema missing; apply the files under migrations/ first")
	}

	var (
		landlordID string
		tenantID   string
		propertyID string
		tenancyID  string
		schemeID   string
	)

	mustQueryRow := func(query string, args ...any) pgx.Row {
		return pool.QueryRow(ctx, query, args...)
	}

	if err := mustQueryRow(`INSERT INTO users (email, full_name, role) VALUES ($1, 'Iris Integration', 'landlord') RETURNING id`,
		fmt.Sprintf("iris+%d@example.com", time.Now().UnixNano())).Scan(&landlordID); err != nil {
		t.Fatalf("seed landlord: %v", err)
	}
	if err := mustQueryRow(`INSERT INTO users (email, full_name, role) VALUES ($1, 'Theo Tenant', 'tenant') RETURNING id`,
		fmt.Sprintf("theo+%d@example.com", time.Now().UnixNano())).Scan(&tenantID); err != nil {
		t.Fatalf("seed tenant: %v", err)
	}
	if err := mustQueryRow(`INSERT INTO properties (landlord_id, title, address_line, city) VALUES ($1, 'Integration Flat', '22 Canal Street', 'Manchester') RETURNING id`,
		landlordID).Scan(&propertyID); err != nil {
		t.Fatalf("seed property: %v", err)
	}
	if err := mustQueryRow(`
        INSERT INTO tenancies (property_id, tenant_id, deposit_amount, start_date, end_date)
        VALUES ($1, $2, 950, now()::date, (now() + interval '18 months')::date) RETURNING id
    `, propertyID, tenantID).Scan(&tenancyID); err != nil {
		t.Fatalf("seed tenancy: %v", err)
	}
	if err := mustQueryRow(`SELECT id FROM deposit_schemes WHERE active ORDER BY name LIMIT 1`).Scan(&schemeID); err != nil {
		t.Fatalf("pick scheme: %v", err)
	}

	t.Cleanup(func() {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel2()
		pool.Exec(ctx2, `DELETE FROM deposit_protection_log WHERE protection_id IN (SELECT id FROM deposit_protections WHERE tenancy_id = $1)`, tenancyID)
		pool.Exec(ctx2, `DELETE FROM deposit_protection_log WHERE protection_id IS NULL AND details LIKE '%'||$1||'%'`, tenancyID)
		pool.Exec(ctx2, `DELETE FROM deposit_protections WHERE tenancy_id = $1`, tenancyID)
		pool.Exec(ctx2, `DELETE FROM tenancies WHERE id = $1`, tenancyID)
		pool.Exec(ctx2, `DELETE FROM properties WHERE id = $1`, propertyID)
		pool.Exec(ctx2, `DELETE FROM users WHERE id IN ($1, $2)`, landlordID, tenantID)
	})

	svc := NewService(pool, NewRepository(pool), tenancy.NewRepository(pool), scheme.NewRepository(pool))
	actor := Actor{ID: landlordID, Role: "landlord"}

	// Register
	reg, err := svc.Register(ctx, RegisterParams{TenancyID: tenancyID, SchemeID: schemeID, Actor: actor})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if reg.ProtectionRef == "" || reg.CertificateRef == "" {
		t.Fatalf("register returned incomplete result: %+v", reg)
	}

	var (
		recID   string
		renewed bool
	)
	if err := mustQueryRow(`SELECT id, renewed FROM deposit_protections WHERE tenancy_id = $1`, tenancyID).Scan(&recID, &renewed); err != nil {
		t.Fatalf("verify record: %v", err)
	}
	if renewed {
		t.Fatal("fresh protection must not be marked renewed")
	}

	var logCount int
	if err := mustQueryRow(`SELECT COUNT(*) FROM deposit_protection_log WHERE protection_id = $1 AND action = 'registration' AND success`, recID).Scan(&logCount); err != nil {
		t.Fatalf("verify registration log: %v", err)
	}
	if logCount != 1 {
		t.Fatalf("expected 1 registration log entry, got %d", logCount)
	}

	// Duplicate registration must hit the unique constraint and leave a
	// failure entry with no protection reference.
	if _, err := svc.Register(ctx, RegisterParams{TenancyID: tenancyID, SchemeID: schemeID, Actor: actor}); !errors.Is(err, ErrAlreadyProtected) {
		t.Fatalf("expected ErrAlreadyProtected, got %v", err)
	}
	if err := mustQueryRow(`SELECT COUNT(*) FROM deposit_protection_log WHERE protection_id IS NULL AND action = 'registration' AND NOT success`).Scan(&logCount); err != nil {
		t.Fatalf("verify failure log: %v", err)
	}
	if logCount < 1 {
		t.Fatal("expected a failure audit entry for the duplicate registration")
	}

	// Renew
	ren, err := svc.Renew(ctx, RenewParams{ProtectionID: reg.ProtectionRef, Actor: actor})
	if err != nil {
		t.Fatalf("renew: %v", err)
	}
	if !ren.NewExpiryDate.After(reg.ExpiryDate) {
		t.Fatalf("renewal must advance expiry: %s -> %s", reg.ExpiryDate, ren.NewExpiryDate)
	}

	var renewalDate *time.Time
	if err := mustQueryRow(`SELECT renewed, renewal_date FROM deposit_protections WHERE id = $1`, recID).Scan(&renewed, &renewalDate); err != nil {
		t.Fatalf("verify renewal: %v", err)
	}
	if !renewed || renewalDate == nil {
		t.Fatal("renewal must set the renewed flag and renewal_date")
	}

	// Dispute
	disp, err := svc.RaiseDispute(ctx, DisputeParams{
		ProtectionID: recID,
		Details:      map[string]any{"reason": "unreturned deposit", "amount": 300},
		Actor:        Actor{ID: tenantID, Role: "tenant"},
	})
	if err != nil {
		t.Fatalf("dispute: %v", err)
	}
	if disp.Status != StatusPending {
		t.Fatalf("expected pending dispute, got %q", disp.Status)
	}

	var disputeReason string
	if err := mustQueryRow(`SELECT dispute_details->>'reason' FROM deposit_protections WHERE id = $1 AND dispute_raised`, recID).Scan(&disputeReason); err != nil {
		t.Fatalf("verify dispute: %v", err)
	}
	if disputeReason != "unreturned deposit" {
		t.Fatalf("unexpected dispute reason %q", disputeReason)
	}

	// Full audit trail: registration, failed registration, renewal, dispute.
	entries, err := svc.History(ctx, reg.ProtectionRef)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries attached to the protection, got %d", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].CreatedAt.After(entries[i-1].CreatedAt) {
			t.Fatal("history must be newest-first")
		}
	}
}

func tableExists(ctx context.Context, t *testing.T, pool *pgxpool.Pool, name string) bool {
	t.Helper()
	var exists bool
	err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)`, name).Scan(&exists)
	if err != nil {
		t.Fatalf("check table %s: %v", name, err)
	}
	return exists
}
