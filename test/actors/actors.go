package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"depositflow/protection"
)

// Registrar hammers Register for a single tenancy. Exactly one attempt across
// all registrars may ever succeed; every later attempt must surface
// ErrAlreadyProtected. Transient connection errors are tolerated because the
// chaos goroutine kills backends.
func Registrar(ctx context.Context, svc *protection.Service, tenancyID, schemeID string, stop <-chan struct{}) error {
	actor := protection.Actor{ID: "registrar", Role: "landlord"}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		_, err := svc.Register(ctx, protection.RegisterParams{
			TenancyID: tenancyID,
			SchemeID:  schemeID,
			Actor:     actor,
		})
		switch {
		case err == nil:
		case errors.Is(err, protection.ErrAlreadyProtected):
			// expected under contention
		case errors.Is(err, protection.ErrTenancyNotFound), errors.Is(err, protection.ErrSchemeNotFound):
			return fmt.Errorf("registrar: seed data vanished: %w", err)
		default:
			// connection casualties from chaos
		}
		time.Sleep(time.Duration(10+rand.Intn(20)) * time.Millisecond)
	}
}

// Renewer renews one protection in a loop and verifies that every successful
// renewal strictly advances the expiry it last observed.
func Renewer(ctx context.Context, svc *protection.Service, protectionRef string, stop <-chan struct{}) error {
	actor := protection.Actor{ID: "renewer", Role: "agent"}
	var lastExpiry time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		res, err := svc.Renew(ctx, protection.RenewParams{
			ProtectionID: protectionRef,
			Actor:        actor,
		})
		if err == nil {
			if !lastExpiry.IsZero() && !res.NewExpiryDate.After(lastExpiry) {
				return fmt.Errorf("renewer: expiry did not advance: %s then %s",
					lastExpiry.Format(time.RFC3339), res.NewExpiryDate.Format(time.RFC3339))
			}
			lastExpiry = res.NewExpiryDate
		} else if errors.Is(err, protection.ErrNotFound) {
			return fmt.Errorf("renewer: protection disappeared: %w", err)
		}
		time.Sleep(time.Duration(20+rand.Intn(40)) * time.Millisecond)
	}
}

// Disputer raises disputes against one protection. Raising a dispute twice is
// legal (last write wins), so every successful call only has to report a
// pending status.
func Disputer(ctx context.Context, svc *protection.Service, protectionRef string, stop <-chan struct{}) error {
	actor := protection.Actor{ID: "disputer", Role: "tenant"}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		res, err := svc.RaiseDispute(ctx, protection.DisputeParams{
			ProtectionID: protectionRef,
			Details: map[string]any{
				"reason": "cleaning costs",
				"amount": 100 + rand.Intn(400),
			},
			Actor: actor,
		})
		if err == nil && res.Status != protection.StatusPending {
			return fmt.Errorf("disputer: unexpected status %q", res.Status)
		}
		if errors.Is(err, protection.ErrNotFound) {
			return fmt.Errorf("disputer: protection disappeared: %w", err)
		}
		time.Sleep(time.Duration(50+rand.Intn(100)) * time.Millisecond)
	}
}

// HistoryReader polls the tenancy view and the audit trail while writers are
// active, checking that history stays newest-first.
func HistoryReader(ctx context.Context, svc *protection.Service, tenancyID, protectionRef string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		if _, err := svc.GetByTenancy(ctx, tenancyID); err != nil && errors.Is(err, protection.ErrNotFound) {
			return fmt.Errorf("history reader: tenancy view lost protection: %w", err)
		}

		entries, err := svc.History(ctx, protectionRef)
		if err == nil {
			for i := 1; i < len(entries); i++ {
				if entries[i].CreatedAt.After(entries[i-1].CreatedAt) {
					return fmt.Errorf("history reader: entries out of order at %d", i)
				}
			}
		}
		time.Sleep(time.Duration(30+rand.Intn(50)) * time.Millisecond)
	}
}
