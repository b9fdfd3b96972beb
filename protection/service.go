package protection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"depositflow/scheme"
	"depositflow/tenancy"
)

var (
	// ErrTenancyNotFound signals the tenancy to protect does not exist.
	ErrTenancyNotFound = errors.New("protection: tenancy not found")
	// ErrSchemeNotFound signals the scheme is unknown or inactive.
	ErrSchemeNotFound = errors.New("protection: scheme not found")
	// ErrTenancyEnded signals the tenancy's end date is not in the future, so
	// there is no protection period left to cover.
	ErrTenancyEnded = errors.New("protection: tenancy has already ended")
	// ErrMissingReason signals dispute details without a reason field.
	ErrMissingReason = errors.New("protection: dispute reason required")
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store defines the data access required by the workflows.
type Store interface {
	Insert(ctx context.Context, tx pgx.Tx, rec Record) (Record, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Record, time.Time, error)
	UpdateRenewal(ctx context.Context, tx pgx.Tx, id string, expiry, renewalDate time.Time) (Record, error)
	UpdateDispute(ctx context.Context, tx pgx.Tx, id string, details []byte) (Record, error)
	AppendLog(ctx context.Context, tx pgx.Tx, entry LogEntry) error
	AppendLogDirect(ctx context.Context, entry LogEntry) error
	GetByTenancy(ctx context.Context, tenancyID string) (Details, error)
	History(ctx context.Context, id string) ([]LogEntry, error)
}

// TenancyReader provides the tenancy lookup the registration workflow needs.
type TenancyReader interface {
	Get(ctx context.Context, id string) (tenancy.Summary, error)
}

// SchemeReader provides the scheme catalog lookup.
type SchemeReader interface {
	GetActive(ctx context.Context, id string) (scheme.Scheme, error)
}

// Service orchestrates the deposit protection lifecycle: registration,
// renewal, and dispute. Each workflow performs its record write and audit
// write in a single transaction.
type Service struct {
	pool        TxBeginner
	repo        Store
	tenancies   TenancyReader
	schemes     SchemeReader
	idGenerator func() string
	digits      func(int) string
	now         func() time.Time
}

func NewService(pool TxBeginner, repo Store, tenancies TenancyReader, schemes SchemeReader) *Service {
	return &Service{
		pool:        pool,
		repo:        repo,
		tenancies:   tenancies,
		schemes:     schemes,
		idGenerator: func() string { return uuid.NewString() },
		digits:      randomDigits,
		now:         time.Now,
	}
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGenerator = gen
	return s
}

func (s *Service) WithDigits(digits func(int) string) *Service {
	s.digits = digits
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type RegisterParams struct {
	TenancyID string
	SchemeID  string
	Actor     Actor
}

type RegisterResult struct {
	ProtectionID   string
	ProtectionRef  string
	Scheme         string
	ProtectedOn    time.Time
	CertificateRef string
	ExpiryDate     time.Time
}

// Register protects a tenancy's deposit with the chosen scheme: it creates
// the protection record and its success audit entry atomically. On a
// persistence failure it still attempts a failure audit entry on a fresh
// connection; if that secondary write fails too, the audit error is joined to
// the original rather than swallowed.
func (s *Service) Register(ctx context.Context, params RegisterParams) (RegisterResult, error) {
	if params.TenancyID == "" {
		return RegisterResult{}, fmt.Errorf("protection: missing tenancy id")
	}
	if params.SchemeID == "" {
		return RegisterResult{}, fmt.Errorf("protection: missing scheme id")
	}
	actor := normalizeActor(params.Actor)

	ten, err := s.tenancies.Get(ctx, params.TenancyID)
	if err != nil {
		if errors.Is(err, tenancy.ErrNotFound) {
			return RegisterResult{}, ErrTenancyNotFound
		}
		return RegisterResult{}, fmt.Errorf("protection: lookup tenancy: %w", err)
	}

	sch, err := s.schemes.GetActive(ctx, params.SchemeID)
	if err != nil {
		if errors.Is(err, scheme.ErrNotFound) {
			return RegisterResult{}, ErrSchemeNotFound
		}
		return RegisterResult{}, fmt.Errorf("protection: lookup scheme: %w", err)
	}

	now := s.now().UTC()
	if !ten.EndDate.After(now) {
		return RegisterResult{}, ErrTenancyEnded
	}

	ref := protectionRef(sch.Name, s.digits)
	rec := Record{
		ID:             s.idGenerator(),
		TenancyID:      ten.ID,
		DepositAmount:  ten.DepositAmount,
		SchemeName:     sch.Name,
		ProtectionRef:  ref,
		ProtectedOn:    now,
		CertificateRef: certificatePath(ten.ID, ref),
		ExpiryDate:     ten.EndDate,
	}

	created, err := s.registerTx(ctx, rec, actor, sch)
	if err != nil {
		failEntry := LogEntry{
			ID:        s.idGenerator(),
			Action:    ActionRegistration,
			ActorID:   actor.ID,
			ActorRole: actor.Role,
			Details:   fmt.Sprintf("registration with %s failed for tenancy %s: %v", sch.Name, ten.ID, err),
			Success:   false,
		}
		return RegisterResult{}, s.auditFailure(ctx, failEntry, err)
	}

	return RegisterResult{
		ProtectionID:   created.ID,
		ProtectionRef:  created.ProtectionRef,
		Scheme:         created.SchemeName,
		ProtectedOn:    created.ProtectedOn,
		CertificateRef: created.CertificateRef,
		ExpiryDate:     created.ExpiryDate,
	}, nil
}

func (s *Service) registerTx(ctx context.Context, rec Record, actor Actor, sch scheme.Scheme) (Record, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("protection: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	created, err := s.repo.Insert(ctx, tx, rec)
	if err != nil {
		return Record{}, err
	}

	// Mocked scheme response: the raw payload a real scheme API would return.
	payload := mustJSON(map[string]any{
		"scheme":          sch.Name,
		"protection_ref":  created.ProtectionRef,
		"certificate_ref": created.CertificateRef,
		"protected_on":    created.ProtectedOn.Format(time.RFC3339),
	})

	entry := LogEntry{
		ID:              s.idGenerator(),
		ProtectionID:    &created.ID,
		Action:          ActionRegistration,
		ActorID:         actor.ID,
		ActorRole:       actor.Role,
		Details:         fmt.Sprintf("deposit protected with %s, reference %s", created.SchemeName, created.ProtectionRef),
		Success:         true,
		ResponsePayload: payload,
	}
	if err := s.repo.AppendLog(ctx, tx, entry); err != nil {
		return Record{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, fmt.Errorf("protection: commit registration: %w", err)
	}

	return created, nil
}

type RenewParams struct {
	ProtectionID string
	Actor        Actor
}

type RenewResult struct {
	RenewalDate   time.Time
	NewExpiryDate time.Time
}

// Renew extends a protection. The new expiry is the tenancy's end date; when
// that date is not in the future it becomes one year from now, and when it
// still would not advance the current expiry it becomes one year past it.
// Each call is a discrete renewal event, never idempotent.
func (s *Service) Renew(ctx context.Context, params RenewParams) (RenewResult, error) {
	if params.ProtectionID == "" {
		return RenewResult{}, fmt.Errorf("protection: missing protection id")
	}
	actor := normalizeActor(params.Actor)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return RenewResult{}, fmt.Errorf("protection: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rec, tenancyEnd, err := s.repo.GetForUpdate(ctx, tx, params.ProtectionID)
	if err != nil {
		return RenewResult{}, err
	}

	now := s.now().UTC()
	expiry := tenancyEnd
	if !expiry.After(now) {
		expiry = now.AddDate(1, 0, 0)
	}
	if !expiry.After(rec.ExpiryDate) {
		expiry = rec.ExpiryDate.AddDate(1, 0, 0)
	}

	result, err := s.renewTx(ctx, tx, rec, actor, expiry, now)
	if err != nil {
		// Release the FOR UPDATE lock first: the failure entry references the
		// locked row and its FK check would otherwise wait on our own tx.
		_ = tx.Rollback(ctx)
		failEntry := LogEntry{
			ID:           s.idGenerator(),
			ProtectionID: &rec.ID,
			Action:       ActionRenewal,
			ActorID:      actor.ID,
			ActorRole:    actor.Role,
			Details:      fmt.Sprintf("renewal failed: %v", err),
			Success:      false,
		}
		return RenewResult{}, s.auditFailure(ctx, failEntry, err)
	}

	return result, nil
}

func (s *Service) renewTx(ctx context.Context, tx pgx.Tx, rec Record, actor Actor, expiry, now time.Time) (RenewResult, error) {
	updated, err := s.repo.UpdateRenewal(ctx, tx, rec.ID, expiry, now)
	if err != nil {
		return RenewResult{}, err
	}

	entry := LogEntry{
		ID:           s.idGenerator(),
		ProtectionID: &updated.ID,
		Action:       ActionRenewal,
		ActorID:      actor.ID,
		ActorRole:    actor.Role,
		Details:      fmt.Sprintf("protection renewed, expiry extended to %s", expiry.Format("2006-01-02")),
		Success:      true,
	}
	if err := s.repo.AppendLog(ctx, tx, entry); err != nil {
		return RenewResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return RenewResult{}, fmt.Errorf("protection: commit renewal: %w", err)
	}

	renewedAt := now
	if updated.RenewalDate != nil {
		renewedAt = *updated.RenewalDate
	}
	return RenewResult{
		RenewalDate:   renewedAt,
		NewExpiryDate: updated.ExpiryDate,
	}, nil
}

type DisputeParams struct {
	ProtectionID string
	Details      map[string]any
	Actor        Actor
}

type DisputeResult struct {
	DisputeRef  string
	DisputeDate time.Time
	Status      string
}

// RaiseDispute flags a protection as disputed and stores the details as an
// opaque structured payload. Validation failures mutate nothing and write no
// audit entry. Resolution is outside this subsystem; status is always
// "pending".
func (s *Service) RaiseDispute(ctx context.Context, params DisputeParams) (DisputeResult, error) {
	if params.ProtectionID == "" {
		return DisputeResult{}, fmt.Errorf("protection: missing protection id")
	}
	reason, _ := params.Details["reason"].(string)
	if strings.TrimSpace(reason) == "" {
		return DisputeResult{}, ErrMissingReason
	}
	actor := normalizeActor(params.Actor)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return DisputeResult{}, fmt.Errorf("protection: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rec, _, err := s.repo.GetForUpdate(ctx, tx, params.ProtectionID)
	if err != nil {
		return DisputeResult{}, err
	}

	now := s.now().UTC()
	ref := disputeRef(s.digits)

	details := make(map[string]any, len(params.Details)+3)
	for k, v := range params.Details {
		details[k] = v
	}
	details["dispute_ref"] = ref
	details["dispute_date"] = now.Format(time.RFC3339)
	details["status"] = StatusPending

	result, err := s.disputeTx(ctx, tx, rec, actor, ref, now, mustJSON(details))
	if err != nil {
		// Release the FOR UPDATE lock first: the failure entry references the
		// locked row and its FK check would otherwise wait on our own tx.
		_ = tx.Rollback(ctx)
		failEntry := LogEntry{
			ID:           s.idGenerator(),
			ProtectionID: &rec.ID,
			Action:       ActionDispute,
			ActorID:      actor.ID,
			ActorRole:    actor.Role,
			Details:      fmt.Sprintf("dispute %s failed: %v", ref, err),
			Success:      false,
		}
		return DisputeResult{}, s.auditFailure(ctx, failEntry, err)
	}

	return result, nil
}

func (s *Service) disputeTx(ctx context.Context, tx pgx.Tx, rec Record, actor Actor, ref string, now time.Time, details []byte) (DisputeResult, error) {
	updated, err := s.repo.UpdateDispute(ctx, tx, rec.ID, details)
	if err != nil {
		return DisputeResult{}, err
	}

	entry := LogEntry{
		ID:              s.idGenerator(),
		ProtectionID:    &updated.ID,
		Action:          ActionDispute,
		ActorID:         actor.ID,
		ActorRole:       actor.Role,
		Details:         fmt.Sprintf("dispute %s raised against %s", ref, updated.ProtectionRef),
		Success:         true,
		ResponsePayload: details,
	}
	if err := s.repo.AppendLog(ctx, tx, entry); err != nil {
		return DisputeResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return DisputeResult{}, fmt.Errorf("protection: commit dispute: %w", err)
	}

	return DisputeResult{
		DisputeRef:  ref,
		DisputeDate: now,
		Status:      StatusPending,
	}, nil
}

// GetByTenancy returns the protection display view for a tenancy.
func (s *Service) GetByTenancy(ctx context.Context, tenancyID string) (Details, error) {
	if tenancyID == "" {
		return Details{}, fmt.Errorf("protection: missing tenancy id")
	}
	return s.repo.GetByTenancy(ctx, tenancyID)
}

// History returns the audit trail for a protection, newest first.
func (s *Service) History(ctx context.Context, protectionID string) ([]LogEntry, error) {
	if protectionID == "" {
		return nil, fmt.Errorf("protection: missing protection id")
	}
	return s.repo.History(ctx, protectionID)
}

// auditFailure attempts the best-effort failure audit write and makes sure a
// secondary logging failure never masks the original error.
func (s *Service) auditFailure(ctx context.Context, entry LogEntry, cause error) error {
	if logErr := s.repo.AppendLogDirect(ctx, entry); logErr != nil {
		return errors.Join(cause, fmt.Errorf("protection: record failure audit: %w", logErr))
	}
	return cause
}

func normalizeActor(a Actor) Actor {
	if a.ID == "" {
		a.ID = "system"
	}
	if a.Role == "" {
		a.Role = "unknown"
	}
	return a
}

func mustJSON(m map[string]any) []byte {
	b, err := json.Marshal(m)
	if err != nil {
		panic(err)
	}
	return b
}
