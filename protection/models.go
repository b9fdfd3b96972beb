package protection

import "time"

// Action enumerates the workflow kinds recorded in the audit log.
type Action string

const (
	ActionRegistration Action = "registration"
	ActionRenewal      Action = "renewal"
	ActionDispute      Action = "dispute"
)

// StatusPending is the only dispute status the subsystem ever reports;
// resolution happens outside it.
const StatusPending = "pending"

// Actor identifies who triggered a workflow, for audit attribution only.
type Actor struct {
	ID   string
	Role string
}

// Record mirrors the deposit_protections table. Exactly one record exists per
// tenancy; it is never hard-deleted.
type Record struct {
	ID             string
	TenancyID      string
	DepositAmount  float64
	SchemeName     string
	ProtectionRef  string
	ProtectedOn    time.Time
	CertificateRef string
	ExpiryDate     time.Time
	Renewed        bool
	RenewalDate    *time.Time
	DisputeRaised  bool
	DisputeDetails []byte
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// LogEntry is an immutable audit row. ProtectionID is nil when a registration
// failed before a record existed.
type LogEntry struct {
	ID              string
	ProtectionID    *string
	Action          Action
	ActorID         string
	ActorRole       string
	Details         string
	Success         bool
	ResponsePayload []byte
	CreatedAt       time.Time
}

// Details is the display join of a protection record with its tenancy,
// property, parties, and scheme.
type Details struct {
	Record
	TenancyStartDate time.Time
	TenancyEndDate   time.Time
	PropertyTitle    string
	PropertyAddress  string
	PropertyCity     string
	LandlordName     string
	TenantName       string
	SchemeWebsiteURL *string
}
