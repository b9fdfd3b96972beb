package scheme

import "time"

// Scheme mirrors a row of the deposit_schemes catalog. Schemes are seeded by
// migrations and administered outside the workflows, which only ever read them.
type Scheme struct {
	ID          string
	Name        string
	WebsiteURL  string
	APIEndpoint *string
	APIKeyRef   string
	Active      bool
	Description string
	LogoURL     string
	CreatedAt   time.Time
}
