package tenancy

import "time"

// Tenancy is the read-side view of a lease the deposit workflows depend on.
// The rows themselves are owned by the lettings side of the marketplace;
// this package only ever reads them.
type Tenancy struct {
	ID            string
	PropertyID    string
	TenantID      string
	DepositAmount float64
	StartDate     time.Time
	EndDate       time.Time
	Active        bool
}

// Summary joins the tenancy with its property, landlord, and tenant for
// display and audit attribution.
type Summary struct {
	Tenancy
	PropertyTitle   string
	PropertyAddress string
	PropertyCity    string
	Postcode        string
	LandlordID      string
	LandlordName    string
	TenantName      string
}
