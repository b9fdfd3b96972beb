package main

import (
	"encoding/json"
	"net/http"
	"time"

	"depositflow/auth"
	"depositflow/protection"
	"depositflow/scheme"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

type registerDepositResponse struct {
	Success        bool   `json:"success"`
	ProtectionID   string `json:"protectionId"`
	Scheme         string `json:"scheme"`
	ProtectedDate  string `json:"protectedDate"`
	CertificateURL string `json:"certificateUrl"`
	ExpiryDate     string `json:"expiryDate"`
}

type renewDepositResponse struct {
	Success       bool   `json:"success"`
	RenewalDate   string `json:"renewalDate"`
	NewExpiryDate string `json:"newExpiryDate"`
}

type disputeResponse struct {
	Success     bool   `json:"success"`
	DisputeID   string `json:"disputeId"`
	DisputeDate string `json:"disputeDate"`
	Status      string `json:"status"`
}

type schemeResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	WebsiteURL  string `json:"websiteUrl"`
	Description string `json:"description"`
	LogoURL     string `json:"logoUrl"`
}

type protectionResponse struct {
	ProtectionID   string          `json:"protectionId"`
	TenancyID      string          `json:"tenancyId"`
	DepositAmount  float64         `json:"depositAmount"`
	Scheme         string          `json:"scheme"`
	SchemeWebsite  *string         `json:"schemeWebsite,omitempty"`
	ProtectedDate  string          `json:"protectedDate"`
	CertificateURL string          `json:"certificateUrl"`
	ExpiryDate     string          `json:"expiryDate"`
	Renewed        bool            `json:"renewed"`
	RenewalDate    *string         `json:"renewalDate,omitempty"`
	DisputeRaised  bool            `json:"disputeRaised"`
	DisputeDetails json.RawMessage `json:"disputeDetails,omitempty"`
	Property       string          `json:"property"`
	Address        string          `json:"address"`
	City           string          `json:"city"`
	Landlord       string          `json:"landlord"`
	Tenant         string          `json:"tenant"`
	TenancyEndDate string          `json:"tenancyEndDate"`
}

type historyEntryResponse struct {
	ID              string          `json:"id"`
	Action          string          `json:"action"`
	ActorID         string          `json:"actorId"`
	ActorRole       string          `json:"actorRole"`
	Details         string          `json:"details"`
	Success         bool            `json:"success"`
	ResponsePayload json.RawMessage `json:"responsePayload,omitempty"`
	Timestamp       string          `json:"timestamp"`
}

type userResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
}

func newProtectionResponse(d protection.Details) protectionResponse {
	resp := protectionResponse{
		ProtectionID:   d.ProtectionRef,
		TenancyID:      d.TenancyID,
		DepositAmount:  d.DepositAmount,
		Scheme:         d.SchemeName,
		SchemeWebsite:  d.SchemeWebsiteURL,
		ProtectedDate:  d.ProtectedOn.Format(time.RFC3339),
		CertificateURL: d.CertificateRef,
		ExpiryDate:     d.ExpiryDate.Format(time.RFC3339),
		Renewed:        d.Renewed,
		DisputeRaised:  d.DisputeRaised,
		DisputeDetails: d.DisputeDetails,
		Property:       d.PropertyTitle,
		Address:        d.PropertyAddress,
		City:           d.PropertyCity,
		Landlord:       d.LandlordName,
		Tenant:         d.TenantName,
		TenancyEndDate: d.TenancyEndDate.Format(time.RFC3339),
	}
	if d.RenewalDate != nil {
		formatted := d.RenewalDate.Format(time.RFC3339)
		resp.RenewalDate = &formatted
	}
	return resp
}

func newSchemeResponses(schemes []scheme.Scheme) []schemeResponse {
	out := make([]schemeResponse, 0, len(schemes))
	for _, s := range schemes {
		out = append(out, schemeResponse{
			ID:          s.ID,
			Name:        s.Name,
			WebsiteURL:  s.WebsiteURL,
			Description: s.Description,
			LogoURL:     s.LogoURL,
		})
	}
	return out
}

func newHistoryResponses(entries []protection.LogEntry) []historyEntryResponse {
	out := make([]historyEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, historyEntryResponse{
			ID:              e.ID,
			Action:          string(e.Action),
			ActorID:         e.ActorID,
			ActorRole:       e.ActorRole,
			Details:         e.Details,
			Success:         e.Success,
			ResponsePayload: e.ResponsePayload,
			Timestamp:       e.CreatedAt.Format(time.RFC3339),
		})
	}
	return out
}

func newUserResponse(u *auth.User) userResponse {
	return userResponse{
		ID:       u.ID,
		Email:    u.Email,
		FullName: u.FullName,
		Role:     string(u.Role),
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Success: false, Error: message, Code: code})
}
