package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"depositflow/auth"
	"depositflow/protection"
)

type registerDepositRequest struct {
	TenancyID string `json:"tenancyId"`
	SchemeID  string `json:"schemeId"`
	UserID    string `json:"userId"`
	UserType  string `json:"userType"`
}

func (s *Server) handleRegisterDeposit(w http.ResponseWriter, r *http.Request) {
	var req registerDepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid JSON body")
		return
	}
	if req.TenancyID == "" || req.SchemeID == "" {
		writeError(w, http.StatusBadRequest, "missing_fields", "tenancyId and schemeId are required")
		return
	}

	res, err := s.protectionService.Register(r.Context(), protection.RegisterParams{
		TenancyID: req.TenancyID,
		SchemeID:  req.SchemeID,
		Actor:     actorFromRequest(r, req.UserID, req.UserType),
	})
	if err != nil {
		switch {
		case errors.Is(err, protection.ErrTenancyNotFound), errors.Is(err, protection.ErrSchemeNotFound):
			writeError(w, http.StatusNotFound, "not_found", err.Error())
		case errors.Is(err, protection.ErrTenancyEnded):
			writeError(w, http.StatusBadRequest, "tenancy_ended", "tenancy has already ended")
		case errors.Is(err, protection.ErrAlreadyProtected):
			writeError(w, http.StatusConflict, "already_protected", "tenancy already has a protected deposit")
		default:
			s.log.WithError(err).Error("register deposit")
			writeError(w, http.StatusInternalServerError, "internal", "deposit registration failed")
		}
		return
	}

	writeJSON(w, http.StatusCreated, registerDepositResponse{
		Success:        true,
		ProtectionID:   res.ProtectionRef,
		Scheme:         res.Scheme,
		ProtectedDate:  res.ProtectedOn.Format(time.RFC3339),
		CertificateURL: res.CertificateRef,
		ExpiryDate:     res.ExpiryDate.Format(time.RFC3339),
	})
}

type actorRequest struct {
	UserID   string `json:"userId"`
	UserType string `json:"userType"`
}

func (s *Server) handleRenewDeposit(w http.ResponseWriter, r *http.Request) {
	var req actorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid JSON body")
		return
	}

	res, err := s.protectionService.Renew(r.Context(), protection.RenewParams{
		ProtectionID: chi.URLParam(r, "id"),
		Actor:        actorFromRequest(r, req.UserID, req.UserType),
	})
	if err != nil {
		if errors.Is(err, protection.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "protection record not found")
			return
		}
		s.log.WithError(err).Error("renew deposit")
		writeError(w, http.StatusInternalServerError, "internal", "deposit renewal failed")
		return
	}

	writeJSON(w, http.StatusOK, renewDepositResponse{
		Success:       true,
		RenewalDate:   res.RenewalDate.Format(time.RFC3339),
		NewExpiryDate: res.NewExpiryDate.Format(time.RFC3339),
	})
}

type disputeRequest struct {
	DisputeDetails map[string]any `json:"disputeDetails"`
	UserID         string         `json:"userId"`
	UserType       string         `json:"userType"`
}

func (s *Server) handleRaiseDispute(w http.ResponseWriter, r *http.Request) {
	var req disputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid JSON body")
		return
	}

	res, err := s.protectionService.RaiseDispute(r.Context(), protection.DisputeParams{
		ProtectionID: chi.URLParam(r, "id"),
		Details:      req.DisputeDetails,
		Actor:        actorFromRequest(r, req.UserID, req.UserType),
	})
	if err != nil {
		switch {
		case errors.Is(err, protection.ErrMissingReason):
			writeError(w, http.StatusBadRequest, "missing_reason", "disputeDetails.reason is required")
		case errors.Is(err, protection.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", "protection record not found")
		default:
			s.log.WithError(err).Error("raise dispute")
			writeError(w, http.StatusInternalServerError, "internal", "dispute could not be raised")
		}
		return
	}

	writeJSON(w, http.StatusOK, disputeResponse{
		Success:     true,
		DisputeID:   res.DisputeRef,
		DisputeDate: res.DisputeDate.Format(time.RFC3339),
		Status:      res.Status,
	})
}

func (s *Server) handleListSchemes(w http.ResponseWriter, r *http.Request) {
	schemes, err := s.schemeService.ListActive(r.Context())
	if err != nil {
		s.log.WithError(err).Error("list schemes")
		writeError(w, http.StatusInternalServerError, "internal", "could not load schemes")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"schemes": newSchemeResponses(schemes),
	})
}

func (s *Server) handleTenancyProtection(w http.ResponseWriter, r *http.Request) {
	details, err := s.protectionService.GetByTenancy(r.Context(), chi.URLParam(r, "tenancyId"))
	if err != nil {
		if errors.Is(err, protection.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "no protection for tenancy")
			return
		}
		s.log.WithError(err).Error("get tenancy protection")
		writeError(w, http.StatusInternalServerError, "internal", "could not load protection")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"protection": newProtectionResponse(details),
	})
}

func (s *Server) handleProtectionHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.protectionService.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.log.WithError(err).Error("protection history")
		writeError(w, http.StatusInternalServerError, "internal", "could not load history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"history": newHistoryResponses(entries),
	})
}

func (s *Server) handleAuthRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid JSON body")
		return
	}

	user, err := s.authService.Register(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrWeakPassword):
			writeError(w, http.StatusBadRequest, "weak_password", err.Error())
		case errors.Is(err, auth.ErrDuplicateEmail):
			writeError(w, http.StatusConflict, "duplicate_email", "email already registered")
		default:
			writeError(w, http.StatusBadRequest, "invalid_registration", err.Error())
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"user":    newUserResponse(user),
	})
}

func (s *Server) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid JSON body")
		return
	}

	result, err := s.authService.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
			return
		}
		s.log.WithError(err).Error("login")
		writeError(w, http.StatusInternalServerError, "internal", "login failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"token":   result.Token,
		"user":    newUserResponse(&result.User),
	})
}

func (s *Server) handleAuthMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(ctxKeyUserID).(string)
	if !ok || userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	user, err := s.authService.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		s.log.WithError(err).Error("load current user")
		writeError(w, http.StatusInternalServerError, "internal", "could not load user")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    newUserResponse(user),
	})
}
