package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"depositflow/auth"
	"depositflow/protection"
)

type ctxKey int

const (
	ctxKeyUserID ctxKey = iota
	ctxKeyRole
)

// requestLogger emits one structured line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		}).Info("request")
	})
}

// optionalAuth resolves the acting user from a bearer token when one is
// supplied. Requests without a token pass through; the deposit endpoints fall
// back to body-level actor fields for attribution.
func (s *Server) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		token := strings.TrimPrefix(header, "Bearer ")
		if token == header || token == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "malformed authorization header")
			return
		}

		userID, role, err := s.authService.VerifyToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyUserID, userID)
		ctx = context.WithValue(ctx, ctxKeyRole, role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// actorFromRequest prefers the authenticated identity over body-supplied
// attribution fields.
func actorFromRequest(r *http.Request, bodyUserID, bodyUserType string) protection.Actor {
	if userID, ok := r.Context().Value(ctxKeyUserID).(string); ok && userID != "" {
		actor := protection.Actor{ID: userID}
		if role, ok := r.Context().Value(ctxKeyRole).(auth.Role); ok {
			actor.Role = string(role)
		}
		return actor
	}
	return protection.Actor{ID: bodyUserID, Role: bodyUserType}
}
