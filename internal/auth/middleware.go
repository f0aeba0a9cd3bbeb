package auth

import (
	"net/http"
	"strconv"
	"strings"
)

// Middleware resolves the bearer token to a session, refreshes the session
// TTL, and injects the user id into the request context. Requests without a
// valid session are rejected with 401.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			http.Error(w, "missing authorization", http.StatusUnauthorized)
			return
		}
		key := tokenKeyPrefix + token
		session, err := s.client.HGetAll(r.Context(), key)
		if err != nil {
			s.logger.Error("session lookup failed", "error", err)
			http.Error(w, "session lookup failed", http.StatusInternalServerError)
			return
		}
		userID, err := strconv.ParseInt(session["id"], 10, 64)
		if len(session) == 0 || err != nil {
			http.Error(w, "invalid session", http.StatusUnauthorized)
			return
		}
		if err := s.client.Expire(r.Context(), key, SessionTTL); err != nil {
			s.logger.Error("session refresh failed", "error", err)
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return h
}
