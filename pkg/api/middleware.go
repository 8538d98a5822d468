package api

import (
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ethpandaops/benchtrack/pkg/config"
)

// requestLogger logs incoming HTTP requests.
func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)

		s.log.WithField("method", r.Method).
			WithField("path", r.URL.Path).
			WithField("remote", r.RemoteAddr).
			WithField("duration", time.Since(start)).
			Debug("Request handled")
	})
}

// basicAuthUsers maps usernames to bcrypt password hashes.
type basicAuthUsers map[string][]byte

func newBasicAuthUsers(users []config.BasicAuthUser) basicAuthUsers {
	out := make(basicAuthUsers, len(users))
	for _, u := range users {
		out[u.Username] = []byte(u.PasswordHash)
	}

	return out
}

// basicAuth rejects requests without valid HTTP basic credentials.
func (s *server) basicAuth(users basicAuthUsers) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			if !ok {
				unauthorized(w, "authentication required")

				return
			}

			hash, known := users[username]
			if !known {
				unauthorized(w, "invalid credentials")

				return
			}

			if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
				unauthorized(w, "invalid credentials")

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Basic realm="benchtrack"`)
	writeJSON(w, http.StatusUnauthorized, errorResponse{msg})
}
