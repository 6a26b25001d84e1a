package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/ecoboard/ecoboard/internal/domain"
)

// TokenVerifier resolves an opaque caller credential to a stable user id.
type TokenVerifier interface {
	Resolve(token string) (string, error)
}

// StaticVerifier resolves tokens from a fixed token→user map. The built-in
// verifier for single-node deployments and tests.
type StaticVerifier map[string]string

var errUnknownToken = errors.New("unknown token")

// Resolve implements TokenVerifier.
func (v StaticVerifier) Resolve(token string) (string, error) {
	if id, ok := v[token]; ok {
		return id, nil
	}
	return "", errUnknownToken
}

type identityKey struct{}

// identityMiddleware resolves the Authorization bearer token to a user id
// and stores it on the request context. Resolution failures degrade to the
// "default" identity — logged, never fatal.
func (s *Server) identityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := domain.DefaultIdentity

		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token != "" {
			if id, err := s.verifier.Resolve(token); err != nil {
				log.Printf("[api] identity resolution failed, using %q: %v", domain.DefaultIdentity, err)
			} else {
				identity = id
			}
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, identity)))
	})
}

// identityFrom returns the resolved caller identity.
func identityFrom(r *http.Request) string {
	if id, ok := r.Context().Value(identityKey{}).(string); ok {
		return id
	}
	return domain.DefaultIdentity
}
