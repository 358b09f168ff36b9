package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// UserContextKey holds the authenticated user_id.
const UserContextKey ContextKey = "user_id"

// Authenticator verifies a bearer token and returns the user_id it
// belongs to. Token issuance and verification (JWT signing, OAuth,
// SSO) are an external collaborator per spec §1 — this package only
// defines the boundary the gateway calls through, the way
// control_plane/middleware's AuthMiddleware calls through to
// control_plane/auth.ValidateToken, but without reimplementing the
// token format itself.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (userID string, err error)
}

// TrustHeaderAuthenticator is an Authenticator for deployments that
// terminate auth at a trusted upstream proxy (API gateway, service mesh)
// and forward the verified identity as a header. It does no verification
// of its own — it exists so single-operator or test deployments have a
// working Authenticator without standing up a token issuer.
type TrustHeaderAuthenticator struct{}

func (TrustHeaderAuthenticator) Authenticate(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("middleware: empty bearer token")
	}
	return token, nil
}

// Auth enforces bearer authentication via the given Authenticator and
// stamps the resolved user_id into the request context.
func Auth(authenticator Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				http.Error(w, "missing Authorization header", http.StatusUnauthorized)
				return
			}
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "invalid Authorization format, expected 'Bearer <token>'", http.StatusUnauthorized)
				return
			}
			userID, err := authenticator.Authenticate(r.Context(), parts[1])
			if err != nil {
				http.Error(w, fmt.Sprintf("unauthorized: %v", err), http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), UserContextKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext retrieves the user_id stamped by Auth.
func UserFromContext(ctx context.Context) (string, error) {
	v := ctx.Value(UserContextKey)
	if v == nil {
		return "", fmt.Errorf("middleware: user_id not found in context")
	}
	userID, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("middleware: user_id in context is not a string")
	}
	return userID, nil
}
