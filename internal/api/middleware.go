/**
 * @description
 * This file contains custom middleware for the HTTP router: the shared-secret admin
 * guard, the manager identity-token guard (JWT verified against a JWKS endpoint),
 * per-route rate limiting, and client-key derivation for the limiter.
 *
 * @dependencies
 * - context, crypto/rsa, net, net/http, strings: Standard Go libraries.
 * - github.com/golang-jwt/jwt/v5: JWT parsing and verification.
 */

package api

import (
	"context"
	"crypto/rsa"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/enturk/impact-service/internal/app"
	"github.com/enturk/impact-service/internal/domain"
)

// identityContextKey is a custom type for the context key to avoid collisions.
type identityContextKey string

const actorIdentityKey identityContextKey = "actorIdentity"

// GetActorIdentity retrieves the verified manager identity from the request
// context. Handlers use it for audit logging.
func GetActorIdentity(ctx context.Context) (domain.ActorIdentity, bool) {
	identity, ok := ctx.Value(actorIdentityKey).(domain.ActorIdentity)
	return identity, ok
}

// AdminKeyMiddleware guards privileged endpoints with a shared secret. When no
// secret is configured the guard is a no-op: open access is an explicit
// operational choice. The secret is accepted in X-Admin-Key or as a bearer token.
func AdminKeyMiddleware(secret string) func(http.Handler) http.Handler {
	expected := strings.TrimSpace(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if expected == "" {
				next.ServeHTTP(w, r)
				return
			}

			presented := strings.TrimSpace(r.Header.Get("X-Admin-Key"))
			if presented == "" {
				authHeader := r.Header.Get("Authorization")
				if token := strings.TrimPrefix(authHeader, "Bearer "); token != authHeader {
					presented = strings.TrimSpace(token)
				}
			}

			if presented == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) != 1 {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Admin credentials required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ManagerAuthConfig configures the identity-token guard.
type ManagerAuthConfig struct {
	JWKSURL       string
	RoleClaims    []string // claim keys inspected for a manager role
	AllowedRoles  []string // role strings accepted, case-insensitive
	AllowedEmails []string // email allow-list granting manager access directly
}

// ManagerAuthMiddleware verifies a bearer identity token and requires a manager
// role. Failure modes are distinct: missing/invalid token is 401, a verified token
// without a manager claim is 403, and a guard without a configured provider is 503.
func ManagerAuthMiddleware(cfg ManagerAuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Authorization header required")
				return
			}
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Invalid Authorization header format")
				return
			}

			if strings.TrimSpace(cfg.JWKSURL) == "" {
				writeError(w, http.StatusServiceUnavailable, CodeAuthUnavailable, "Identity provider is not configured")
				return
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				kid, ok := token.Header["kid"].(string)
				if !ok {
					return nil, fmt.Errorf("kid not found in token header")
				}
				publicKey, err := getPublicKeyFromJWKS(cfg.JWKSURL, kid)
				if err != nil {
					return nil, fmt.Errorf("failed to get public key: %w", err)
				}
				return publicKey, nil
			})
			if err != nil || !token.Valid {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Invalid or expired token")
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Invalid token claims")
				return
			}

			identity, isManager := resolveManagerIdentity(claims, cfg)
			if !isManager {
				writeError(w, http.StatusForbidden, CodeForbidden, "Manager role required")
				return
			}

			ctx := context.WithValue(r.Context(), actorIdentityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// resolveManagerIdentity extracts the caller identity from verified claims and
// decides manager access: a configured claim key resolves via boolean true, a
// string in the allow-set (case-insensitive), or an array containing such a
// string; failing that, the token email may match the configured allow-list.
func resolveManagerIdentity(claims jwt.MapClaims, cfg ManagerAuthConfig) (domain.ActorIdentity, bool) {
	identity := domain.ActorIdentity{}
	if sub, ok := claims["sub"].(string); ok {
		identity.Subject = sub
	}
	if email, ok := claims["email"].(string); ok {
		identity.Email = strings.TrimSpace(strings.ToLower(email))
	}

	for _, claimKey := range cfg.RoleClaims {
		value, present := claims[claimKey]
		if !present {
			continue
		}
		switch v := value.(type) {
		case bool:
			if v {
				return identity, true
			}
		case string:
			if roleAllowed(v, cfg.AllowedRoles) {
				return identity, true
			}
		case []interface{}:
			for _, item := range v {
				if s, ok := item.(string); ok && roleAllowed(s, cfg.AllowedRoles) {
					return identity, true
				}
			}
		}
	}

	if identity.Email != "" {
		for _, allowed := range cfg.AllowedEmails {
			if strings.EqualFold(strings.TrimSpace(allowed), identity.Email) {
				return identity, true
			}
		}
	}

	return identity, false
}

func roleAllowed(role string, allowed []string) bool {
	role = strings.TrimSpace(role)
	for _, candidate := range allowed {
		if strings.EqualFold(strings.TrimSpace(candidate), role) {
			return true
		}
	}
	return false
}

// getPublicKeyFromJWKS fetches the signing key from the identity provider's JWKS
// endpoint.
func getPublicKeyFromJWKS(jwksURL, kid string) (interface{}, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(jwksURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var jwks struct {
		Keys []struct {
			Kid string `json:"kid"`
			Kty string `json:"kty"`
			Use string `json:"use"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return nil, err
	}

	for _, key := range jwks.Keys {
		if key.Kid == kid {
			return parseRSAPublicKey(key.N, key.E)
		}
	}
	return nil, fmt.Errorf("key with kid %s not found", kid)
}

// parseRSAPublicKey parses an RSA public key from base64url modulus and exponent.
func parseRSAPublicKey(n, e string) (interface{}, error) {
	nb, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %w", err)
	}
	eb, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %w", err)
	}

	var exp uint64
	for _, b := range eb {
		exp = (exp << 8) | uint64(b)
	}

	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: int(exp)}, nil
}

// clientKey derives the rate-limiter bucket key for a request: a trusted
// proxy-supplied address, else the first forwarded-for entry, else the socket
// address, else a shared "unknown" bucket so unidentifiable clients throttle
// together.
func clientKey(r *http.Request) string {
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if first := strings.TrimSpace(strings.Split(forwarded, ",")[0]); first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if addr := strings.TrimSpace(r.RemoteAddr); addr != "" {
		return addr
	}
	return "unknown"
}

// RateLimitMiddleware guards a route group with a fixed window per client key.
// Denials carry a Retry-After header in seconds. Limiter errors fail open: a
// broken Redis must not take down public intake.
func RateLimitMiddleware(limiter app.RateLimiter, scope string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil || limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			allowed, retryAfter, err := limiter.Admit(r.Context(), scope, clientKey(r), limit, window)
			if err != nil {
				log.Printf("level=warn component=api msg=\"rate limiter unavailable; admitting request\" scope=%s err=%v", scope, err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
				writeError(w, http.StatusTooManyRequests, CodeRateLimited, "Too many requests. Retry later.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
