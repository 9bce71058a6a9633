// Package auth verifies HS256 bearer tokens and carries the caller's
// identity on the request context.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/knockwise/knockwise/internal/app/system/apperr"
	"github.com/knockwise/knockwise/internal/app/system/respond"
	"go.uber.org/zap"
)

var signingMethod = jwt.SigningMethodHS256

// SessionUser is the authenticated caller injected into r.Context().
type SessionUser struct {
	ID   string
	Role string
}

// Claims is the token payload. Issuance lives outside this service; MintToken
// exists for tests and operator tooling.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the user and a found flag.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	return FromContext(r.Context())
}

func FromContext(ctx context.Context) (*SessionUser, bool) {
	u, ok := ctx.Value(currentUserKey).(*SessionUser)
	return u, ok && u != nil
}

// WithTestUser injects u into r; used by handler tests.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

// Verifier checks bearer tokens signed with a shared secret.
type Verifier struct {
	secret []byte
	log    *zap.Logger
}

func NewVerifier(secret string, log *zap.Logger) *Verifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Verifier{secret: []byte(secret), log: log}
}

// Parse validates token and returns its claims.
func (v *Verifier) Parse(token string) (*Claims, error) {
	if len(v.secret) == 0 {
		return nil, fmt.Errorf("jwt secret is required")
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (interface{}, error) {
			if t.Method != signingMethod {
				return nil, fmt.Errorf("unexpected signing method %s", t.Header["alg"])
			}
			return v.secret, nil
		},
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
	)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(claims.UserID) == "" {
		return nil, fmt.Errorf("token has no user_id")
	}
	return claims, nil
}

// Middleware authenticates every request. Missing or invalid credentials
// end the request with 401.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get("Authorization"))
		token := raw
		if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
			token = strings.TrimSpace(token[7:])
		}
		if token == "" {
			respond.Error(w, v.log, apperr.New(apperr.CodeUnauthorized, "missing credentials"))
			return
		}
		claims, err := v.Parse(token)
		if err != nil {
			respond.Error(w, v.log, apperr.Wrap(apperr.CodeUnauthorized, err, "invalid token"))
			return
		}
		u := &SessionUser{ID: claims.UserID, Role: strings.ToLower(claims.Role)}
		next.ServeHTTP(w, WithTestUser(r, u))
	})
}

// RequireRole rejects callers whose role is not in allowed.
func RequireRole(log *zap.Logger, allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		set[strings.ToLower(strings.TrimSpace(role))] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := CurrentUser(r)
			if !ok {
				respond.Error(w, log, apperr.New(apperr.CodeUnauthorized, "authentication required"))
				return
			}
			if _, has := set[u.Role]; !has {
				respond.Error(w, log, apperr.New(apperr.CodeForbidden, "role not permitted"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MintToken signs a token for userID with role, valid for ttl.
func MintToken(secret, userID, role string, now time.Time, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("jwt secret is required")
	}
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}
