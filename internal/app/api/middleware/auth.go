package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"go.uber.org/zap"

	cfgpkg "github.com/fatflowers/truckstamp/pkg/config"
	"github.com/fatflowers/truckstamp/pkg/logctx"
	"github.com/fatflowers/truckstamp/pkg/response"
)

var (
	ErrMissingToken      = errors.New("missing bearer token")
	ErrInvalidToken      = errors.New("invalid token")
	ErrAuthNotConfigured = errors.New("auth secret not configured")
)

// TokenVerifier validates HS256 bearer tokens; the subject claim is the user id.
type TokenVerifier struct {
	secret []byte
	issuer string
}

func NewTokenVerifier(cfg *cfgpkg.Config) *TokenVerifier {
	return &TokenVerifier{secret: []byte(cfg.Auth.JWTSecret), issuer: cfg.Auth.Issuer}
}

// Subject parses an Authorization header value and returns the token subject.
func (v *TokenVerifier) Subject(authorization string) (string, error) {
	if len(v.secret) == 0 {
		return "", ErrAuthNotConfigured
	}
	raw, ok := strings.CutPrefix(authorization, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return "", ErrMissingToken
	}

	claims := &jwt.StandardClaims{}
	_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return "", fmt.Errorf("%w: issuer mismatch", ErrInvalidToken)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}

// Issue signs a token for subject. Used by tooling and tests.
func (v *TokenVerifier) Issue(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.StandardClaims{
		Subject:   subject,
		Issuer:    v.issuer,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(v *TokenVerifier, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject, err := v.Subject(c.GetHeader("Authorization"))
		if err != nil {
			logctx.FromGin(c, base).Infow("auth rejected", "err", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				response.RejectT[any](response.APIResponseCodeUnauthorized, "UNAUTHORIZED", "authentication required", nil))
			return
		}
		setSubject(c, base, subject)
		c.Next()
	}
}

// OptionalAuth attaches the subject when a valid token is present and otherwise continues anonymously.
func OptionalAuth(v *TokenVerifier, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if h := c.GetHeader("Authorization"); h != "" {
			if subject, err := v.Subject(h); err == nil {
				setSubject(c, base, subject)
			}
		}
		c.Next()
	}
}

// Subject returns the authenticated user id, or "" for anonymous requests.
func Subject(c *gin.Context) string {
	return c.GetString(logctx.UserIDKey)
}

func setSubject(c *gin.Context, base *zap.SugaredLogger, subject string) {
	c.Set(logctx.UserIDKey, subject)
	c.Request = c.Request.WithContext(logctx.WithUserID(c.Request.Context(), subject))
	setRequestLogger(c, logctx.FromGin(c, base).With("user_id", subject))
}
