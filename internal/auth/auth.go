// auth.go - Optional bearer token verification

package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/sirupsen/logrus"
)

const (
	userIDKey = "userID"
	issuer    = "product_identify"
)

var ErrInvalidToken = errors.New("invalid token")

// Verifier resolves a bearer token to a user id.
type Verifier interface {
	Verify(token string) (string, error)
}

// HMACVerifier verifies HS256/384/512 JWTs signed with a shared secret.
type HMACVerifier struct {
	secret []byte
}

// NewHMACVerifier returns nil when secret is empty.
func NewHMACVerifier(secret string) *HMACVerifier {
	if secret == "" {
		return nil
	}
	return &HMACVerifier{secret: []byte(secret)}
}

// Verify checks signature and expiry and returns the "sub" claim.
func (v *HMACVerifier) Verify(tokenString string) (string, error) {
	if v == nil {
		return "", fmt.Errorf("%w: no secret configured", ErrInvalidToken)
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}

	switch sub := claims["sub"].(type) {
	case string:
		if sub != "" {
			return sub, nil
		}
	case float64: // JWT numbers decode as float64
		return strconv.FormatInt(int64(sub), 10), nil
	}
	return "", fmt.Errorf("%w: missing sub claim", ErrInvalidToken)
}

// Sign issues a token for userID; used by the CLI and tests.
func (v *HMACVerifier) Sign(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iss": issuer,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Middleware verifies an optional bearer token. A missing or invalid token is
// only rejected (401) when required is true; otherwise the request proceeds
// anonymously.
func Middleware(verifier Verifier, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := authenticate(verifier, c.GetHeader("Authorization"))
		if err != nil {
			if required {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"ok":      false,
					"success": false,
					"message": "Unauthorized",
				})
				return
			}
			if !errors.Is(err, errNoToken) {
				logrus.WithError(err).Warn("⚠️  bearer token rejected, continuing anonymously")
			}
		}

		if userID != "" {
			c.Set(userIDKey, userID)
		}
		c.Next()
	}
}

var errNoToken = errors.New("no bearer token")

func authenticate(verifier Verifier, header string) (string, error) {
	if header == "" {
		return "", errNoToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", fmt.Errorf("%w: malformed authorization header", ErrInvalidToken)
	}
	if verifier == nil {
		return "", fmt.Errorf("%w: no verifier configured", ErrInvalidToken)
	}
	return verifier.Verify(strings.TrimSpace(parts[1]))
}

// UserID returns the verified user id, or "" for anonymous requests.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
