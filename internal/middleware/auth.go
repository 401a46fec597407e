// Package middleware provides authentication, logging, metrics and rate limiting middleware.
package middleware

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// TokenIssuer is the iss claim on every token minted by the API.
	TokenIssuer = "campuschat-api"
	// TokenAudience is the aud claim on every token minted by the API.
	TokenAudience = "campuschat-client"

	// RoleUser marks a student principal.
	RoleUser = "user"
	// RoleAdmin marks an administrator principal.
	RoleAdmin = "admin"
)

// ErrInvalidToken is returned for any token that fails signature or claim checks.
var ErrInvalidToken = errors.New("invalid or expired token")

// Principal is the authenticated identity carried by a token.
type Principal struct {
	ID        uint
	Role      string
	Super     bool
	JTI       string
	ExpiresAt time.Time
}

// IsAdmin reports whether the principal is an administrator.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// GenerateToken signs an HS256 token for p valid for ttl.
func GenerateToken(secret string, p Principal, ttl time.Duration) (string, string, error) {
	now := time.Now()
	jti := uuid.NewString()
	role := p.Role
	if role == "" {
		role = RoleUser
	}
	claims := jwt.MapClaims{
		"sub":   strconv.FormatUint(uint64(p.ID), 10),
		"iss":   TokenIssuer,
		"aud":   TokenAudience,
		"exp":   now.Add(ttl).Unix(),
		"iat":   now.Unix(),
		"nbf":   now.Unix(),
		"jti":   jti,
		"role":  role,
		"super": p.Super,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", "", fmt.Errorf("sign token: %w", err)
	}
	return signed, jti, nil
}

// ParseToken validates tokenString and returns its principal.
func ParseToken(secret, tokenString string) (*Principal, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	},
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return nil, ErrInvalidToken
	}
	id, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || id == 0 {
		return nil, ErrInvalidToken
	}

	p := &Principal{ID: uint(id), Role: RoleUser}
	if role, ok := claims["role"].(string); ok && role != "" {
		p.Role = role
	}
	if super, ok := claims["super"].(bool); ok {
		p.Super = super
	}
	if jti, ok := claims["jti"].(string); ok {
		p.JTI = jti
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		p.ExpiresAt = exp.Time
	}
	return p, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header value.
func BearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// RevokedTokenKey is the Redis key marking a jti as logged out.
func RevokedTokenKey(jti string) string {
	return "blacklist:" + jti
}

// WSTicketKey is the Redis key holding a single-use websocket ticket.
func WSTicketKey(ticket string) string {
	return "ws_ticket:" + ticket
}
