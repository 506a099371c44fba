package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tabletally/tabletally-backend/pkg/config"
)

var jwtSigningMethod = jwt.SigningMethodHS256

// StaffRole distinguishes management-console actors.
type StaffRole string

const (
	StaffRoleManager StaffRole = "manager"
	StaffRoleWaiter  StaffRole = "waiter"
)

// IsValid reports whether the role is known.
func (r StaffRole) IsValid() bool {
	return r == StaffRoleManager || r == StaffRoleWaiter
}

// StaffClaims is the JWT claim set for management-console tokens.
type StaffClaims struct {
	StaffID string    `json:"staff_id"`
	Role    StaffRole `json:"role"`
	jwt.RegisteredClaims
}

// MintStaffToken issues a signed JWT for a staff account using the configured TTL.
func MintStaffToken(cfg config.JWTConfig, now time.Time, staffID string, role StaffRole) (string, error) {
	if cfg.Secret == "" {
		return "", fmt.Errorf("jwt secret is required")
	}
	if cfg.Issuer == "" {
		return "", fmt.Errorf("jwt issuer is required")
	}
	if cfg.ExpirationMinutes <= 0 {
		return "", fmt.Errorf("jwt expiration minutes must be positive")
	}
	if strings.TrimSpace(staffID) == "" {
		return "", fmt.Errorf("staff id is required")
	}
	if !role.IsValid() {
		return "", fmt.Errorf("invalid staff role %q", role)
	}

	claims := StaffClaims{
		StaffID: staffID,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwtSigningMethod, claims)
	signed, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// ParseStaffToken validates the JWT string and returns typed claims.
func ParseStaffToken(cfg config.JWTConfig, tokenString string) (*StaffClaims, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	claims := &StaffClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return []byte(cfg.Secret), nil
		},
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
	)
	if err != nil {
		return nil, err
	}

	return claims, nil
}
