package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Djiouwairia/RED-Product/internal/models"
)

// Token types carried in the token_type claim. Access tokens authenticate
// API requests; refresh tokens may only be exchanged or revoked.
const (
	TokenTypeAccess        = "access"
	TokenTypeRefresh       = "refresh"
	TokenTypePasswordReset = "password_reset"
)

const revokedRefreshKeyPrefix = "revoked_refresh:"

// Claims defines the structure of the JWT claims.
type Claims struct {
	UserID    string `json:"user_id"`
	IsAdmin   bool   `json:"is_admin"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenPair is the credential pair issued at login and registration.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// ITokenManager abstracts token issuance and verification so handlers can be
// tested with mocks.
type ITokenManager interface {
	IssuePair(user *models.User) (*TokenPair, error)
	IssuePasswordResetToken(user *models.User) (string, error)
	ValidateAccess(tokenString string) (*Claims, error)
	ValidateRefresh(ctx context.Context, tokenString string) (*Claims, error)
	ValidatePasswordResetToken(tokenString string) (*Claims, error)
	RefreshAccess(ctx context.Context, refreshToken string) (string, error)
	RevokeRefresh(ctx context.Context, refreshToken string) error
}

// TokenManager signs and verifies HS256 JWTs. Refresh tokens carry a uuid
// JTI; revocation stores the JTI in Redis until the token would expire.
type TokenManager struct {
	secret     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	resetTTL   time.Duration
	rdb        *redis.Client
}

// NewTokenManager creates a TokenManager. rdb may be nil in tests that never
// touch revocation.
func NewTokenManager(secret string, accessTTL, refreshTTL, resetTTL time.Duration, rdb *redis.Client) *TokenManager {
	return &TokenManager{
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		resetTTL:   resetTTL,
		rdb:        rdb,
	}
}

func (m *TokenManager) sign(user *models.User, tokenType string, ttl time.Duration, jti string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:    user.ID.Hex(),
		IsAdmin:   user.IsAdmin,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   user.ID.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(m.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}
	return tokenString, nil
}

// IssuePair issues a fresh access + refresh token pair for the user.
func (m *TokenManager) IssuePair(user *models.User) (*TokenPair, error) {
	access, err := m.sign(user, TokenTypeAccess, m.accessTTL, "")
	if err != nil {
		return nil, err
	}
	refresh, err := m.sign(user, TokenTypeRefresh, m.refreshTTL, uuid.NewString())
	if err != nil {
		return nil, err
	}
	return &TokenPair{Access: access, Refresh: refresh}, nil
}

// IssuePasswordResetToken issues the short-lived token embedded in password
// reset links.
func (m *TokenManager) IssuePasswordResetToken(user *models.User) (string, error) {
	return m.sign(user, TokenTypePasswordReset, m.resetTTL, uuid.NewString())
}

func (m *TokenManager) parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid JWT")
	}
	return claims, nil
}

// ValidateAccess verifies an access token and returns its claims.
func (m *TokenManager) ValidateAccess(tokenString string) (*Claims, error) {
	claims, err := m.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != TokenTypeAccess {
		return nil, fmt.Errorf("token is not an access token")
	}
	return claims, nil
}

// ValidateRefresh verifies a refresh token and checks the revocation list.
func (m *TokenManager) ValidateRefresh(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := m.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != TokenTypeRefresh || claims.ID == "" {
		return nil, fmt.Errorf("token is not a refresh token")
	}

	revoked, err := m.rdb.Exists(ctx, revokedRefreshKeyPrefix+claims.ID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to check refresh token revocation: %w", err)
	}
	if revoked > 0 {
		return nil, fmt.Errorf("refresh token has been revoked")
	}
	return claims, nil
}

// ValidatePasswordResetToken verifies a reset-link token.
func (m *TokenManager) ValidatePasswordResetToken(tokenString string) (*Claims, error) {
	claims, err := m.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != TokenTypePasswordReset {
		return nil, fmt.Errorf("token is not a password reset token")
	}
	return claims, nil
}

// RefreshAccess exchanges a valid refresh token for a new access token.
func (m *TokenManager) RefreshAccess(ctx context.Context, refreshToken string) (string, error) {
	claims, err := m.ValidateRefresh(ctx, refreshToken)
	if err != nil {
		return "", err
	}

	now := time.Now()
	accessClaims := &Claims{
		UserID:    claims.UserID,
		IsAdmin:   claims.IsAdmin,
		TokenType: TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims)
	signed, err := token.SignedString([]byte(m.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign refreshed access token: %w", err)
	}
	return signed, nil
}

// RevokeRefresh puts the refresh token's JTI on the denylist until the token
// would have expired on its own.
func (m *TokenManager) RevokeRefresh(ctx context.Context, refreshToken string) error {
	claims, err := m.parse(refreshToken)
	if err != nil {
		return fmt.Errorf("invalid refresh token: %w", err)
	}
	if claims.TokenType != TokenTypeRefresh || claims.ID == "" {
		return fmt.Errorf("token is not a refresh token")
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil // already expired, nothing to deny
	}
	if err := m.rdb.Set(ctx, revokedRefreshKeyPrefix+claims.ID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to store refresh token revocation: %w", err)
	}
	return nil
}
