package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token type markers stored in claims so a refresh token can never pass as
// an access token.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// ErrInvalidToken indicates a token that failed validation.
var ErrInvalidToken = errors.New("invalid token")

// Claims are the JWT claims carried by portal tokens.
type Claims struct {
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenService issues and validates signed, time-bound tokens.
type TokenService interface {
	IssueAccessToken(userID int64, username string) (string, error)
	IssueRefreshToken(userID int64, username string) (string, error)
	Validate(token string) (*Claims, error)
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}

type jwtTokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenService constructs an HS256 TokenService.
func NewTokenService(secret string, accessTTL, refreshTTL time.Duration) TokenService {
	return &jwtTokenService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

func (s *jwtTokenService) IssueAccessToken(userID int64, username string) (string, error) {
	return s.issue(userID, username, TokenTypeAccess, s.accessTTL)
}

func (s *jwtTokenService) IssueRefreshToken(userID int64, username string) (string, error) {
	return s.issue(userID, username, TokenTypeRefresh, s.refreshTTL)
}

func (s *jwtTokenService) issue(userID int64, username, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:    userID,
		Username:  username,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *jwtTokenService) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *jwtTokenService) AccessTTL() time.Duration { return s.accessTTL }

func (s *jwtTokenService) RefreshTTL() time.Duration { return s.refreshTTL }
