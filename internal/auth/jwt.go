// Package auth issues and validates the access tokens that identify callers.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token type constants for the typ claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Token expiration durations.
const (
	AccessTokenExpiry  = 15 * time.Minute
	RefreshTokenExpiry = 7 * 24 * time.Hour
)

// DefaultLeeway is the clock skew tolerated on exp/iat/nbf.
const DefaultLeeway = 30 * time.Second

var (
	// ErrInvalidToken is returned when token validation fails.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken is returned when the token has expired.
	ErrExpiredToken = errors.New("token has expired")

	// ErrWrongTokenType is returned when a refresh token is presented as an access token.
	ErrWrongTokenType = errors.New("wrong token type")

	// ErrEmptyUserID is returned when userID is empty.
	ErrEmptyUserID = errors.New("userID cannot be empty")
)

// Claims are the JWT claims issued by this service. The subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
	Type string `json:"typ"`
}

// UserID returns the subject claim.
func (c *Claims) UserID() string {
	return c.Subject
}

// Config configures a JWTService.
type Config struct {
	// Secret signs new tokens.
	Secret string
	// PreviousSecret, if set, still validates tokens during key rotation.
	PreviousSecret string
	// Issuer is written to and required on every token when non-empty.
	Issuer string
	// Leeway defaults to DefaultLeeway when zero.
	Leeway time.Duration
}

// JWTService signs tokens with the current secret and accepts tokens signed
// by either the current or the previous secret.
type JWTService struct {
	keys   [][]byte
	issuer string
	leeway time.Duration
	now    func() time.Time
}

// NewJWTService creates a JWTService from cfg.
func NewJWTService(cfg Config) *JWTService {
	svc := &JWTService{
		keys:   [][]byte{[]byte(cfg.Secret)},
		issuer: cfg.Issuer,
		leeway: cfg.Leeway,
		now:    time.Now,
	}
	if cfg.PreviousSecret != "" {
		svc.keys = append(svc.keys, []byte(cfg.PreviousSecret))
	}
	if svc.leeway == 0 {
		svc.leeway = DefaultLeeway
	}
	return svc
}

// GenerateAccessToken creates a short-lived access token for userID.
func (s *JWTService) GenerateAccessToken(userID string) (string, error) {
	return s.sign(userID, TokenTypeAccess, AccessTokenExpiry)
}

// GenerateRefreshToken creates a long-lived refresh token for userID.
func (s *JWTService) GenerateRefreshToken(userID string) (string, error) {
	return s.sign(userID, TokenTypeRefresh, RefreshTokenExpiry)
}

func (s *JWTService) sign(userID, typ string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", ErrEmptyUserID
	}

	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Type: typ,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.keys[0])
}

// ValidateToken parses and validates a token of any type.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithLeeway(s.leeway),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	var err error
	for _, key := range s.keys {
		var token *jwt.Token
		token, err = jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
			return key, nil
		}, opts...)
		if err == nil {
			if claims, ok := token.Claims.(*Claims); ok && token.Valid && claims.Subject != "" {
				return claims, nil
			}
			return nil, ErrInvalidToken
		}
		if !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			break
		}
	}

	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrExpiredToken
	}
	return nil, ErrInvalidToken
}

// ValidateAccessToken validates tokenString and requires typ=access.
func (s *JWTService) ValidateAccessToken(tokenString string) (*Claims, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != TokenTypeAccess {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}
