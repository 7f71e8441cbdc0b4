package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "chatzi-backend"

var (
	ErrEmptyToken    = errors.New("empty token")
	ErrInvalidToken  = errors.New("invalid token")
	ErrMissingSecret = errors.New("jwt secret not configured")
)

type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// Identity is what a verified credential resolves to.
type Identity struct {
	UserID string
	Email  string
	Name   string
}

// JWTVerifier issues and verifies HS256 access tokens.
type JWTVerifier struct {
	secret []byte
	ttl    time.Duration
}

func NewJWTVerifier(secret string, ttl time.Duration) *JWTVerifier {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour // 7 days
	}
	return &JWTVerifier{secret: []byte(secret), ttl: ttl}
}

func (v *JWTVerifier) GenerateToken(userID, email, name string) (string, error) {
	if len(v.secret) == 0 {
		return "", ErrMissingSecret
	}
	now := time.Now()

	claims := &Claims{
		UserID: userID,
		Email:  email,
		Name:   name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        GenerateID(),
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// Verify validates signature and expiry and returns the bound identity.
func (v *JWTVerifier) Verify(tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, ErrEmptyToken
	}
	if len(v.secret) == 0 {
		return nil, ErrMissingSecret
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	if !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return &Identity{UserID: claims.UserID, Email: claims.Email, Name: claims.Name}, nil
}

// Helper for IDs
func GenerateID() string {
	return uuid.New().String()
}
