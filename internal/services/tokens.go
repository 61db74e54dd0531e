package services

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// TokenPair is the access+refresh pair handed out at login.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type tokenClaims struct {
	jwt.RegisteredClaims
	TokenType string `json:"token_type"`
}

// TokenIssuer signs and validates HS256 session tokens. It holds no
// mutable state; Refresh depends only on its input and the signing key.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenIssuer(secret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// Issue returns a fresh token pair for the user.
func (t *TokenIssuer) Issue(userID int64) (TokenPair, error) {
	access, err := t.sign(userID, tokenTypeAccess, t.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := t.sign(userID, tokenTypeRefresh, t.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

// Refresh exchanges a valid refresh token for a new access token.
func (t *TokenIssuer) Refresh(refreshToken string) (string, error) {
	userID, err := t.parse(refreshToken, tokenTypeRefresh)
	if err != nil {
		return "", err
	}
	return t.sign(userID, tokenTypeAccess, t.accessTTL)
}

// ParseAccess validates an access token and returns its subject.
func (t *TokenIssuer) ParseAccess(accessToken string) (int64, error) {
	return t.parse(accessToken, tokenTypeAccess)
}

func (t *TokenIssuer) sign(userID int64, tokenType string, ttl time.Duration) (string, error) {
	now := t.now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TokenType: tokenType,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

func (t *TokenIssuer) parse(tokenString, wantType string) (int64, error) {
	if strings.TrimSpace(tokenString) == "" {
		return 0, ErrUnauthenticated
	}

	claims := tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return 0, ErrUnauthenticated
	}
	if claims.TokenType != wantType {
		return 0, ErrUnauthenticated
	}

	userID, err := strconv.ParseInt(strings.TrimSpace(claims.Subject), 10, 64)
	if err != nil || userID < 1 {
		return 0, errors.Join(ErrUnauthenticated, errors.New("invalid subject"))
	}
	return userID, nil
}
