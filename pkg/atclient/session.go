package atclient

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dropanchor/anchor_sdk_go/internal/httpx"
)

// Credentials derives an immutable Credentials value from a session,
// reading the access token's exp claim without verifying its signature
// (token signing and verification are the server's concern).
func (s *Session) Credentials() (Credentials, error) {
	exp, err := tokenExpiry(s.AccessJWT)
	if err != nil {
		return Credentials{}, fmt.Errorf("atclient: access token: %w", err)
	}
	return Credentials{
		DID:          s.DID,
		AccessToken:  s.AccessJWT,
		RefreshToken: s.RefreshJWT,
		ExpiresAt:    exp,
	}, nil
}

func tokenExpiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, err
	}
	if exp == nil {
		return time.Time{}, errors.New("missing exp claim")
	}
	return exp.Time, nil
}

// StatusCode extracts the HTTP status carried by err, if any, so callers can
// branch on it (e.g. distinguishing 401 from 500).
func StatusCode(err error) (int, bool) {
	return httpx.StatusCode(err)
}
