// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package httpapi

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ViewerClaims identifies a caller authorized to read scheduler status.
type ViewerClaims struct {
	Subject string `json:"sub"`
	jwt.RegisteredClaims
}

// GenerateViewerToken signs a read-only status-API token for subject,
// valid for ttl.
func GenerateViewerToken(secret, subject string, ttl time.Duration) (string, error) {
	claims := ViewerClaims{
		Subject: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "pytf",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseViewerToken validates a token string against secret.
func ParseViewerToken(secret, token string) (*ViewerClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &ViewerClaims{}, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := parsed.Claims.(*ViewerClaims); ok && parsed.Valid {
		return claims, nil
	}
	return nil, jwt.ErrTokenInvalidClaims
}
