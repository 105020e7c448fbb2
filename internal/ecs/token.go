package ecs

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	ccerrors "github.com/edubridge/campusconnect/internal/pkg/errors"
)

// Auth tokens are short-lived; the remote participant validates them
// while completing the course-link redirect.
const authTokenTTL = 5 * time.Minute

type authClaims struct {
	PersonID     string `json:"personID"`
	PersonIDType string `json:"personIDtype"`
	CourseID     string `json:"courseID"`
	Realm        string `json:"realm"`
	jwt.RegisteredClaims
}

func signAuthToken(payload AuthTokenPayload, secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("%w: token secret not configured", ccerrors.ErrInvalidArgument)
	}
	now := time.Now()
	claims := authClaims{
		PersonID:     payload.PersonID,
		PersonIDType: payload.PersonIDType,
		CourseID:     payload.CourseID,
		Realm:        payload.Realm,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(authTokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign auth token: %w", err)
	}
	return signed, nil
}

// VerifyAuthToken validates an inbound token from another participant.
func VerifyAuthToken(signed, secret string) (*AuthTokenPayload, error) {
	claims := &authClaims{}
	token, err := jwt.ParseWithClaims(signed, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ccerrors.ErrProtocol, err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("%w: invalid auth token", ccerrors.ErrProtocol)
	}
	return &AuthTokenPayload{
		PersonID:     claims.PersonID,
		PersonIDType: claims.PersonIDType,
		CourseID:     claims.CourseID,
		Realm:        claims.Realm,
	}, nil
}
