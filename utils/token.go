package utils

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
)

// JwtCustomClaim carries the user's identity and role. StandardClaims.Id is a
// per-token uuid so a logout can deny-list exactly one token.
type JwtCustomClaim struct {
	UserId   int    `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.StandardClaims
}

const defaultTokenHourLifespan = 12

func getJwtSecret() []byte {
	secret := os.Getenv("API_SECRET")
	if secret == "" {
		return []byte("pipeworks-dev-secret")
	}
	return []byte(secret)
}

func tokenLifespan() time.Duration {
	hours, err := strconv.Atoi(strings.TrimSpace(os.Getenv("TOKEN_HOUR_LIFESPAN")))
	if err != nil || hours <= 0 {
		hours = defaultTokenHourLifespan
	}
	return time.Hour * time.Duration(hours)
}

func JwtGenerate(userID int, username string, role string) (string, *JwtCustomClaim, error) {
	now := time.Now()
	claims := &JwtCustomClaim{
		UserId:   userID,
		Username: username,
		Role:     role,
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.NewString(),
			ExpiresAt: now.Add(tokenLifespan()).Unix(),
			IssuedAt:  now.Unix(),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	token, err := t.SignedString(getJwtSecret())
	if err != nil {
		return "", nil, err
	}
	return token, claims, nil
}

func JwtValidate(token string) (*JwtCustomClaim, error) {
	parsed, err := jwt.ParseWithClaims(token, &JwtCustomClaim{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("there's a problem with the signing method")
		}
		return getJwtSecret(), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*JwtCustomClaim)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
