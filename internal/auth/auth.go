package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var signingSecret []byte

// Init задает секрет проверки токенов. Вызывается один раз при старте.
func Init(secret string) {
	signingSecret = []byte(secret)
}

// VerifyToken извлекает идентификатор пользователя из Bearer-токена.
// Сервис не владеет выпуском токенов - их выдает внешний сервис
// аутентификации с тем же секретом.
func VerifyToken(r *http.Request) (string, error) {
	authToken := r.Header.Get("Authorization")
	if authToken == "" {
		return "", fmt.Errorf("no authorization header")
	}

	raw := strings.TrimPrefix(authToken, "Bearer ")

	parsed, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (interface{}, error) {
			return signingSecret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", fmt.Errorf("token has no subject")
	}

	return claims.Subject, nil
}
