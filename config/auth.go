// maarif-assessment/config/auth.go
package config

import (
	"log/slog"
	"os"
)

// JwtKey - ключ для подписи и проверки JWT токенов.
var JwtKey []byte

func LoadAuthConfig() {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		slog.Warn("Переменная окружения JWT_SECRET не установлена, используется небезопасный ключ по умолчанию.")
		secret = "dev-insecure-secret"
	}
	JwtKey = []byte(secret)
}
