package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Определяем пользовательские ошибки для обработки JWT.
var (
	ErrTokenIsInvalid = errors.New("токен недействителен")
	ErrTokenIsExpired = errors.New("токен истёк")
)

const tokenTTL = 24 * time.Hour

// JWTService представляет сервис для работы с JWT токенами.
type JWTService struct {
	authSecretKey string // Секретный ключ, используемый для подписи и валидации токенов
	now           func() time.Time
}

// NewJWTService создает новый экземпляр JWTService с заданным секретным ключом.
func NewJWTService(authSecretKey string) *JWTService {
	return &JWTService{authSecretKey: authSecretKey, now: time.Now}
}

// GenerateJWT генерирует JWT токен для логина пользователя, токен действует 24 часа.
func (j *JWTService) GenerateJWT(subject string) (string, error) {
	now := j.now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(tokenTTL).Unix(),
	})

	tokenString, err := token.SignedString([]byte(j.authSecretKey))
	if err != nil {
		return "", fmt.Errorf("error while generating token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken проверяет подпись и срок действия JWT токена.
func (j *JWTService) ValidateToken(tokenString string) (*jwt.Token, error) {
	parsedToken, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Принимаем только HMAC
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(j.authSecretKey), nil
	}, jwt.WithTimeFunc(j.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenIsExpired
		}

		return nil, fmt.Errorf("error while validating token: %w", err)
	}

	if !parsedToken.Valid {
		return nil, ErrTokenIsInvalid
	}

	return parsedToken, nil
}
