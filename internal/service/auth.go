// auth.go — сервис аутентификации.
// Вход по логину и паролю (bcrypt), выпуск и проверка JWT-токенов сессии.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/procheck/backend/internal/domain/model"
	"github.com/procheck/backend/internal/repository"
)

// dummyHash — bcrypt-хэш для выравнивания времени ответа, когда
// пользователь не найден. Не даёт отличить «нет пользователя»
// от «неверный пароль» по времени.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Claims — полезная нагрузка JWT-токена сессии.
type Claims struct {
	// Role — роль пользователя на момент выпуска токена
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthService — сервис аутентификации.
type AuthService struct {
	userRepo  repository.UserRepository
	jwtSecret []byte
	tokenTTL  time.Duration
	logger    *slog.Logger
}

// NewAuthService создаёт сервис аутентификации.
func NewAuthService(userRepo repository.UserRepository, jwtSecret string, tokenTTL time.Duration, logger *slog.Logger) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		logger:    logger.With(slog.String("component", "auth_service")),
	}
}

// LoginResult — результат успешного входа.
type LoginResult struct {
	// Token — подписанный JWT-токен сессии
	Token string
	// ExpiresAt — срок действия токена
	ExpiresAt time.Time
	// User — вошедший пользователь
	User *model.User
}

// Login проверяет логин и пароль и выпускает токен сессии.
// Неизвестный логин и неверный пароль неразличимы для вызывающего.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Сравнение с фиктивным хэшем выравнивает время ответа
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.LastLoginAt = &now

	token, expiresAt, err := s.issueToken(user, now)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Пользователь вошёл в систему",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)

	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// issueToken выпускает подписанный JWT с id и ролью пользователя.
func (s *AuthService) issueToken(user *model.User, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(s.tokenTTL)

	claims := Claims{
		Role: string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("ошибка подписи токена: %w", err)
	}
	return signed, expiresAt, nil
}

// ParseToken проверяет подпись и срок действия токена и возвращает claims.
func (s *AuthService) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("неожиданный метод подписи: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}
	if !token.Valid {
		return nil, ErrInvalidCredentials
	}
	return claims, nil
}

// compareHashAndPassword сравнивает bcrypt-хэш с паролем.
func compareHashAndPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// HashPassword возвращает bcrypt-хэш пароля.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("%w: пароль не может быть пустым", ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("ошибка хэширования пароля: %w", err)
	}
	return string(hash), nil
}
