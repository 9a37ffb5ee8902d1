// auth.go — JWT middleware аутентификации ProCheck.
// Извлекает Bearer token, проверяет подпись через сервис аутентификации,
// загружает пользователя из БД через expirable LRU-кэш и помещает его
// в контекст запроса. Роль берётся из записи БД, а не из claims: токен
// переживает смену роли, запись — нет.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	apierrors "github.com/procheck/backend/internal/api/errors"
	"github.com/procheck/backend/internal/domain/model"
	"github.com/procheck/backend/internal/repository"
	"github.com/procheck/backend/internal/service"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeyUser — аутентифицированный пользователь в контексте запроса.
	ContextKeyUser contextKey = "auth_user"
)

// TokenParser — проверка и разбор токена сессии.
// Реализуется service.AuthService.
type TokenParser interface {
	ParseToken(tokenString string) (*service.Claims, error)
}

// UserLoader — загрузка пользователя по id.
// Реализуется repository.UserRepository.
type UserLoader interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// JWTAuth — middleware JWT-аутентификации с LRU-кэшем пользователей.
type JWTAuth struct {
	parser TokenParser
	users  UserLoader
	cache  *expirable.LRU[string, *model.User]
	logger *slog.Logger
}

// NewJWTAuth создаёт JWT middleware.
// cacheSize и cacheTTL задают параметры кэша пользователей: запись
// живёт cacheTTL после добавления, поэтому удаление пользователя или
// смена роли видны не позже чем через cacheTTL.
func NewJWTAuth(parser TokenParser, users UserLoader, cacheSize int, cacheTTL time.Duration, logger *slog.Logger) *JWTAuth {
	return &JWTAuth{
		parser: parser,
		users:  users,
		cache:  expirable.NewLRU[string, *model.User](cacheSize, nil, cacheTTL),
		logger: logger.With(slog.String("component", "jwt_auth")),
	}
}

// Middleware возвращает HTTP middleware для JWT-аутентификации.
// Извлекает Bearer token, валидирует подпись, загружает пользователя
// и помещает его в контекст.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apierrors.Unauthorized(w, "Отсутствует заголовок Authorization")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				apierrors.Unauthorized(w, "Неверный формат Authorization: ожидается Bearer <token>")
				return
			}

			tokenString := parts[1]
			if tokenString == "" {
				apierrors.Unauthorized(w, "Пустой Bearer token")
				return
			}

			claims, err := j.parser.ParseToken(tokenString)
			if err != nil {
				j.logger.Debug("JWT валидация не пройдена",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			}

			user, err := j.loadUser(r.Context(), claims.Subject)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					apierrors.Unauthorized(w, "Пользователь не существует")
					return
				}
				j.logger.Error("Ошибка загрузки пользователя",
					slog.String("user_id", claims.Subject),
					slog.String("error", err.Error()),
				)
				apierrors.InternalError(w, "Ошибка проверки аутентификации")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyUser, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// loadUser возвращает пользователя из кэша или из БД с добавлением в кэш.
func (j *JWTAuth) loadUser(ctx context.Context, userID string) (*model.User, error) {
	if user, ok := j.cache.Get(userID); ok {
		return user, nil
	}

	user, err := j.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	j.cache.Add(userID, user)
	return user, nil
}

// Invalidate удаляет пользователя из кэша. Вызывается после операций,
// меняющих запись пользователя (смена профиля, удаление).
func (j *JWTAuth) Invalidate(userID string) {
	j.cache.Remove(userID)
}

// RequireRole возвращает middleware, требующий одну из указанных ролей.
// Должен использоваться ПОСЛЕ JWTAuth.Middleware().
func RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r.Context())
			if user == nil {
				apierrors.Unauthorized(w, "Отсутствует пользователь в контексте")
				return
			}

			for _, role := range roles {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			names := make([]string, len(roles))
			for i, role := range roles {
				names[i] = string(role)
			}
			apierrors.Forbidden(w, fmt.Sprintf("Недостаточно прав: требуется роль %s", strings.Join(names, " или ")))
		})
	}
}

// --- Context helpers ---

// UserFromContext извлекает аутентифицированного пользователя из контекста.
// Возвращает nil, если пользователь не найден.
func UserFromContext(ctx context.Context) *model.User {
	user, _ := ctx.Value(ContextKeyUser).(*model.User)
	return user
}
