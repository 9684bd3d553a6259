// auth.go — JWT middleware сайта.
// Проверяет access token сервиса аутентификации BaaS (JWKS или общий секрет HS256)
// и помещает identity пользователя в контекст. Запрос без токена проходит
// анонимно: решение о доступе принимает Authorization Gate сервисного слоя.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/Noctifera-Records/nexdrak-site-sub000/internal/api/errors"
	"github.com/Noctifera-Records/nexdrak-site-sub000/internal/domain/model"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

// ContextKeyIdentity — identity аутентифицированного пользователя в контексте запроса.
const ContextKeyIdentity contextKey = "identity"

// baasClaims — claims access token сервиса аутентификации.
type baasClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	// Role — роль Postgres (authenticated, service_role), не роль сайта.
	Role string `json:"role"`
}

// JWTAuth — middleware для JWT-аутентификации.
type JWTAuth struct {
	keys    func(ctx context.Context) jwt.Keyfunc
	methods []string
	issuer  string
	leeway  time.Duration
	logger  *slog.Logger
}

// NewJWTAuth создаёт middleware с ключами из JWKS endpoint.
// Ключи обновляются в фоне с интервалом refreshInterval; первый запрос
// к JWKS не блокирует старт, если BaaS ещё недоступен.
func NewJWTAuth(
	jwksURL string,
	httpClient *http.Client,
	issuer string,
	refreshInterval time.Duration,
	leeway time.Duration,
	logger *slog.Logger,
) (*JWTAuth, error) {
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:                    httpClient,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           refreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", jwksURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	a := NewJWTAuthWithKeyfunc(k, issuer, logger)
	a.leeway = leeway
	return a, nil
}

// NewJWTAuthWithSecret создаёт middleware для токенов HS256, подписанных
// общим секретом проекта BaaS.
func NewJWTAuthWithSecret(secret, issuer string, leeway time.Duration, logger *slog.Logger) *JWTAuth {
	key := []byte(secret)
	return &JWTAuth{
		keys: func(context.Context) jwt.Keyfunc {
			return func(*jwt.Token) (any, error) { return key, nil }
		},
		methods: []string{"HS256"},
		issuer:  issuer,
		leeway:  leeway,
		logger:  logger.With(slog.String("component", "jwt_auth")),
	}
}

// NewJWTAuthWithKeyfunc создаёт middleware с предоставленной keyfunc.
// Используется в тестах для подстановки mock JWKS.
func NewJWTAuthWithKeyfunc(kf keyfunc.Keyfunc, issuer string, logger *slog.Logger) *JWTAuth {
	return &JWTAuth{
		keys:    kf.KeyfuncCtx,
		methods: []string{"RS256", "ES256"},
		issuer:  issuer,
		logger:  logger.With(slog.String("component", "jwt_auth")),
	}
}

// Middleware возвращает HTTP middleware. Без заголовка Authorization запрос
// передаётся дальше без identity; неверный или просроченный токен — 401.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			scheme, tokenString, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") {
				apierrors.Unauthorized(w, "Неверный формат Authorization: ожидается Bearer <token>")
				return
			}
			tokenString = strings.TrimSpace(tokenString)
			if tokenString == "" {
				apierrors.Unauthorized(w, "Пустой Bearer token")
				return
			}

			identity, err := j.parse(r.Context(), tokenString)
			if err != nil {
				j.logger.Debug("JWT валидация не пройдена",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// parse проверяет подпись и срок токена и возвращает identity.
func (j *JWTAuth) parse(ctx context.Context, tokenString string) (*model.Identity, error) {
	claims := &baasClaims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(j.methods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(j.leeway),
	}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, j.keys(ctx), opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, fmt.Errorf("%w: отсутствует sub", jwt.ErrTokenInvalidClaims)
	}
	return &model.Identity{ID: subject, Email: claims.Email}, nil
}

// IdentityFromContext извлекает identity из контекста запроса.
// Возвращает nil для анонимного запроса.
func IdentityFromContext(ctx context.Context) *model.Identity {
	identity, _ := ctx.Value(ContextKeyIdentity).(*model.Identity)
	return identity
}

// WithIdentity помещает identity в контекст.
func WithIdentity(ctx context.Context, identity *model.Identity) context.Context {
	return context.WithValue(ctx, ContextKeyIdentity, identity)
}
