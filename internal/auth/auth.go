// Package auth выдаёт и проверяет JWT для API. Учётные данные фиксированы конфигурацией.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidCredentials возвращается при неверной паре логин/пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken возвращается для отсутствующего, просроченного или подделанного токена.
	ErrInvalidToken = errors.New("invalid token")
)

// Config задаёт параметры выпуска токенов.
type Config struct {
	Secret     string
	Issuer     string
	Audience   string
	Expiration time.Duration
	Username   string
	Password   string
}

// Token — результат успешного входа.
type Token struct {
	Token     string
	Username  string
	ExpiresAt time.Time
}

// Authenticator выпускает HS256-токены и проверяет их.
type Authenticator struct {
	cfg    Config
	secret []byte
	now    func() time.Time
}

// New создаёт Authenticator. Пустой секрет недопустим.
func New(cfg Config) (*Authenticator, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	if cfg.Expiration <= 0 {
		cfg.Expiration = 24 * time.Hour
	}
	return &Authenticator{
		cfg:    cfg,
		secret: []byte(cfg.Secret),
		now:    time.Now,
	}, nil
}

// Login проверяет учётные данные и выпускает токен.
func (a *Authenticator) Login(username, password string) (Token, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.cfg.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.cfg.Password)) == 1
	if !userOK || !passOK {
		return Token{}, ErrInvalidCredentials
	}

	now := a.now().UTC()
	expiresAt := now.Add(a.cfg.Expiration)
	claims := jwt.RegisteredClaims{
		Subject:   username,
		Issuer:    a.cfg.Issuer,
		Audience:  jwt.ClaimStrings{a.cfg.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		ID:        uuid.NewString(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{Token: signed, Username: username, ExpiresAt: expiresAt}, nil
}

// Validate проверяет подпись, срок, issuer и audience; возвращает subject.
func (a *Authenticator) Validate(raw string) (string, error) {
	if raw == "" {
		return "", ErrInvalidToken
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.cfg.Issuer),
		jwt.WithAudience(a.cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims.Subject, nil
}

// BearerToken извлекает токен из заголовка Authorization.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

type subjectKey struct{}

// WithSubject кладёт имя аутентифицированного пользователя в контекст запроса.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey{}, subject)
}

// SubjectFrom возвращает пользователя, сохранённого WithSubject.
func SubjectFrom(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(subjectKey{}).(string)
	return subject, ok
}
