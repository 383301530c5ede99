package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"nimbusdrive/internal/domain"
	"nimbusdrive/internal/storage"
)

// TTL по умолчанию: владелец скачивает по долгоживущей ссылке,
// анонимный переход по шаринг-ссылке получает короткое окно
const (
	OwnerDownloadTTL     = time.Hour
	AnonymousDownloadTTL = 5 * time.Minute
)

var errInvalidDownloadToken = errors.New("invalid or expired download token")

// DownloadOptions управляет выдачей дескриптора доступа
type DownloadOptions struct {
	TTL       time.Duration
	Anonymous bool
}

// AccessService выдает временные дескрипторы на скачивание объектов,
// не раскрывая учетные данные бэкенда. Для S3 это нативная подписанная
// ссылка, для локального хранилища - токен, который разрешает
// маршрут стриминга приложения.
type AccessService struct {
	backend storage.Backend
	secret  []byte
	now     func() time.Time
}

func NewAccessService(backend storage.Backend, secret string) *AccessService {
	return &AccessService{
		backend: backend,
		secret:  []byte(secret),
		now:     time.Now,
	}
}

// RequestDownload выдает дескриптор доступа к объекту на время ttl
func (s *AccessService) RequestDownload(ctx context.Context, key string, opts DownloadOptions) (*domain.AccessHandle, error) {
	ttl := opts.TTL
	if ttl <= 0 {
		if opts.Anonymous {
			ttl = AnonymousDownloadTTL
		} else {
			ttl = OwnerDownloadTTL
		}
	}

	info, err := s.backend.Stat(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to stat object: %w", err)
	}
	if !info.Exists {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}

	expiresAt := s.now().Add(ttl)

	if s.backend.Kind() == domain.BackendS3 {
		url, err := s.backend.SignedURL(ctx, key, ttl)
		if err != nil {
			return nil, fmt.Errorf("failed to sign object url: %w", err)
		}
		return &domain.AccessHandle{
			URL:       url,
			Backend:   s.backend.Kind(),
			ExpiresAt: expiresAt,
		}, nil
	}

	token, err := s.mintToken(key, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to mint download token: %w", err)
	}

	return &domain.AccessHandle{
		Token:     token,
		Backend:   s.backend.Kind(),
		ExpiresAt: expiresAt,
	}, nil
}

// ResolveToken проверяет токен скачивания и возвращает ключ объекта.
// Просроченный или подделанный токен отклоняется.
func (s *AccessService) ResolveToken(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (interface{}, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errInvalidDownloadToken, err)
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", errInvalidDownloadToken
	}

	return claims.Subject, nil
}

func (s *AccessService) mintToken(key string, expiresAt time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   key,
		IssuedAt:  jwt.NewNumericDate(s.now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}
