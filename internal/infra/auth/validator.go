package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/xela07ax/nft-agents-console/internal/domain"
)

// TokenValidator проверяет bearer-токен бэкенда и отдает его claims.
type TokenValidator interface {
	VerifyToken(tokenStr string) (*domain.CustomClaims, error)
}

// NewValidator: с публичным ключом, полная проверка RS256, без ключа, только срок действия.
func NewValidator(publicKeyPEM []byte) (TokenValidator, error) {
	if len(publicKeyPEM) == 0 {
		return NewExpiryValidator(nil), nil
	}
	key, err := ParseRSAPublicKey(publicKeyPEM)
	if err != nil {
		return nil, err
	}
	return NewBaseValidator(key), nil
}

// BaseValidator содержит общую логику проверки RS256
type BaseValidator struct {
	publicKey *rsa.PublicKey
}

func NewBaseValidator(pubKey *rsa.PublicKey) *BaseValidator {
	return &BaseValidator{publicKey: pubKey}
}

// VerifyToken проверяет JWT, подписанный асимметричным ключом RS256.
func (v *BaseValidator) VerifyToken(tokenStr string) (*domain.CustomClaims, error) {
	tokenStr = stripBearer(tokenStr)

	token, err := jwt.ParseWithClaims(tokenStr, &domain.CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.publicKey, nil
	})
	if err != nil || !token.Valid {
		return nil, authError(err)
	}

	claims, ok := token.Claims.(*domain.CustomClaims)
	if !ok {
		return nil, &domain.AuthError{Reason: "invalid claims"}
	}
	return claims, nil
}

// ExpiryValidator читает токен без проверки подписи: ключом бэкенда консоль не владеет,
// но просроченный токен отбрасывает сразу, не дожидаясь 401.
type ExpiryValidator struct {
	parser *jwt.Parser
	now    func() time.Time
}

func NewExpiryValidator(now func() time.Time) *ExpiryValidator {
	if now == nil {
		now = time.Now
	}
	return &ExpiryValidator{parser: jwt.NewParser(), now: now}
}

func (v *ExpiryValidator) VerifyToken(tokenStr string) (*domain.CustomClaims, error) {
	tokenStr = stripBearer(tokenStr)
	if tokenStr == "" {
		return nil, &domain.AuthError{Reason: "empty token"}
	}

	claims := &domain.CustomClaims{}
	if _, _, err := v.parser.ParseUnverified(tokenStr, claims); err != nil {
		return nil, authError(err)
	}

	// Токен без exp считаем бессрочным, как делает бэкенд
	if err := jwt.NewValidator(jwt.WithTimeFunc(v.now)).Validate(claims); err != nil {
		return nil, authError(err)
	}
	return claims, nil
}

func stripBearer(s string) string {
	s = strings.TrimPrefix(s, "Bearer ")
	return strings.TrimSpace(s)
}

func authError(err error) error {
	switch {
	case err == nil:
		return &domain.AuthError{Reason: "invalid token"}
	case errors.Is(err, jwt.ErrTokenExpired):
		return &domain.AuthError{Reason: "token expired"}
	}
	return &domain.AuthError{Reason: fmt.Sprintf("invalid token: %v", err)}
}

// ParseRSAPublicKey превращает []byte в объект для проверки подписи
func ParseRSAPublicKey(data []byte) (*rsa.PublicKey, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("public key data is empty")
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return key, nil
}
