// Package auth verifies bearer tokens and carries their claims on the request context.
package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"PagedAPI/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const claimsContextKey contextKey = "jwt_claims"

type JWTValidator struct {
	method jwt.SigningMethod
	key    any
	parser *jwt.Parser
	now    func() time.Time
}

func NewJWTValidator(cfg config.JWTConfig) (*JWTValidator, error) {
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, errors.New("jwt issuer is required")
	}
	if strings.TrimSpace(cfg.Audience) == "" {
		return nil, errors.New("jwt audience is required")
	}

	v := &JWTValidator{now: time.Now}
	switch alg := strings.ToUpper(strings.TrimSpace(cfg.ValidationType)); alg {
	case "HS256":
		if cfg.HMACSecret == "" {
			return nil, errors.New("jwt hmac secret is required for HS256")
		}
		v.method, v.key = jwt.SigningMethodHS256, []byte(cfg.HMACSecret)
	case "RS256", "ES256":
		pem, err := publicKeyPEM(cfg)
		if err != nil {
			return nil, err
		}
		if alg == "RS256" {
			var key *rsa.PublicKey
			if key, err = jwt.ParseRSAPublicKeyFromPEM(pem); err != nil {
				return nil, fmt.Errorf("jwt public key: %w", err)
			}
			v.method, v.key = jwt.SigningMethodRS256, key
		} else {
			var key *ecdsa.PublicKey
			if key, err = jwt.ParseECPublicKeyFromPEM(pem); err != nil {
				return nil, fmt.Errorf("jwt public key: %w", err)
			}
			v.method, v.key = jwt.SigningMethodES256, key
		}
	case "":
		return nil, errors.New("jwt validation type is required")
	default:
		return nil, fmt.Errorf("unsupported jwt validation type: %s", cfg.ValidationType)
	}

	skew := time.Duration(max(cfg.ClockSkewSec, 0)) * time.Second
	v.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{v.method.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithAudience(cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(skew),
		jwt.WithTimeFunc(func() time.Time { return v.now() }),
	)
	return v, nil
}

// ValidateToken checks signature, issuer, audience and time claims, and
// returns the token's claims.
func (v *JWTValidator) ValidateToken(token string) (map[string]any, error) {
	claims := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func WithClaims(ctx context.Context, claims map[string]any) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

func ClaimsFromContext(ctx context.Context) (map[string]any, bool) {
	claims, ok := ctx.Value(claimsContextKey).(map[string]any)
	return claims, ok
}

func publicKeyPEM(cfg config.JWTConfig) ([]byte, error) {
	if key := strings.TrimSpace(cfg.PublicKeyPEM); key != "" {
		return []byte(key), nil
	}
	if path := strings.TrimSpace(cfg.PublicKeyPath); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read jwt public key: %w", err)
		}
		return data, nil
	}
	return nil, errors.New("jwt public key is required")
}
