// Package auth 提供基于 JWT 的认证能力。
//
// 支持：
//   - Token 生成与验证
//   - Gin 中间件集成
//   - 多种 Token 提取方式 (Header, Cookie, Query)
//
// 基本使用：
//
//	authenticator, _ := auth.New(&auth.Config{SecretKey: "..."})
//	token, _ := authenticator.GenerateToken(ctx, &auth.Claims{
//	    RegisteredClaims: jwt.RegisteredClaims{Subject: "42"},
//	})
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/ceyewan/orderlock/clog"
	"github.com/ceyewan/orderlock/metrics"
	"github.com/ceyewan/orderlock/xerrors"
)

// Authenticator 认证器接口
type Authenticator interface {
	// GenerateToken 生成 Token
	GenerateToken(ctx context.Context, claims *Claims) (string, error)

	// ValidateToken 验证 Token，返回 Claims
	ValidateToken(ctx context.Context, token string) (*Claims, error)

	// GinMiddleware 返回 Gin 认证中间件
	GinMiddleware() gin.HandlerFunc
}

// jwtAuth JWT 认证实现
type jwtAuth struct {
	config  *Config
	options *options
}

// New 创建 Authenticator
func New(cfg *Config, opts ...Option) (Authenticator, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}

	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	return &jwtAuth{
		config:  cfg,
		options: o,
	}, nil
}

// GenerateToken 生成 Token
func (a *jwtAuth) GenerateToken(ctx context.Context, claims *Claims) (string, error) {
	if claims == nil {
		return "", ErrInvalidClaims
	}

	// 设置标准声明
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(a.config.AccessTokenTTL))
	}
	if claims.IssuedAt == nil {
		claims.IssuedAt = jwt.NewNumericDate(time.Now())
	}
	if claims.Issuer == "" && a.config.Issuer != "" {
		claims.Issuer = a.config.Issuer
	}

	method := jwt.GetSigningMethod(a.config.SigningMethod)
	if method == nil {
		method = jwt.SigningMethodHS256
	}

	token := jwt.NewWithClaims(method, claims)
	tokenString, err := token.SignedString([]byte(a.config.SecretKey))
	if err != nil {
		return "", xerrors.Wrap(err, "failed to sign token")
	}

	a.options.logger.Debug("token generated", clog.String("user_id", claims.Subject))

	return tokenString, nil
}

// ValidateToken 验证 Token
func (a *jwtAuth) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	start := time.Now()

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != a.config.SigningMethod {
			return nil, ErrInvalidSignature
		}
		return []byte(a.config.SecretKey), nil
	})

	if err != nil {
		var errType string
		if errors.Is(err, jwt.ErrTokenExpired) {
			errType = "expired"
			err = ErrExpiredToken
		} else if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			errType = "invalid_signature"
			err = ErrInvalidSignature
		} else {
			errType = "invalid_token"
			err = ErrInvalidToken
		}

		if counter := a.options.GetCounter(MetricTokensValidated, "Total number of tokens validated"); counter != nil {
			counter.Add(ctx, 1, metrics.L("status", "error"), metrics.L("error_type", errType))
		}
		return nil, err
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if counter := a.options.GetCounter(MetricTokensValidated, "Total number of tokens validated"); counter != nil {
		counter.Add(ctx, 1, metrics.L("status", "success"))
	}
	if histogram := a.options.GetHistogram("auth_token_validation_duration_seconds", "Token validation duration in seconds"); histogram != nil {
		histogram.Record(ctx, time.Since(start).Seconds())
	}

	return claims, nil
}

// ExtractToken 从请求中提取 token（导出用于中间件）
func (a *jwtAuth) ExtractToken(r *http.Request) (string, error) {
	parts := strings.Split(a.config.TokenLookup, ":")
	if len(parts) != 2 {
		return "", ErrMissingToken
	}

	source, key := parts[0], parts[1]

	switch source {
	case "header":
		authHeader := r.Header.Get(key)
		if authHeader == "" {
			return "", ErrMissingToken
		}
		tokenParts := strings.SplitN(authHeader, " ", 2)
		if len(tokenParts) != 2 || tokenParts[0] != a.config.TokenHeadName {
			return "", ErrInvalidToken
		}
		return tokenParts[1], nil

	case "query":
		token := r.URL.Query().Get(key)
		if token == "" {
			return "", ErrMissingToken
		}
		return token, nil

	case "cookie":
		cookie, err := r.Cookie(key)
		if err != nil {
			return "", ErrMissingToken
		}
		return cookie.Value, nil

	default:
		return "", ErrMissingToken
	}
}

const ClaimsKey = "auth:claims"
