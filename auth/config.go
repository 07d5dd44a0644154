package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ceyewan/orderlock/xerrors"
)

// Config Auth 配置
type Config struct {
	// JWT 配置
	SecretKey     string `mapstructure:"secret_key"`     // 签名密钥（至少 32 字符）
	SigningMethod string `mapstructure:"signing_method"` // 签名方法: HS256（目前只支持）
	Issuer        string `mapstructure:"issuer"`         // 签发者

	// Token 有效期
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"` // Access Token TTL，默认 15m

	// Token 提取配置
	// 默认 "header:Authorization"，也支持 "query:token" 和 "cookie:jwt"
	TokenLookup   string `mapstructure:"token_lookup"`    // 提取方式
	TokenHeadName string `mapstructure:"token_head_name"` // Header 前缀，默认 Bearer
}

// setDefaults 设置默认值
func (c *Config) setDefaults() {
	if c.SigningMethod == "" {
		c.SigningMethod = "HS256"
	}
	if c.AccessTokenTTL == 0 {
		c.AccessTokenTTL = 15 * time.Minute
	}
	if c.TokenLookup == "" {
		c.TokenLookup = "header:Authorization"
	}
	if c.TokenHeadName == "" {
		c.TokenHeadName = "Bearer"
	}
}

// validate 验证配置
func (c *Config) validate() error {
	if c.SecretKey == "" {
		return ErrInvalidConfig
	}

	if len(c.SecretKey) < 32 {
		return xerrors.Wrapf(ErrInvalidConfig, "secret_key must be at least 32 characters")
	}

	if c.SigningMethod != jwt.SigningMethodHS256.Alg() {
		return xerrors.Wrapf(ErrInvalidConfig, "unsupported signing_method: %s", c.SigningMethod)
	}

	if c.AccessTokenTTL <= 0 {
		return xerrors.Wrapf(ErrInvalidConfig, "access_token_ttl must be positive")
	}

	return nil
}
