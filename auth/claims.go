package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims 定义了 JWT 载荷结构。
//
// 它内嵌了 jwt.RegisteredClaims 以支持标准声明（如 exp, sub, iss 等），
// Subject 即持锁用户的 ID。
type Claims struct {
	// 标准声明 (包含 Subject, Issuer, ExpiresAt 等)
	jwt.RegisteredClaims

	// 业务扩展声明
	Username string `json:"uname,omitempty"` // 用户名
}
