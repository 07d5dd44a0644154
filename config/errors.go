package config

import "github.com/ceyewan/orderlock/xerrors"

// ErrValidationFailed 验证失败
var ErrValidationFailed = xerrors.New("configuration validation failed")

// IsNotFound 检查错误是否为配置未找到
func IsNotFound(err error) bool {
	return xerrors.Is(err, xerrors.ErrNotFound)
}

// IsInvalidInput 检查错误是否为配置格式无效或验证失败
func IsInvalidInput(err error) bool {
	return xerrors.Is(err, xerrors.ErrInvalidInput)
}
