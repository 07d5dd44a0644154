package auth

// Auth 组件导出的指标名称常量。

const (
	// MetricTokensValidated Token 验证计数，标签: status, error_type
	MetricTokensValidated = "auth_tokens_validated_total"
)
