package metrics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ceyewan/orderlock/metrics"
)

func TestHTTPStatusClass(t *testing.T) {
	cases := []struct {
		status int
		want   string
	}{
		{100, "1xx"},
		{200, "2xx"},
		{204, "2xx"},
		{301, "3xx"},
		{404, "4xx"},
		{409, "4xx"},
		{503, "5xx"},
		{0, "unknown"},
		{600, "unknown"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, metrics.HTTPStatusClass(tc.status), "status %d", tc.status)
	}
}

func TestHTTPOutcome(t *testing.T) {
	assert.Equal(t, metrics.OutcomeSuccess, metrics.HTTPOutcome(200))
	assert.Equal(t, metrics.OutcomeSuccess, metrics.HTTPOutcome(204))
	assert.Equal(t, metrics.OutcomeSuccess, metrics.HTTPOutcome(302))
	assert.Equal(t, metrics.OutcomeError, metrics.HTTPOutcome(400))
	assert.Equal(t, metrics.OutcomeError, metrics.HTTPOutcome(409))
	assert.Equal(t, metrics.OutcomeError, metrics.HTTPOutcome(500))
}
