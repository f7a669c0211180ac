package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEffectiveLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{name: "unset uses default", limit: 0, want: DefaultRowLimit},
		{name: "negative uses default", limit: -5, want: DefaultRowLimit},
		{name: "in range passes through", limit: 250, want: 250},
		{name: "at cap passes through", limit: MaxRowLimit, want: MaxRowLimit},
		{name: "above cap is clamped", limit: 5000, want: MaxRowLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := ExecutionRequest{Query: "SELECT 1", Dialect: DialectSQL, Limit: tt.limit}
			assert.Equal(t, tt.want, req.EffectiveLimit())
		})
	}
}
