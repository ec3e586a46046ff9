package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/chemtrack/chemtrack/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestOpen(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name     string
		cfg      config.RedisConfig
		expected string
	}{
		{
			name:     "no endpoint configured",
			cfg:      config.RedisConfig{},
			expected: BackendMemory,
		},
		{
			name: "endpoint not reachable",
			cfg: config.RedisConfig{
				Endpoint:    "127.0.0.1:1",
				DialTimeout: 100 * time.Millisecond,
				OpTimeout:   100 * time.Millisecond,
			},
			expected: BackendMemory,
		},
		{
			name: "endpoint reachable",
			cfg: config.RedisConfig{
				Endpoint:    mr.Addr(),
				DialTimeout: time.Second,
				OpTimeout:   time.Second,
			},
			expected: BackendRedis,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Open(context.Background(), &tt.cfg, testLogger())
			defer s.Close()

			assert.Equal(t, tt.expected, s.Backend())
			assert.NoError(t, s.Ping(context.Background()))
		})
	}
}
