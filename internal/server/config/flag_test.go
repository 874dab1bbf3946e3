package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		start       Config
		expected    Config
		name        string
		args        []string
		wantErr bool
	}{
		{
			name: "all flags",
			args: []string{"cmd",
				"-a", "127.0.0.1:8081", "-g", "127.0.0.1:9090", "-d", "db", "-s", "secret",
				"-t", "30", "-r", "redis:6379", "-l", "debug",
			},
			expected: Config{
				EndpointAddrHTTP:      "127.0.0.1:8081",
				EndpointAddrGRPC:      "127.0.0.1:9090",
				DatabaseDSN:           "db",
				SecretKey:             "secret",
				TokenValidityDuration: 30 * time.Minute,
				RedisAddr:             "redis:6379",
				LogLevel:              "debug",
			},
		},
		{
			name:     "absent -t keeps sub-minute validity",
			args:     []string{"cmd", "-s", "k"},
			start:    Config{TokenValidityDuration: 90 * time.Second},
			expected: Config{SecretKey: "k", TokenValidityDuration: 90 * time.Second},
		},
		{
			name:     "foreign flags are ignored",
			args:     []string{"cmd", "-c", "conf.json", "-x", "1", "-a", ":1"},
			expected: Config{EndpointAddrHTTP: ":1"},
		},
		{
			name:        "non-numeric validity is an error",
			args:        []string{"cmd", "-t", "soon"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args

			config := tt.start

			if !tt.wantErr {
				require.NoError(t, parseFlags(&config))
				assert.Empty(t, cmp.Diff(tt.expected, config))
			} else {
				assert.Error(t, parseFlags(&config))
			}
		})
	}
}
