package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_parseEnv(t *testing.T) {
	t.Run("overrides only variables that are set", func(t *testing.T) {
		t.Setenv("CONDUIT_GRPC_ADDR", ":6000")
		t.Setenv("CONDUIT_TOKEN_VALIDITY", "45m")
		t.Setenv("CONDUIT_BCRYPT_COST", "12")
		t.Setenv("CONDUIT_COOKIE_SECURE", "true")
		t.Setenv("CONDUIT_S3_BUCKET", "avatars")

		cfg := &Config{}
		cfg.LoadDefaults()
		require.NoError(t, parseEnv(cfg))

		assert.Equal(t, ":6000", cfg.EndpointAddrGRPC)
		assert.Equal(t, 45*time.Minute, cfg.TokenValidityDuration)
		assert.Equal(t, 12, cfg.BcryptCost)
		assert.True(t, cfg.CookieSecure)
		assert.Equal(t, "avatars", cfg.S3Bucket)

		assert.Equal(t, ":8080", cfg.EndpointAddrHTTP)
		assert.Empty(t, cfg.SecretKey)
	})

	t.Run("malformed value is an error", func(t *testing.T) {
		t.Setenv("CONDUIT_BCRYPT_COST", "ten")

		cfg := &Config{}
		assert.Error(t, parseEnv(cfg))
	})
}
