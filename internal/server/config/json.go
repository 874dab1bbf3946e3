package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/conduit/internal/flagx"
	"github.com/dmitrijs2005/conduit/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations accept both
// "24h" style strings and integer nanoseconds.
type JsonConfig struct {
	EndpointAddrHTTP      string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC      string         `json:"endpoint_addr_grpc"`
	DatabaseDSN           string         `json:"database_dsn"`
	SecretKey             string         `json:"secret_key"`
	TokenValidityDuration timex.Duration `json:"token_validity_duration"`
	TokenIssuer           string         `json:"token_issuer"`
	CookieSecure          *bool          `json:"cookie_secure"`
	BcryptCost            int            `json:"bcrypt_cost"`
	MaxConcurrentHashes   int            `json:"max_concurrent_hashes"`
	RedisAddr             string         `json:"redis_addr"`
	LoginRateLimit        int            `json:"login_rate_limit"`
	S3AccessKey           string         `json:"s3_access_key"`
	S3SecretKey           string         `json:"s3_secret_key"`
	S3Bucket              string         `json:"s3_bucket"`
	S3Region              string         `json:"s3_region"`
	S3BaseEndpoint        string         `json:"s3_base_endpoint"`
	S3PublicURL           string         `json:"s3_public_url"`
	LogLevel              string         `json:"log_level"`
}

// parseJson overlays the JSON file named by -c/-config (or CONDUIT_CONFIG)
// onto config. Keys missing from the file keep their current values.
func parseJson(config *Config) error {
	path := flagx.ConfigPath(os.Args[1:], EnvPrefix+"CONFIG")
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	if c.TokenValidityDuration.Duration > 0 {
		config.TokenValidityDuration = c.TokenValidityDuration.Duration
	}
	setString(&config.TokenIssuer, c.TokenIssuer)
	if c.CookieSecure != nil {
		config.CookieSecure = *c.CookieSecure
	}
	setInt(&config.BcryptCost, c.BcryptCost)
	setInt(&config.MaxConcurrentHashes, c.MaxConcurrentHashes)
	setString(&config.RedisAddr, c.RedisAddr)
	setInt(&config.LoginRateLimit, c.LoginRateLimit)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3PublicURL, c.S3PublicURL)
	setString(&config.LogLevel, c.LogLevel)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
