package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/passport/internal/flagx"
	"github.com/dmitrijs2005/passport/internal/timex"
)

// JsonConfig mirrors Config for JSON unmarshalling. Durations use
// timex.Duration so files may say "15m" or give integer nanoseconds.
// Absent keys keep the value already present in Config.
type JsonConfig struct {
	EndpointAddrHTTP             *string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC             *string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                  *string         `json:"database_dsn"`
	SecretKey                    *string         `json:"secret_key"`
	FieldEncryptionKey           *string         `json:"field_encryption_key"`
	MasterKey                    *string         `json:"master_key"`
	AccessTokenValidityDuration  *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration *timex.Duration `json:"refresh_token_validity_duration"`
	HIBPBaseURL                  *string         `json:"hibp_base_url"`
	HIBPAPIKey                   *string         `json:"hibp_api_key"`
	HIBPTimeout                  *timex.Duration `json:"hibp_timeout"`
	S3RootUser                   *string         `json:"s3_root_user"`
	S3RootPassword               *string         `json:"s3_root_password"`
	S3Bucket                     *string         `json:"s3_bucket"`
	S3Region                     *string         `json:"s3_region"`
	S3BaseEndpoint               *string         `json:"s3_base_endpoint"`
	EmergencyAutoGrant           *bool           `json:"emergency_auto_grant"`
	EmergencySweepInterval       *timex.Duration `json:"emergency_sweep_interval"`
	MaxFailedLogins              *int            `json:"max_failed_logins"`
	LockoutDuration              *timex.Duration `json:"lockout_duration"`
	AuthRateLimit                *float64        `json:"auth_rate_limit"`
	AuthRateBurst                *int            `json:"auth_rate_burst"`
	TOTPIssuer                   *string         `json:"totp_issuer"`
}

// parseJson loads configuration values from the JSON file named by the -c or
// -config flag. Without the flag nothing is loaded. An unreadable file or
// invalid JSON panics.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setStr := func(src *string, dst *string) {
		if src != nil {
			*dst = *src
		}
	}
	setDur := func(src *timex.Duration, dst *time.Duration) {
		if src != nil {
			*dst = src.Duration
		}
	}

	setStr(c.EndpointAddrHTTP, &config.EndpointAddrHTTP)
	setStr(c.EndpointAddrGRPC, &config.EndpointAddrGRPC)
	setStr(c.DatabaseDSN, &config.DatabaseDSN)
	setStr(c.SecretKey, &config.SecretKey)
	setStr(c.FieldEncryptionKey, &config.FieldEncryptionKey)
	setStr(c.MasterKey, &config.MasterKey)
	setDur(c.AccessTokenValidityDuration, &config.AccessTokenValidityDuration)
	setDur(c.RefreshTokenValidityDuration, &config.RefreshTokenValidityDuration)
	setStr(c.HIBPBaseURL, &config.HIBPBaseURL)
	setStr(c.HIBPAPIKey, &config.HIBPAPIKey)
	setDur(c.HIBPTimeout, &config.HIBPTimeout)
	setStr(c.S3RootUser, &config.S3RootUser)
	setStr(c.S3RootPassword, &config.S3RootPassword)
	setStr(c.S3Bucket, &config.S3Bucket)
	setStr(c.S3Region, &config.S3Region)
	setStr(c.S3BaseEndpoint, &config.S3BaseEndpoint)
	if c.EmergencyAutoGrant != nil {
		config.EmergencyAutoGrant = *c.EmergencyAutoGrant
	}
	setDur(c.EmergencySweepInterval, &config.EmergencySweepInterval)
	if c.MaxFailedLogins != nil {
		config.MaxFailedLogins = *c.MaxFailedLogins
	}
	setDur(c.LockoutDuration, &config.LockoutDuration)
	if c.AuthRateLimit != nil {
		config.AuthRateLimit = *c.AuthRateLimit
	}
	if c.AuthRateBurst != nil {
		config.AuthRateBurst = *c.AuthRateBurst
	}
	setStr(c.TOTPIssuer, &config.TOTPIssuer)
}
