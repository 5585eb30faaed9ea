package config

import "github.com/spf13/viper"

// Environment variables recognised by parseEnv.
const (
	EnvDatabaseURL        = "DATABASE_URL"
	EnvJWTSecretKey       = "JWT_SECRET_KEY"
	EnvVaultEncryptionKey = "VAULT_ENCRYPTION_KEY"
	EnvMasterKey          = "MASTER_KEY"
	EnvHIBPAPIKey         = "HIBP_API_KEY"
	EnvHIBPBaseURL        = "HIBP_BASE_URL"
	EnvS3Bucket           = "S3_BUCKET"
	EnvS3Region           = "S3_REGION"
	EnvS3Endpoint         = "S3_ENDPOINT"
	EnvS3AccessKey        = "S3_ACCESS_KEY"
	EnvS3SecretKey        = "S3_SECRET_KEY"
	EnvEmergencyAutoGrant = "EMERGENCY_AUTO_GRANT"
	EnvEmergencySweep     = "EMERGENCY_SWEEP_INTERVAL"
	EnvLogLevel           = "LOG_LEVEL"
)

// parseEnv overlays values from environment variables. Unset or empty
// variables leave the current value untouched.
func parseEnv(config *Config) {
	v := viper.New()

	str := func(env string, dst *string) {
		_ = v.BindEnv(env, env)
		if v.IsSet(env) {
			*dst = v.GetString(env)
		}
	}

	str(EnvDatabaseURL, &config.DatabaseDSN)
	str(EnvJWTSecretKey, &config.SecretKey)
	str(EnvVaultEncryptionKey, &config.FieldEncryptionKey)
	str(EnvMasterKey, &config.MasterKey)
	str(EnvHIBPAPIKey, &config.HIBPAPIKey)
	str(EnvHIBPBaseURL, &config.HIBPBaseURL)
	str(EnvS3Bucket, &config.S3Bucket)
	str(EnvS3Region, &config.S3Region)
	str(EnvS3Endpoint, &config.S3BaseEndpoint)
	str(EnvS3AccessKey, &config.S3RootUser)
	str(EnvS3SecretKey, &config.S3RootPassword)
	str(EnvLogLevel, &config.LogLevel)

	_ = v.BindEnv(EnvEmergencyAutoGrant, EnvEmergencyAutoGrant)
	if v.IsSet(EnvEmergencyAutoGrant) {
		config.EmergencyAutoGrant = v.GetBool(EnvEmergencyAutoGrant)
	}
	_ = v.BindEnv(EnvEmergencySweep, EnvEmergencySweep)
	if v.IsSet(EnvEmergencySweep) {
		config.EmergencySweepInterval = v.GetDuration(EnvEmergencySweep)
	}
}
