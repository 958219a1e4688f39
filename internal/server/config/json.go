package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/pulsekeeper/internal/flagx"
	"github.com/dmitrijs2005/pulsekeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the optional config file. Durations
// accept strings such as "1h" as well as integer nanoseconds. Absent keys
// leave the corresponding Config field unchanged.
type JsonConfig struct {
	EndpointAddrHTTP      *string         `json:"endpoint_addr_http"`
	StoreBackend          *string         `json:"store_backend"`
	DataDir               *string         `json:"data_dir"`
	FileExtension         *string         `json:"file_extension"`
	DatabaseDSN           *string         `json:"database_dsn"`
	S3RootUser            *string         `json:"s3_root_user"`
	S3RootPassword        *string         `json:"s3_root_password"`
	S3Bucket              *string         `json:"s3_bucket"`
	S3Region              *string         `json:"s3_region"`
	S3BaseEndpoint        *string         `json:"s3_base_endpoint"`
	HashingSecret         *string         `json:"hashing_secret"`
	TokenValidityDuration *timex.Duration `json:"token_validity_duration"`
	MaxChecks             *int            `json:"max_checks"`
	Logger                *string         `json:"logger"`
	Env                   *string         `json:"env"`
	ReconcileSchedule     *string         `json:"reconcile_schedule"`
}

// parseJson overlays values from the file named by -c/-config. Without the
// flag nothing is loaded. An unreadable or malformed file panics: the
// process must not start on a half-applied configuration.
func parseJson(config *Config) {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.StoreBackend, c.StoreBackend)
	setString(&config.DataDir, c.DataDir)
	setString(&config.FileExtension, c.FileExtension)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.HashingSecret, c.HashingSecret)
	setString(&config.Logger, c.Logger)
	setString(&config.Env, c.Env)
	setString(&config.ReconcileSchedule, c.ReconcileSchedule)

	if c.TokenValidityDuration != nil {
		config.TokenValidityDuration = c.TokenValidityDuration.Duration
	}
	if c.MaxChecks != nil {
		config.MaxChecks = *c.MaxChecks
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
