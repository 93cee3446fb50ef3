package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/apikit/internal/flagx"
	"github.com/dmitrijs2005/apikit/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of the config file. Durations use
// timex.Duration so both "5m" and integer nanoseconds are accepted. Only
// fields present in the file override the current values.
type FileConfig struct {
	Env             *string         `json:"env" yaml:"env"`
	Debug           *bool           `json:"debug" yaml:"debug"`
	HTTPAddr        *string         `json:"http_addr" yaml:"http_addr"`
	GRPCHealthAddr  *string         `json:"grpc_health_addr" yaml:"grpc_health_addr"`
	ShutdownTimeout *timex.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`

	AllowedHosts       []string `json:"allowed_hosts" yaml:"allowed_hosts"`
	CORSAllowedOrigins []string `json:"cors_allowed_origins" yaml:"cors_allowed_origins"`

	DatabaseDSN *string `json:"database_dsn" yaml:"database_dsn"`

	SecretKey                    *string         `json:"secret_key" yaml:"secret_key"`
	AccessTokenValidityDuration  *timex.Duration `json:"access_token_validity_duration" yaml:"access_token_validity_duration"`
	RefreshTokenValidityDuration *timex.Duration `json:"refresh_token_validity_duration" yaml:"refresh_token_validity_duration"`
	PasswordResetTimeout         *timex.Duration `json:"password_reset_timeout" yaml:"password_reset_timeout"`
	FrontendURL                  *string         `json:"frontend_url" yaml:"frontend_url"`

	RedisAddr     *string `json:"redis_addr" yaml:"redis_addr"`
	RedisPassword *string `json:"redis_password" yaml:"redis_password"`
	RedisDB       *int    `json:"redis_db" yaml:"redis_db"`

	ThrottleAnonRate          *string `json:"throttle_anon_rate" yaml:"throttle_anon_rate"`
	ThrottleUserRate          *string `json:"throttle_user_rate" yaml:"throttle_user_rate"`
	ThrottleSensitiveAnonRate *string `json:"throttle_sensitive_anon_rate" yaml:"throttle_sensitive_anon_rate"`
	ThrottleSensitiveUserRate *string `json:"throttle_sensitive_user_rate" yaml:"throttle_sensitive_user_rate"`

	EmailBackend      *string `json:"email_backend" yaml:"email_backend"`
	EmailHost         *string `json:"email_host" yaml:"email_host"`
	EmailPort         *int    `json:"email_port" yaml:"email_port"`
	EmailHostUser     *string `json:"email_host_user" yaml:"email_host_user"`
	EmailHostPassword *string `json:"email_host_password" yaml:"email_host_password"`
	DefaultFromEmail  *string `json:"default_from_email" yaml:"default_from_email"`

	S3RootUser     *string `json:"s3_root_user" yaml:"s3_root_user"`
	S3RootPassword *string `json:"s3_root_password" yaml:"s3_root_password"`
	S3Bucket       *string `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region       *string `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint *string `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
}

// parseFile overlays values from the file named by -c/-config. Files ending
// in .yaml or .yml are decoded as YAML, everything else as JSON. A missing
// flag is a no-op; an unreadable or malformed file panics.
func parseFile(config *Config) {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	fc := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, fc)
	default:
		err = json.Unmarshal(data, fc)
	}
	if err != nil {
		panic(err)
	}

	fc.apply(config)
}

func (fc *FileConfig) apply(c *Config) {
	setString(&c.Env, fc.Env)
	if fc.Debug != nil {
		c.Debug = *fc.Debug
	}
	setString(&c.HTTPAddr, fc.HTTPAddr)
	setString(&c.GRPCHealthAddr, fc.GRPCHealthAddr)
	setDuration(&c.ShutdownTimeout, fc.ShutdownTimeout)
	if fc.AllowedHosts != nil {
		c.AllowedHosts = fc.AllowedHosts
	}
	if fc.CORSAllowedOrigins != nil {
		c.CORSAllowedOrigins = fc.CORSAllowedOrigins
	}
	setString(&c.DatabaseDSN, fc.DatabaseDSN)
	setString(&c.SecretKey, fc.SecretKey)
	setDuration(&c.AccessTokenValidityDuration, fc.AccessTokenValidityDuration)
	setDuration(&c.RefreshTokenValidityDuration, fc.RefreshTokenValidityDuration)
	setDuration(&c.PasswordResetTimeout, fc.PasswordResetTimeout)
	setString(&c.FrontendURL, fc.FrontendURL)
	setString(&c.RedisAddr, fc.RedisAddr)
	setString(&c.RedisPassword, fc.RedisPassword)
	setInt(&c.RedisDB, fc.RedisDB)
	setString(&c.ThrottleAnonRate, fc.ThrottleAnonRate)
	setString(&c.ThrottleUserRate, fc.ThrottleUserRate)
	setString(&c.ThrottleSensitiveAnonRate, fc.ThrottleSensitiveAnonRate)
	setString(&c.ThrottleSensitiveUserRate, fc.ThrottleSensitiveUserRate)
	setString(&c.EmailBackend, fc.EmailBackend)
	setString(&c.EmailHost, fc.EmailHost)
	setInt(&c.EmailPort, fc.EmailPort)
	setString(&c.EmailHostUser, fc.EmailHostUser)
	setString(&c.EmailHostPassword, fc.EmailHostPassword)
	setString(&c.DefaultFromEmail, fc.DefaultFromEmail)
	setString(&c.S3RootUser, fc.S3RootUser)
	setString(&c.S3RootPassword, fc.S3RootPassword)
	setString(&c.S3Bucket, fc.S3Bucket)
	setString(&c.S3Region, fc.S3Region)
	setString(&c.S3BaseEndpoint, fc.S3BaseEndpoint)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
