package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_parseEnv_OverlaysSetVariablesOnly(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin"}

	origLoad := loadDotEnv
	t.Cleanup(func() { loadDotEnv = origLoad })
	loadDotEnv = func(...string) error { return os.ErrNotExist }

	t.Setenv("SECRET_KEY", "from-env")
	t.Setenv("JWT_ACCESS_TOKEN_LIFETIME", "10m")
	t.Setenv("DEBUG", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("EMAIL_PORT", "2525")

	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)

	assert.Equal(t, "from-env", cfg.SecretKey)
	assert.Equal(t, 10*time.Minute, cfg.AccessTokenValidityDuration)
	assert.True(t, cfg.Debug)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 2525, cfg.EmailPort)

	assert.Equal(t, 24*time.Hour, cfg.RefreshTokenValidityDuration, "unset variables keep defaults")
	assert.Equal(t, ":8000", cfg.HTTPAddr)
}

func Test_parseEnv_ReadsDotEnvFile(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("REDIS_ADDR=redis:6379\nREDIS_DB=2\n"), 0o600))
	os.Args = []string{"testbin", "-env-file", path}

	// godotenv does not override variables that are already set
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("REDIS_DB", "")
	require.NoError(t, os.Unsetenv("REDIS_ADDR"))
	require.NoError(t, os.Unsetenv("REDIS_DB"))

	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)

	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, 2, cfg.RedisDB)
}

func Test_parseEnv_MissingExplicitFilePanics(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin", "-env-file", filepath.Join(t.TempDir(), "missing.env")}

	cfg := &Config{}
	require.Panics(t, func() { parseEnv(cfg) })
}

func Test_parseEnv_MissingImplicitFileIsIgnored(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin"}

	origLoad := loadDotEnv
	t.Cleanup(func() { loadDotEnv = origLoad })
	loadDotEnv = func(...string) error { return &os.PathError{Op: "open", Path: ".env", Err: os.ErrNotExist} }

	cfg := &Config{}
	require.NotPanics(t, func() { parseEnv(cfg) })

	loadDotEnv = func(...string) error { return errors.New("line 3: unexpected character") }
	require.Panics(t, func() { parseEnv(cfg) })
}
