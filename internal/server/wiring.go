package server

import (
	"context"

	"github.com/dmitrijs2005/apikit/internal/server/config"
	"github.com/dmitrijs2005/apikit/internal/server/httpapi"
	"github.com/dmitrijs2005/apikit/internal/server/mail"
	"github.com/dmitrijs2005/apikit/internal/server/services"
	"github.com/dmitrijs2005/apikit/internal/server/storage"
	"github.com/dmitrijs2005/apikit/internal/server/throttle"
	"github.com/redis/go-redis/v9"
)

var (
	_ httpapi.AuthServicer = (*services.AuthService)(nil)
	_ httpapi.UserServicer = (*services.UserService)(nil)
)

func mailSettings(c *config.Config) mail.Settings {
	return mail.Settings{
		Backend:  c.EmailBackend,
		Host:     c.EmailHost,
		Port:     c.EmailPort,
		Username: c.EmailHostUser,
		Password: c.EmailHostPassword,
		From:     c.DefaultFromEmail,
	}
}

// newObjectStorage returns nil when no bucket is configured, which turns
// picture uploads off.
func newObjectStorage(ctx context.Context, c *config.Config) (services.ObjectStorage, error) {
	if c.S3Bucket == "" {
		return nil, nil
	}
	s, err := storage.NewS3Storage(ctx, storage.Settings{
		Region:       c.S3Region,
		AccessKey:    c.S3RootUser,
		SecretKey:    c.S3RootPassword,
		Bucket:       c.S3Bucket,
		BaseEndpoint: c.S3BaseEndpoint,
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func newRedisClient(c *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	})
}

// throttlePolicies parses the configured rates into the global and the
// credential-endpoint policies.
func throttlePolicies(c *config.Config) (global, sensitive httpapi.ThrottlePolicy, err error) {
	rates := make(map[string]throttle.Rate, 4)
	for scope, raw := range map[string]string{
		throttle.ScopeAnon:          c.ThrottleAnonRate,
		throttle.ScopeUser:          c.ThrottleUserRate,
		throttle.ScopeSensitiveAnon: c.ThrottleSensitiveAnonRate,
		throttle.ScopeSensitiveUser: c.ThrottleSensitiveUserRate,
	} {
		r, err := throttle.ParseRate(raw)
		if err != nil {
			return global, sensitive, err
		}
		rates[scope] = r
	}

	global = httpapi.ThrottlePolicy{
		AnonScope: throttle.ScopeAnon,
		AnonRate:  rates[throttle.ScopeAnon],
		UserScope: throttle.ScopeUser,
		UserRate:  rates[throttle.ScopeUser],
	}
	sensitive = httpapi.ThrottlePolicy{
		AnonScope: throttle.ScopeSensitiveAnon,
		AnonRate:  rates[throttle.ScopeSensitiveAnon],
		UserScope: throttle.ScopeSensitiveUser,
		UserRate:  rates[throttle.ScopeSensitiveUser],
	}
	return global, sensitive, nil
}
