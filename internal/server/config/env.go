package config

import (
	"errors"
	"io/fs"

	"github.com/dmitrijs2005/apikit/internal/flagx"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// defaultEnvFile is read when present and no -env-file flag is given.
const defaultEnvFile = ".env"

// loadDotEnv is a seam for tests.
var loadDotEnv = godotenv.Load

// parseEnv loads the .env file (an explicit -env-file must exist, the
// implicit ./.env may be absent) into the process environment and then
// overlays every variable named in the Config `env` tags. Variables that
// are not set leave the current value untouched.
func parseEnv(config *Config) {
	path := flagx.EnvFileFlag()
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}

	if err := loadDotEnv(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			panic(err)
		}
	}

	if err := cleanenv.ReadEnv(config); err != nil {
		panic(err)
	}
}
