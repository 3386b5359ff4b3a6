package config

import (
	"github.com/caarlos0/env/v11"
)

const envPrefix = "PICSHARE_"

// parseEnv overlays Config with PICSHARE_* environment variables. Unset
// variables leave the current value alone. Malformed values panic, like a
// broken JSON file does.
func parseEnv(cfg *Config) {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: envPrefix}); err != nil {
		panic(err)
	}
}
