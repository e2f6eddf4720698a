// Package catbox parses catbox command flags and starts the casino runtime.
package catbox

import (
	"context"
	"flag"
	"net/http"

	entrypoint "github.com/wavefold/catbox/internal/platform/cmd"
	"github.com/wavefold/catbox/internal/services/casino/api/rest"
	server "github.com/wavefold/catbox/internal/services/casino/app"
)

// Config holds catbox command configuration.
type Config struct {
	Port int    `env:"CATBOX_PORT" envDefault:"8080"`
	Addr string `env:"CATBOX_ADDR"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The casino server port")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The casino server listen address (overrides -port)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the casino HTTP API service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceCatbox, func(context.Context) error {
		router := func(service *server.Service) http.Handler {
			return rest.NewHandler(service).Router()
		}
		if cfg.Addr != "" {
			return server.RunServerWithAddr(ctx, cfg.Addr, router)
		}
		return server.RunServer(ctx, cfg.Port, router)
	})
}
