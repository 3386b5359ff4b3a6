package main

import (
	"context"
	"os"

	"github.com/dmitrijs2005/picshare/internal/logging"
	"github.com/dmitrijs2005/picshare/internal/server"
	"github.com/dmitrijs2005/picshare/internal/server/admin"
	"github.com/dmitrijs2005/picshare/internal/server/config"
)

// backend exposes a server.App through the admin interfaces.
type backend struct {
	*server.App
}

func (b backend) Accounts() admin.Accounts     { return b.Users() }
func (b backend) Reconciler() admin.Reconciler { return b.Media() }

func open(ctx context.Context, configPath, dsn string) (admin.Backend, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dsn != "" {
		cfg.DatabaseDSN = dsn
	}

	logger, err := logging.New(cfg.LogFormat, cfg.LogLevel, os.Stderr)
	if err != nil {
		return nil, err
	}

	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return backend{app}, nil
}

func main() {
	if err := admin.NewRootCmd(open).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
