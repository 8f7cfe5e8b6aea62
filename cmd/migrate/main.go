package main

import (
	"context"
	"fmt"
	"os"

	"github.com/judoassistant/tournament-sync/internal/flagx"
	"github.com/judoassistant/tournament-sync/internal/logging"
	"github.com/judoassistant/tournament-sync/internal/server"
	"github.com/judoassistant/tournament-sync/internal/server/admin"
	"github.com/judoassistant/tournament-sync/internal/server/config"
	"github.com/judoassistant/tournament-sync/internal/server/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {

	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.NewJSONLogger(os.Stderr, cfg.LogLevel)

	db, rm, err := server.OpenDatabase(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	engine, err := rm.Engine(db)
	if err != nil {
		return err
	}

	us := services.NewUserService(db, rm, cfg, logger)
	app := admin.NewApp(engine, us, os.Stdout, logger)

	return app.Run(ctx, flagx.Positional(os.Args[1:], config.FlagNames))
}
