package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/alanbriolat/download-manager/async"
)

func main() {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logger, err := logConfig.Build()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()
	zap.RedirectStdLog(logger)
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app := newApp(logConfig.Level)
	result := async.Run(func() error { return app.RunContext(ctx, os.Args) })

	// Commands notice the interrupt themselves and pause what they're waiting for, so keep waiting for them
	if err = <-result; err != nil {
		logger.Fatal(err.Error())
	}
}

func newApp(level zap.AtomicLevel) *cli.App {
	return &cli.App{
		Name:  "download-manager",
		Usage: "manage a list of resumable downloads",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "load settings from `FILE`",
			},
			&cli.StringFlag{
				Name:  "database",
				Usage: "keep the task list in `FILE`",
			},
			&cli.StringFlag{
				Name:  "driver",
				Usage: "database `DRIVER` (bolt or sqlite)",
			},
			&cli.StringFlag{
				Name:  "dir",
				Usage: "save completed downloads to `DIR`",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log at `LEVEL` and above",
			},
		},
		Before: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
				return err
			}
			c.App.Metadata = map[string]interface{}{"config": cfg}
			return nil
		},
		Commands: []*cli.Command{
			getCommand,
			addCommand,
			listCommand,
			startCommand,
			cancelCommand,
			removeCommand,
			moveCommand,
		},
		HideHelpCommand: true,
	}
}
