package main

import (
	"os"

	"github.com/pyropy/softraid/lib/logger"
	"github.com/urfave/cli/v2"
)

var log, _ = logger.New("sractl")

func main() {
	cfg, err := GetConfig()
	if err != nil {
		log.Fatalw("startup", "error", err)
	}

	app := &cli.App{
		Name:  "sractl",
		Usage: "manage software RAID volumes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "store",
				Value: cfg.Store.Path,
				Usage: "Path of the volume metadata store",
			},
		},
		Before: func(ctx *cli.Context) error {
			cfg.Store.Path = ctx.String("store")
			return nil
		},
		Metadata: map[string]interface{}{"config": cfg},
		Commands: []*cli.Command{
			createCmd,
			listCmd,
			statusCmd,
			writeCmd,
			readCmd,
			setChunkStateCmd,
			deleteCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalw("sractl", "error", err)
	}
}

func config(ctx *cli.Context) *Config {
	return ctx.App.Metadata["config"].(*Config)
}
