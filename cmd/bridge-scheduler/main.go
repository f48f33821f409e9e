package main

import (
	"fmt"
	"os"

	cli "github.com/urfave/cli/v2"

	"github.com/pixbridge/bridge-scheduler/pkg/logger"
)

const serviceName = "bridge-scheduler"

func main() {
	app := &cli.App{
		Name:  serviceName,
		Usage: fmt.Sprintf("%v daemon cli\nFor help on any individual command run <%v COMMAND -h>", serviceName, serviceName),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Env file to load before reading the environment",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
				Value: "info",
			},
		},
		Commands: cli.Commands{
			runCmd,
			migrateCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Sugar().Errorf("fail to run %v: %v", serviceName, err)
		os.Exit(1)
	}
}
