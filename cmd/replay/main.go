// Command replay re-runs a saved game and prints its log and final table,
// optionally formatted for forum posting.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/cyberinferno/galaxy-relay/engine"
	"github.com/cyberinferno/galaxy-relay/logger"
	"github.com/cyberinferno/galaxy-relay/replay"
	"github.com/rs/zerolog"
	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "replay"
	app.Usage = "replay a saved game and dump the final table"
	app.ArgsUsage = "SAVE_FILE"
	app.HideVersion = true
	app.Action = run
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "Print every game message",
		},
		cli.BoolFlag{
			Name:  "f",
			Usage: "Wrap output in BBCode format tags",
		},
		cli.StringFlag{
			Name:  "s",
			Usage: "Substitute card and goal names from `FILE`",
		},
		cli.IntFlag{
			Name:  "watch",
			Usage: "Show the hand and private messages of `SEAT`",
		},
		cli.StringFlag{
			Name:   "rules",
			Usage:  "Registered rules engine `name`",
			Value:  "rftg",
			EnvVar: "RELAY_RULES",
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return errors.New("no save file supplied")
	}

	rules, err := engine.Lookup(c.String("rules"))
	if err != nil {
		return fmt.Errorf("%w (registered: %v)", err, engine.Names())
	}

	log := logger.NewZerologLogger(os.Stderr, "replay", zerolog.WarnLevel)
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return replay.Run(ctx, rules, path, replay.Options{
		Verbose:           c.Bool("v"),
		Formatted:         c.Bool("f"),
		SubstitutionsFile: c.String("s"),
		Watch:             c.Int("watch"),
	}, os.Stdout, log)
}
