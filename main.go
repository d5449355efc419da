package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/okra-platform/kgql/internal/commands"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	short := commit
	if len(commit) > 7 {
		short = commit[:7]
	}

	return fmt.Sprintf("%s (%s) %s", version, short, date)
}

func main() {
	ctrl := &commands.Controller{
		Flags: &commands.Flags{},
		Out:   os.Stdout,
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	app := &cli.Command{
		Name:    "kgql",
		Usage:   "Generate typed JVM query builders from a GraphQL schema",
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "log level (debug, info, warn, error, fatal, panic)",
				Sources: cli.EnvVars("KGQL_LOG_LEVEL"),
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path of the config file (default: search from the working directory)",
				Sources: cli.EnvVars("KGQL_CONFIG"),
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			level, err := zerolog.ParseLevel(c.String("log-level"))
			if err != nil {
				return ctx, fmt.Errorf("failed to parse log level: %w", err)
			}

			log.Logger = log.Level(level)
			ctrl.Flags.LogLevel = c.String("log-level")
			ctrl.Flags.Config = c.String("config")
			ctrl.Logger = log.Logger

			return ctx, nil
		},
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Create a kgql config and starter schema",
				Action: func(ctx context.Context, c *cli.Command) error {
					return ctrl.Init(ctx)
				},
			},
			{
				Name:  "generate",
				Usage: "Generate declarations for every configured target",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "watch",
						Aliases: []string{"w"},
						Usage:   "regenerate when the schema or config changes",
					},
					&cli.BoolFlag{
						Name:  "clean",
						Usage: "remove files written by the previous run",
					},
					&cli.StringSliceFlag{
						Name:    "target",
						Aliases: []string{"t"},
						Usage:   "only generate the named targets",
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return ctrl.Generate(ctx, commands.GenerateOptions{
						Watch:   c.Bool("watch"),
						Clean:   c.Bool("clean"),
						Targets: c.StringSlice("target"),
					})
				},
			},
			{
				Name:      "inspect",
				Usage:     "Print a generated class file or module index",
				ArgsUsage: "<class>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "dir",
						Usage: "directory to resolve class names in (default: first target output)",
					},
					&cli.StringFlag{
						Name:  "format",
						Usage: "output format (json, yaml)",
						Value: commands.FormatJSON,
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return ctrl.Inspect(ctx, commands.InspectOptions{
						Target: c.Args().First(),
						Dir:    c.String("dir"),
						Format: c.String("format"),
					})
				},
			},
			{
				Name:      "verify",
				Usage:     "Check generated class files",
				ArgsUsage: "[dir]",
				Action: func(ctx context.Context, c *cli.Command) error {
					return ctrl.Verify(ctx, c.Args().First())
				},
			},
		},
	}

	ctx := context.Background()

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal().Err(err).Msg("failed to run kgql")
	}
}
