package cmd

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/triagebot/internal/api"
)

// ServeCommand returns the serve command
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the webhook server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Override the port to listen on",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	comps, err := buildComponents(c.String("config"))
	if err != nil {
		return err
	}
	defer comps.aliases.Close()

	// Warm the checkout so the first event does not pay for a clone.
	go func() {
		if err := comps.syncer.EnsureFresh(context.Background()); err != nil {
			log.Warn().Err(err).Msg("initial checkout sync failed")
		}
	}()

	port := comps.config.Server.Port
	if c.Int("port") != 0 {
		port = c.Int("port")
	}

	server := api.NewServer(port, comps.orchestrator, comps.syncer, comps.store,
		comps.config.Server.WebhookSecret, comps.config.Tracker.Repo)

	log.Info().Int("port", port).Str("repo", comps.config.Tracker.Repo).Msg("starting webhook server")
	return server.Start()
}
