package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/triagebot/internal/orchestrator"
)

// TriageCommand returns the triage command, which runs one
// classification and reconciliation pass against a single issue.
func TriageCommand() *cli.Command {
	return &cli.Command{
		Name:  "triage",
		Usage: "Triage a single issue once",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "edited",
				Aliases: []string{"e"},
				Usage:   "Treat the issue as edited rather than newly filed",
			},
			&cli.BoolFlag{
				Name:  "no-sync",
				Usage: "Skip the checkout freshness sync",
			},
		},
		ArgsUsage: "ISSUE_NUMBER",
		Action:    runTriage,
	}
}

func runTriage(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one issue number argument")
	}
	number, err := strconv.Atoi(c.Args().First())
	if err != nil {
		return fmt.Errorf("invalid issue number %q", c.Args().First())
	}

	comps, err := buildComponents(c.String("config"))
	if err != nil {
		return err
	}
	defer comps.aliases.Close()

	ctx := context.Background()

	if !c.Bool("no-sync") {
		if err := comps.syncer.EnsureFresh(ctx); err != nil {
			return err
		}
	}

	issue, err := comps.tracker.Fetch(ctx, number)
	if err != nil {
		return fmt.Errorf("failed to fetch issue %d: %w", number, err)
	}

	event := orchestrator.Event{Issue: issue, Edited: c.Bool("edited")}
	if err := comps.orchestrator.Process(ctx, event); err != nil {
		return err
	}

	log.Info().Int("issue", number).Msg("triage complete")
	return nil
}
