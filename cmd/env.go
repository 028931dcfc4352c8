package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/triagebot/internal/config"
)

// EnvCommand returns the env command, which prints the effective
// configuration with secrets masked.
func EnvCommand() *cli.Command {
	return &cli.Command{
		Name:   "env",
		Usage:  "Print effective configuration",
		Action: runEnv,
	}
}

func runEnv(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Printf("server.port            = %d\n", cfg.Server.Port)
	fmt.Printf("server.webhook_secret  = %s\n", maskSecret(cfg.Server.WebhookSecret))
	fmt.Printf("tracker.repo           = %s\n", cfg.Tracker.Repo)
	fmt.Printf("tracker.token          = %s\n", maskSecret(cfg.Tracker.Token))
	fmt.Printf("tracker.bot            = %s\n", cfg.Tracker.Bot)
	fmt.Printf("tracker.admin          = %s\n", cfg.Tracker.Admin)
	fmt.Printf("tracker.min_issue      = %d\n", cfg.Tracker.MinIssue)
	fmt.Printf("tracker.ignore_label   = %s\n", cfg.Tracker.IgnoreLabel)
	fmt.Printf("repo.dir               = %s\n", cfg.Repo.Dir)
	fmt.Printf("repo.remote            = %s\n", cfg.Repo.Remote)
	fmt.Printf("repo.sync_interval     = %ds\n", cfg.Repo.SyncIntervalSeconds)
	fmt.Printf("alias.path             = %s\n", cfg.Alias.Path)
	fmt.Printf("alias.watch            = %t\n", cfg.Alias.Watch)
	fmt.Printf("buildlog.history_url   = %s\n", cfg.Buildlog.HistoryURL)
	fmt.Printf("buildlog.log_url       = %s\n", cfg.Buildlog.LogURL)
	fmt.Printf("log.level              = %s\n", cfg.Log.Level)
	return nil
}

func maskSecret(value string) string {
	if value == "" {
		return "(unset)"
	}
	if len(value) <= 4 {
		return "****"
	}
	return value[:2] + "****" + value[len(value)-2:]
}
