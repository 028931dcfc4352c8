package cmd

import (
	"fmt"
	"time"

	"github.com/triagebot/internal/buildlog"
	"github.com/triagebot/internal/classifier"
	"github.com/triagebot/internal/config"
	"github.com/triagebot/internal/impact"
	"github.com/triagebot/internal/logging"
	"github.com/triagebot/internal/metadata"
	"github.com/triagebot/internal/mirror"
	"github.com/triagebot/internal/orchestrator"
	"github.com/triagebot/internal/tracker"
)

// components is the wired object graph shared by serve and triage.
type components struct {
	config       *config.Config
	store        *metadata.Store
	syncer       *mirror.Syncer
	tracker      *tracker.GitHubClient
	orchestrator *orchestrator.Orchestrator
	aliases      *classifier.AliasMap
}

func buildComponents(configPath string) (*components, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logging.Setup(cfg.Log.Level)

	aliases, err := classifier.LoadAliasMap(cfg.Alias.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load alias map: %w", err)
	}
	if cfg.Alias.Watch {
		if err := aliases.Watch(); err != nil {
			return nil, fmt.Errorf("failed to watch alias map: %w", err)
		}
	}

	trackerClient, err := tracker.NewGitHubClient(cfg.Tracker.Repo, cfg.Tracker.Token)
	if err != nil {
		return nil, err
	}

	store := metadata.NewStore(cfg.Repo.Dir)
	analyzer := impact.NewAnalyzer(store)
	status := buildlog.URLTemplates{
		HistoryURL: cfg.Buildlog.HistoryURL,
		LogURL:     cfg.Buildlog.LogURL,
	}

	orch := orchestrator.New(trackerClient, classifier.New(aliases), store, analyzer, status, orchestrator.Options{
		Bot:               cfg.Tracker.Bot,
		Admin:             cfg.Tracker.Admin,
		MinIssue:          cfg.Tracker.MinIssue,
		IgnoreLabel:       cfg.Tracker.IgnoreLabel,
		AssignFailureNote: cfg.Tracker.AssignFailureNote,
	})

	syncer := mirror.NewSyncer(cfg.Repo.Dir, cfg.Repo.Remote,
		time.Duration(cfg.Repo.SyncIntervalSeconds)*time.Second)

	return &components{
		config:       cfg,
		store:        store,
		syncer:       syncer,
		tracker:      trackerClient,
		orchestrator: orch,
		aliases:      aliases,
	}, nil
}
