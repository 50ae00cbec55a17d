package main

import (
	"context"
	"errors"
	"fmt"

	kitlog "github.com/go-kit/kit/log"

	"github.com/sguter90/weatherlog/pkg/archive"
	"github.com/sguter90/weatherlog/pkg/clock"
	"github.com/sguter90/weatherlog/pkg/config"
	"github.com/sguter90/weatherlog/pkg/models"
	"github.com/sguter90/weatherlog/pkg/readings"
	"github.com/sguter90/weatherlog/pkg/scheduler"
	"github.com/sguter90/weatherlog/pkg/storage"
	"github.com/sguter90/weatherlog/pkg/tabular"
)

var errArchiveDisabled = errors.New("archive store not configured")

// app holds the components shared by the server and the one-shot commands
type app struct {
	cfg      *config.Config
	logger   kitlog.Logger
	clock    clock.Clock
	log      storage.ReadingLog
	renderer *tabular.Renderer
	service  *readings.Service

	// nil when no archive store is configured
	reconciler *archive.Reconciler
}

// newApp opens the reading log, runs migrations and wires the service and
// the archive reconciler.
func newApp(ctx context.Context, cfg *config.Config, logger kitlog.Logger) (*app, error) {
	log, err := storage.Open(cfg, logger)
	if err != nil {
		return nil, err
	}

	if err := storage.Migrate(ctx, log); err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to migrate storage: %w", err)
	}

	store, err := newArchiveStore(cfg, logger)
	if err != nil {
		log.Close()
		return nil, err
	}

	policy, err := archive.ParsePolicy(cfg.ArchivePolicy)
	if err != nil {
		log.Close()
		return nil, err
	}

	return assemble(cfg, logger, clock.New(), log, store, policy), nil
}

// assemble wires the components around an already opened log
func assemble(cfg *config.Config, logger kitlog.Logger, clk clock.Clock, log storage.ReadingLog, store archive.Store, policy archive.Policy) *app {
	renderer := tabular.NewRenderer(cfg.Location(), cfg.RedactFields)

	a := &app{
		cfg:      cfg,
		logger:   logger,
		clock:    clk,
		log:      log,
		renderer: renderer,
		service:  readings.NewService(log, renderer, clk, cfg.StaleThreshold, logger),
	}

	if store != nil {
		layout := archive.Layout{Prefix: cfg.ArchivePrefix, File: cfg.ArchiveFile}
		a.reconciler = archive.NewReconciler(log, store, renderer, policy, layout, logger)
	}
	return a
}

// newArchiveStore builds the configured store. A GitHub store without a
// repository yields nil, which disables archiving.
func newArchiveStore(cfg *config.Config, logger kitlog.Logger) (archive.Store, error) {
	switch cfg.ArchiveStore {
	case config.StoreFS:
		return archive.NewOsFSStore(cfg.ArchiveDir), nil
	case config.StoreGitHub:
		if cfg.GitHubRepo == "" {
			return nil, nil
		}
		return archive.NewGitHubStore(cfg.GitHubRepo, cfg.GitHubBranch, cfg.GitHubToken, logger,
			archive.WithBaseURL(cfg.GitHubAPIURL),
			archive.WithTimeout(cfg.ArchiveTimeout),
		), nil
	default:
		return nil, fmt.Errorf("unknown archive store %q", cfg.ArchiveStore)
	}
}

// archiveNow runs one archival pass for the window due now. An empty policy
// keeps the configured one.
func (a *app) archiveNow(ctx context.Context, policy archive.Policy) (models.ArchiveResult, error) {
	if a.reconciler == nil {
		return models.ArchiveResult{}, errArchiveDisabled
	}

	reconciler := a.reconciler
	if policy != "" {
		reconciler = reconciler.WithPolicy(policy)
	}

	return scheduler.Run(ctx, reconciler, a.clock.Now(), a.cfg.ArchiveLookback, a.cfg.ArchiveTimeout), nil
}

func (a *app) Close() error {
	return a.log.Close()
}
