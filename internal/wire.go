package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/starford/ansuz/internal/cdn"
	"github.com/starford/ansuz/internal/fetcher"
	"github.com/starford/ansuz/internal/metrics"
	"github.com/starford/ansuz/internal/notify"
	"github.com/starford/ansuz/internal/render"
	"github.com/starford/ansuz/internal/retry"
	"github.com/starford/ansuz/internal/siteservice"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/syncer"
	"github.com/starford/ansuz/internal/tracker"
)

var errConfigRequired = errors.New("config is required")

// components is the wired sync stack shared by the serve, sync and mcp
// commands.
type components struct {
	registry  *prometheus.Registry
	recorder  *metrics.PrometheusRecorder
	publisher *render.Publisher
	broker    *notify.Broker
	orch      *syncer.Orchestrator
	service   *siteservice.Service

	closers []func() error
}

// Close releases connections in reverse order of acquisition.
func (c *components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i]())
	}
	return errors.Join(errs...)
}

// newSite opens the output directory and the publisher over it.
func newSite(cfg *Config) (*render.Publisher, error) {
	if err := os.MkdirAll(cfg.Site.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	out, err := storage.NewFS(cfg.Site.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("init output storage: %w", err)
	}
	pages := render.NewPages(render.NewTemplateCache(), cfg.Site.Info())
	return render.NewPublisher(pages, out, cfg.Site.HomeSize), nil
}

func wire(cfg *Config, logger *slog.Logger) (*components, error) {
	repo, err := cfg.Source.Repo()
	if err != nil {
		return nil, err
	}

	c := &components{registry: prometheus.NewRegistry()}
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c.recorder = metrics.NewPrometheusRecorder(c.registry)

	c.publisher, err = newSite(cfg)
	if err != nil {
		return nil, err
	}

	store, err := tracker.OpenSQLite(cfg.Tracker.Path)
	if err != nil {
		return nil, fmt.Errorf("init tracker: %w", err)
	}
	c.closers = append(c.closers, store.Close)
	tr, err := tracker.New(store)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("init tracker: %w", err)
	}

	c.broker = notify.NewBroker(2 * time.Second)
	c.closers = append(c.closers, func() error { c.broker.Close(); return nil })

	notifiers := notify.Multi{notify.NewLog(logger), c.broker}
	if cfg.NATS.URL != "" {
		n, err := notify.DialNATS(cfg.NATS.URL, cfg.NATS.Subject)
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		c.closers = append(c.closers, n.Close)
		notifiers = append(notifiers, n)
	}

	var invalidator cdn.Invalidator = cdn.Noop{}
	if cfg.CDN.Endpoint != "" {
		invalidator = cdn.NewHTTP(cfg.CDN.Endpoint, cfg.CDN.Token, &http.Client{Timeout: 30 * time.Second})
	}

	policy := cfg.Sync.Policy()
	src := fetcher.New(fetcher.Config{
		BaseURL:     cfg.Source.BaseURL,
		Token:       cfg.Source.Token,
		ContentRoot: cfg.Source.ContentRoot,
		MaxFileSize: cfg.Sync.MaxFileSize,
		Timeout:     cfg.Source.Timeout,
	},
		fetcher.WithLogger(logger),
		fetcher.WithRetry(retry.New(policy, retry.WithObserver(func(int, error) {
			c.recorder.IncRetry("fetch")
		}))),
	)

	c.orch = syncer.New(syncer.Config{
		Repo:            repo,
		DistributionID:  cfg.CDN.DistributionID,
		MaxFileSize:     cfg.Sync.MaxFileSize,
		MaxDocumentSize: cfg.Sync.MaxDocumentSize,
		Retry:           policy,
	}, src, c.publisher, tr,
		syncer.WithNotifier(notifiers),
		syncer.WithInvalidator(invalidator),
		syncer.WithEvents(c.broker),
		syncer.WithLogger(logger),
		syncer.WithMetrics(c.recorder),
	)
	c.service = siteservice.New(c.orch, c.publisher, logger)
	return c, nil
}
