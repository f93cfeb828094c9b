package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/brandwacht/warnmelder/internal/adapter/divera"
	"github.com/brandwacht/warnmelder/internal/adapter/dwd"
	"github.com/brandwacht/warnmelder/internal/adapter/erft"
	httpadapter "github.com/brandwacht/warnmelder/internal/adapter/http"
	"github.com/brandwacht/warnmelder/internal/adapter/openmeteo"
	"github.com/brandwacht/warnmelder/internal/adapter/pegel"
	"github.com/brandwacht/warnmelder/internal/channel"
	"github.com/brandwacht/warnmelder/internal/config"
	"github.com/brandwacht/warnmelder/internal/dispatch"
	"github.com/brandwacht/warnmelder/internal/domain"
	"github.com/brandwacht/warnmelder/internal/job"
	"github.com/brandwacht/warnmelder/internal/observability"
	"github.com/brandwacht/warnmelder/internal/report"
	"github.com/brandwacht/warnmelder/internal/store"
	"github.com/brandwacht/warnmelder/internal/transport"
)

// runner is the common shape of the five jobs.
type runner interface {
	Run(ctx context.Context) dispatch.Summary
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
		logger.Error("failed to create state dir", "dir", cfg.StateDir, "error", err)
		os.Exit(1)
	}

	t := transport.New(transport.Config{
		Retries:        cfg.HTTPRetries,
		ConnectTimeout: cfg.ConnectTimeout,
		ReadTimeout:    cfg.ReadTimeout,
	}, nil, logger, metrics.TransportRetries)

	seen, err := store.OpenSeen(filepath.Join(cfg.StateDir, "seen.json"))
	if err != nil {
		// A corrupt seen set would mean re-alerting everything ever sent.
		logger.Error("failed to open seen store", "error", err)
		os.Exit(1)
	}
	edges, err := store.OpenEdges(filepath.Join(cfg.StateDir, "edges.json"))
	if err != nil {
		logger.Error("failed to open edge store", "error", err)
		os.Exit(1)
	}

	channels, closers := buildChannels(cfg, t, logger)
	if len(channels) == 0 {
		logger.Error("no channel configured, refusing to run")
		os.Exit(1)
	}

	var limiter *rate.Limiter
	if cfg.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)
	}
	dispatcher := dispatch.New(seen, channels, limiter, logger, metrics)

	j, err := buildJob(cfg, t, dispatcher, edges, logger, metrics)
	if err != nil {
		logger.Error("failed to build job", "mode", cfg.Mode, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *httpadapter.Server
	if cfg.MetricsAddr != "" {
		srv = httpadapter.NewServer(cfg.MetricsAddr, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics endpoint error", "error", err)
			}
		}()
	}

	sum := j.Run(ctx)
	logger.Info("run complete",
		"mode", cfg.Mode, "sent", sum.Sent, "failed", sum.Failed, "skipped", sum.Skipped, "seen_keys", seen.Len())

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics endpoint shutdown error", "error", err)
		}
		cancel()
	}

	for _, c := range closers {
		if err := c(); err != nil {
			logger.Error("channel close error", "error", err)
		}
	}

	if sum.Failed > 0 {
		os.Exit(1)
	}
}

// buildChannels assembles every channel with complete credentials. A
// channel with missing settings is skipped with a log line, not fatal:
// partial channel coverage is better than no run at all.
func buildChannels(cfg *config.Config, t *transport.Client, logger *slog.Logger) ([]channel.Channel, []func() error) {
	var (
		channels []channel.Channel
		closers  []func() error
	)

	if cfg.DiveraAccessKey != "" {
		d := channel.NewDivera(t, cfg.DiveraAccessKey, cfg.DiveraRIC, cfg.DiveraPrivate)
		channels = append(channels, d)
	} else {
		logger.Info("divera channel disabled, no access key")
	}

	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		channels = append(channels, channel.NewTelegram(t, cfg.TelegramToken, cfg.TelegramChatID))
	} else {
		logger.Info("telegram channel disabled, token or chat id missing")
	}

	if len(cfg.KafkaBrokers) > 0 {
		k := channel.NewKafka(cfg.KafkaBrokers, cfg.KafkaAlertTopic)
		channels = append(channels, k)
		closers = append(closers, k.Close)
	} else {
		logger.Info("kafka channel disabled, no brokers")
	}

	return channels, closers
}

func buildJob(cfg *config.Config, t *transport.Client, dispatcher *dispatch.Dispatcher, edges *store.EdgeStore, logger *slog.Logger, metrics *observability.Metrics) (runner, error) {
	switch cfg.Mode {
	case config.ModeWarnings:
		source := dwd.NewClient(t, logger, metrics.RecordsFetched, metrics.RecordsDropped)
		var reportCache job.ReportProvider
		if cfg.ReportURL != "" {
			rs := store.NewReportStore(filepath.Join(cfg.StateDir, "report.json"))
			reportCache = report.New(t, rs, nil, logger, metrics.ReportCacheLookups)
		}
		return job.NewWarnings(source, reportCache, cfg.ReportURL, cfg.ReportTTL, dispatcher, cfg.WarncellIDs, cfg.MinSeverity, logger), nil

	case config.ModeFireDaily:
		source := openmeteo.NewClient(t, cfg.Lat, cfg.Lon, cfg.Models, cfg.Timezone, logger, metrics.RecordsFetched, metrics.RecordsDropped)
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			loc = time.Local
		}
		return job.NewFireDaily(source, cfg.Thresholds, dispatcher, loc, logger), nil

	case config.ModeFireAcute:
		source := openmeteo.NewClient(t, cfg.Lat, cfg.Lon, cfg.Models, cfg.Timezone, logger, metrics.RecordsFetched, metrics.RecordsDropped)
		return job.NewFireAcute(source, cfg.Thresholds, dispatcher, edges, logger, metrics), nil

	case config.ModeGauges:
		return job.NewGauges(buildMonitors(cfg, t, logger), dispatcher, edges, logger, metrics), nil

	case config.ModeAlarm:
		source := divera.NewClient(t, cfg.DiveraCentralKey, logger)
		return job.NewAlarm(source, dispatcher, logger), nil
	}
	return nil, errUnknownMode(cfg.Mode)
}

func buildMonitors(cfg *config.Config, t *transport.Client, logger *slog.Logger) []job.GaugeMonitor {
	pegelClient := pegel.NewClient(t, logger)
	erftClient := erft.NewClient(t, logger)

	monitors := make([]job.GaugeMonitor, 0, len(cfg.Gauges))
	for _, g := range cfg.Gauges {
		g := g
		var read job.LevelFunc
		switch g.Source {
		case config.GaugeSourcePegelonline:
			read = func(ctx context.Context) (domain.GaugeReading, error) {
				return pegelClient.CurrentLevel(ctx, g.Water, g.Station)
			}
		case config.GaugeSourceErftverband:
			read = func(ctx context.Context) (domain.GaugeReading, error) {
				return erftClient.CurrentLevel(ctx, g.Station)
			}
		}
		monitors = append(monitors, job.GaugeMonitor{Def: g, Read: read})
	}
	return monitors
}

type errUnknownMode string

func (e errUnknownMode) Error() string { return "unknown mode " + string(e) }
