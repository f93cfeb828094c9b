package job

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brandwacht/warnmelder/internal/dispatch"
	"github.com/brandwacht/warnmelder/internal/domain"
)

// WarningSource fetches normalized warnings, empty on transient failure.
type WarningSource interface {
	Fetch(ctx context.Context, warncells []string) []domain.Warning
}

// ReportProvider returns the cached situation-report text, "" when none
// is available.
type ReportProvider interface {
	Get(ctx context.Context, sourceURL string, ttl time.Duration) string
}

// Warnings mirrors upstream weather warnings into notifications.
type Warnings struct {
	source      WarningSource
	report      ReportProvider
	reportURL   string
	reportTTL   time.Duration
	dispatcher  Dispatcher
	warncells   []string
	minSeverity domain.Severity
	logger      *slog.Logger
}

// NewWarnings creates the warnings job. report may be nil, or reportURL
// empty, to skip the situation-report attachment.
func NewWarnings(source WarningSource, report ReportProvider, reportURL string, reportTTL time.Duration, dispatcher Dispatcher, warncells []string, minSeverity domain.Severity, logger *slog.Logger) *Warnings {
	return &Warnings{
		source:      source,
		report:      report,
		reportURL:   reportURL,
		reportTTL:   reportTTL,
		dispatcher:  dispatcher,
		warncells:   warncells,
		minSeverity: minSeverity,
		logger:      logger,
	}
}

// Run fetches, filters, and dispatches the current warnings. The
// situation report is fetched at most once per run, and only when at
// least one warning is eligible.
func (j *Warnings) Run(ctx context.Context) dispatch.Summary {
	var sum dispatch.Summary

	warnings := j.source.Fetch(ctx, j.warncells)
	j.logger.Info("warnings fetched", "count", len(warnings))

	reportText := ""
	reportLoaded := false

	for _, w := range warnings {
		if w.Severity < j.minSeverity {
			continue
		}
		if !reportLoaded {
			reportText = j.loadReport(ctx)
			reportLoaded = true
		}
		sum.Add(j.dispatcher.Dispatch(ctx, j.notification(w, reportText)))
	}
	return sum
}

func (j *Warnings) loadReport(ctx context.Context) string {
	if j.report == nil || j.reportURL == "" {
		return ""
	}
	return j.report.Get(ctx, j.reportURL, j.reportTTL)
}

func (j *Warnings) notification(w domain.Warning, reportText string) domain.Notification {
	title := w.Headline
	if title == "" {
		title = w.Event
	}

	var lines []string
	if w.Description != "" {
		lines = append(lines, w.Description)
	}
	if w.Instruction != "" {
		lines = append(lines, "", w.Instruction)
	}
	if !w.Onset.IsZero() && !w.Expires.IsZero() {
		lines = append(lines, "", fmt.Sprintf("Gültig von %s bis %s", fmtGerman(w.Onset), fmtGerman(w.Expires)))
	}
	if w.AreaName != "" {
		lines = append(lines, fmt.Sprintf("Gebiet: %s", w.AreaName))
	}
	lines = append(lines, fmt.Sprintf("Stufe: %s", w.Severity))
	if w.Web != "" {
		lines = append(lines, w.Web)
	}
	if reportText != "" {
		lines = append(lines, "", "--- Wetterbericht ---", reportText)
	}

	return domain.Notification{
		Identity: w.Identity(),
		Title:    "⚠️ " + title,
		Text:     strings.Join(lines, "\n"),
		Private:  true,
	}
}
