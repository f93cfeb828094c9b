// Package job implements the five scheduled runs: weather warnings, the
// daily fire-danger summary, the acute fire-danger edge alert, river
// gauge cross-up alerts, and the upstream alarm mirror. Each job is
// single-threaded and run-to-completion; all failures below a job are
// isolated per record or per channel and end up in the summary counts.
package job

import (
	"context"
	"time"

	"github.com/brandwacht/warnmelder/internal/dispatch"
	"github.com/brandwacht/warnmelder/internal/domain"
)

// Dispatcher fans one notification out to the configured channels.
type Dispatcher interface {
	Dispatch(ctx context.Context, n domain.Notification) dispatch.Summary
}

// EdgeStates persists the hysteresis state per monitored quantity.
type EdgeStates interface {
	Get(name string) domain.EdgeState
	Put(name string, st domain.EdgeState) error
}

// samplePeriod is the forecast resolution. Edge timestamps and window
// fallbacks are expressed in whole sample periods.
const samplePeriod = time.Hour

// fmtGerman renders a timestamp the way the notifications spell it.
func fmtGerman(t time.Time) string {
	return t.Format("02.01.2006 15:04 Uhr")
}

// delivered reports whether a dispatch outcome counts as delivered for
// hysteresis purposes: every channel either confirmed or had already
// confirmed earlier, and none failed.
func delivered(sum dispatch.Summary) bool {
	return sum.Failed == 0 && sum.Sent+sum.Skipped > 0
}
