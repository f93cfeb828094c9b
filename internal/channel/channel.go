// Package channel implements the delivery targets a notification fans out
// to. Channels are independent: each has its own dedup key space and its
// own delivery outcome, and one channel failing never blocks another.
package channel

import (
	"context"

	"github.com/brandwacht/warnmelder/internal/domain"
)

// Channel delivers one notification to one target system. Send returns an
// error only after the underlying transport has exhausted its retries;
// that error is definitive for this run.
type Channel interface {
	Name() string
	Send(ctx context.Context, n domain.Notification) error
}

// clampRunes truncates s to at most max runes. Truncation is silent and
// never splits a multi-byte character.
func clampRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
