// Package domain models the alert-dispatch core: normalized warning and
// measurement records, the compound threshold rule, contiguous alert
// windows, the hysteresis edge trigger, and delivery dedup keys.
//
// # Data Sources
//
// Warnings originate from the DWD (Deutscher Wetterdienst) WFS endpoint as
// GeoJSON features. Each feature carries a property bag with an identifier,
// headline, event type, severity string, urgency, certainty, free-text
// description/instruction, four ISO-8601 timestamps (sent, effective,
// onset, expires), the warncell name/id, and a web link. Features without
// a stable identifier fall back to a headline|sent|warncell composite; the
// composite is stable across repeated fetches of the same event.
//
// Forecast samples come from Open-Meteo as aligned hourly arrays
// (timestamp, temperature, relative humidity, wind mean, wind gust) plus
// an optional current-instant snapshot of the same variables. River gauge
// readings come from the PEGELONLINE REST API and from the Erftverband
// live-values table.
//
// # Severity
//
// Upstream severity strings are mapped table-driven onto an ordinal scale:
//
//	unknown=0 | minor=1 | moderate=2 | severe=3 | extreme=4
//
// Comparisons are done on the ordinal only, so filtering is independent of
// the source's spelling. Unknown strings map to 0.
//
// # Alert Windows
//
// Given an ascending hourly sample sequence, [Thresholds.Windows] produces
// the maximal contiguous ranges where the compound rule holds. Windows are
// pairwise disjoint and sorted by start; a missing hour breaks a window
// exactly like a failing sample.
//
// # Edge Triggering
//
// [EdgeState] implements the armed/disarmed hysteresis: one alert on the
// false→true transition, silence while the condition persists, silent
// re-arm when it clears. One instance per monitored quantity.
//
// # Dedup Keys
//
// Delivery keys are identity+channel composites with a versioned string
// form. [Key.Variants] additionally yields the legacy bare-identity forms
// written by earlier revisions, so a key-scheme upgrade never causes a
// redelivery storm.
package domain
