package domain

import "strings"

// Severity is the normalized warning severity ordinal. Higher is worse.
type Severity int

const (
	SeverityUnknown  Severity = 0
	SeverityMinor    Severity = 1
	SeverityModerate Severity = 2
	SeveritySevere   Severity = 3
	SeverityExtreme  Severity = 4
)

// severityTable maps upstream severity strings to ordinals. Lookup is
// case-insensitive; anything not listed is SeverityUnknown.
var severityTable = map[string]Severity{
	"minor":    SeverityMinor,
	"moderate": SeverityModerate,
	"severe":   SeveritySevere,
	"extreme":  SeverityExtreme,
}

// ParseSeverity maps an upstream severity string to its ordinal.
func ParseSeverity(s string) Severity {
	if sev, ok := severityTable[strings.ToLower(strings.TrimSpace(s))]; ok {
		return sev
	}
	return SeverityUnknown
}

func (s Severity) String() string {
	switch s {
	case SeverityMinor:
		return "minor"
	case SeverityModerate:
		return "moderate"
	case SeveritySevere:
		return "severe"
	case SeverityExtreme:
		return "extreme"
	default:
		return "unknown"
	}
}
