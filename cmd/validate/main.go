// Command validate runs the engine's preflight checks without touching
// the network or sending anything: environment configuration, gauge
// definitions, and the durable state files. It is meant for CI and for
// checking a deployment before the first scheduled run.
//
// Usage:
//
//	MODE=gauges GAUGES_FILE=gauges.yaml go run ./cmd/validate
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/brandwacht/warnmelder/internal/config"
	"github.com/brandwacht/warnmelder/internal/store"
)

// phase tracks pass/fail for one validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	phases := []*phase{
		checkConfig(),
		checkState(),
	}

	failed := false
	for _, p := range phases {
		if p.passed() {
			fmt.Printf("PASS  %s\n", p.name)
			continue
		}
		failed = true
		fmt.Printf("FAIL  %s\n", p.name)
		for _, e := range p.errors {
			fmt.Printf("      %s\n", e)
		}
	}
	if failed {
		os.Exit(1)
	}
}

// checkConfig loads and validates the environment, including the gauge
// definition file when one is configured.
func checkConfig() *phase {
	p := &phase{name: "configuration"}

	cfg, err := config.Load()
	if err != nil {
		p.errorf("load: %v", err)
		return p
	}

	if cfg.Mode == config.ModeWarnings && len(cfg.WarncellIDs) == 0 {
		p.errorf("warnings mode without WARNCELL_IDS fetches every cell nationwide")
	}
	if cfg.DiveraAccessKey == "" && cfg.TelegramToken == "" && len(cfg.KafkaBrokers) == 0 {
		p.errorf("no channel credentials configured; every run would refuse to start")
	}
	for _, g := range cfg.Gauges {
		if g.Source == config.GaugeSourcePegelonline && g.Water == "" {
			p.errorf("gauge %q: pegelonline source without a water body", g.Name)
		}
	}
	return p
}

// checkState opens the durable state files the way a run would, so a
// corrupt file is caught here instead of at 03:00 by cron.
func checkState() *phase {
	p := &phase{name: "state files"}

	cfg, err := config.Load()
	if err != nil {
		// Already reported by the configuration phase.
		return p
	}

	if _, err := store.OpenSeen(filepath.Join(cfg.StateDir, "seen.json")); err != nil {
		p.errorf("seen store: %v", err)
	}
	if _, err := store.OpenEdges(filepath.Join(cfg.StateDir, "edges.json")); err != nil {
		p.errorf("edge store: %v", err)
	}
	return p
}
