package rules

import (
	"fmt"
	"time"

	"github.com/obsidianstack/promcheck/internal/exposition"
	"github.com/obsidianstack/promcheck/pkg/types"
)

// Default thresholds applied when Config fields are zero.
const (
	DefaultMaxCardinality     = 1000
	DefaultStalenessThreshold = 300 * time.Second
)

// warnCardinalityRatio is the share of MaxCardinality above which a family
// is reported as approaching the limit.
const warnCardinalityRatio = 0.7

// Config holds the thresholds the checks compare against.
type Config struct {
	// MaxCardinality is the sample count per family above which the family
	// is critical.
	MaxCardinality int

	// StalenessThreshold is the maximum age of an explicit sample timestamp.
	StalenessThreshold time.Duration
}

// DefaultConfig returns the documented default thresholds.
func DefaultConfig() Config {
	return Config{
		MaxCardinality:     DefaultMaxCardinality,
		StalenessThreshold: DefaultStalenessThreshold,
	}
}

// Validate rejects non-positive thresholds.
func (c Config) Validate() error {
	if c.MaxCardinality <= 0 {
		return fmt.Errorf("rules: max cardinality must be positive, got %d", c.MaxCardinality)
	}
	if c.StalenessThreshold <= 0 {
		return fmt.Errorf("rules: staleness threshold must be positive, got %v", c.StalenessThreshold)
	}
	return nil
}

// Check inspects parsed families and returns the issues it finds.
// Checks must not modify the families.
type Check func(families []*exposition.Family, cfg Config, now time.Time) []types.Issue

// namedCheck pairs a Check with the name used in logs and tests.
type namedCheck struct {
	name  string
	check Check
}

// Engine runs an ordered battery of checks.
//
// An Engine holds no per-run state and is safe for concurrent use.
type Engine struct {
	cfg    Config
	checks []namedCheck
	now    func() time.Time // injectable for deterministic tests
}

// New returns an Engine with the default battery: duplicates, naming,
// cardinality, staleness and types, in that order. Zero thresholds in cfg
// are replaced by their defaults.
func New(cfg Config) *Engine {
	if cfg.MaxCardinality == 0 {
		cfg.MaxCardinality = DefaultMaxCardinality
	}
	if cfg.StalenessThreshold == 0 {
		cfg.StalenessThreshold = DefaultStalenessThreshold
	}
	return &Engine{
		cfg: cfg,
		checks: []namedCheck{
			{"duplicates", checkDuplicates},
			{"naming", checkNaming},
			{"cardinality", checkCardinality},
			{"staleness", checkStaleness},
			{"types", checkTypes},
		},
		now: time.Now,
	}
}

// Config returns the effective thresholds.
func (e *Engine) Config() Config {
	return e.cfg
}

// Run evaluates every check against families and returns the combined
// issues in check order.
func (e *Engine) Run(families []*exposition.Family) []types.Issue {
	now := e.now()
	var issues []types.Issue
	for _, c := range e.checks {
		issues = append(issues, c.check(families, e.cfg, now)...)
	}
	return issues
}
