// Package config loads solver settings from a YAML file and the environment,
// with priority env > file > defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"q.log/milp/progress"
	"q.log/milp/solver"
)

// Config is the file form of solver.Options.
type Config struct {
	Limits     LimitsConfig    `yaml:"limits"`
	Tolerances ToleranceConfig `yaml:"tolerances"`
	Branching  BranchingConfig `yaml:"branching"`
	Logging    LoggingConfig   `yaml:"logging"`
	Factor     FactorConfig    `yaml:"factor"`
}

type LimitsConfig struct {
	TimeLimit      time.Duration `yaml:"time_limit"`
	IterationLimit int           `yaml:"iteration_limit"`
	NodeLimit      int           `yaml:"node_limit"`
	DepthLimit     int           `yaml:"depth_limit"`
}

type ToleranceConfig struct {
	Integrality float64 `yaml:"integrality"`
	MIPGapAbs   float64 `yaml:"mip_gap_abs"`
	MIPGapRel   float64 `yaml:"mip_gap_rel"`
	Primal      float64 `yaml:"primal"`
	Dual        float64 `yaml:"dual"`
	Pivot       float64 `yaml:"pivot"`
}

type BranchingConfig struct {
	// Rule is "most-fractional" or "lowest-index".
	Rule       string `yaml:"rule"`
	FloorFirst bool   `yaml:"floor_first"`
	// DegenerateLimit is the run of degenerate pivots after which Bland's rule takes over.
	DegenerateLimit int `yaml:"degenerate_limit"`
}

type LoggingConfig struct {
	Verbosity string `yaml:"verbosity"`
	// IterationRate caps iteration log records per second.
	IterationRate float64 `yaml:"iteration_rate"`
}

type FactorConfig struct {
	RefactorInterval int     `yaml:"refactor_interval"`
	PivotThreshold   float64 `yaml:"pivot_threshold"`
}

const (
	RuleMostFractional = "most-fractional"
	RuleLowestIndex    = "lowest-index"
)

// Default mirrors solver.DefaultOptions.
func Default() Config {
	o := solver.DefaultOptions()
	return Config{
		Tolerances: ToleranceConfig{
			Integrality: o.Epsilon,
			MIPGapAbs:   o.MIPGapAbs,
			MIPGapRel:   o.MIPGapRel,
			Primal:      o.PrimalTol,
			Dual:        o.DualTol,
			Pivot:       o.PivotTol,
		},
		Branching: BranchingConfig{
			Rule:            RuleMostFractional,
			DegenerateLimit: o.DegenerateLimit,
		},
		Logging: LoggingConfig{
			Verbosity:     o.Verbosity.String(),
			IterationRate: o.IterationLogRate,
		},
		Factor: FactorConfig{
			RefactorInterval: o.RefactorInterval,
			PivotThreshold:   o.PivotThreshold,
		},
	}
}

// Load reads path over the defaults, applies MILP_* environment overrides
// and validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return c, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, &c); err != nil {
			return c, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := c.fromEnv(); err != nil {
		return c, err
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

func (c *Config) fromEnv() error {
	var errs []error
	if v := os.Getenv("MILP_TIME_LIMIT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Limits.TimeLimit = d
		} else {
			errs = append(errs, fmt.Errorf("MILP_TIME_LIMIT: %w", err))
		}
	}
	envInt := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			if i, err := strconv.Atoi(v); err == nil {
				*dst = i
			} else {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
			}
		}
	}
	envInt("MILP_ITERATION_LIMIT", &c.Limits.IterationLimit)
	envInt("MILP_NODE_LIMIT", &c.Limits.NodeLimit)
	envInt("MILP_DEPTH_LIMIT", &c.Limits.DepthLimit)
	if v := os.Getenv("MILP_EPSINT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Tolerances.Integrality = f
		} else {
			errs = append(errs, fmt.Errorf("MILP_EPSINT: %w", err))
		}
	}
	if v := os.Getenv("MILP_VERBOSITY"); v != "" {
		c.Logging.Verbosity = v
	}
	if v := os.Getenv("MILP_FLOOR_FIRST"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Branching.FloorFirst = b
		} else {
			errs = append(errs, fmt.Errorf("MILP_FLOOR_FIRST: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}
	return nil
}

// Validate checks the settings that do not map one to one onto
// solver.Options and then the options themselves.
func (c Config) Validate() error {
	if _, err := c.Options(); err != nil {
		return err
	}
	return nil
}

// Options converts c to solver options.
func (c Config) Options() (solver.Options, error) {
	o := solver.DefaultOptions()
	o.TimeLimit = c.Limits.TimeLimit
	o.IterationLimit = c.Limits.IterationLimit
	o.NodeLimit = c.Limits.NodeLimit
	o.DepthLimit = c.Limits.DepthLimit
	o.Epsilon = c.Tolerances.Integrality
	o.MIPGapAbs = c.Tolerances.MIPGapAbs
	o.MIPGapRel = c.Tolerances.MIPGapRel
	o.PrimalTol = c.Tolerances.Primal
	o.DualTol = c.Tolerances.Dual
	o.PivotTol = c.Tolerances.Pivot
	o.RefactorInterval = c.Factor.RefactorInterval
	o.PivotThreshold = c.Factor.PivotThreshold
	o.DegenerateLimit = c.Branching.DegenerateLimit
	o.FloorFirst = c.Branching.FloorFirst
	o.IterationLogRate = c.Logging.IterationRate

	switch strings.ToLower(c.Branching.Rule) {
	case RuleMostFractional, "":
		o.Branching = solver.BranchMostFractional
	case RuleLowestIndex:
		o.Branching = solver.BranchLowestIndex
	default:
		return o, fmt.Errorf("config: unknown branching rule %q", c.Branching.Rule)
	}
	v, err := progress.ParseVerbosity(c.Logging.Verbosity)
	if err != nil {
		return o, fmt.Errorf("config: %w", err)
	}
	o.Verbosity = v

	if err := o.Validate(); err != nil {
		return o, fmt.Errorf("config: %w", err)
	}
	return o, nil
}

// Marshal renders c as YAML, the format Load reads.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
