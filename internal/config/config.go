// Package config loads the scoring and runtime configuration document.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/gyeh/plan-advisor/internal/ailment"
	"github.com/gyeh/plan-advisor/internal/bundle"
	"github.com/gyeh/plan-advisor/internal/eligibility"
	"github.com/gyeh/plan-advisor/internal/plan"
	"github.com/gyeh/plan-advisor/internal/scoring"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the full configuration document.
type Config struct {
	AilmentSupportScores ailment.SupportScores     `yaml:"ailment_support_scores"`
	AilmentKeywords      map[string][]string       `yaml:"ailment_keywords"`
	Family               FamilyConfig              `yaml:"family"`
	Eligibility          EligibilityConfig         `yaml:"eligibility"`
	ValueFilters         []eligibility.ValueFilter `yaml:"value_filters"`
	Scoring              ScoringConfig             `yaml:"scoring"`
	Bundling             BundlingConfig            `yaml:"bundling"`
	LLM                  LLMConfig                 `yaml:"llm"`
	Logging              LoggingConfig             `yaml:"logging"`
}

// FamilyConfig controls household aggregation.
type FamilyConfig struct {
	AdultAgeThreshold float64 `yaml:"adult_age_threshold"`
}

// EligibilityConfig controls the candidate pre-filter.
type EligibilityConfig struct {
	RequiredStatus string  `yaml:"required_status"`
	DefaultWeight  float64 `yaml:"default_weight"`
	// ExcludeFemaleOnlyForMalePrimary drops Female-only plans when the
	// primary applicant is not female.
	ExcludeFemaleOnlyForMalePrimary bool `yaml:"exclude_female_only_for_male_primary"`
}

// ScoringConfig holds the precedence-row weights and the shortlist size.
type ScoringConfig struct {
	TopN            int `yaml:"top_n"`
	scoring.Weights `yaml:",inline"`
}

// BundlingConfig bounds package generation.
type BundlingConfig struct {
	MaxPlansPerMember int `yaml:"max_plans_per_member"`
	MaxPackages       int `yaml:"max_packages"`
	MaxHybridMembers  int `yaml:"max_hybrid_members"`
}

// LLMConfig configures feature derivation.
type LLMConfig struct {
	Model          string        `yaml:"model"`
	APIKey         string        `yaml:"api_key,omitempty"`
	Temperature    float32       `yaml:"temperature"`
	ThinkingBudget int32         `yaml:"thinking_budget"`
	Timeout        time.Duration `yaml:"timeout"`
	PromptPath     string        `yaml:"prompt_path,omitempty"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() *Config {
	return &Config{
		AilmentSupportScores: ailment.DefaultSupportScores(),
		AilmentKeywords:      ailment.DefaultKeywords(),
		Family:               FamilyConfig{AdultAgeThreshold: plan.DefaultAdultAge},
		Eligibility: EligibilityConfig{
			RequiredStatus:                  plan.StatusActive,
			DefaultWeight:                   1,
			ExcludeFemaleOnlyForMalePrimary: true,
		},
		ValueFilters: eligibility.DefaultValueFilters(),
		Scoring: ScoringConfig{
			TopN:    eligibility.DefaultTopN,
			Weights: scoring.DefaultWeights(),
		},
		Bundling: BundlingConfig{
			MaxPlansPerMember: eligibility.DefaultTopN,
			MaxHybridMembers:  bundle.DefaultHybridMembers,
		},
		LLM: LLMConfig{
			Model:          "gemini-2.5-flash-lite",
			Temperature:    0.1,
			ThinkingBudget: 1000,
			Timeout:        60 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load reads a YAML (or JSON) configuration file over the defaults. A
// missing file yields the defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if model := os.Getenv("PLAN_ADVISOR_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if level := os.Getenv("PLAN_ADVISOR_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// Validate checks weights and bounds.
func (c *Config) Validate() error {
	s := c.AilmentSupportScores
	for name, v := range map[string]float64{
		"direct_match_score":       s.DirectMatch,
		"multi_disease_score":      s.MultiDisease,
		"general_plan_score":       s.GeneralPlan,
		"mismatched_disease_score": s.Mismatched,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: %s must be within [0, 1], got %v", ErrInvalidConfig, name, v)
		}
	}
	if c.Family.AdultAgeThreshold <= 0 {
		return fmt.Errorf("%w: adult_age_threshold must be positive", ErrInvalidConfig)
	}
	if c.Scoring.TopN < 1 {
		return fmt.Errorf("%w: top_n must be at least 1", ErrInvalidConfig)
	}
	if c.Eligibility.DefaultWeight < 0 {
		return fmt.Errorf("%w: default_weight must not be negative", ErrInvalidConfig)
	}
	if err := c.Scoring.Weights.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	for _, f := range c.ValueFilters {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	if c.Bundling.MaxPlansPerMember < 0 || c.Bundling.MaxPackages < 0 || c.Bundling.MaxHybridMembers < 0 {
		return fmt.Errorf("%w: bundling limits must not be negative", ErrInvalidConfig)
	}
	if c.Bundling.MaxHybridMembers > bundle.MaxSubgroupMembers {
		return fmt.Errorf("%w: max_hybrid_members must be at most %d", ErrInvalidConfig, bundle.MaxSubgroupMembers)
	}
	return nil
}

// EligibilityOptions builds the pre-filter options.
func (c *Config) EligibilityOptions(log *zap.Logger) eligibility.Options {
	return eligibility.Options{
		RequiredStatus: c.Eligibility.RequiredStatus,
		TopN:           c.Scoring.TopN,
		DefaultWeight:  c.Eligibility.DefaultWeight,
		AdultAge:       c.Family.AdultAgeThreshold,
		ValueFilters:   c.ValueFilters,
		Logger:         log,
	}
}

// ScoringOptions builds the scorer options.
func (c *Config) ScoringOptions() scoring.Options {
	return scoring.Options{
		Support:  c.AilmentSupportScores,
		Weights:  c.Scoring.Weights,
		AdultAge: c.Family.AdultAgeThreshold,
	}
}

// BundleOptions builds the bundler options.
func (c *Config) BundleOptions() bundle.Options {
	return bundle.Options{
		AdultAge:          c.Family.AdultAgeThreshold,
		MaxPlansPerMember: c.Bundling.MaxPlansPerMember,
		MaxPackages:       c.Bundling.MaxPackages,
		MaxHybridMembers:  c.Bundling.MaxHybridMembers,
	}
}

// GetLLMTimeout returns the feature derivation timeout.
func (c *Config) GetLLMTimeout() time.Duration {
	if c.LLM.Timeout <= 0 {
		return 60 * time.Second
	}
	return c.LLM.Timeout
}
