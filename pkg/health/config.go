// Package health implements the workflow health engine: graph validation, content and performance
// auditing, scoring, repair planning and patch execution.
package health

import (
	"fmt"
	"time"

	"dario.cat/mergo"
)

// Weights are the score deductions per issue severity.
type Weights struct {
	Critical   int `json:"critical"`
	Warning    int `json:"warning"`
	Suggestion int `json:"suggestion"`
}

// DefaultWeights deduct 15/5/1 points per critical/warning/suggestion issue.
var DefaultWeights = Weights{Critical: 15, Warning: 5, Suggestion: 1}

// Config holds the engine's tunable thresholds. Zero fields take their DefaultConfig value.
type Config struct {
	// MinWaitSeconds is the duration a zero-length wait step is repaired to.
	MinWaitSeconds int64
	// SimilarityThreshold is the normalized similarity at which consecutive sends count as redundant.
	SimilarityThreshold float64
	// SlowStepThreshold flags steps whose observed average latency reaches it.
	SlowStepThreshold time.Duration
	// DefaultSubject fills email steps missing a subject.
	DefaultSubject string
	// OptOutPhrase must appear (case-insensitive) in every SMS.
	OptOutPhrase string
	// OptOutFooter is appended to SMS content that lacks the opt-out phrase.
	OptOutFooter string
	// DeleteOrphans makes unreachable steps without links into the workflow auto-fixable by deletion.
	DeleteOrphans bool
	// VariableRenames maps legacy bare placeholder names onto namespaced variables.
	VariableRenames map[string]string
	Weights         Weights
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		MinWaitSeconds:      3600,
		SimilarityThreshold: 0.9,
		SlowStepThreshold:   30 * time.Second,
		DefaultSubject:      "An update from your credit repair team",
		OptOutPhrase:        "reply stop",
		OptOutFooter:        "\nReply STOP to opt out.",
		Weights:             DefaultWeights,
		VariableRenames: map[string]string{
			"firstName":    "contact.firstName",
			"lastName":     "contact.lastName",
			"fullName":     "contact.fullName",
			"email":        "contact.email",
			"phone":        "contact.phone",
			"first_name":   "contact.firstName",
			"last_name":    "contact.lastName",
			"companyName":  "company.name",
			"company_name": "company.name",
			"campaignName": "campaign.name",
		},
	}
}

// NewConfig completes a partial configuration with the defaults.
func NewConfig(partial Config) (Config, error) {
	cfg := partial
	if err := mergo.Merge(&cfg, DefaultConfig()); err != nil {
		return Config{}, fmt.Errorf("failed to merge health config defaults: %w", err)
	}

	if cfg.SimilarityThreshold <= 0 || cfg.SimilarityThreshold > 1 {
		return Config{}, fmt.Errorf("similarity threshold must be within (0, 1], got %v", cfg.SimilarityThreshold)
	}

	if cfg.MinWaitSeconds < 0 {
		return Config{}, fmt.Errorf("minimum wait must be positive, got %d", cfg.MinWaitSeconds)
	}

	return cfg, nil
}
