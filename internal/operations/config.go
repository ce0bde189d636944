package operations

import (
	"time"

	"maizemap/internal/config"
)

// Config controls how the manager executes steps
type Config struct {
	// Run-wide deadline, 0 disables it
	RunTimeout time.Duration `json:"run_timeout"`

	// Step-specific timeouts
	StageTimeouts map[string]time.Duration `json:"stage_timeouts"`

	// Steps to leave out of the run
	Disabled map[string]bool `json:"disabled,omitempty"`
}

// NewConfig returns the default manager configuration
func NewConfig() *Config {
	return &Config{
		StageTimeouts: map[string]time.Duration{
			StepIDSeasonal:    DefaultSeasonalTimeout,
			StepIDInterpolate: DefaultInterpolateTimeout,
		},
		Disabled: make(map[string]bool),
	}
}

// FromPipelineConfig applies the run deadline, a uniform step timeout and
// the disabled steps of the pipeline configuration. A zero step timeout
// keeps the per-step defaults.
func FromPipelineConfig(pc config.PipelineConfig) *Config {
	b := NewConfigBuilder().WithRunTimeout(pc.Timeout)
	if pc.StepTimeout > 0 {
		for _, id := range []string{
			StepIDTimeAxis, StepIDReshape, StepIDSeasonal, StepIDRelativeIndex,
			StepIDSamples, StepIDGrid, StepIDInterpolate, StepIDValidate,
		} {
			b.WithStageTimeout(id, pc.StepTimeout)
		}
	}
	for _, id := range pc.DisabledSteps {
		b.WithDisabled(id)
	}
	return b.Build()
}

// GetStageTimeout returns the timeout for a specific Step
func (c *Config) GetStageTimeout(stageID string) time.Duration {
	if timeout, ok := c.StageTimeouts[stageID]; ok && timeout > 0 {
		return timeout
	}
	return DefaultStepTimeout
}

// SetStageTimeout sets the timeout for a specific Step
func (c *Config) SetStageTimeout(stageID string, timeout time.Duration) {
	if c.StageTimeouts == nil {
		c.StageTimeouts = make(map[string]time.Duration)
	}
	c.StageTimeouts[stageID] = timeout
}

// ConfigBuilder provides a fluent interface for building manager configurations
type ConfigBuilder struct {
	config *Config
}

// NewConfigBuilder creates a new configuration builder
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{config: NewConfig()}
}

// WithRunTimeout sets the run-wide deadline
func (b *ConfigBuilder) WithRunTimeout(timeout time.Duration) *ConfigBuilder {
	b.config.RunTimeout = timeout
	return b
}

// WithStageTimeout sets the timeout for a Step
func (b *ConfigBuilder) WithStageTimeout(stageID string, timeout time.Duration) *ConfigBuilder {
	b.config.SetStageTimeout(stageID, timeout)
	return b
}

// WithDisabled leaves a Step out of the run
func (b *ConfigBuilder) WithDisabled(stageID string) *ConfigBuilder {
	b.config.Disabled[stageID] = true
	return b
}

// Build returns the built configuration
func (b *ConfigBuilder) Build() *Config {
	return b.config
}
