package agent

import (
	"github.com/cockroachdb/errors"
)

const (
	// DefaultName is used in metrics and logs when no name is given.
	DefaultName = "mailagent"
	// DefaultMaxToolRounds bounds the tool rounds of one run.
	DefaultMaxToolRounds = 10
)

// Option is a function that can be used to modify the behavior of the Agent Config.
type Option func(*Config)

// Config of an Agent.
type Config struct {
	// Name is reported in metrics, logs and callbacks.
	Name string

	// Model overrides the default model of the LLM.
	Model string
	// Temperature for sampling, zero is deterministic.
	Temperature float64
	// MaxTokens is the maximum number of tokens to generate, zero for the model default.
	MaxTokens int
	// Seed asks the model for repeatable sampling, zero is not sent.
	Seed int
	// StopWords end the generation.
	StopWords []string

	// ToolPolicy is used for the first model call.
	ToolPolicy ToolPolicy
	// FollowUpPolicy is used for model calls after a tool round.
	FollowUpPolicy ToolPolicy
	// AfterTool is the state after a tool round.
	AfterTool State
	// MaxToolRounds bounds the number of tool rounds.
	MaxToolRounds int

	// SystemPrompt is sent before the transcript, it is not added to the transcript.
	SystemPrompt string

	// Callback receives loop events, may be nil.
	Callback Callback
}

// NewConfig returns the configuration with defaults.
func NewConfig(opts ...Option) *Config {
	cfg := &Config{
		Name:           DefaultName,
		ToolPolicy:     ToolPolicyRequired,
		FollowUpPolicy: ToolPolicyAuto,
		AfterTool:      StateDone,
		MaxToolRounds:  DefaultMaxToolRounds,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Validate checks the options.
func (c *Config) Validate() error {
	if c.Name == "" {
		return errors.Wrap(ErrInvalidOption, "empty name")
	}
	if !c.ToolPolicy.Valid() {
		return errors.Wrapf(ErrInvalidOption, "tool policy %q", c.ToolPolicy)
	}
	if !c.FollowUpPolicy.Valid() {
		return errors.Wrapf(ErrInvalidOption, "follow-up policy %q", c.FollowUpPolicy)
	}
	if c.AfterTool != StateDone && c.AfterTool != StateCallModel {
		return errors.Wrapf(ErrInvalidOption, "state after tool must be %s or %s, got %s", StateDone, StateCallModel, c.AfterTool)
	}
	if c.MaxToolRounds < 1 {
		return errors.Wrapf(ErrInvalidOption, "max tool rounds must be positive, got %d", c.MaxToolRounds)
	}
	if !(c.Temperature >= 0 && c.Temperature <= 2) {
		return errors.Wrapf(ErrInvalidOption, "temperature %v", c.Temperature)
	}
	return nil
}

// WithName sets the agent name.
func WithName(name string) Option {
	return func(o *Config) {
		o.Name = name
	}
}

// WithModel overrides the default model of the LLM.
func WithModel(model string) Option {
	return func(o *Config) {
		o.Model = model
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(temperature float64) Option {
	return func(o *Config) {
		o.Temperature = temperature
	}
}

// WithSeed sets the sampling seed.
func WithSeed(seed int) Option {
	return func(o *Config) {
		o.Seed = seed
	}
}

// WithStopWords sets the words that end the generation.
func WithStopWords(words ...string) Option {
	return func(o *Config) {
		o.StopWords = words
	}
}

// WithMaxTokens limits the tokens generated by one model call.
func WithMaxTokens(maxTokens int) Option {
	return func(o *Config) {
		o.MaxTokens = maxTokens
	}
}

// WithToolPolicy sets the tool policy of the first model call.
func WithToolPolicy(policy ToolPolicy) Option {
	return func(o *Config) {
		o.ToolPolicy = policy
	}
}

// WithFollowUpPolicy sets the tool policy of model calls after a tool round.
func WithFollowUpPolicy(policy ToolPolicy) Option {
	return func(o *Config) {
		o.FollowUpPolicy = policy
	}
}

// WithAfterTool sets the state following a tool round.
func WithAfterTool(state State) Option {
	return func(o *Config) {
		o.AfterTool = state
	}
}

// WithIterative sends tool results back to the model when true,
// and stops after the first tool round when false.
func WithIterative(iterative bool) Option {
	return func(o *Config) {
		if iterative {
			o.AfterTool = StateCallModel
		} else {
			o.AfterTool = StateDone
		}
	}
}

// WithMaxToolRounds bounds the number of tool rounds.
func WithMaxToolRounds(rounds int) Option {
	return func(o *Config) {
		o.MaxToolRounds = rounds
	}
}

// WithSystemPrompt sets the system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(o *Config) {
		o.SystemPrompt = prompt
	}
}

// WithCallback sets the callback handler.
func WithCallback(callback Callback) Option {
	return func(o *Config) {
		o.Callback = callback
	}
}
