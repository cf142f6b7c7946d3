package config

import (
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mailagent", "config")

// Names of the recognized variables.
const (
	KeyAPIKey      = "ARK_API_KEY"
	KeyBaseURL     = "ARK_BASE_URL"
	KeyModel       = "ARK_MODEL"
	KeyTemperature = "ARK_TEMPERATURE"
	KeyTimeout     = "ARK_TIMEOUT"
	KeyTracing     = "AGENT_TRACING"
	KeyProject     = "AGENT_PROJECT"
	KeyLogLevel    = "AGENT_LOG_LEVEL"
)

// Tier is the sensitivity of a variable.
type Tier int

const (
	// TierCredential variables are secrets, read from the environment only.
	TierCredential Tier = iota
	// TierSetting variables tune the model endpoint.
	TierSetting
	// TierLowSensitivity variables tune logging and tracing.
	TierLowSensitivity
)

func (t Tier) String() string {
	switch t {
	case TierCredential:
		return "credential"
	case TierSetting:
		return "setting"
	case TierLowSensitivity:
		return "low-sensitivity"
	}
	return "tier(" + strconv.Itoa(int(t)) + ")"
}

// Variable describes a recognized configuration variable.
type Variable struct {
	Name        string
	Tier        Tier
	Required    bool
	Default     string
	Description string
	// Alias is an older name still honored when Name is not set.
	Alias string
}

// Variables is the list of recognized variables, in documentation order.
var Variables = []Variable{
	{Name: KeyAPIKey, Tier: TierCredential, Required: true, Description: "API key of the model endpoint"},
	{Name: KeyBaseURL, Tier: TierSetting, Default: "https://ark.cn-beijing.volces.com/api/v3/", Description: "base URL of the OpenAI compatible endpoint"},
	{Name: KeyModel, Tier: TierSetting, Default: "ep-20250327064751-rjnld", Description: "model or endpoint identifier"},
	{Name: KeyTemperature, Tier: TierSetting, Default: "0", Description: "sampling temperature"},
	{Name: KeyTimeout, Tier: TierSetting, Default: "0", Description: "timeout of one model call, 0 disables it"},
	{Name: KeyTracing, Tier: TierLowSensitivity, Default: "true", Description: "log every agent loop event", Alias: "LANGSMITH_TRACING"},
	{Name: KeyProject, Tier: TierLowSensitivity, Default: "agents-from-scratch", Description: "project label attached to traces", Alias: "LANGSMITH_PROJECT"},
	{Name: KeyLogLevel, Tier: TierLowSensitivity, Default: "INFO", Description: "log level"},
}

// Find returns the variable with the name.
func Find(name string) (Variable, bool) {
	idx := slices.IndexFunc(Variables, func(v Variable) bool { return v.Name == name })
	if idx < 0 {
		return Variable{}, false
	}
	return Variables[idx], true
}

// LookupFunc returns the value of a variable, and whether it is set.
type LookupFunc func(name string) (string, bool)

// Provider resolves configuration values from the environment,
// then from an optional settings file, then from the defaults.
type Provider struct {
	env  LookupFunc
	file map[string]string
}

// NewProvider returns a provider reading the environment with env.
// The file may be nil.
func NewProvider(env LookupFunc, file *File) *Provider {
	if env == nil {
		env = os.LookupEnv
	}
	return &Provider{
		env:  env,
		file: file.values(),
	}
}

// FromEnv returns a provider over the process environment.
func FromEnv() *Provider {
	return NewProvider(os.LookupEnv, nil)
}

// Lookup returns the configured value, without applying defaults.
// Blank values are treated as not set.
// The environment is checked for the name, then for its alias.
func (p *Provider) Lookup(name string) (string, bool) {
	if val, ok := p.env(name); ok && strings.TrimSpace(val) != "" {
		return strings.TrimSpace(val), true
	}
	if v, ok := Find(name); ok && v.Alias != "" {
		if val, ok := p.env(v.Alias); ok && strings.TrimSpace(val) != "" {
			logger.KV(xlog.WARNING, "reason", "deprecated_name", "name", v.Alias, "use", name)
			return strings.TrimSpace(val), true
		}
	}
	if val, ok := p.file[name]; ok && val != "" {
		return val, true
	}
	return "", false
}

// Get returns the configured value or the documented default.
// Unknown names without a value return an empty string.
func (p *Provider) Get(name string) string {
	val, _ := p.Lookup(name)
	v, _ := Find(name)
	return values.StringsCoalesce(val, v.Default)
}

// Missing returns the names of required variables that are not set.
func (p *Provider) Missing() []string {
	var missing []string
	for _, v := range Variables {
		if !v.Required {
			continue
		}
		if _, ok := p.Lookup(v.Name); !ok {
			missing = append(missing, v.Name)
		}
	}
	return missing
}

// Validate fails if any required variable is not set,
// listing all of them in one error.
func (p *Provider) Validate() error {
	missing := p.Missing()
	if len(missing) > 0 {
		logger.KV(xlog.ERROR, "reason", "missing_config", "names", missing)
		return &MissingError{Names: missing}
	}
	logger.KV(xlog.DEBUG, "status", "all required variables are set")
	return nil
}

// Settings is the typed configuration.
type Settings struct {
	APIKey      string        `json:"api_key" yaml:"api_key"`
	BaseURL     string        `json:"base_url" yaml:"base_url"`
	Model       string        `json:"model" yaml:"model"`
	Temperature float64       `json:"temperature" yaml:"temperature"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout"`
	Tracing     bool          `json:"tracing" yaml:"tracing"`
	Project     string        `json:"project" yaml:"project"`
	LogLevel    string        `json:"log_level" yaml:"log_level"`
}

// Redacted returns a copy safe to print.
func (s Settings) Redacted() Settings {
	s.APIKey = redact(s.APIKey)
	return s
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****"
}

// Settings validates the configuration and returns the typed values.
func (p *Provider) Settings() (*Settings, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	s := &Settings{
		APIKey:   p.Get(KeyAPIKey),
		BaseURL:  p.Get(KeyBaseURL),
		Model:    p.Get(KeyModel),
		Project:  p.Get(KeyProject),
		LogLevel: strings.ToUpper(p.Get(KeyLogLevel)),
	}

	var err error
	// NaN fails both bounds
	if s.Temperature, err = strconv.ParseFloat(p.Get(KeyTemperature), 64); err != nil || !(s.Temperature >= 0 && s.Temperature <= 2) {
		return nil, invalid(KeyTemperature, p.Get(KeyTemperature), "expected a number between 0 and 2")
	}
	if s.Timeout, err = ParseTimeout(p.Get(KeyTimeout)); err != nil {
		return nil, invalid(KeyTimeout, p.Get(KeyTimeout), "expected a duration such as 30s, or seconds")
	}
	if s.Tracing, err = strconv.ParseBool(p.Get(KeyTracing)); err != nil {
		return nil, invalid(KeyTracing, p.Get(KeyTracing), "expected true or false")
	}
	if _, err = ParseLogLevel(s.LogLevel); err != nil {
		return nil, invalid(KeyLogLevel, s.LogLevel, err.Error())
	}
	return s, nil
}

func invalid(name, value, hint string) error {
	return errors.Wrapf(ErrInvalidConfig, "%s=%q: %s", name, value, hint)
}

// ParseTimeout parses a Go duration, or a number of seconds.
func ParseTimeout(s string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(secs) || math.IsInf(secs, 0) {
			return 0, errors.Newf("timeout is not a finite number: %s", s)
		}
		if secs < 0 {
			return 0, errors.Newf("negative timeout: %s", s)
		}
		ns := secs * float64(time.Second)
		if ns >= math.MaxInt64 {
			return 0, errors.Newf("timeout out of range: %s", s)
		}
		return time.Duration(ns), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	if d < 0 {
		return 0, errors.Newf("negative timeout: %s", s)
	}
	return d, nil
}

// ParseLogLevel returns the xlog level for the name.
func ParseLogLevel(s string) (xlog.LogLevel, error) {
	switch strings.ToUpper(s) {
	case "CRITICAL":
		return xlog.CRITICAL, nil
	case "ERROR":
		return xlog.ERROR, nil
	case "WARNING", "WARN":
		return xlog.WARNING, nil
	case "NOTICE":
		return xlog.NOTICE, nil
	case "INFO":
		return xlog.INFO, nil
	case "DEBUG":
		return xlog.DEBUG, nil
	case "TRACE":
		return xlog.TRACE, nil
	}
	return xlog.INFO, errors.Newf("unknown log level %q", s)
}
