package llmfactory

import (
	"time"

	"github.com/effective-security/mailagent/config"
)

// ProviderConfig for an OpenAI compatible provider.
type ProviderConfig struct {
	Name  string `json:"name" yaml:"name"`
	Token string `json:"token,omitempty" yaml:"token,omitempty"`
	Model string `json:"model,omitempty" yaml:"model,omitempty"`
	// BaseURL of the chat completions API, the provider default is used when empty.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	// APIType specifies the type of API to use: OPENAI|ARK
	APIType string `json:"api_type,omitempty" yaml:"api_type,omitempty"`
	// OrgID specifies which organization's quota and billing should be used when making API requests.
	OrgID string `json:"org_id,omitempty" yaml:"org_id,omitempty"`
	// Timeout of one model call, zero disables it.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// FromSettings returns the Ark provider described by the settings.
func FromSettings(s *config.Settings) *ProviderConfig {
	return &ProviderConfig{
		Name:    "ark",
		Token:   s.APIKey,
		Model:   s.Model,
		BaseURL: s.BaseURL,
		APIType: "ARK",
		Timeout: s.Timeout,
	}
}
