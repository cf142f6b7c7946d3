package llmfactory

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mailagent/pkg/llms"
	"github.com/effective-security/mailagent/pkg/llms/openai"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mailagent", "llmfactory")

// DefaultArkBaseURL is the Ark endpoint used when none is configured.
const DefaultArkBaseURL = "https://ark.cn-beijing.volces.com/api/v3/"

// NewLLM is a wrapper for CreateLLM to allow for overriding the default implementation.
var NewLLM = CreateLLM

// CreateLLM returns the model for the provider.
func CreateLLM(cfg *ProviderConfig) (llms.Model, error) {
	if cfg == nil {
		return nil, errors.New("provider config is required")
	}
	provType := strings.ToUpper(cfg.APIType)
	switch provType {
	case "", "OPENAI", "OPEN_AI":
		return newOpenAI(cfg, llms.ProviderOpenAI, "")
	case "ARK":
		return newOpenAI(cfg, llms.ProviderArk, DefaultArkBaseURL)
	}
	return nil, errors.Errorf("unsupported provider type: %s", provType)
}

func newOpenAI(cfg *ProviderConfig, provider llms.ProviderType, defaultBaseURL string) (llms.Model, error) {
	opts := []openai.Option{
		openai.WithProvider(provider),
	}
	if cfg.Model != "" {
		opts = append(opts, openai.WithModel(cfg.Model))
	}
	if cfg.Token != "" {
		opts = append(opts, openai.WithToken(cfg.Token))
	}
	if baseURL := cfg.BaseURL; baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	} else if defaultBaseURL != "" {
		opts = append(opts, openai.WithBaseURL(defaultBaseURL))
	}
	if cfg.OrgID != "" {
		opts = append(opts, openai.WithOrganization(cfg.OrgID))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, openai.WithTimeout(cfg.Timeout))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, errors.WithMessagef(err, "provider %s", cfg.Name)
	}
	logger.KV(xlog.DEBUG,
		"provider", cfg.Name,
		"type", provider,
		"model", llm.GetName(),
		"base_url", llm.Options.BaseURL,
	)
	return llm, nil
}
