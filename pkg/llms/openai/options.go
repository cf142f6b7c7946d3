package openai

import (
	"net/http"
	"time"

	"github.com/effective-security/mailagent/pkg/llms"
)

const (
	tokenEnvVarName   = "OPENAI_API_KEY"  //nolint:gosec
	modelEnvVarName   = "OPENAI_MODEL"    //nolint:gosec
	baseURLEnvVarName = "OPENAI_BASE_URL" //nolint:gosec
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "https://api.openai.com/v1/"

// Options of the OpenAI compatible client.
type Options struct {
	Token        string
	Model        string
	BaseURL      string
	Organization string
	Provider     llms.ProviderType
	// Timeout bounds one request, zero disables it.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Option is a functional option for the OpenAI client.
type Option func(*Options)

// WithToken passes the API token to the client. If not set, the token
// is read from the OPENAI_API_KEY environment variable.
func WithToken(token string) Option {
	return func(opts *Options) {
		opts.Token = token
	}
}

// WithModel passes the default model to the client. If not set, the model
// is read from the OPENAI_MODEL environment variable.
func WithModel(model string) Option {
	return func(opts *Options) {
		opts.Model = model
	}
}

// WithBaseURL passes the base url to the client. If not set, the base url
// is read from the OPENAI_BASE_URL environment variable, then DefaultBaseURL is used.
func WithBaseURL(baseURL string) Option {
	return func(opts *Options) {
		opts.BaseURL = baseURL
	}
}

// WithOrganization passes the OpenAI organization to the client.
func WithOrganization(organization string) Option {
	return func(opts *Options) {
		opts.Organization = organization
	}
}

// WithProvider sets the provider type reported by the model.
// If not set, the default value is llms.ProviderOpenAI.
func WithProvider(provider llms.ProviderType) Option {
	return func(opts *Options) {
		opts.Provider = provider
	}
}

// WithTimeout bounds every request.
func WithTimeout(timeout time.Duration) Option {
	return func(opts *Options) {
		opts.Timeout = timeout
	}
}

// WithHTTPClient allows setting a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(opts *Options) {
		opts.HTTPClient = client
	}
}
