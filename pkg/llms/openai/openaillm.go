package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mailagent/pkg/llms"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mailagent", "openai")

// ErrMissingToken is returned by New when no token is configured.
var ErrMissingToken = errors.New("missing the API token")

// LLM is a chat model served by an OpenAI compatible chat completions endpoint.
type LLM struct {
	Options Options
	client  *openai.Client
}

var _ llms.Model = (*LLM)(nil)

// New returns a new OpenAI compatible LLM.
func New(opts ...Option) (*LLM, error) {
	options := Options{
		Token:    os.Getenv(tokenEnvVarName),
		Model:    os.Getenv(modelEnvVarName),
		BaseURL:  os.Getenv(baseURLEnvVarName),
		Provider: llms.ProviderOpenAI,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Token == "" {
		return nil, errors.WithStack(ErrMissingToken)
	}
	options.BaseURL = values.StringsCoalesce(options.BaseURL, DefaultBaseURL)
	if !strings.HasSuffix(options.BaseURL, "/") {
		options.BaseURL += "/"
	}

	return &LLM{
		Options: options,
		client:  newClient(&options),
	}, nil
}

func newClient(options *Options) *openai.Client {
	// retries are left to the caller
	sdkOpts := []option.RequestOption{
		option.WithAPIKey(options.Token),
		option.WithBaseURL(options.BaseURL),
		option.WithMaxRetries(0),
	}
	if options.Organization != "" {
		sdkOpts = append(sdkOpts, option.WithOrganization(options.Organization))
	}
	if options.Timeout > 0 {
		sdkOpts = append(sdkOpts, option.WithRequestTimeout(options.Timeout))
	}
	if options.HTTPClient != nil {
		sdkOpts = append(sdkOpts, option.WithHTTPClient(options.HTTPClient))
	}

	client := openai.NewClient(sdkOpts...)
	return &client
}

// GetName implements the Model interface.
func (o *LLM) GetName() string {
	return o.Options.Model
}

// GetProviderType implements the Model interface.
func (o *LLM) GetProviderType() llms.ProviderType {
	return o.Options.Provider
}

// GenerateContent implements the Model interface.
//
// Errors are marked with llms.ErrTransport, llms.ErrAuthentication,
// llms.ErrModelAPI or llms.ErrMalformedResponse.
func (o *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.NewCallOptions(options...)

	chatMsgs, err := toChatMessages(messages)
	if err != nil {
		return nil, err
	}
	tools, err := toChatTools(opts.Tools)
	if err != nil {
		return nil, err
	}

	req := &chatRequest{
		Model:             values.StringsCoalesce(opts.Model, o.Options.Model),
		Messages:          chatMsgs,
		Temperature:       opts.Temperature,
		MaxTokens:         opts.MaxTokens,
		Stop:              opts.StopWords,
		Seed:              opts.Seed,
		Tools:             tools,
		ParallelToolCalls: opts.ParallelToolCalls,
		Metadata:          opts.Metadata,
	}
	if len(tools) > 0 {
		req.ToolChoice = opts.ToolChoice
	} else {
		// tool options are rejected without tools
		req.ParallelToolCalls = nil
	}
	if req.Model == "" {
		return nil, errors.New("model is not specified")
	}

	// encoding errors are local, not transport failures
	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	enc.SetEscapeHTML(false)
	if err = enc.Encode(req); err != nil {
		return nil, errors.Wrap(err, "failed to encode chat completion request")
	}

	var raw []byte
	err = o.client.Post(ctx, "chat/completions", body.Bytes(), &raw)
	if err != nil {
		return nil, classifyError(ctx, err)
	}

	var result chatResponse
	if err = json.Unmarshal(raw, &result); err != nil {
		return nil, errors.Wrapf(llms.ErrMalformedResponse, "failed to decode chat completion: %v", err)
	}
	if len(result.Choices) == 0 {
		return nil, errors.Wrap(llms.ErrMalformedResponse, "no choices in chat completion")
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"model", values.StringsCoalesce(result.Model, req.Model),
		"id", result.ID,
		"choices", len(result.Choices),
		"prompt_tokens", result.Usage.PromptTokens,
		"completion_tokens", result.Usage.CompletionTokens,
	)

	choices := make([]*llms.ContentChoice, len(result.Choices))
	for i, c := range result.Choices {
		choices[i] = &llms.ContentChoice{
			Content:          c.Message.Content,
			ReasoningContent: c.Message.ReasoningContent,
			StopReason:       c.FinishReason,
			GenerationInfo: map[string]any{
				"InputTokens":  result.Usage.PromptTokens,
				"OutputTokens": result.Usage.CompletionTokens,
				"TotalTokens":  result.Usage.TotalTokens,
			},
		}
		for _, tc := range c.Message.ToolCalls {
			toolCall := llms.ToolCall{
				ID:   tc.ID,
				Type: tc.Type,
				FunctionCall: &llms.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			}
			if err = llms.ValidateToolCall(toolCall); err != nil {
				return nil, err
			}
			choices[i].ToolCalls = append(choices[i].ToolCalls, toolCall)
		}
	}
	return &llms.ContentResponse{Choices: choices}, nil
}

// classifyError marks err with the class of the failure.
func classifyError(ctx context.Context, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := values.StringsCoalesce(apiErr.Message, http.StatusText(apiErr.StatusCode))
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return errors.Wrapf(llms.ErrAuthentication, "status %d: %s", apiErr.StatusCode, msg)
		}
		return errors.Wrapf(llms.ErrModelAPI, "status %d: %s", apiErr.StatusCode, msg)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Mark(errors.Wrap(ctxErr, "chat completion"), llms.ErrTransport)
	}
	return errors.Mark(errors.Wrap(err, "chat completion"), llms.ErrTransport)
}
