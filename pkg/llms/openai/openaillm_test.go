package openai

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mailagent/pkg/llms"
	"github.com/effective-security/mailagent/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/sjson"
)

const completionFixture = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"created": 1743000000,
	"model": "ep-test",
	"choices": [{
		"index": 0,
		"finish_reason": "stop",
		"message": {"role": "assistant", "content": "4"}
	}],
	"usage": {"prompt_tokens": 12, "completion_tokens": 1, "total_tokens": 13}
}`

type emailArgs struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Content string `json:"content"`
}

func fixture(t *testing.T, path string, value any) string {
	t.Helper()
	js, err := sjson.Set(completionFixture, path, value)
	require.NoError(t, err)
	return js
}

func fixtureRaw(t *testing.T, path string, raw string) string {
	t.Helper()
	js, err := sjson.SetRaw(completionFixture, path, raw)
	require.NoError(t, err)
	return js
}

type recorder struct {
	calls atomic.Int32

	lock    sync.Mutex
	request chatRequest
	header  http.Header
	path    string
}

func (r *recorder) last() (chatRequest, http.Header, string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.request, r.header, r.path
}

func newServer(t *testing.T, status int, body string) (*httptest.Server, *recorder) {
	t.Helper()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.lock.Lock()
		rec.header = r.Header.Clone()
		rec.path = r.URL.Path
		data, err := io.ReadAll(r.Body)
		if assert.NoError(t, err) {
			assert.NoError(t, json.Unmarshal(data, &rec.request))
		}
		rec.lock.Unlock()
		rec.calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func newTestLLM(t *testing.T, baseURL string, opts ...Option) *LLM {
	t.Helper()
	llm, err := New(append([]Option{
		WithToken("test-token"),
		WithModel("ep-test"),
		WithBaseURL(baseURL),
		WithProvider(llms.ProviderArk),
	}, opts...)...)
	require.NoError(t, err)
	return llm
}

func emailTools(t *testing.T) []llms.Tool {
	t.Helper()
	sc, err := schema.For[emailArgs]()
	require.NoError(t, err)
	return []llms.Tool{{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        "write_email",
			Description: "Write and send an email.",
			Parameters:  sc.Parameters,
		},
	}}
}

func TestNew(t *testing.T) {
	t.Setenv(tokenEnvVarName, "")
	t.Setenv(modelEnvVarName, "gpt-env")
	t.Setenv(baseURLEnvVarName, "")

	_, err := New()
	assert.True(t, errors.Is(err, ErrMissingToken))

	llm, err := New(WithToken("t"), WithBaseURL("http://localhost:1/v3"))
	require.NoError(t, err)
	assert.Equal(t, "gpt-env", llm.GetName())
	assert.Equal(t, llms.ProviderOpenAI, llm.GetProviderType())
	assert.Equal(t, "http://localhost:1/v3/", llm.Options.BaseURL)

	llm, err = New(WithToken("t"))
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, llm.Options.BaseURL)
}

func TestGenerateContent_Text(t *testing.T) {
	t.Parallel()

	srv, rec := newServer(t, http.StatusOK, completionFixture)
	llm := newTestLLM(t, srv.URL+"/api/v3")
	assert.Equal(t, "ep-test", llm.GetName())
	assert.Equal(t, llms.ProviderArk, llm.GetProviderType())

	resp, err := llm.GenerateContent(context.Background(),
		[]llms.Message{
			llms.MessageFromTextParts(llms.RoleSystem, "be brief"),
			llms.MessageFromTextParts(llms.RoleHuman, "What's 2+2?"),
		},
		llms.WithTools(emailTools(t)),
		llms.WithToolChoice("required"),
		llms.WithParallelToolCalls(false),
	)
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "4", resp.Choices[0].Content)
	assert.Equal(t, "stop", resp.Choices[0].StopReason)
	assert.Empty(t, resp.Choices[0].ToolCalls)
	assert.Equal(t, int64(12), resp.Choices[0].GenerationInfo["InputTokens"])
	assert.Equal(t, int64(1), resp.Choices[0].GenerationInfo["OutputTokens"])
	assert.Equal(t, int64(13), resp.Choices[0].GenerationInfo["TotalTokens"])

	req, header, path := rec.last()
	assert.EqualValues(t, 1, rec.calls.Load())
	assert.Equal(t, "/api/v3/chat/completions", path)
	assert.Equal(t, "Bearer test-token", header.Get("Authorization"))

	assert.Equal(t, "ep-test", req.Model)
	assert.Zero(t, req.Temperature)
	assert.Equal(t, "required", req.ToolChoice)
	require.NotNil(t, req.ParallelToolCalls)
	assert.False(t, *req.ParallelToolCalls)
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "write_email", req.Tools[0].Function.Name)
	assert.Equal(t, []string{"to", "subject", "content"}, req.Tools[0].Function.Parameters.Required)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, "user", req.Messages[1].Role)
	require.NotNil(t, req.Messages[1].Content)
	assert.Equal(t, "What's 2+2?", *req.Messages[1].Content)
}

func TestGenerateContent_NoToolsDropsToolOptions(t *testing.T) {
	t.Parallel()

	srv, rec := newServer(t, http.StatusOK, completionFixture)
	llm := newTestLLM(t, srv.URL)

	_, err := llm.GenerateContent(context.Background(),
		[]llms.Message{llms.MessageFromTextParts(llms.RoleHuman, "hi")},
		llms.WithToolChoice("required"),
		llms.WithParallelToolCalls(false),
		llms.WithModel("override"),
		llms.WithTemperature(0.7),
	)
	require.NoError(t, err)
	req, _, _ := rec.last()
	assert.Nil(t, req.ToolChoice)
	assert.Nil(t, req.ParallelToolCalls)
	assert.Empty(t, req.Tools)
	assert.Equal(t, "override", req.Model)
	assert.Equal(t, 0.7, req.Temperature)
}

func TestGenerateContent_ToolCall(t *testing.T) {
	t.Parallel()

	body := fixtureRaw(t, "choices.0.message", `{
		"role": "assistant",
		"content": null,
		"tool_calls": [{
			"id": "call_abc",
			"type": "function",
			"function": {"name": "write_email", "arguments": "{\"to\":\"Jim\",\"subject\":\"Meeting Confirmed\",\"content\":\"See you.\"}"}
		}]
	}`)
	body, err := sjson.Set(body, "choices.0.finish_reason", "tool_calls")
	require.NoError(t, err)

	srv, _ := newServer(t, http.StatusOK, body)
	llm := newTestLLM(t, srv.URL)

	resp, err := llm.GenerateContent(context.Background(),
		[]llms.Message{llms.MessageFromTextParts(llms.RoleHuman, "Email Jim confirming the meeting")},
		llms.WithTools(emailTools(t)),
	)
	require.NoError(t, err)
	choice := resp.Choices[0]
	assert.Empty(t, choice.Content)
	assert.Equal(t, "tool_calls", choice.StopReason)
	require.Len(t, choice.ToolCalls, 1)
	tc := choice.ToolCalls[0]
	assert.Equal(t, "call_abc", tc.ID)
	assert.Equal(t, "function", tc.Type)
	assert.Equal(t, "write_email", tc.Name())
	assert.JSONEq(t, `{"to":"Jim","subject":"Meeting Confirmed","content":"See you."}`, tc.Arguments())
}

func TestGenerateContent_Transcript(t *testing.T) {
	t.Parallel()

	srv, rec := newServer(t, http.StatusOK, completionFixture)
	llm := newTestLLM(t, srv.URL)

	call := llms.ToolCall{ID: "call_1", Type: "function", FunctionCall: &llms.FunctionCall{Name: "write_email", Arguments: `{"to":"Jim"}`}}
	_, err := llm.GenerateContent(context.Background(), []llms.Message{
		llms.MessageFromTextParts(llms.RoleHuman, "Email Jim"),
		llms.MessageFromToolCalls("", call),
		llms.MessageFromToolResponse(llms.ToolCallResponse{ToolCallID: "call_1", Name: "write_email", Content: "Email sent to Jim"}),
	})
	require.NoError(t, err)

	req, _, _ := rec.last()
	msgs := req.Messages
	require.Len(t, msgs, 3)

	assert.Equal(t, "assistant", msgs[1].Role)
	assert.Nil(t, msgs[1].Content)
	require.Len(t, msgs[1].ToolCalls, 1)
	assert.Equal(t, "call_1", msgs[1].ToolCalls[0].ID)
	assert.Equal(t, "write_email", msgs[1].ToolCalls[0].Function.Name)

	assert.Equal(t, "tool", msgs[2].Role)
	assert.Equal(t, "call_1", msgs[2].ToolCallID)
	require.NotNil(t, msgs[2].Content)
	assert.Equal(t, "Email sent to Jim", *msgs[2].Content)
}

func TestGenerateContent_InvalidInput(t *testing.T) {
	t.Parallel()

	srv, rec := newServer(t, http.StatusOK, completionFixture)
	llm := newTestLLM(t, srv.URL)
	ctx := context.Background()

	_, err := llm.GenerateContent(ctx, []llms.Message{{Role: "wizard"}})
	assert.True(t, errors.Is(err, llms.ErrUnexpectedRole))

	_, err = llm.GenerateContent(ctx, []llms.Message{llms.MessageFromTextParts(llms.RoleTool, "no response part")})
	assert.Error(t, err)

	_, err = llm.GenerateContent(ctx, []llms.Message{llms.MessageFromTextParts(llms.RoleHuman, "hi")},
		llms.WithTools([]llms.Tool{{Type: "web_search"}}))
	assert.EqualError(t, err, "tool type web_search not supported")

	assert.Zero(t, rec.calls.Load())
}

func TestGenerateContent_Errors(t *testing.T) {
	t.Parallel()

	tcases := []struct {
		name   string
		status int
		body   string
		class  error
		msg    string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"invalid api key","type":"invalid_request_error"}}`, llms.ErrAuthentication, "status 401"},
		{"forbidden", http.StatusForbidden, `{}`, llms.ErrAuthentication, "status 403"},
		{"server", http.StatusInternalServerError, `{"error":{"message":"overloaded"}}`, llms.ErrModelAPI, "status 500"},
		{"not found", http.StatusNotFound, `{"error":{"message":"model not found"}}`, llms.ErrModelAPI, "status 404"},
		{"undecodable", http.StatusOK, `{"choices": [`, llms.ErrMalformedResponse, "failed to decode chat completion"},
		{"no choices", http.StatusOK, `{"choices": []}`, llms.ErrMalformedResponse, "no choices"},
		{"arguments not an object", http.StatusOK, "", llms.ErrMalformedResponse, "arguments are not a JSON object"},
		{"tool call without name", http.StatusOK, "", llms.ErrMalformedResponse, "no function name"},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			body := tc.body
			switch tc.name {
			case "arguments not an object":
				body = fixtureRaw(t, "choices.0.message.tool_calls", `[{"id":"c1","type":"function","function":{"name":"write_email","arguments":"to=Jim"}}]`)
			case "tool call without name":
				body = fixtureRaw(t, "choices.0.message.tool_calls", `[{"id":"c1","type":"function","function":{"arguments":"{}"}}]`)
			}

			srv, rec := newServer(t, tc.status, body)
			llm := newTestLLM(t, srv.URL)

			_, err := llm.GenerateContent(context.Background(), []llms.Message{llms.MessageFromTextParts(llms.RoleHuman, "hi")})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.class), "expected %v, got %v", tc.class, err)
			assert.True(t, llms.IsModelError(err))
			assert.Contains(t, err.Error(), tc.msg)
			// no retries
			assert.EqualValues(t, 1, rec.calls.Load())

			for _, other := range []error{llms.ErrTransport, llms.ErrAuthentication, llms.ErrModelAPI, llms.ErrMalformedResponse} {
				if other != tc.class {
					assert.False(t, errors.Is(err, other), "unexpected class %v", other)
				}
			}
		})
	}
}

func TestGenerateContent_RequestNotEncodable(t *testing.T) {
	t.Parallel()

	srv, rec := newServer(t, http.StatusOK, completionFixture)
	llm := newTestLLM(t, srv.URL)

	_, err := llm.GenerateContent(context.Background(),
		[]llms.Message{llms.MessageFromTextParts(llms.RoleHuman, "hi")},
		llms.WithTemperature(math.NaN()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to encode chat completion request")
	assert.False(t, llms.IsModelError(err))
	assert.False(t, errors.Is(err, llms.ErrTransport))
	assert.Zero(t, rec.calls.Load())
}

func TestGenerateContent_Transport(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	llm := newTestLLM(t, url)
	_, err := llm.GenerateContent(context.Background(), []llms.Message{llms.MessageFromTextParts(llms.RoleHuman, "hi")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, llms.ErrTransport))
	assert.False(t, errors.Is(err, llms.ErrAuthentication))
}

func TestGenerateContent_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	llm := newTestLLM(t, srv.URL, WithTimeout(50*time.Millisecond))
	_, err := llm.GenerateContent(context.Background(), []llms.Message{llms.MessageFromTextParts(llms.RoleHuman, "hi")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, llms.ErrTransport))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	llm = newTestLLM(t, srv.URL)
	_, err = llm.GenerateContent(ctx, []llms.Message{llms.MessageFromTextParts(llms.RoleHuman, "hi")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, llms.ErrTransport))
	assert.True(t, errors.Is(err, context.Canceled))
}
