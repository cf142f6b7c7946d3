package llmfactory_test

import (
	"testing"
	"time"

	"github.com/effective-security/mailagent/config"
	"github.com/effective-security/mailagent/pkg/llmfactory"
	"github.com/effective-security/mailagent/pkg/llms"
	"github.com/effective-security/mailagent/pkg/llms/openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateLLM(t *testing.T) {
	t.Parallel()

	m, err := llmfactory.CreateLLM(&llmfactory.ProviderConfig{
		Name:    "ark",
		Token:   "fakekey",
		Model:   "ep-test",
		APIType: "ark",
		Timeout: time.Minute,
	})
	require.NoError(t, err)
	assert.Equal(t, "ep-test", m.GetName())
	assert.Equal(t, llms.ProviderArk, m.GetProviderType())

	llm := m.(*openai.LLM)
	assert.Equal(t, llmfactory.DefaultArkBaseURL, llm.Options.BaseURL)
	assert.Equal(t, time.Minute, llm.Options.Timeout)

	m, err = llmfactory.CreateLLM(&llmfactory.ProviderConfig{
		Name:    "local",
		Token:   "fakekey",
		Model:   "qwen",
		BaseURL: "http://localhost:8080/v1",
		APIType: "OPEN_AI",
		OrgID:   "org",
	})
	require.NoError(t, err)
	assert.Equal(t, llms.ProviderOpenAI, m.GetProviderType())
	assert.Equal(t, "http://localhost:8080/v1/", m.(*openai.LLM).Options.BaseURL)
	assert.Equal(t, "org", m.(*openai.LLM).Options.Organization)
}

func TestCreateLLM_Errors(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := llmfactory.CreateLLM(nil)
	assert.Error(t, err)

	_, err = llmfactory.CreateLLM(&llmfactory.ProviderConfig{Name: "x", Token: "k", APIType: "BEDROCK"})
	assert.EqualError(t, err, "unsupported provider type: BEDROCK")

	_, err = llmfactory.CreateLLM(&llmfactory.ProviderConfig{Name: "ark", APIType: "ARK", Model: "m"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider ark")
}

func TestFromSettings(t *testing.T) {
	t.Parallel()

	s := &config.Settings{
		APIKey:  "secret",
		BaseURL: "https://ark.example.com/api/v3",
		Model:   "ep-1",
		Timeout: 30 * time.Second,
	}
	cfg := llmfactory.FromSettings(s)
	assert.Equal(t, &llmfactory.ProviderConfig{
		Name:    "ark",
		Token:   "secret",
		Model:   "ep-1",
		BaseURL: "https://ark.example.com/api/v3",
		APIType: "ARK",
		Timeout: 30 * time.Second,
	}, cfg)

	m, err := llmfactory.NewLLM(cfg)
	require.NoError(t, err)
	assert.Equal(t, llms.ProviderArk, m.GetProviderType())
}
