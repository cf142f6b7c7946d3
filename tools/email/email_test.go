package email_test

import (
	"context"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/mailagent/pkg/llmutils"
	"github.com/effective-security/mailagent/tools"
	"github.com/effective-security/mailagent/tools/email"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite(t *testing.T) {
	t.Parallel()

	r, err := tools.NewRegistry()
	require.NoError(t, err)
	require.NoError(t, email.Register(r))
	assert.Equal(t, []string{email.ToolName}, r.Names())

	res, err := r.Invoke(context.Background(), email.ToolName,
		`{"to":"Jim","subject":"Meeting Confirmed","content":"See you at 10am."}`)
	require.NoError(t, err)
	assert.Equal(t, "Email sent to Jim with subject 'Meeting Confirmed' and content: See you at 10am.", res)
}

func TestSchema(t *testing.T) {
	t.Parallel()

	tool, err := email.New()
	require.NoError(t, err)
	assert.Equal(t, "write_email", tool.Name())
	assert.Equal(t, "Write and send an email.", tool.Description())

	exp := `{
	"properties": {
		"to": {
			"type": "string",
			"title": "To",
			"description": "Recipient name or email address."
		},
		"subject": {
			"type": "string",
			"title": "Subject",
			"description": "Subject line of the email."
		},
		"content": {
			"type": "string",
			"title": "Content",
			"description": "Body of the email."
		}
	},
	"type": "object",
	"required": [
		"to",
		"subject",
		"content"
	]
}`
	assert.Equal(t, exp, llmutils.ToJSONIndent(tool.Parameters()))
}

func TestWrite_MissingArgument(t *testing.T) {
	t.Parallel()

	tool, err := email.New()
	require.NoError(t, err)

	_, err = tool.Bind(`{"to":"Jim","content":"hi"}`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, tools.ErrInvalidArguments))
	assert.EqualError(t, err, `invalid argument "subject" for tool write_email: is required`)
}

func TestWrite_Fake(t *testing.T) {
	t.Parallel()

	var req email.Request
	require.NoError(t, gofakeit.Struct(&req))
	assert.NotEmpty(t, req.To)
	assert.NotEmpty(t, req.Subject)
	assert.NotEmpty(t, req.Content)

	tool, err := email.New()
	require.NoError(t, err)
	res, err := tool.Run(context.Background(), &req)
	require.NoError(t, err)
	assert.Contains(t, res, "Email sent to "+req.To)
}
