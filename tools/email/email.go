// Package email provides the write_email tool. It is a stub:
// no message leaves the process.
package email

import (
	"context"
	"fmt"

	"github.com/effective-security/mailagent/tools"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mailagent", "tools/email")

// ToolName is the name the model uses to request the tool.
const ToolName = "write_email"

// Request represents the tool input.
type Request struct {
	To      string `json:"to" yaml:"to" validate:"required" jsonschema:"title=To,description=Recipient name or email address." fake:"{firstname}"`
	Subject string `json:"subject" yaml:"subject" validate:"required" jsonschema:"title=Subject,description=Subject line of the email."`
	Content string `json:"content" yaml:"content" validate:"required" jsonschema:"title=Content,description=Body of the email."`
}

// Write formats the confirmation of a sent email.
func Write(ctx context.Context, req *Request) (string, error) {
	logger.ContextKV(ctx, xlog.DEBUG,
		"tool", ToolName,
		"to", req.To,
		"subject", slices.StringUpto(req.Subject, 64),
	)
	return fmt.Sprintf("Email sent to %s with subject '%s' and content: %s", req.To, req.Subject, req.Content), nil
}

// New returns the write_email tool.
func New() (*tools.Function[Request], error) {
	return tools.NewFunction(ToolName, "Write and send an email.", Write)
}

// Register adds the write_email tool to the registry.
func Register(r *tools.Registry) error {
	t, err := New()
	if err != nil {
		return err
	}
	return r.Register(t)
}
