package prompts

import (
	"maps"
	"slices"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/mailagent/pkg/llms"
)

// ErrMissingInputVariable is returned when a declared input variable has no value.
var ErrMissingInputVariable = errors.New("missing input variable")

// DefaultSystemPrompt is used by the CLI when no system prompt is given.
const DefaultSystemPrompt = `You are an email assistant for the {{ .project }} project.
When the user asks to send or write an email, call the write_email tool
with the recipient, a short subject and the full message content.
Otherwise answer the question directly and briefly.`

// FormatPrompter formats a prompt from input values.
type FormatPrompter interface {
	Format(values map[string]any) (string, error)
	GetInputVariables() []string
}

// PromptTemplate is a text/template with sprig functions.
type PromptTemplate struct {
	// Template is the template source.
	Template string
	// InputVariables must be present in the values passed to Format.
	InputVariables []string
	// PartialVariables are defaults merged under the values passed to Format.
	PartialVariables map[string]any

	tmpl *template.Template
}

var _ FormatPrompter = (*PromptTemplate)(nil)

// NewPromptTemplate parses the template.
func NewPromptTemplate(tmpl string, inputVars []string) (*PromptTemplate, error) {
	t, err := template.New("prompt").
		Funcs(sprig.TxtFuncMap()).
		Option("missingkey=error").
		Parse(tmpl)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse prompt template")
	}
	return &PromptTemplate{
		Template:       tmpl,
		InputVariables: inputVars,
		tmpl:           t,
	}, nil
}

// MustPromptTemplate is like NewPromptTemplate but panics on error.
func MustPromptTemplate(tmpl string, inputVars []string) *PromptTemplate {
	p, err := NewPromptTemplate(tmpl, inputVars)
	if err != nil {
		panic(err)
	}
	return p
}

// WithPartialVariables sets the default values.
func (p *PromptTemplate) WithPartialVariables(vars map[string]any) *PromptTemplate {
	p.PartialVariables = vars
	return p
}

// GetInputVariables returns the declared input variables.
func (p *PromptTemplate) GetInputVariables() []string {
	return p.InputVariables
}

// Format renders the template.
func (p *PromptTemplate) Format(values map[string]any) (string, error) {
	merged := make(map[string]any, len(p.PartialVariables)+len(values))
	maps.Copy(merged, p.PartialVariables)
	maps.Copy(merged, values)

	var missing []string
	for _, name := range p.InputVariables {
		if _, ok := merged[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return "", errors.Wrapf(ErrMissingInputVariable, "%s", strings.Join(missing, ", "))
	}

	var buf strings.Builder
	if err := p.tmpl.Execute(&buf, merged); err != nil {
		return "", errors.Wrap(err, "failed to format prompt")
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// SystemMessage renders the prompt as a system message.
func SystemMessage(p FormatPrompter, values map[string]any) (llms.Message, error) {
	text, err := p.Format(values)
	if err != nil {
		return llms.Message{}, err
	}
	return llms.MessageFromTextParts(llms.RoleSystem, text), nil
}
