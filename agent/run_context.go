package agent

import (
	"context"
	"strconv"
	"time"

	"github.com/effective-security/x/values"
	"github.com/effective-security/xdb/pkg/flake"
)

// RunContext identifies one run of the loop in logs and traces.
type RunContext struct {
	runID   string
	project string
	started time.Time
}

// NewRunContext returns a run context; an empty runID is generated.
func NewRunContext(runID, project string) *RunContext {
	return &RunContext{
		runID:   values.StringsCoalesce(runID, NewRunID()),
		project: project,
		started: time.Now(),
	}
}

// RunID returns the run identifier.
func (c *RunContext) RunID() string {
	return c.runID
}

// Project returns the project label.
func (c *RunContext) Project() string {
	return c.project
}

// Started returns the creation time.
func (c *RunContext) Started() time.Time {
	return c.started
}

type contextKey int

const (
	keyRunContext contextKey = iota
)

// WithRunContext returns a new context with the RunContext value.
func WithRunContext(ctx context.Context, rc *RunContext) context.Context {
	return context.WithValue(ctx, keyRunContext, rc)
}

// GetRunContext retrieves the RunContext from the context.
func GetRunContext(ctx context.Context) *RunContext {
	if v, ok := ctx.Value(keyRunContext).(*RunContext); ok {
		return v
	}
	return nil
}

// GetRunID retrieves the run ID from the context,
// or an empty string if there is none.
func GetRunID(ctx context.Context) string {
	if rc := GetRunContext(ctx); rc != nil {
		return rc.runID
	}
	return ""
}

// NewRunID generates a new run ID using the flake ID generator.
func NewRunID() string {
	return strconv.FormatUint(flake.DefaultIDGenerator.NextID(), 10)
}
