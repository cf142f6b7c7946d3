package tools_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mailagent/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greetRequest struct {
	Name  string `json:"name" validate:"required" jsonschema:"title=Name,description=Who to greet"`
	Times int    `json:"times,omitempty" validate:"omitempty,min=1,max=3" jsonschema:"title=Times,description=How many times"`
}

func greet(_ context.Context, in *greetRequest) (string, error) {
	times := max(in.Times, 1)
	return strings.TrimSpace(strings.Repeat("hello "+in.Name+" ", times)), nil
}

func newRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	r, err := tools.NewRegistry()
	require.NoError(t, err)
	require.NoError(t, tools.Register(r, "greet", "Greets someone.", greet))
	require.NoError(t, tools.Register(r, "fail", "Always fails.", func(context.Context, *greetRequest) (string, error) {
		return "", errors.New("mailbox is full")
	}))
	return r
}

func TestRegistry_Register(t *testing.T) {
	t.Parallel()

	r := newRegistry(t)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"greet", "fail"}, r.Names())

	err := tools.Register(r, "greet", "again", greet)
	assert.True(t, errors.Is(err, tools.ErrDuplicateTool))

	err = tools.Register(r, " ", "blank", greet)
	assert.True(t, errors.Is(err, tools.ErrInvalidTool))

	err = r.Register(nil)
	assert.True(t, errors.Is(err, tools.ErrInvalidTool))

	err = tools.Register[string](r, "scalar", "not a struct", func(context.Context, *string) (string, error) { return "", nil })
	assert.True(t, errors.Is(err, tools.ErrInvalidTool))

	err = tools.Register[greetRequest](r, "nil", "no function", nil)
	assert.True(t, errors.Is(err, tools.ErrInvalidTool))

	// names are case-sensitive
	_, err = r.Get("Greet")
	assert.True(t, errors.Is(err, tools.ErrToolNotFound))
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_Definitions(t *testing.T) {
	t.Parallel()

	r := newRegistry(t)
	defs := r.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "function", defs[0].Type)
	assert.Equal(t, "greet", defs[0].Function.Name)
	assert.Equal(t, "Greets someone.", defs[0].Function.Description)
	require.NotNil(t, defs[0].Function.Parameters)
	assert.Equal(t, "object", defs[0].Function.Parameters.Type)
	assert.Equal(t, []string{"name"}, defs[0].Function.Parameters.Required)

	desc := tools.GetDescriptions(r.Tools()...)
	assert.Contains(t, desc, "```json")
	assert.Contains(t, desc, `"Name": "greet"`)
}

func TestRegistry_Invoke(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := newRegistry(t)

	res, err := r.Invoke(ctx, "greet", `{"name":"Jim","times":2}`)
	require.NoError(t, err)
	assert.Equal(t, "hello Jim hello Jim", res)

	_, err = r.Invoke(ctx, "send_fax", `{}`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, tools.ErrToolNotFound))
	assert.Contains(t, err.Error(), `"send_fax"`)
	assert.Contains(t, err.Error(), "available tools: greet, fail")

	_, err = r.Invoke(ctx, "fail", `{"name":"Jim"}`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, tools.ErrToolFailed))
	assert.EqualError(t, err, "tool fail: mailbox is full")
}

func TestRegistry_InvalidArguments(t *testing.T) {
	t.Parallel()

	r := newRegistry(t)
	tcases := []struct {
		args     string
		argument string
		reason   string
	}{
		{`{}`, "name", "is required"},
		{``, "name", "is required"},
		{`{"name":""}`, "name", "is required"},
		{`{"name":"Jim","times":7}`, "times", "must be at most 3"},
		{`{"name":42}`, "name", "expected string, got number"},
		{`{"name":"Jim","cc":"Ann"}`, "cc", "unknown argument"},
		{`["Jim"]`, "", "arguments must be a JSON object"},
		{`{"name":"Jim"} {}`, "", "unexpected data after the arguments object"},
		{`{"name":`, "", "malformed JSON"},
	}
	for _, tc := range tcases {
		t.Run(tc.args, func(t *testing.T) {
			tool, call, err := r.Prepare("greet", tc.args)
			require.Error(t, err)
			assert.NotNil(t, tool)
			assert.Nil(t, call)
			assert.True(t, errors.Is(err, tools.ErrInvalidArguments))

			var ae *tools.ArgumentError
			require.True(t, errors.As(err, &ae))
			assert.Equal(t, "greet", ae.Tool)
			assert.Equal(t, tc.argument, ae.Argument)
			assert.Contains(t, ae.Reason, tc.reason)
		})
	}
}

func TestRegistry_Concurrent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := newRegistry(t)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := r.Invoke(ctx, "greet", `{"name":"Ann"}`)
			assert.NoError(t, err)
			assert.Equal(t, "hello Ann", res)
			assert.Len(t, r.Definitions(), 2)
		}()
	}
	wg.Wait()
}

func TestFunction_Run(t *testing.T) {
	t.Parallel()

	f, err := tools.NewFunction("greet", "Greets someone.", greet)
	require.NoError(t, err)
	assert.Equal(t, "greet", f.Name())

	res, err := f.Run(context.Background(), &greetRequest{Name: "Bob"})
	require.NoError(t, err)
	assert.Equal(t, "hello Bob", res)

	_, err = f.Run(context.Background(), &greetRequest{})
	assert.True(t, errors.Is(err, tools.ErrInvalidArguments))
	assert.EqualError(t, err, `invalid argument "name" for tool greet: is required`)
}
