// Package llms defines the provider independent chat model contract:
// messages made of typed parts, tool definitions, call options and
// the classified errors a model invocation may fail with.
//
// Provider implementations live in subpackages.
package llms
