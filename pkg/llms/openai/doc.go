// Package openai implements llms.Model over any chat completions endpoint
// that speaks the OpenAI protocol, such as Volcengine Ark.
package openai
