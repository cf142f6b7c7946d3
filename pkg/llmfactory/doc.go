// Package llmfactory creates llms.Model instances from provider configuration.
package llmfactory
