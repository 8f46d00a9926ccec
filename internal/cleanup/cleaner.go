// Package cleanup rewrites raw transcripts through an external
// text-generation provider. Cleanup is strictly best-effort: any provider
// failure falls back to the input text unchanged.
package cleanup

import (
	"context"

	"github.com/Ahaxin/myday/internal/config"
)

const systemInstruction = "You are a helpful assistant. Clean up the given transcript: " +
	"remove filler words, add punctuation, and format into clear paragraphs."

// Cleaner runs the cleanup pass over a transcript.
type Cleaner struct {
	gen TextGenerator
}

// NewCleaner builds a Cleaner from configuration. With provider "none" (or
// a missing API key for remote providers) the cleaner is an identity pass.
func NewCleaner(cfg *config.Config) *Cleaner {
	if cfg.LLMProvider == "openai" && cfg.LLMAPIKey != "" {
		return &Cleaner{gen: NewOpenAICompatGenerator(cfg.LLMEndpoint, cfg.LLMAPIKey, cfg.LLMModel)}
	}
	return &Cleaner{}
}

// NewCleanerWithGenerator builds a Cleaner over an explicit generator.
func NewCleanerWithGenerator(gen TextGenerator) *Cleaner {
	return &Cleaner{gen: gen}
}

// Clean returns a refined version of text, or text unchanged when the input
// is empty, no provider is configured, or the provider fails in any way.
// Cleanup failures never fail the pipeline.
func (c *Cleaner) Clean(ctx context.Context, text string) string {
	if text == "" || c.gen == nil {
		return text
	}
	cleaned, err := c.gen.GenerateText(ctx, systemInstruction, text)
	if err != nil || cleaned == "" {
		return text
	}
	return cleaned
}
