// Package assistant generates auto-replies and summaries for emails by
// filling a prompt template and handing it to a text generation backend.
package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/daviddao/mailassist/internal/types"
	"github.com/rs/zerolog/log"
)

// Prompt is a single generation request.
type Prompt struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int64
}

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

// Assistant combines prompt templates with a Generator.
type Assistant struct {
	gen       Generator
	templates *Templates
}

// New returns an Assistant. A nil templates registry uses the built-ins.
func New(gen Generator, templates *Templates) *Assistant {
	if templates == nil {
		templates = DefaultTemplates()
	}
	return &Assistant{gen: gen, templates: templates}
}

// Templates exposes the template registry.
func (a *Assistant) Templates() *Templates {
	return a.templates
}

// AutoReply drafts a reply to body. An empty templateID selects the
// default auto-reply template.
func (a *Assistant) AutoReply(ctx context.Context, templateID, body, instructions string) (string, error) {
	return a.run(ctx, KindAutoReply, templateID, types.DefaultAutoReplyTemplate, body, instructions)
}

// Summarize summarizes body. An empty templateID selects the default
// summary template.
func (a *Assistant) Summarize(ctx context.Context, templateID, body, instructions string) (string, error) {
	return a.run(ctx, KindSummary, templateID, types.DefaultSummaryTemplate, body, instructions)
}

func (a *Assistant) run(ctx context.Context, kind, templateID, fallback, body, instructions string) (string, error) {
	if templateID == "" {
		templateID = fallback
	}
	tmpl, err := a.templates.Get(templateID)
	if err != nil {
		return "", err
	}
	if tmpl.Kind != "" && tmpl.Kind != kind {
		return "", fmt.Errorf("%w: %q is a %s template", ErrUnknownTemplate, templateID, tmpl.Kind)
	}

	prompt, err := tmpl.Render(body, instructions)
	if err != nil {
		return "", err
	}

	out, err := a.gen.Generate(ctx, Prompt{
		System:      tmpl.System,
		User:        prompt,
		Temperature: tmpl.Temperature,
		MaxTokens:   tmpl.MaxTokens,
	})
	generations.WithLabelValues(kind, outcome(err)).Inc()
	if err != nil {
		return "", fmt.Errorf("generate %s: %w", kind, err)
	}

	log.Debug().Str("kind", kind).Str("template", tmpl.ID).Int("chars", len(out)).Msg("generated")
	return strings.TrimSpace(out), nil
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
