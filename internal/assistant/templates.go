package assistant

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/template"

	"github.com/daviddao/mailassist/internal/types"
	"gopkg.in/yaml.v3"
)

// ErrUnknownTemplate is returned when a prompt template ID is not registered.
var ErrUnknownTemplate = errors.New("unknown prompt template")

// Template kinds. A template with an empty kind serves either operation.
const (
	KindAutoReply = "auto-reply"
	KindSummary   = "summary"
)

// Template is a named prompt together with its generation settings.
// Prompt is a text/template with the fields .Instructions and .Content.
type Template struct {
	ID          string  `yaml:"id"`
	Kind        string  `yaml:"kind"`
	System      string  `yaml:"system"`
	Prompt      string  `yaml:"prompt"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int64   `yaml:"max_tokens"`

	tmpl *template.Template
}

const autoReplyPrompt = `Write a concise, polite reply to the email below. Reply only with the body of the email, without a subject line.
{{if .Instructions}}
Additional instructions: {{.Instructions}}
{{end}}
Email:
"""
{{.Content}}
"""`

const summaryPrompt = `Summarize the email below in a few sentences. Mention any requests, deadlines or decisions it contains.
{{if .Instructions}}
Additional instructions: {{.Instructions}}
{{end}}
Email:
"""
{{.Content}}
"""`

func builtinTemplates() []Template {
	return []Template{
		{
			ID:          types.DefaultAutoReplyTemplate,
			Kind:        KindAutoReply,
			System:      "You are a helpful email assistant.",
			Prompt:      autoReplyPrompt,
			Temperature: 0.4,
			MaxTokens:   300,
		},
		{
			ID:          types.DefaultSummaryTemplate,
			Kind:        KindSummary,
			System:      "You are a helpful email summarizer.",
			Prompt:      summaryPrompt,
			Temperature: 0.3,
			MaxTokens:   200,
		},
	}
}

// Templates is a registry of prompt templates keyed by ID.
type Templates struct {
	byID map[string]*Template
}

// DefaultTemplates returns a registry holding only the built-in templates.
func DefaultTemplates() *Templates {
	t := &Templates{byID: make(map[string]*Template)}
	for _, tmpl := range builtinTemplates() {
		if err := t.Add(tmpl); err != nil {
			panic(fmt.Sprintf("builtin template %s: %v", tmpl.ID, err))
		}
	}
	return t
}

// templateFile is the YAML layout of a templates file.
type templateFile struct {
	Templates []Template `yaml:"templates"`
}

// LoadTemplates returns the built-in templates plus those defined in the
// YAML file at path. File entries override built-ins with the same ID.
// An empty path loads only the built-ins.
func LoadTemplates(path string) (*Templates, error) {
	t := DefaultTemplates()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read templates file: %w", err)
	}

	var file templateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse templates file: %w", err)
	}
	for _, tmpl := range file.Templates {
		if err := t.Add(tmpl); err != nil {
			return nil, fmt.Errorf("template %q: %w", tmpl.ID, err)
		}
	}
	return t, nil
}

// Add registers a template, replacing any existing one with the same ID.
// A replacement without a kind keeps the kind of the template it replaces.
func (t *Templates) Add(tmpl Template) error {
	tmpl.ID = strings.TrimSpace(tmpl.ID)
	if tmpl.ID == "" {
		return errors.New("template id is required")
	}
	switch tmpl.Kind {
	case "", KindAutoReply, KindSummary:
	default:
		return fmt.Errorf("unknown template kind %q", tmpl.Kind)
	}
	if prev, ok := t.byID[tmpl.ID]; ok && tmpl.Kind == "" {
		tmpl.Kind = prev.Kind
	}
	if strings.TrimSpace(tmpl.Prompt) == "" {
		return errors.New("template prompt is required")
	}
	parsed, err := template.New(tmpl.ID).Option("missingkey=error").Parse(tmpl.Prompt)
	if err != nil {
		return fmt.Errorf("parse prompt: %w", err)
	}
	tmpl.tmpl = parsed
	t.byID[tmpl.ID] = &tmpl
	return nil
}

// Get looks up a template by ID.
func (t *Templates) Get(id string) (*Template, error) {
	tmpl, ok := t.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, id)
	}
	return tmpl, nil
}

// IDs returns the registered template IDs in sorted order.
func (t *Templates) IDs() []string {
	ids := make([]string, 0, len(t.byID))
	for id := range t.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Render fills the prompt with the email content and instructions.
func (tmpl *Template) Render(content, instructions string) (string, error) {
	var b strings.Builder
	err := tmpl.tmpl.Execute(&b, struct {
		Instructions string
		Content      string
	}{instructions, content})
	if err != nil {
		return "", fmt.Errorf("render template %s: %w", tmpl.ID, err)
	}
	return b.String(), nil
}
