package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/daviddao/mailassist/internal/types"
)

type fakeGenerator struct {
	got   []Prompt
	reply string
	err   error
}

func (f *fakeGenerator) Generate(_ context.Context, p Prompt) (string, error) {
	f.got = append(f.got, p)
	return f.reply, f.err
}

func TestAutoReply_DefaultTemplate(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{reply: "  Thanks, see you then.\n"}
	a := New(gen, nil)

	reply, err := a.AutoReply(context.Background(), "", "Can we meet at 3?", "be brief")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "Thanks, see you then." {
		t.Errorf("reply not trimmed: %q", reply)
	}

	if len(gen.got) != 1 {
		t.Fatalf("generator calls: got %d, want 1", len(gen.got))
	}
	p := gen.got[0]
	if p.System != "You are a helpful email assistant." {
		t.Errorf("system: got %q", p.System)
	}
	if p.Temperature != 0.4 || p.MaxTokens != 300 {
		t.Errorf("settings: temperature %v, max tokens %d", p.Temperature, p.MaxTokens)
	}
	if !strings.Contains(p.User, "Can we meet at 3?") {
		t.Errorf("prompt missing body: %q", p.User)
	}
	if !strings.Contains(p.User, "Additional instructions: be brief") {
		t.Errorf("prompt missing instructions: %q", p.User)
	}
}

func TestSummarize_DefaultTemplate(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{reply: "A short summary."}
	a := New(gen, nil)

	summary, err := a.Summarize(context.Background(), types.DefaultSummaryTemplate, "Long email", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary != "A short summary." {
		t.Errorf("summary: got %q", summary)
	}

	p := gen.got[0]
	if p.System != "You are a helpful email summarizer." {
		t.Errorf("system: got %q", p.System)
	}
	if p.Temperature != 0.3 || p.MaxTokens != 200 {
		t.Errorf("settings: temperature %v, max tokens %d", p.Temperature, p.MaxTokens)
	}
	if strings.Contains(p.User, "Additional instructions") {
		t.Errorf("empty instructions should be left out: %q", p.User)
	}
}

func TestAutoReply_AbsentBody(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{reply: "ok"}
	a := New(gen, nil)

	if _, err := a.AutoReply(context.Background(), "", "", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(gen.got[0].User, "\"\"\"\n\n\"\"\"") {
		t.Errorf("absent body should render as empty: %q", gen.got[0].User)
	}
}

func TestAutoReply_UnknownTemplate(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{}
	a := New(gen, nil)

	_, err := a.AutoReply(context.Background(), "does_not_exist", "body", "")
	if !errors.Is(err, ErrUnknownTemplate) {
		t.Fatalf("got %v, want ErrUnknownTemplate", err)
	}
	if len(gen.got) != 0 {
		t.Error("generator should not be called")
	}
}

func TestSummarize_GeneratorErrorPropagates(t *testing.T) {
	t.Parallel()

	boom := errors.New("rate limited")
	a := New(&fakeGenerator{err: boom}, nil)

	_, err := a.Summarize(context.Background(), "", "body", "")
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want wrapped generator error", err)
	}
}

func TestAutoReply_CustomTemplate(t *testing.T) {
	t.Parallel()

	templates := DefaultTemplates()
	err := templates.Add(Template{
		ID:          "formal",
		System:      "You write formal letters.",
		Prompt:      "Reply formally to: {{.Content}}",
		Temperature: 0.1,
		MaxTokens:   50,
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	gen := &fakeGenerator{reply: "Dear Sir"}
	a := New(gen, templates)
	if _, err := a.AutoReply(context.Background(), "formal", "hey", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := gen.got[0]
	if p.System != "You write formal letters." || p.User != "Reply formally to: hey" {
		t.Errorf("prompt: %+v", p)
	}
}

func TestTemplateKindMustMatchOperation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		run  func(a *Assistant) (string, error)
	}{
		{"summary template for a reply", func(a *Assistant) (string, error) {
			return a.AutoReply(context.Background(), types.DefaultSummaryTemplate, "body", "")
		}},
		{"reply template for a summary", func(a *Assistant) (string, error) {
			return a.Summarize(context.Background(), types.DefaultAutoReplyTemplate, "body", "")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			gen := &fakeGenerator{reply: "ok"}
			_, err := tt.run(New(gen, nil))
			if !errors.Is(err, ErrUnknownTemplate) {
				t.Fatalf("got %v, want ErrUnknownTemplate", err)
			}
			if len(gen.got) != 0 {
				t.Error("generator should not be called")
			}
		})
	}
}

func TestUntypedTemplateServesBothOperations(t *testing.T) {
	t.Parallel()

	templates := DefaultTemplates()
	if err := templates.Add(Template{ID: "plain", Prompt: "{{.Content}}"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	a := New(&fakeGenerator{reply: "ok"}, templates)

	if _, err := a.AutoReply(context.Background(), "plain", "x", ""); err != nil {
		t.Errorf("AutoReply: %v", err)
	}
	if _, err := a.Summarize(context.Background(), "plain", "x", ""); err != nil {
		t.Errorf("Summarize: %v", err)
	}
}
