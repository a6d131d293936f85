package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/daviddao/mailassist/internal/assistant"
	"github.com/daviddao/mailassist/internal/types"
	gm "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

type fakeSessions struct {
	svc *gm.Service
	err error
}

func (f fakeSessions) Service(context.Context) (*gm.Service, error) {
	return f.svc, f.err
}

type fakeGenerator struct {
	mu    sync.Mutex
	got   []assistant.Prompt
	reply string
	err   error
}

func (f *fakeGenerator) Generate(_ context.Context, p assistant.Prompt) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, p)
	return f.reply, f.err
}

// fakeGmail records what the Gmail API was asked for.
type fakeGmail struct {
	mu        sync.Mutex
	labels    []string
	max       string
	sendFails bool
	sentRaw   string
}

func (f *fakeGmail) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.labels = r.URL.Query()["labelIds"]
		f.max = r.URL.Query().Get("maxResults")
		f.mu.Unlock()
		respond(w, http.StatusOK, map[string]any{
			"messages": []map[string]string{{"id": "m1", "threadId": "t1"}},
		})
	})
	mux.HandleFunc("GET /gmail/v1/users/me/messages/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "m1" {
			respond(w, http.StatusNotFound, map[string]any{"error": map[string]any{"code": 404, "message": "Not Found"}})
			return
		}
		respond(w, http.StatusOK, map[string]any{
			"id":       "m1",
			"threadId": "t1",
			"snippet":  "hello",
			"payload": map[string]any{
				"mimeType": "multipart/alternative",
				"headers":  []map[string]string{{"name": "Subject", "value": "Lunch?"}},
				"parts": []map[string]any{
					{"partId": "0", "mimeType": "text/html", "body": map[string]any{"size": 8, "data": "PGI-aGk8L2I-"}},
					{"partId": "1", "mimeType": "text/plain", "body": map[string]any{"size": 20, "data": "Q2FuIHdlIG1lZXQgYXQgbm9vbj8"}},
				},
			},
		})
	})
	mux.HandleFunc("POST /gmail/v1/users/me/messages/send", func(w http.ResponseWriter, r *http.Request) {
		if f.sendFails {
			respond(w, http.StatusForbidden, map[string]any{"error": map[string]any{"code": 403, "message": "denied"}})
			return
		}
		var msg gm.Message
		json.NewDecoder(r.Body).Decode(&msg)
		f.mu.Lock()
		f.sentRaw = msg.Raw
		f.mu.Unlock()
		respond(w, http.StatusOK, map[string]any{"id": "sent-1", "threadId": "t9", "labelIds": []string{"SENT"}})
	})
	mux.HandleFunc("POST /gmail/v1/users/me/drafts", func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, map[string]any{"id": "draft-1", "message": map[string]any{"id": "m9", "threadId": "t9"}})
	})
	return mux
}

func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type testEnv struct {
	server *Server
	gmail  *fakeGmail
	gen    *fakeGenerator
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()

	fg := &fakeGmail{}
	upstream := httptest.NewServer(fg.handler())
	t.Cleanup(upstream.Close)

	svc, err := gm.NewService(context.Background(),
		option.WithHTTPClient(upstream.Client()),
		option.WithEndpoint(upstream.URL+"/"),
	)
	if err != nil {
		t.Fatalf("create gmail service: %v", err)
	}

	gen := &fakeGenerator{reply: "generated"}
	return &testEnv{
		server: NewServer(fakeSessions{svc: svc}, assistant.New(gen, nil), opts),
		gmail:  fg,
		gen:    gen,
	}
}

func (e *testEnv) do(method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp types.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return resp.Detail
}

func TestRoot(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(http.MethodGet, "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Gmail Assistant API is running.") {
		t.Errorf("body: %s", rec.Body.String())
	}
}

func TestListEmails(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		wantLabels []string
		wantMax    string
	}{
		{"defaults", "/emails/", []string{"INBOX"}, "10"},
		{"no trailing slash", "/emails", []string{"INBOX"}, "10"},
		{"filters", "/emails/?max_results=3&label=SENT&label=IMPORTANT", []string{"SENT", "IMPORTANT"}, "3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, Options{})

			rec := env.do(http.MethodGet, tt.target, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
			}
			var emails []types.EmailMessage
			if err := json.Unmarshal(rec.Body.Bytes(), &emails); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(emails) != 1 || emails[0].ID != "m1" {
				t.Errorf("emails: %+v", emails)
			}
			if strings.Join(env.gmail.labels, ",") != strings.Join(tt.wantLabels, ",") {
				t.Errorf("labels: got %v, want %v", env.gmail.labels, tt.wantLabels)
			}
			if env.gmail.max != tt.wantMax {
				t.Errorf("maxResults: got %q, want %q", env.gmail.max, tt.wantMax)
			}
		})
	}
}

func TestListEmails_BadMaxResults(t *testing.T) {
	env := newTestEnv(t, Options{})

	for _, v := range []string{"abc", "0", "-2"} {
		rec := env.do(http.MethodGet, "/emails/?max_results="+v, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("max_results=%s: got %d, want 400", v, rec.Code)
		}
	}
}

func TestNoSession(t *testing.T) {
	s := NewServer(fakeSessions{err: errors.New("no token")}, assistant.New(&fakeGenerator{}, nil), Options{})

	tests := []struct {
		method, target, body string
	}{
		{http.MethodGet, "/emails/", ""},
		{http.MethodGet, "/emails/m1", ""},
		{http.MethodPost, "/emails/send", `{"to":"a@b.c","subject":"s","body":"b"}`},
		{http.MethodPost, "/emails/draft", `{"to":"a@b.c","subject":"s","body":"b"}`},
		{http.MethodPost, "/emails/m1/auto-reply", `{"prompt_template_id":"default_auto_reply"}`},
		{http.MethodPost, "/emails/m1/summary", `{"prompt_template_id":"default_summary"}`},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("%s %s: got %d, want 500", tt.method, tt.target, rec.Code)
			continue
		}
		if got := detail(t, rec); got != "Gmail service unavailable" {
			t.Errorf("%s %s: detail %q", tt.method, tt.target, got)
		}
	}
}

func TestGetEmail(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(http.MethodGet, "/emails/m1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var email types.EmailMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &email); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if email.ID != "m1" || email.Header("subject") != "Lunch?" {
		t.Errorf("email: %+v", email)
	}

	rec = env.do(http.MethodGet, "/emails/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing: got %d, want 404", rec.Code)
	}
	if got := detail(t, rec); got != "Email not found" {
		t.Errorf("detail: %q", got)
	}
}

func TestSendEmail(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(http.MethodPost, "/emails/send", `{"to":"bob@example.com","subject":"Hi","body":"See you"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}
	var sent gm.Message
	if err := json.Unmarshal(rec.Body.Bytes(), &sent); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sent.Id != "sent-1" {
		t.Errorf("receipt: %+v", sent)
	}
	if env.gmail.sentRaw == "" {
		t.Error("raw message not sent")
	}
}

func TestSendEmail_BadRequests(t *testing.T) {
	env := newTestEnv(t, Options{})

	tests := []struct {
		name, body, want string
	}{
		{"invalid json", `{"to":`, "invalid request body"},
		{"empty body", "", "invalid request body"},
		{"missing fields", `{"to":"bob@example.com"}`, "missing required fields: subject, body"},
		{"null field", `{"to":null,"subject":"Hi","body":"x"}`, "missing required fields: to"},
	}
	for _, tt := range tests {
		rec := env.do(http.MethodPost, "/emails/send", tt.body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d, want 400", tt.name, rec.Code)
			continue
		}
		if got := detail(t, rec); !strings.Contains(got, tt.want) {
			t.Errorf("%s: detail %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestSendEmail_EmptySubjectAccepted(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(http.MethodPost, "/emails/send", `{"to":"bob@example.com","subject":"","body":"hi"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}
	if env.gmail.sentRaw == "" {
		t.Error("message was not sent")
	}
}

func TestCreateDraft_EmptyBodyAccepted(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(http.MethodPost, "/emails/draft", `{"to":"bob@example.com","subject":"Hi","body":""}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestSendEmail_UpstreamFailure(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.gmail.sendFails = true

	rec := env.do(http.MethodPost, "/emails/send", `{"to":"bob@example.com","subject":"Hi","body":"x"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want 500", rec.Code)
	}
	if got := detail(t, rec); got != "Failed to send email" {
		t.Errorf("detail: %q", got)
	}
}

func TestCreateDraft(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(http.MethodPost, "/emails/draft", `{"to":"bob@example.com","subject":"Hi","body":"Later","threadId":"t9"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}
	var draft gm.Draft
	if err := json.Unmarshal(rec.Body.Bytes(), &draft); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if draft.Id != "draft-1" {
		t.Errorf("receipt: %+v", draft)
	}
}

func TestAutoReply(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(http.MethodPost, "/emails/m1/auto-reply",
		`{"prompt_template_id":"default_auto_reply","additional_instructions":"say yes"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}
	var resp types.AutoReplyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Reply != "generated" {
		t.Errorf("reply: %q", resp.Reply)
	}

	if len(env.gen.got) != 1 {
		t.Fatalf("generator calls: %d", len(env.gen.got))
	}
	prompt := env.gen.got[0].User
	if !strings.Contains(prompt, "Can we meet at noon?") {
		t.Errorf("prompt should carry the plain text body: %q", prompt)
	}
	if !strings.Contains(prompt, "say yes") {
		t.Errorf("prompt should carry the instructions: %q", prompt)
	}
}

func TestSummary(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(http.MethodPost, "/emails/m1/summary", `{"prompt_template_id":"default_summary"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}
	var resp types.SummaryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.EmailID != "m1" || resp.Summary != "generated" {
		t.Errorf("response: %+v", resp)
	}
	if env.gen.got[0].System != "You are a helpful email summarizer." {
		t.Errorf("system prompt: %q", env.gen.got[0].System)
	}
}

func TestGenerate_Failures(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		body       string
		genErr     error
		wantStatus int
		wantDetail string
	}{
		{"reply not found", "/emails/missing/auto-reply", `{"prompt_template_id":""}`, nil, http.StatusNotFound, "Email not found"},
		{"summary not found", "/emails/missing/summary", `{"prompt_template_id":""}`, nil, http.StatusNotFound, "Email not found"},
		{"unknown template", "/emails/m1/auto-reply", `{"prompt_template_id":"pirate"}`, nil, http.StatusBadRequest, "unknown prompt template"},
		{"summary template for reply", "/emails/m1/auto-reply", `{"prompt_template_id":"default_summary"}`, nil, http.StatusBadRequest, "unknown prompt template"},
		{"bad body", "/emails/m1/summary", `nope`, nil, http.StatusBadRequest, "invalid request body"},
		{"generator error", "/emails/m1/summary", `{"prompt_template_id":""}`, errors.New("quota"), http.StatusInternalServerError, "Failed to generate text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, Options{})
			env.gen.err = tt.genErr

			rec := env.do(http.MethodPost, tt.target, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status: got %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if got := detail(t, rec); !strings.Contains(got, tt.wantDetail) {
				t.Errorf("detail: got %q, want %q", got, tt.wantDetail)
			}
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	env := newTestEnv(t, Options{CORSOrigins: []string{"*"}})

	req := httptest.NewRequest(http.MethodOptions, "/emails/send", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	h := rec.Header()
	if h.Get("Access-Control-Allow-Origin") != "https://app.example.com" {
		t.Errorf("Allow-Origin: %q", h.Get("Access-Control-Allow-Origin"))
	}
	if h.Get("Access-Control-Allow-Credentials") != "true" {
		t.Errorf("Allow-Credentials: %q", h.Get("Access-Control-Allow-Credentials"))
	}
	if !strings.Contains(h.Get("Access-Control-Allow-Methods"), "POST") {
		t.Errorf("Allow-Methods: %q", h.Get("Access-Control-Allow-Methods"))
	}
	if h.Get("Access-Control-Allow-Headers") != "content-type" {
		t.Errorf("Allow-Headers: %q", h.Get("Access-Control-Allow-Headers"))
	}
}

func TestCORS_OriginNotAllowed(t *testing.T) {
	env := newTestEnv(t, Options{CORSOrigins: []string{"https://app.example.com"}})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin should be unset, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec = httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Allow-Origin: got %q", got)
	}
}

func TestRequestID(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(http.MethodGet, "/", "")
	if id := rec.Header().Get(RequestIDHeader); len(id) != 36 {
		t.Errorf("generated request id: %q", id)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	if id := rec.Header().Get(RequestIDHeader); id != "abc-123" {
		t.Errorf("echoed request id: %q", id)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, Options{})

	env.do(http.MethodGet, "/emails/m1", "")
	rec := env.do(http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "mailassist_http_requests_total") {
		t.Error("request counter missing from /metrics")
	}
	if !strings.Contains(body, `route="GET /emails/{id}"`) {
		t.Error("route label should be the mux pattern")
	}
}
