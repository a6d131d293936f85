// Package types defines core data structures for mailassist.
package types

import "strings"

// Header is a single message header, kept in provider order.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// PartBody holds the (possibly empty) content of a message part.
// Data is URL-safe base64 and may be missing its padding.
type PartBody struct {
	Size         int64  `json:"size"`
	Data         string `json:"data,omitempty"`
	AttachmentID string `json:"attachmentId,omitempty"`
}

// MessageNode is one node of a multipart message body tree.
// A node with Parts is a container; a node without is a leaf.
type MessageNode struct {
	PartID   string         `json:"partId,omitempty"`
	MimeType string         `json:"mimeType"`
	Filename string         `json:"filename,omitempty"`
	Headers  []Header       `json:"headers,omitempty"`
	Body     PartBody       `json:"body"`
	Parts    []*MessageNode `json:"parts,omitempty"`
}

// EmailMessage is a Gmail message envelope as returned by the API.
type EmailMessage struct {
	ID           string       `json:"id"`
	ThreadID     string       `json:"threadId"`
	LabelIDs     []string     `json:"labelIds,omitempty"`
	Snippet      string       `json:"snippet,omitempty"`
	HistoryID    string       `json:"historyId,omitempty"`
	InternalDate string       `json:"internalDate,omitempty"`
	SizeEstimate int64        `json:"sizeEstimate,omitempty"`
	Raw          string       `json:"raw,omitempty"`
	Payload      *MessageNode `json:"payload,omitempty"`
}

// Header returns the first top-level header value matching name, ignoring case.
func (e *EmailMessage) Header(name string) string {
	if e.Payload == nil {
		return ""
	}
	for _, h := range e.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// SendRequest is the body of a send or draft request.
type SendRequest struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	ThreadID string `json:"threadId,omitempty"`
}

// GenerateRequest is the body of an auto-reply or summary request.
type GenerateRequest struct {
	PromptTemplateID       string `json:"prompt_template_id"`
	AdditionalInstructions string `json:"additional_instructions,omitempty"`
}

// AutoReplyResponse carries a generated reply.
type AutoReplyResponse struct {
	Reply string `json:"reply"`
}

// SummaryResponse carries a generated summary.
type SummaryResponse struct {
	EmailID string `json:"email_id"`
	Summary string `json:"summary"`
}

// ErrorResponse is the JSON error envelope returned by the API.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// Template IDs used when a request does not name one.
const (
	DefaultAutoReplyTemplate = "default_auto_reply"
	DefaultSummaryTemplate   = "default_summary"
)

// DefaultLabel is the label scope used when listing without a filter.
const DefaultLabel = "INBOX"
