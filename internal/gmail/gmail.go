// Package gmail provides Gmail API operations for mailassist.
//
// It lists, reads, sends and drafts messages for the single "me" account
// using google.golang.org/api/gmail/v1, and turns Gmail's nested payloads
// into types.MessageNode trees.
package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/daviddao/mailassist/internal/types"
	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/rs/zerolog/log"
	gm "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
)

// DefaultUser is the implicit account every request operates on.
const DefaultUser = "me"

// Client wraps an authenticated Gmail service for one request.
type Client struct {
	svc  *gm.Service
	user string
}

// New returns a Client bound to the "me" account.
func New(svc *gm.Service) *Client {
	return &Client{svc: svc, user: DefaultUser}
}

// List returns up to maxResults messages in the given labels (INBOX if none).
// Each message is fetched individually; a failed fetch yields a placeholder
// carrying the error in its snippet. A failed listing yields an empty slice.
func (c *Client) List(ctx context.Context, maxResults int64, labelIDs ...string) []types.EmailMessage {
	if len(labelIDs) == 0 {
		labelIDs = []string{types.DefaultLabel}
	}

	resp, err := c.svc.Users.Messages.List(c.user).
		LabelIds(labelIDs...).
		MaxResults(maxResults).
		Context(ctx).
		Do()
	if err != nil {
		log.Error().Err(err).Strs("labels", labelIDs).Msg("list messages")
		return []types.EmailMessage{}
	}

	emails := make([]types.EmailMessage, 0, len(resp.Messages))
	if len(resp.Messages) == 0 {
		log.Info().Strs("labels", labelIDs).Msg("no messages found")
		return emails
	}

	for _, ref := range resp.Messages {
		msg, err := c.fetch(ctx, ref.Id)
		if err != nil {
			log.Warn().Err(err).Str("id", ref.Id).Msg("fetch message")
			emails = append(emails, placeholder(ref, err))
			continue
		}
		emails = append(emails, ParseMessage(msg))
	}
	return emails
}

// Get fetches a single message in full format. It returns nil if the message
// cannot be fetched for any reason.
func (c *Client) Get(ctx context.Context, id string) *types.EmailMessage {
	msg, err := c.fetch(ctx, id)
	if err != nil {
		log.Warn().Err(err).Str("id", id).Msg("get message")
		return nil
	}
	parsed := ParseMessage(msg)
	return &parsed
}

// Send submits a plain-text message and returns Gmail's receipt.
func (c *Client) Send(ctx context.Context, req types.SendRequest) (*gm.Message, error) {
	msg, err := outgoing(req)
	if err != nil {
		return nil, err
	}
	sent, err := c.svc.Users.Messages.Send(c.user, msg).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	log.Info().Str("id", sent.Id).Str("thread_id", sent.ThreadId).Msg("message sent")
	return sent, nil
}

// CreateDraft stores a plain-text draft and returns Gmail's receipt.
func (c *Client) CreateDraft(ctx context.Context, req types.SendRequest) (*gm.Draft, error) {
	msg, err := outgoing(req)
	if err != nil {
		return nil, err
	}
	draft, err := c.svc.Users.Drafts.Create(c.user, &gm.Draft{Message: msg}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("create draft: %w", err)
	}
	log.Info().Str("id", draft.Id).Msg("draft created")
	return draft, nil
}

func (c *Client) fetch(ctx context.Context, id string) (*gm.Message, error) {
	msg, err := c.svc.Users.Messages.Get(c.user, id).
		Format("full").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", id, err)
	}
	return msg, nil
}

// placeholder stands in for a message that failed to fetch during List.
func placeholder(ref *gm.Message, err error) types.EmailMessage {
	prefix := "Unexpected error"
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		prefix = "API error"
	}
	return types.EmailMessage{
		ID:       ref.Id,
		ThreadID: ref.ThreadId,
		Snippet:  fmt.Sprintf("%s: %v", prefix, err),
	}
}

// outgoing builds the Gmail message resource for a send or draft request.
// ThreadId stays empty (and is omitted from the JSON) unless requested.
func outgoing(req types.SendRequest) (*gm.Message, error) {
	raw, err := BuildRaw(req.To, req.Subject, req.Body)
	if err != nil {
		return nil, err
	}
	return &gm.Message{Raw: raw, ThreadId: req.ThreadID}, nil
}

// BuildRaw renders a single-part text/plain RFC 2822 message and encodes it
// as URL-safe base64, the form Gmail expects in Message.Raw.
func BuildRaw(to, subject, body string) (string, error) {
	var h mail.Header
	h.Set("MIME-Version", "1.0")
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	h.Set("Content-Transfer-Encoding", "quoted-printable")
	h.Set("To", to)
	h.SetSubject(subject)

	var buf bytes.Buffer
	w, err := message.CreateWriter(&buf, h.Header)
	if err != nil {
		return "", fmt.Errorf("create message writer: %w", err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		return "", fmt.Errorf("write message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close message writer: %w", err)
	}
	return base64.URLEncoding.EncodeToString(buf.Bytes()), nil
}
