package gmail

import (
	"strconv"

	"github.com/daviddao/mailassist/internal/types"
	gm "google.golang.org/api/gmail/v1"
)

// ParsePart converts a Gmail message part tree into a MessageNode tree.
// A nil part yields nil. mimeType values are copied as-is.
func ParsePart(p *gm.MessagePart) *types.MessageNode {
	if p == nil {
		return nil
	}

	node := &types.MessageNode{
		PartID:   p.PartId,
		MimeType: p.MimeType,
		Filename: p.Filename,
	}

	if len(p.Headers) > 0 {
		node.Headers = make([]types.Header, 0, len(p.Headers))
		for _, h := range p.Headers {
			if h == nil {
				continue
			}
			node.Headers = append(node.Headers, types.Header{Name: h.Name, Value: h.Value})
		}
	}

	// A missing body map still produces a zero-valued body.
	if p.Body != nil {
		node.Body = types.PartBody{
			Size:         p.Body.Size,
			Data:         p.Body.Data,
			AttachmentID: p.Body.AttachmentId,
		}
	}

	if len(p.Parts) > 0 {
		node.Parts = make([]*types.MessageNode, 0, len(p.Parts))
		for _, child := range p.Parts {
			if c := ParsePart(child); c != nil {
				node.Parts = append(node.Parts, c)
			}
		}
	}

	return node
}

// ParseMessage converts a Gmail API message into an EmailMessage.
func ParseMessage(m *gm.Message) types.EmailMessage {
	msg := types.EmailMessage{
		ID:           m.Id,
		ThreadID:     m.ThreadId,
		LabelIDs:     m.LabelIds,
		Snippet:      m.Snippet,
		SizeEstimate: m.SizeEstimate,
		Raw:          m.Raw,
		Payload:      ParsePart(m.Payload),
	}
	if m.HistoryId != 0 {
		msg.HistoryID = strconv.FormatUint(m.HistoryId, 10)
	}
	if m.InternalDate != 0 {
		msg.InternalDate = strconv.FormatInt(m.InternalDate, 10)
	}
	return msg
}
