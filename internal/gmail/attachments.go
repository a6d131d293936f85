package gmail

import "github.com/daviddao/mailassist/internal/types"

// AttachmentInfo holds metadata about a message attachment.
type AttachmentInfo struct {
	Filename     string `json:"filename"`
	MimeType     string `json:"mime_type"`
	Size         int64  `json:"size"`
	AttachmentID string `json:"attachment_id,omitempty"`
}

// Attachments lists every named part below the payload root.
func Attachments(payload *types.MessageNode) []AttachmentInfo {
	if payload == nil {
		return nil
	}

	var attachments []AttachmentInfo
	var scan func(parts []*types.MessageNode)
	scan = func(parts []*types.MessageNode) {
		for _, part := range parts {
			if part.Filename != "" {
				attachments = append(attachments, AttachmentInfo{
					Filename:     part.Filename,
					MimeType:     part.MimeType,
					Size:         part.Body.Size,
					AttachmentID: part.Body.AttachmentID,
				})
			}
			if len(part.Parts) > 0 {
				scan(part.Parts)
			}
		}
	}
	scan(payload.Parts)
	return attachments
}
