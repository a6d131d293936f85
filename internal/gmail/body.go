package gmail

import (
	"encoding/base64"
	"strings"
	"unicode/utf8"

	"github.com/daviddao/mailassist/internal/types"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/encoding/charmap"
)

const (
	mimeTextPlain = "text/plain"
	mimeTextHTML  = "text/html"
)

// ExtractBody picks the human-readable body out of a message tree.
// A text/plain or text/html root is used directly; otherwise the parts are
// searched, preferring text/plain at each level. The second return value is
// false when there is no payload, no candidate part, or nothing decodable.
func ExtractBody(payload *types.MessageNode) (string, bool) {
	if payload == nil {
		return "", false
	}

	var candidate *types.MessageNode
	switch {
	case payload.MimeType == mimeTextPlain || payload.MimeType == mimeTextHTML:
		candidate = payload
	case len(payload.Parts) > 0:
		candidate = findBodyPart(payload.Parts)
	}
	if candidate == nil || candidate.Body.Data == "" {
		return "", false
	}

	data, err := DecodeBase64URL(candidate.Body.Data)
	if err != nil {
		log.Debug().Err(err).Str("part_id", candidate.PartID).Msg("decode part data")
		return "", false
	}
	if len(data) == 0 {
		return "", false
	}
	return decodeText(data), true
}

// findBodyPart returns the first text/plain part among parts, or failing that
// the first text/html part or nested match, scanning depth-first left to right.
func findBodyPart(parts []*types.MessageNode) *types.MessageNode {
	for _, part := range parts {
		if part.MimeType == mimeTextPlain {
			return part
		}
	}
	for _, part := range parts {
		if part.MimeType == mimeTextHTML {
			return part
		}
		if len(part.Parts) > 0 {
			if nested := findBodyPart(part.Parts); nested != nil {
				return nested
			}
		}
	}
	return nil
}

// DecodeBase64URL decodes Gmail's base64url-encoded content, with or
// without padding. Characters outside the alphabet are skipped and excess
// trailing padding is ignored, so only a truncated final quantum fails.
func DecodeBase64URL(data string) ([]byte, error) {
	data = strings.Map(func(r rune) rune {
		switch {
		case r == '-':
			return '+'
		case r == '_':
			return '/'
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '+', r == '/':
			return r
		}
		return -1
	}, data)
	if rem := len(data) % 4; rem > 0 {
		data += strings.Repeat("=", 4-rem)
	}
	return base64.StdEncoding.DecodeString(data)
}

// decodeText interprets bytes as UTF-8, then Latin-1, then lossy UTF-8.
func decodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	if decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data); err == nil {
		return string(decoded)
	}
	return strings.ToValidUTF8(string(data), "")
}
