package mailbox

import (
	"bytes"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"
)

// Decode turns raw RFC822 bytes into a normalized Message. Header decoding
// is defensive: enmime falls back to the raw header value when a MIME
// encoded-word is malformed. An unparseable Date header defaults to now.
// A parse failure or a missing Message-Id is an error; the caller skips
// such messages without writing a ledger row, so they can be retried while
// still inside the search window.
func Decode(raw []byte) (*Message, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	messageID := strings.TrimSpace(env.GetHeader("Message-Id"))
	if messageID == "" {
		return nil, fmt.Errorf("message has no Message-Id header")
	}

	msg := &Message{
		MessageID:  messageID,
		Subject:    env.GetHeader("Subject"),
		From:       env.GetHeader("From"),
		To:         env.GetHeader("To"),
		CC:         env.GetHeader("Cc"),
		References: env.GetHeader("References"),
		InReplyTo:  env.GetHeader("In-Reply-To"),
		Date:       parseDate(env.GetHeader("Date")),
	}

	body := env.Text
	if len(body) > MaxBodyChars {
		body = body[:MaxBodyChars]
	}
	msg.Body = body

	for _, part := range env.Attachments {
		if part.FileName == "" {
			continue
		}
		msg.Attachments = append(msg.Attachments, Attachment{
			Filename:    part.FileName,
			Data:        part.Content,
			ContentType: part.ContentType,
		})
	}

	return msg, nil
}

func parseDate(value string) time.Time {
	if value == "" {
		return time.Now()
	}
	parsed, err := mail.ParseDate(value)
	if err != nil {
		return time.Now()
	}
	return parsed
}

// ExtractAddress pulls the bare email address out of a From-style header
// ("Jane Doe <jane@example.com>" -> "jane@example.com"), lowercased.
// Falls back to the trimmed input when the header is not a valid address.
func ExtractAddress(header string) string {
	addr, err := mail.ParseAddress(header)
	if err == nil {
		return strings.ToLower(addr.Address)
	}

	// Tolerate bare addresses and sloppy headers.
	if start := strings.LastIndex(header, "<"); start >= 0 {
		if end := strings.Index(header[start:], ">"); end > 0 {
			return strings.ToLower(strings.TrimSpace(header[start+1 : start+end]))
		}
	}
	return strings.ToLower(strings.TrimSpace(header))
}
