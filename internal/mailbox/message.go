package mailbox

import "time"

// MaxBodyChars bounds the plain-text body kept per message. Longer bodies
// carry no extra signal for classification and inflate the extraction budget.
const MaxBodyChars = 5000

// Attachment is a binary MIME part with an attachment disposition.
type Attachment struct {
	Filename    string
	Data        []byte
	ContentType string
}

// Message is a decoded, normalized mail message. It is immutable once
// produced by Decode; MessageID is the natural idempotency key.
type Message struct {
	MessageID   string
	Subject     string
	From        string
	To          string
	CC          string
	Date        time.Time
	Body        string
	Attachments []Attachment
	References  string
	InReplyTo   string
}
