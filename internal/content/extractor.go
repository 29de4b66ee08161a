// Package content merges a thread into the bounded text handed to the
// extraction oracle, persisting supported attachments along the way.
package content

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/campusplace/ingest/internal/mailbox"
)

const (
	// MaxContentChars is the hard budget for the merged thread text. The
	// oracle call has an input-size and cost ceiling; everything past the
	// budget is cut and marked.
	MaxContentChars = 15000
	// TruncationMarker is appended whenever the budget cuts content.
	TruncationMarker = "\n...[content truncated]"

	seedBodyBudget           = 2000
	replyBodyBudget          = 1000
	maxAttachmentText        = 5000
	maxAttachmentsPerMessage = 5
	maxAttachmentsPerThread  = 10
	maxURLsPerMessage        = 10
	maxURLs                  = 20
)

var urlPattern = regexp.MustCompile(`https?://[^\s<>"{}|\\^` + "`" + `\[\]]+`)

// Attachment is a persisted attachment that yielded text.
type Attachment struct {
	Filename    string
	StoredPath  string
	Text        string
	Size        int64
	ContentType string
}

// Content is the input to the extraction oracle: bounded merged text,
// retained attachments, and the deduplicated URLs found in the thread.
type Content struct {
	CombinedText string
	Attachments  []Attachment
	URLs         []string
}

// Extractor persists attachments under dir and merges thread content.
type Extractor struct {
	dir string
	log *logrus.Entry
}

func NewExtractor(dir string, log *logrus.Entry) (*Extractor, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create attachments dir: %w", err)
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Extractor{dir: dir, log: log}, nil
}

// Extract merges the thread's messages in the given (chronological) order.
// The seed message gets a larger body budget than later ones: the root of a
// thread usually carries the most signal. Per-attachment failures drop the
// attachment from the text without aborting the message.
func (e *Extractor) Extract(msgs []*mailbox.Message) *Content {
	var parts []string
	var pending []mailbox.Attachment
	var urls []string

	for idx, msg := range msgs {
		if idx == 0 {
			parts = append(parts, "Subject: "+msg.Subject)
			parts = append(parts, "Body: "+truncate(msg.Body, seedBodyBudget))
		} else {
			parts = append(parts, fmt.Sprintf("\n--- Thread Email %d ---", idx))
			parts = append(parts, "Subject: "+msg.Subject)
			parts = append(parts, "Body: "+truncate(msg.Body, replyBodyBudget))
		}

		attachments := msg.Attachments
		if len(attachments) > maxAttachmentsPerMessage {
			attachments = attachments[:maxAttachmentsPerMessage]
		}
		pending = append(pending, attachments...)

		found := urlPattern.FindAllString(msg.Body, -1)
		if len(found) > maxURLsPerMessage {
			found = found[:maxURLsPerMessage]
		}
		urls = append(urls, found...)
	}

	if len(pending) > maxAttachmentsPerThread {
		pending = pending[:maxAttachmentsPerThread]
	}

	var retained []Attachment
	for _, att := range pending {
		ext := strings.ToLower(filepath.Ext(att.Filename))
		if !supportedExtension(ext) {
			continue
		}

		stored, err := e.store(att)
		if err != nil {
			e.log.WithError(err).WithField("filename", att.Filename).Warn("Failed to store attachment")
			continue
		}

		text := truncate(extractText(stored, ext), maxAttachmentText)
		if text == "" {
			continue
		}

		parts = append(parts, fmt.Sprintf("\n--- %s ---", att.Filename))
		parts = append(parts, text)
		retained = append(retained, Attachment{
			Filename:    att.Filename,
			StoredPath:  stored,
			Text:        text,
			Size:        int64(len(att.Data)),
			ContentType: contentTypeFor(att.Filename),
		})
		e.log.WithFields(logrus.Fields{
			"filename": att.Filename,
			"chars":    len(text),
		}).Debug("Extracted attachment text")
	}

	combined := strings.Join(parts, "\n")
	if len(combined) > MaxContentChars {
		combined = combined[:MaxContentChars] + TruncationMarker
	}

	return &Content{
		CombinedText: combined,
		Attachments:  retained,
		URLs:         dedupURLs(urls),
	}
}

// store writes the attachment under a timestamped unique name. The uuid
// fragment keeps two same-named attachments in one second from colliding.
func (e *Extractor) store(att mailbox.Attachment) (string, error) {
	name := fmt.Sprintf("%s_%s_%s",
		time.Now().Format("20060102_150405"),
		uuid.NewString()[:8],
		filepath.Base(att.Filename))
	path := filepath.Join(e.dir, name)

	if err := os.WriteFile(path, att.Data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	return path, nil
}

func supportedExtension(ext string) bool {
	switch ext {
	case ".pdf", ".doc", ".docx", ".txt":
		return true
	}
	return false
}

func contentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".doc":
		return "application/msword"
	case ".txt":
		return "text/plain"
	}
	return "application/octet-stream"
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}

func dedupURLs(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	var out []string
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
		if len(out) >= maxURLs {
			break
		}
	}
	return out
}
