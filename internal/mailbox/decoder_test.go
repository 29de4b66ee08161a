package mailbox

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestDecode(t *testing.T) {
	t.Run("decodes a plain message", func(t *testing.T) {
		raw := strings.Join([]string{
			"Message-ID: <msg-1@example.com>",
			"Subject: Internship Opportunity - Acme Corp",
			"From: Jane Doe <jane@example.com>",
			"To: students@example.edu",
			"Cc: CampusNotice2026 <notice@example.edu>",
			"Date: Mon, 02 Jan 2006 15:04:05 -0700",
			"In-Reply-To: <root@example.com>",
			"References: <root@example.com> <mid@example.com>",
			"Content-Type: text/plain; charset=utf-8",
			"",
			"Apply before the deadline.",
		}, "\r\n")

		msg, err := Decode([]byte(raw))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}

		if msg.MessageID != "<msg-1@example.com>" {
			t.Errorf("Expected Message-ID '<msg-1@example.com>', got %q", msg.MessageID)
		}
		if msg.Subject != "Internship Opportunity - Acme Corp" {
			t.Errorf("Unexpected subject %q", msg.Subject)
		}
		if !strings.Contains(msg.Body, "Apply before the deadline.") {
			t.Errorf("Unexpected body %q", msg.Body)
		}
		if msg.References != "<root@example.com> <mid@example.com>" {
			t.Errorf("Unexpected references %q", msg.References)
		}
		if msg.InReplyTo != "<root@example.com>" {
			t.Errorf("Unexpected in-reply-to %q", msg.InReplyTo)
		}

		expected := time.Date(2006, 1, 2, 15, 4, 5, 0, time.FixedZone("", -7*3600))
		if !msg.Date.Equal(expected) {
			t.Errorf("Expected date %v, got %v", expected, msg.Date)
		}
	})

	t.Run("decodes MIME-encoded subject", func(t *testing.T) {
		raw := strings.Join([]string{
			"Message-ID: <msg-2@example.com>",
			"Subject: =?UTF-8?B?UGxhY2VtZW50IERyaXZl?=",
			"From: spr@thapar.edu",
			"Content-Type: text/plain",
			"",
			"body",
		}, "\r\n")

		msg, err := Decode([]byte(raw))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if msg.Subject != "Placement Drive" {
			t.Errorf("Expected decoded subject 'Placement Drive', got %q", msg.Subject)
		}
	})

	t.Run("defaults invalid date to now", func(t *testing.T) {
		raw := strings.Join([]string{
			"Message-ID: <msg-3@example.com>",
			"Subject: test",
			"Date: not a date",
			"Content-Type: text/plain",
			"",
			"body",
		}, "\r\n")

		before := time.Now()
		msg, err := Decode([]byte(raw))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if msg.Date.Before(before.Add(-time.Minute)) {
			t.Errorf("Expected fallback date near now, got %v", msg.Date)
		}
	})

	t.Run("bounds the body length", func(t *testing.T) {
		body := strings.Repeat("a", MaxBodyChars+500)
		raw := fmt.Sprintf("Message-ID: <msg-4@example.com>\r\nSubject: long\r\nContent-Type: text/plain\r\n\r\n%s", body)

		msg, err := Decode([]byte(raw))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if len(msg.Body) > MaxBodyChars {
			t.Errorf("Expected body capped at %d chars, got %d", MaxBodyChars, len(msg.Body))
		}
	})

	t.Run("collects attachments from multipart message", func(t *testing.T) {
		raw := strings.Join([]string{
			"Message-ID: <msg-5@example.com>",
			"Subject: JD attached",
			"MIME-Version: 1.0",
			"Content-Type: multipart/mixed; boundary=xyz",
			"",
			"--xyz",
			"Content-Type: text/plain",
			"",
			"See the attached JD.",
			"--xyz",
			"Content-Type: application/pdf",
			"Content-Disposition: attachment; filename=\"jd.pdf\"",
			"Content-Transfer-Encoding: base64",
			"",
			"JVBERi0xLjQ=",
			"--xyz--",
			"",
		}, "\r\n")

		msg, err := Decode([]byte(raw))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if !strings.Contains(msg.Body, "See the attached JD.") {
			t.Errorf("Unexpected body %q", msg.Body)
		}
		if len(msg.Attachments) != 1 {
			t.Fatalf("Expected 1 attachment, got %d", len(msg.Attachments))
		}
		if msg.Attachments[0].Filename != "jd.pdf" {
			t.Errorf("Unexpected attachment filename %q", msg.Attachments[0].Filename)
		}
		if msg.Attachments[0].ContentType != "application/pdf" {
			t.Errorf("Unexpected content type %q", msg.Attachments[0].ContentType)
		}
		if len(msg.Attachments[0].Data) == 0 {
			t.Error("Expected decoded attachment bytes")
		}
	})

	t.Run("fails on garbage input", func(t *testing.T) {
		if _, err := Decode([]byte("")); err == nil {
			t.Error("Expected error for empty input")
		}
	})

	t.Run("rejects message without Message-Id", func(t *testing.T) {
		raw := strings.Join([]string{
			"Subject: no id",
			"Content-Type: text/plain",
			"",
			"body",
		}, "\r\n")

		if _, err := Decode([]byte(raw)); err == nil {
			t.Error("Expected error for missing Message-Id header")
		}
	})
}

func TestExtractAddress(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected string
	}{
		{"display name form", "Jane Doe <Jane@Example.com>", "jane@example.com"},
		{"bare address", "spr@thapar.edu", "spr@thapar.edu"},
		{"sloppy angle brackets", "Placement Cell<SPR@thapar.edu>", "spr@thapar.edu"},
		{"whitespace", "  spr@thapar.edu  ", "spr@thapar.edu"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractAddress(tt.header); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}
