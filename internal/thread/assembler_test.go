package thread

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/campusplace/ingest/internal/mailbox"
)

type fakeSearcher struct {
	uids      []uint32
	raw       map[uint32][]byte
	searchErr error
	fetchErr  map[uint32]error
}

func (f *fakeSearcher) SearchFrom(addr string) ([]uint32, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.uids, nil
}

func (f *fakeSearcher) FetchRaw(uid uint32) ([]byte, error) {
	if err := f.fetchErr[uid]; err != nil {
		return nil, err
	}
	raw, ok := f.raw[uid]
	if !ok {
		return nil, errors.New("no such message")
	}
	return raw, nil
}

func rawMessage(id, subject, from, date string) []byte {
	return []byte(fmt.Sprintf(
		"Message-ID: %s\r\nSubject: %s\r\nFrom: %s\r\nDate: %s\r\nContent-Type: text/plain\r\n\r\nbody",
		id, subject, from, date))
}

func seedMessage(id, subject string) *mailbox.Message {
	return &mailbox.Message{
		MessageID: id,
		Subject:   subject,
		From:      "hr@acme.example",
		Date:      time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestNormalizeSubject(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"Re: Hiring Drive", "Hiring Drive"},
		{"FWD: Hiring Drive", "Hiring Drive"},
		{"fw: Hiring Drive", "Hiring Drive"},
		{"Hiring Drive", "Hiring Drive"},
	}
	for _, tt := range tests {
		if got := NormalizeSubject(tt.in); got != tt.expected {
			t.Errorf("NormalizeSubject(%q) = %q, expected %q", tt.in, got, tt.expected)
		}
	}
}

func TestDeriveID(t *testing.T) {
	t.Run("prefers first reference", func(t *testing.T) {
		msg := &mailbox.Message{
			MessageID:  "<m3@x>",
			References: "<m1@x> <m2@x>",
			InReplyTo:  "<m2@x>",
		}
		if got := DeriveID(msg); got != "<m1@x>" {
			t.Errorf("Expected '<m1@x>', got %q", got)
		}
	})

	t.Run("falls back to in-reply-to", func(t *testing.T) {
		msg := &mailbox.Message{MessageID: "<m3@x>", InReplyTo: "<m2@x>"}
		if got := DeriveID(msg); got != "<m2@x>" {
			t.Errorf("Expected '<m2@x>', got %q", got)
		}
	})

	t.Run("falls back to message id", func(t *testing.T) {
		msg := &mailbox.Message{MessageID: "<m3@x>"}
		if got := DeriveID(msg); got != "<m3@x>" {
			t.Errorf("Expected '<m3@x>', got %q", got)
		}
	})

	t.Run("hashes normalized subject when no message id", func(t *testing.T) {
		a := DeriveID(&mailbox.Message{Subject: "Re: Hiring Drive"})
		b := DeriveID(&mailbox.Message{Subject: "Hiring Drive"})
		if a != b {
			t.Errorf("Expected prefix-insensitive subject hash, got %q vs %q", a, b)
		}
		if len(a) != len("thread_")+16 {
			t.Errorf("Unexpected derived id %q", a)
		}
	})
}

func TestAssemble(t *testing.T) {
	t.Run("returns only seed for non-reply subject", func(t *testing.T) {
		searcher := &fakeSearcher{searchErr: errors.New("must not be called")}
		seen := map[string]struct{}{}
		a := NewAssembler(searcher, seen, nil)

		seed := seedMessage("<seed@x>", "Hiring Drive")
		msgs := a.Assemble(seed)

		if len(msgs) != 1 || msgs[0] != seed {
			t.Fatalf("Expected just the seed, got %d messages", len(msgs))
		}
		if _, ok := seen["<seed@x>"]; !ok {
			t.Error("Expected seed message id recorded in seen set")
		}
	})

	t.Run("expands reply with matching subjects, chronological", func(t *testing.T) {
		searcher := &fakeSearcher{
			uids: []uint32{1, 2, 3},
			raw: map[uint32][]byte{
				1: rawMessage("<m1@x>", "Hiring Drive", "hr@acme.example", "Mon, 09 Mar 2026 09:00:00 +0000"),
				2: rawMessage("<m2@x>", "Re: Hiring Drive", "hr@acme.example", "Mon, 09 Mar 2026 15:00:00 +0000"),
				3: rawMessage("<m3@x>", "Quarterly Update", "hr@acme.example", "Mon, 09 Mar 2026 16:00:00 +0000"),
			},
		}
		a := NewAssembler(searcher, map[string]struct{}{}, nil)

		seed := seedMessage("<seed@x>", "Re: Hiring Drive")
		msgs := a.Assemble(seed)

		if len(msgs) != 3 {
			t.Fatalf("Expected 3 messages, got %d", len(msgs))
		}
		// <m3@x> has a non-matching subject and must be excluded.
		for _, m := range msgs {
			if m.MessageID == "<m3@x>" {
				t.Error("Expected non-matching subject to be excluded")
			}
		}
		for i := 1; i < len(msgs); i++ {
			if msgs[i].Date.Before(msgs[i-1].Date) {
				t.Error("Expected chronological order")
			}
		}
	})

	t.Run("skips already-seen message ids", func(t *testing.T) {
		searcher := &fakeSearcher{
			uids: []uint32{1},
			raw: map[uint32][]byte{
				1: rawMessage("<m1@x>", "Re: Hiring Drive", "hr@acme.example", "Mon, 09 Mar 2026 09:00:00 +0000"),
			},
		}
		seen := map[string]struct{}{"<m1@x>": {}}
		a := NewAssembler(searcher, seen, nil)

		msgs := a.Assemble(seedMessage("<seed@x>", "Re: Hiring Drive"))
		if len(msgs) != 1 {
			t.Fatalf("Expected only the seed, got %d messages", len(msgs))
		}
	})

	t.Run("search failure degrades to seed only", func(t *testing.T) {
		searcher := &fakeSearcher{searchErr: errors.New("connection reset")}
		a := NewAssembler(searcher, map[string]struct{}{}, nil)

		msgs := a.Assemble(seedMessage("<seed@x>", "Re: Hiring Drive"))
		if len(msgs) != 1 {
			t.Fatalf("Expected partial result with seed, got %d messages", len(msgs))
		}
	})

	t.Run("fetch failures skip individual messages", func(t *testing.T) {
		searcher := &fakeSearcher{
			uids: []uint32{1, 2},
			raw: map[uint32][]byte{
				2: rawMessage("<m2@x>", "Re: Hiring Drive", "hr@acme.example", "Mon, 09 Mar 2026 15:00:00 +0000"),
			},
			fetchErr: map[uint32]error{1: errors.New("fetch failed")},
		}
		a := NewAssembler(searcher, map[string]struct{}{}, nil)

		msgs := a.Assemble(seedMessage("<seed@x>", "Re: Hiring Drive"))
		if len(msgs) != 2 {
			t.Fatalf("Expected seed plus one fetched message, got %d", len(msgs))
		}
	})

	t.Run("caps the thread size", func(t *testing.T) {
		searcher := &fakeSearcher{raw: map[uint32][]byte{}}
		for i := uint32(1); i <= 30; i++ {
			searcher.uids = append(searcher.uids, i)
			searcher.raw[i] = rawMessage(
				fmt.Sprintf("<m%d@x>", i),
				"Re: Hiring Drive",
				"hr@acme.example",
				"Mon, 09 Mar 2026 09:00:00 +0000")
		}
		a := NewAssembler(searcher, map[string]struct{}{}, nil)

		msgs := a.Assemble(seedMessage("<seed@x>", "Re: Hiring Drive"))
		if len(msgs) > MaxMessages {
			t.Errorf("Expected at most %d messages, got %d", MaxMessages, len(msgs))
		}
	})
}
