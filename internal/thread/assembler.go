// Package thread reconstructs the conversation around a candidate message.
// Assembly is best effort: any search or fetch error during expansion
// degrades to whatever was collected so far, never to a failure.
package thread

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/campusplace/ingest/internal/mailbox"
)

// MaxMessages caps thread expansion. Very long threads lose their tail;
// the root and recent messages carry the signal.
const MaxMessages = 20

// Searcher is the slice of the mailbox session the assembler needs.
// internal/mailbox.Client satisfies it; tests use a fake.
type Searcher interface {
	SearchFrom(addr string) ([]uint32, error)
	FetchRaw(uid uint32) ([]byte, error)
}

var replyPrefixPattern = regexp.MustCompile(`(?i)^(re:|fwd:|fw:)\s*`)

// NormalizeSubject strips a leading reply/forward prefix.
func NormalizeSubject(subject string) string {
	return strings.TrimSpace(replyPrefixPattern.ReplaceAllString(subject, ""))
}

// DeriveID computes the run-scoped thread key: first reference, else
// in-reply-to, else the message id, else a hash of the normalized subject.
func DeriveID(msg *mailbox.Message) string {
	if msg.MessageID != "" {
		if refs := strings.Fields(msg.References); len(refs) > 0 {
			return refs[0]
		}
		if msg.InReplyTo != "" {
			return msg.InReplyTo
		}
		return msg.MessageID
	}

	sum := md5.Sum([]byte(NormalizeSubject(msg.Subject)))
	return "thread_" + hex.EncodeToString(sum[:])[:16]
}

// Assembler collects the messages of one conversation, deduplicating
// message identities against a run-global seen set shared by the caller.
type Assembler struct {
	searcher Searcher
	seen     map[string]struct{}
	log      *logrus.Entry
}

func NewAssembler(searcher Searcher, seen map[string]struct{}, log *logrus.Entry) *Assembler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Assembler{searcher: searcher, seen: seen, log: log}
}

// Assemble returns the seed's conversation in chronological order, bounded
// by MaxMessages. A subject without a reply/forward prefix short-circuits
// to just the seed: no mailbox traffic for the common single-message case.
func (a *Assembler) Assemble(seed *mailbox.Message) []*mailbox.Message {
	var msgs []*mailbox.Message
	if _, ok := a.seen[seed.MessageID]; !ok {
		msgs = append(msgs, seed)
		a.seen[seed.MessageID] = struct{}{}
	}

	subject := strings.ToLower(seed.Subject)
	if !strings.HasPrefix(subject, "re:") && !strings.HasPrefix(subject, "fwd:") {
		return msgs
	}

	cleanSubject := strings.ToLower(NormalizeSubject(seed.Subject))
	sender := mailbox.ExtractAddress(seed.From)

	uids, err := a.searcher.SearchFrom(sender)
	if err != nil {
		a.log.WithError(err).Warn("Thread search failed, keeping partial thread")
		return sortChronological(msgs)
	}

	// Most recent messages from the sender only.
	if len(uids) > MaxMessages {
		uids = uids[len(uids)-MaxMessages:]
	}

	for _, uid := range uids {
		if len(msgs) >= MaxMessages {
			break
		}

		raw, err := a.searcher.FetchRaw(uid)
		if err != nil {
			continue
		}
		msg, err := mailbox.Decode(raw)
		if err != nil {
			continue
		}
		if _, ok := a.seen[msg.MessageID]; ok {
			continue
		}
		if !strings.Contains(strings.ToLower(msg.Subject), cleanSubject) {
			continue
		}

		msgs = append(msgs, msg)
		a.seen[msg.MessageID] = struct{}{}
	}

	if len(msgs) > 1 {
		a.log.WithField("messages", len(msgs)).Debug("Assembled thread")
	}

	return sortChronological(msgs)
}

func sortChronological(msgs []*mailbox.Message) []*mailbox.Message {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Date.Before(msgs[j].Date)
	})
	return msgs
}
