// Package classify decides whether an email is worth deep processing.
// Classification is a pure function of message content and the configured
// keyword vocabulary: no per-run state is involved.
package classify

import (
	"fmt"
	"strings"

	"github.com/campusplace/ingest/internal/config"
	"github.com/campusplace/ingest/internal/mailbox"
)

// Decision is the classification outcome. Reason is stored verbatim as the
// ledger skip reason when a message is rejected.
type Decision struct {
	Accept bool
	Reason string
}

// Source buckets a decision for the run summary: "primary" for trusted
// sender matches, "secondary" for keyword-scored acceptances.
func (d Decision) Source() string {
	switch {
	case strings.HasPrefix(d.Reason, "primary_source"):
		return "primary"
	case strings.HasPrefix(d.Reason, "nlp_"):
		return "secondary"
	default:
		return "other"
	}
}

type Classifier struct {
	cfg config.ClassifierConfig
}

func New(cfg config.ClassifierConfig) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify applies, in order: the non-job veto, the primary-source rules,
// and the scored keyword fallback. The veto dominates everything, including
// a trusted sender.
func (c *Classifier) Classify(msg *mailbox.Message) Decision {
	combined := strings.ToLower(msg.Subject + " " + msg.Body)

	for _, keyword := range c.cfg.NonJobKeywords {
		if strings.Contains(combined, keyword) {
			return Decision{Accept: false, Reason: "non_job_email_" + keyword}
		}
	}

	fromEmail := mailbox.ExtractAddress(msg.From)
	if fromEmail == strings.ToLower(c.cfg.PrimarySender) {
		toCC := strings.ToLower(msg.To + " " + msg.CC)
		if strings.Contains(toCC, strings.ToLower(c.cfg.TargetGroup)) {
			return Decision{Accept: true, Reason: "primary_source_group"}
		}

		subject := strings.ToLower(msg.Subject)
		for _, keyword := range c.cfg.SubjectKeywords {
			if strings.Contains(subject, keyword) {
				return Decision{Accept: true, Reason: "primary_source_keyword"}
			}
		}
	}

	confidence := c.Confidence(combined)
	if confidence >= c.cfg.MinConfidence {
		return Decision{Accept: true, Reason: fmt.Sprintf("nlp_confidence_%.2f", confidence)}
	}

	return Decision{Accept: false, Reason: fmt.Sprintf("low_confidence_%.2f", confidence)}
}

// Confidence scores lowercased text as the fraction of the keyword
// vocabulary present, plus a flat 0.2 bonus when any strong indicator
// appears, capped at 1.0. Adding keywords to a text never lowers the score.
func (c *Classifier) Confidence(text string) float64 {
	if len(c.cfg.JobKeywords) == 0 {
		return 0
	}

	matches := 0
	for _, keyword := range c.cfg.JobKeywords {
		if strings.Contains(text, keyword) {
			matches++
		}
	}
	confidence := float64(matches) / float64(len(c.cfg.JobKeywords))

	for _, indicator := range c.cfg.StrongIndicators {
		if strings.Contains(text, indicator) {
			confidence += 0.2
			break
		}
	}

	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}
