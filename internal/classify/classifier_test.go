package classify

import (
	"strings"
	"testing"

	"github.com/campusplace/ingest/internal/config"
	"github.com/campusplace/ingest/internal/mailbox"
)

func testConfig() config.ClassifierConfig {
	return config.ClassifierConfig{
		PrimarySender:   "spr@thapar.edu",
		TargetGroup:     "CampusNotice2026",
		SubjectKeywords: []string{"internship", "placement", "job"},
		JobKeywords: []string{
			"job", "internship", "position", "opening", "vacancy",
			"ctc", "salary", "stipend", "apply", "deadline",
			"eligibility", "cgpa", "interview", "offer", "designation",
		},
		StrongIndicators: []string{"apply", "deadline", "ctc", "eligibility", "interview"},
		NonJobKeywords:   []string{"workshop", "guest lecture", "competition", "interview prep"},
		MinConfidence:    0.4,
	}
}

func TestClassifyNonJobVeto(t *testing.T) {
	c := New(testConfig())

	t.Run("rejects non-job keyword in subject", func(t *testing.T) {
		d := c.Classify(&mailbox.Message{
			Subject: "Workshop on Resume Building",
			Body:    "apply now, great opportunity, ctc discussed",
		})
		if d.Accept {
			t.Fatal("Expected rejection for workshop email")
		}
		if d.Reason != "non_job_email_workshop" {
			t.Errorf("Expected reason 'non_job_email_workshop', got %q", d.Reason)
		}
	})

	t.Run("veto dominates trusted sender", func(t *testing.T) {
		d := c.Classify(&mailbox.Message{
			Subject: "Guest Lecture on AI",
			From:    "spr@thapar.edu",
			To:      "CampusNotice2026 <notice@thapar.edu>",
		})
		if d.Accept {
			t.Fatal("Expected rejection despite primary-source match")
		}
		if d.Reason != "non_job_email_guest lecture" {
			t.Errorf("Expected reason 'non_job_email_guest lecture', got %q", d.Reason)
		}
	})
}

func TestClassifyPrimarySource(t *testing.T) {
	c := New(testConfig())

	t.Run("accepts trusted sender with target group", func(t *testing.T) {
		d := c.Classify(&mailbox.Message{
			Subject: "Notice",
			From:    "Placement Cell <SPR@thapar.edu>",
			CC:      "campusnotice2026@thapar.edu",
		})
		if !d.Accept || d.Reason != "primary_source_group" {
			t.Errorf("Expected primary_source_group acceptance, got %+v", d)
		}
		if d.Source() != "primary" {
			t.Errorf("Expected source 'primary', got %q", d.Source())
		}
	})

	t.Run("accepts trusted sender with subject keyword", func(t *testing.T) {
		d := c.Classify(&mailbox.Message{
			Subject: "Summer Internship Drive",
			From:    "spr@thapar.edu",
			To:      "someone@thapar.edu",
		})
		if !d.Accept || d.Reason != "primary_source_keyword" {
			t.Errorf("Expected primary_source_keyword acceptance, got %+v", d)
		}
	})

	t.Run("untrusted sender falls through to scoring", func(t *testing.T) {
		d := c.Classify(&mailbox.Message{
			Subject: "Notice",
			From:    "random@example.com",
			To:      "campusnotice2026@thapar.edu",
			Body:    "nothing relevant here",
		})
		if d.Accept {
			t.Errorf("Expected rejection, got %+v", d)
		}
		if !strings.HasPrefix(d.Reason, "low_confidence_") {
			t.Errorf("Expected low_confidence reason, got %q", d.Reason)
		}
	})
}

func TestClassifyConfidenceScoring(t *testing.T) {
	c := New(testConfig())

	t.Run("accepts keyword-rich message from unknown sender", func(t *testing.T) {
		// 4 of 15 keywords plus the strong-indicator bonus clears 0.4.
		d := c.Classify(&mailbox.Message{
			Subject: "Internship Opportunity - Acme Corp",
			From:    "hr@acme.example",
			Body:    "Please apply before the deadline. Eligibility: CGPA 7+. CTC 12 LPA.",
		})
		if !d.Accept {
			t.Fatalf("Expected acceptance, got %+v", d)
		}
		if !strings.HasPrefix(d.Reason, "nlp_confidence_") {
			t.Errorf("Expected nlp_confidence reason, got %q", d.Reason)
		}
		if d.Source() != "secondary" {
			t.Errorf("Expected source 'secondary', got %q", d.Source())
		}
	})

	t.Run("embeds the numeric score in the rejection reason", func(t *testing.T) {
		d := c.Classify(&mailbox.Message{
			Subject: "Lunch plans",
			From:    "friend@example.com",
			Body:    "See you at noon",
		})
		if d.Accept {
			t.Fatalf("Expected rejection, got %+v", d)
		}
		if d.Reason != "low_confidence_0.00" {
			t.Errorf("Expected 'low_confidence_0.00', got %q", d.Reason)
		}
	})
}

func TestConfidenceMonotonicity(t *testing.T) {
	c := New(testConfig())

	text := "hello there"
	prev := c.Confidence(text)
	for _, keyword := range testConfig().JobKeywords {
		text += " " + keyword
		score := c.Confidence(text)
		if score < prev {
			t.Fatalf("Confidence decreased from %v to %v after adding %q", prev, score, keyword)
		}
		prev = score
	}

	if prev > 1.0 {
		t.Errorf("Confidence exceeded 1.0: %v", prev)
	}
}

func TestConfidenceStrongIndicatorBonus(t *testing.T) {
	c := New(testConfig())

	without := c.Confidence("vacancy cgpa designation")
	with := c.Confidence("vacancy cgpa designation apply")

	// One extra keyword plus the flat bonus.
	expected := without + 1.0/15 + 0.2
	if diff := with - expected; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Expected confidence %v, got %v", expected, with)
	}
}
