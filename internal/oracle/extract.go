package oracle

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sirupsen/logrus"
)

// CandidateJob is the oracle's raw structured guess for one posting.
// Company is the only field the pipeline treats as mandatory; every other
// field tolerates a JSON null.
type CandidateJob struct {
	Company       string `json:"company"`
	Position      string `json:"position"`
	CTC           string `json:"ctc"`
	Stipend       string `json:"stipend"`
	Location      string `json:"location"`
	JobType       string `json:"job_type"`
	Deadline      string `json:"deadline"`
	TestDate      string `json:"test_date"`
	InterviewDate string `json:"interview_date"`
	Description   string `json:"description"`
	Eligibility   string `json:"eligibility"`
	ApplyLink     string `json:"apply_link"`
	IsJobPosting  bool   `json:"is_job_posting"`
}

// Extractor is the capability the pipeline depends on. The production
// implementation calls the live service; tests use a fake.
type Extractor interface {
	// ExtractJobs returns nil (not an empty slice) when the content holds
	// no job postings, and an error when the oracle call or its output
	// parsing fails. Callers treat both the same way downstream; only the
	// logs distinguish them.
	ExtractJobs(ctx context.Context, content string, urls []string) ([]CandidateJob, error)
}

const systemPrompt = "You are an expert at extracting job details. " +
	"Return only valid JSON. NEVER include company=null jobs. " +
	"Skip workshops, competitions, guest lectures."

// GPTExtractor extracts job records through a chat-completion call.
type GPTExtractor struct {
	completer completer
	log       *logrus.Entry
}

func NewGPTExtractor(apiKey, model string, log *logrus.Entry) *GPTExtractor {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &GPTExtractor{
		completer: newOpenAIClient(apiKey, model),
		log:       log,
	}
}

func (g *GPTExtractor) ExtractJobs(ctx context.Context, content string, urls []string) ([]CandidateJob, error) {
	raw, err := g.completer.complete(ctx, systemPrompt, buildPrompt(content, urls))
	if err != nil {
		g.log.WithError(err).Warn("Oracle call failed")
		return nil, err
	}

	candidates, err := parseCandidates(raw)
	if err != nil {
		g.log.WithError(err).WithField("response", truncateForLog(raw, 200)).
			Warn("Failed to parse oracle response")
		return nil, err
	}

	var valid []CandidateJob
	for _, cand := range candidates {
		if cand.IsJobPosting && strings.TrimSpace(cand.Company) != "" {
			valid = append(valid, cand)
			position := cand.Position
			if position == "" {
				position = "Position TBD"
			}
			g.log.WithFields(logrus.Fields{
				"company":  cand.Company,
				"position": position,
			}).Info("Job found")
		}
	}

	// nil, not an empty slice: "no postings here" and "every entry was
	// filtered out" are the same outcome for the caller.
	if len(valid) == 0 {
		return nil, nil
	}
	return valid, nil
}

func buildPrompt(content string, urls []string) string {
	var sb strings.Builder

	sb.WriteString("Extract ONLY actual job/internship postings. SKIP workshops, competitions, guest lectures, interview prep materials.\n\n")
	sb.WriteString("Content:\n")
	sb.WriteString(content)
	sb.WriteString("\n")

	if len(urls) > 0 {
		if len(urls) > 5 {
			urls = urls[:5]
		}
		sb.WriteString("\nApplication URLs:\n")
		sb.WriteString(strings.Join(urls, "\n"))
		sb.WriteString("\n")
	}

	sb.WriteString(`
STRICT RULES:
1. SKIP if email is about:
   - Workshop, seminar, webinar
   - Guest lecture, guest speaker
   - Competition, case study competition
   - Interview preparation, study material, questions shared

2. ONLY extract if it's a real job/internship with company hiring

3. company must NOT be null - if no company name, set is_job_posting=false

4. If MULTIPLE jobs -> return ARRAY
   If SINGLE job -> return OBJECT

JSON Format:
{
    "company": "company name (REQUIRED, not null)",
    "position": "job title or null",
    "ctc": "salary or 'To be discussed' or null",
    "location": "location or null",
    "job_type": "Full-time/Internship/Part-time or null",
    "deadline": "YYYY-MM-DD or null",
    "test_date": "YYYY-MM-DD or null",
    "interview_date": "YYYY-MM-DD or null",
    "description": "description or null",
    "eligibility": "eligibility or null",
    "apply_link": "URL or null",
    "is_job_posting": true or false
}

is_job_posting=true ONLY if:
- Company name exists (not null)
- It's a real hiring opportunity (not workshop/competition)
- Has eligibility OR test_date OR apply_link`)

	return sb.String()
}

// parseCandidates decodes the oracle's reply: optional markdown fences
// around either a single object or an array.
func parseCandidates(raw string) ([]CandidateJob, error) {
	cleaned := stripCodeFences(raw)

	var list []CandidateJob
	if err := json.Unmarshal([]byte(cleaned), &list); err == nil {
		return list, nil
	}

	var single CandidateJob
	if err := json.Unmarshal([]byte(cleaned), &single); err != nil {
		return nil, err
	}
	return []CandidateJob{single}, nil
}

func stripCodeFences(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = cleaned[len("```json"):]
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = cleaned[len("```"):]
	}
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	return strings.TrimSpace(cleaned)
}

func truncateForLog(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
